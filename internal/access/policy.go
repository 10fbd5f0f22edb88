// Package access resolves which trades a requester may see and mutate.
package access

import (
	"github.com/google/uuid"
	"github.com/jeovahfialho/tradelog/internal/domain"
)

// Principal is the authenticated requester.
type Principal struct {
	UserID uuid.UUID
	Role   domain.Role
}

func (p Principal) IsAdmin() bool {
	return p.Role == domain.RoleAdmin
}

// Scope restricts trade queries to the requester's visible set.
type Scope interface {
	Filter(f domain.TradeFilter) domain.TradeFilter
	Visible(t *domain.Trade) bool
}

// TraderScope sees only the trader's own trades.
type TraderScope struct {
	UserID uuid.UUID
}

func (s TraderScope) Filter(f domain.TradeFilter) domain.TradeFilter {
	id := s.UserID
	f.UserID = &id
	return f
}

func (s TraderScope) Visible(t *domain.Trade) bool {
	return t != nil && t.UserID == s.UserID
}

// AdminScope sees every trade on the platform.
type AdminScope struct{}

func (AdminScope) Filter(f domain.TradeFilter) domain.TradeFilter {
	return f
}

func (AdminScope) Visible(t *domain.Trade) bool {
	return t != nil
}

func ScopeFor(p Principal) Scope {
	if p.IsAdmin() {
		return AdminScope{}
	}
	return TraderScope{UserID: p.UserID}
}

// CanCreate rejects admins: they review the platform but do not trade.
func CanCreate(p Principal) error {
	if p.IsAdmin() {
		return domain.ErrForbidden
	}
	return nil
}

// RequireOwner allows mutations only by the trade's owner.
func RequireOwner(p Principal, t *domain.Trade) error {
	if t.UserID != p.UserID {
		return domain.ErrForbidden
	}
	return nil
}
