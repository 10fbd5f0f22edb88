package sqlite

import (
	"time"

	"github.com/google/uuid"
	"github.com/jeovahfialho/tradelog/internal/domain"
	"github.com/shopspring/decimal"
)

// UserModel and TradeModel are exported so gorm maps the fields of
// TradeModel when it is embedded in tradeRow.
type UserModel struct {
	ID             string    `gorm:"primaryKey;size:36"`
	Email          string    `gorm:"uniqueIndex;not null"`
	Username       string    `gorm:"uniqueIndex;not null"`
	HashedPassword string    `gorm:"not null"`
	Role           string    `gorm:"not null;default:TRADER"`
	CreatedAt      time.Time `gorm:"not null"`
}

func (UserModel) TableName() string {
	return "users"
}

type TradeModel struct {
	ID         string              `gorm:"primaryKey;size:36"`
	UserID     string              `gorm:"index;not null"`
	Symbol     string              `gorm:"index;not null"`
	Side       string              `gorm:"not null"`
	Quantity   decimal.Decimal     `gorm:"type:text;not null"`
	EntryPrice decimal.Decimal     `gorm:"type:text;not null"`
	EntryDate  time.Time           `gorm:"index;not null"`
	ExitPrice  decimal.NullDecimal `gorm:"type:text"`
	ExitDate   *time.Time          `gorm:"index"`
	Status     string              `gorm:"index;not null"`
	PnL        decimal.NullDecimal `gorm:"column:pnl;type:text"`
}

func (TradeModel) TableName() string {
	return "trades"
}

// tradeRow is a trade joined with its owner.
type tradeRow struct {
	TradeModel
	Username string
	Email    string
}

func fromUser(u *domain.User) UserModel {
	return UserModel{
		ID:             u.ID.String(),
		Email:          u.Email,
		Username:       u.Username,
		HashedPassword: u.HashedPassword,
		Role:           string(u.Role),
		CreatedAt:      u.CreatedAt.UTC(),
	}
}

func (m UserModel) toDomain() (*domain.User, error) {
	id, err := uuid.Parse(m.ID)
	if err != nil {
		return nil, err
	}
	return &domain.User{
		ID:             id,
		Email:          m.Email,
		Username:       m.Username,
		HashedPassword: m.HashedPassword,
		Role:           domain.Role(m.Role),
		CreatedAt:      m.CreatedAt.UTC(),
	}, nil
}

func fromTrade(t *domain.Trade) TradeModel {
	m := TradeModel{
		ID:         t.ID.String(),
		UserID:     t.UserID.String(),
		Symbol:     t.Symbol,
		Side:       string(t.Side),
		Quantity:   t.Quantity,
		EntryPrice: t.EntryPrice,
		EntryDate:  t.EntryDate.UTC(),
		Status:     string(t.Status),
	}
	if t.ExitPrice != nil {
		m.ExitPrice = decimal.NewNullDecimal(*t.ExitPrice)
	}
	if t.ExitDate != nil {
		exit := t.ExitDate.UTC()
		m.ExitDate = &exit
	}
	if t.PnL != nil {
		m.PnL = decimal.NewNullDecimal(*t.PnL)
	}
	return m
}

func (r tradeRow) toDomain() (*domain.Trade, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, err
	}
	userID, err := uuid.Parse(r.UserID)
	if err != nil {
		return nil, err
	}

	t := &domain.Trade{
		ID:         id,
		UserID:     userID,
		Symbol:     r.Symbol,
		Side:       domain.TradeSide(r.Side),
		Quantity:   r.Quantity,
		EntryPrice: r.EntryPrice,
		EntryDate:  r.EntryDate.UTC(),
		Status:     domain.TradeStatus(r.Status),
		Owner:      &domain.TradeOwner{Username: r.Username, Email: r.Email},
	}
	if r.ExitPrice.Valid {
		price := r.ExitPrice.Decimal
		t.ExitPrice = &price
	}
	if r.ExitDate != nil {
		exit := r.ExitDate.UTC()
		t.ExitDate = &exit
	}
	if r.PnL.Valid {
		pnl := r.PnL.Decimal
		t.PnL = &pnl
	}
	return t, nil
}
