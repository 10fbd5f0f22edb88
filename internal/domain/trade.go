package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TradeSide string

const (
	SideLong  TradeSide = "LONG"
	SideShort TradeSide = "SHORT"
)

func (s TradeSide) Valid() bool {
	return s == SideLong || s == SideShort
}

type TradeStatus string

const (
	StatusOpen   TradeStatus = "OPEN"
	StatusClosed TradeStatus = "CLOSED"
)

func (s TradeStatus) Valid() bool {
	return s == StatusOpen || s == StatusClosed
}

type TradeOwner struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Trade is a journaled position. While OPEN the exit fields and PnL are nil;
// a CLOSED trade always carries ExitPrice, ExitDate and PnL.
type Trade struct {
	ID         uuid.UUID        `db:"id" json:"id"`
	UserID     uuid.UUID        `db:"user_id" json:"user_id"`
	Symbol     string           `db:"symbol" json:"symbol"`
	Side       TradeSide        `db:"side" json:"side"`
	Quantity   decimal.Decimal  `db:"quantity" json:"quantity"`
	EntryPrice decimal.Decimal  `db:"entry_price" json:"entry_price"`
	EntryDate  time.Time        `db:"entry_date" json:"entry_date"`
	ExitPrice  *decimal.Decimal `db:"exit_price" json:"exit_price"`
	ExitDate   *time.Time       `db:"exit_date" json:"exit_date"`
	Status     TradeStatus      `db:"status" json:"status"`
	PnL        *decimal.Decimal `db:"pnl" json:"pnl"`
	Owner      *TradeOwner      `json:"owner,omitempty"`
}

type NewTradeParams struct {
	UserID     uuid.UUID
	Symbol     string
	Side       TradeSide
	Quantity   decimal.Decimal
	EntryPrice decimal.Decimal
	EntryDate  *time.Time
}

// NewTrade opens a position. A missing entry date defaults to now.
func NewTrade(p NewTradeParams, now time.Time) (*Trade, error) {
	symbol := NormalizeSymbol(p.Symbol)
	if symbol == "" {
		return nil, Invalid("symbol", "is required")
	}
	if !p.Side.Valid() {
		return nil, Invalid("side", "must be LONG or SHORT")
	}
	if err := positive("quantity", p.Quantity); err != nil {
		return nil, err
	}
	if err := positive("entry_price", p.EntryPrice); err != nil {
		return nil, err
	}

	entryDate := now
	if p.EntryDate != nil {
		entryDate = *p.EntryDate
	}

	return &Trade{
		ID:         uuid.New(),
		UserID:     p.UserID,
		Symbol:     symbol,
		Side:       p.Side,
		Quantity:   p.Quantity,
		EntryPrice: p.EntryPrice,
		EntryDate:  entryDate.UTC(),
		Status:     StatusOpen,
	}, nil
}

// Close moves an OPEN trade to CLOSED and realizes its PnL. The exit
// fields, status and PnL change together or not at all.
func (t *Trade) Close(exitPrice decimal.Decimal, exitDate *time.Time, now time.Time) error {
	if t.Status == StatusClosed {
		return ErrAlreadyClosed
	}
	if err := positive("exit_price", exitPrice); err != nil {
		return err
	}

	exit := now.UTC()
	if exitDate != nil {
		exit = exitDate.UTC()
	}
	if err := ValidateTimeline(t.EntryDate, &exit); err != nil {
		return err
	}

	pnl := ComputePnL(t.Side, t.EntryPrice, exitPrice, t.Quantity)
	price := exitPrice

	t.ExitPrice = &price
	t.ExitDate = &exit
	t.Status = StatusClosed
	t.PnL = &pnl
	return nil
}

// TradeUpdate carries a partial edit; nil fields are left untouched.
type TradeUpdate struct {
	Symbol     *string
	Side       *TradeSide
	Quantity   *decimal.Decimal
	EntryPrice *decimal.Decimal
	EntryDate  *time.Time
	ExitPrice  *decimal.Decimal
	ExitDate   *time.Time
	Status     *TradeStatus
}

// Apply edits the trade in place. The edit is validated on a copy first so a
// rejected update leaves the trade unchanged. A CLOSED result recomputes PnL.
func (t *Trade) Apply(u TradeUpdate) error {
	next := *t

	if u.Symbol != nil {
		symbol := NormalizeSymbol(*u.Symbol)
		if symbol == "" {
			return Invalid("symbol", "is required")
		}
		next.Symbol = symbol
	}
	if u.Side != nil {
		if !u.Side.Valid() {
			return Invalid("side", "must be LONG or SHORT")
		}
		next.Side = *u.Side
	}
	if u.Quantity != nil {
		if err := positive("quantity", *u.Quantity); err != nil {
			return err
		}
		next.Quantity = *u.Quantity
	}
	if u.EntryPrice != nil {
		if err := positive("entry_price", *u.EntryPrice); err != nil {
			return err
		}
		next.EntryPrice = *u.EntryPrice
	}
	if u.EntryDate != nil {
		next.EntryDate = u.EntryDate.UTC()
	}
	if u.ExitPrice != nil {
		if err := positive("exit_price", *u.ExitPrice); err != nil {
			return err
		}
		price := *u.ExitPrice
		next.ExitPrice = &price
	}
	if u.ExitDate != nil {
		exit := u.ExitDate.UTC()
		next.ExitDate = &exit
	}
	if u.Status != nil {
		if !u.Status.Valid() {
			return Invalid("status", "must be OPEN or CLOSED")
		}
		if t.Status == StatusClosed && *u.Status == StatusOpen {
			return ErrReopenNotAllowed
		}
		next.Status = *u.Status
	}

	if err := ValidateTimeline(next.EntryDate, next.ExitDate); err != nil {
		return err
	}

	switch next.Status {
	case StatusOpen:
		if next.ExitPrice != nil || next.ExitDate != nil {
			return Invalid("exit fields", "can only be set on a closed trade")
		}
	case StatusClosed:
		if next.ExitPrice == nil || next.ExitDate == nil {
			return Invalid("exit fields", "are required on a closed trade")
		}
		pnl := ComputePnL(next.Side, next.EntryPrice, *next.ExitPrice, next.Quantity)
		next.PnL = &pnl
	}

	*t = next
	return nil
}

// ValidateTimeline enforces exit >= entry. Equal timestamps are allowed.
func ValidateTimeline(entry time.Time, exit *time.Time) error {
	if exit == nil || entry.IsZero() {
		return nil
	}
	if exit.Before(entry) {
		return ErrInvalidTimeline
	}
	return nil
}

func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func positive(field string, v decimal.Decimal) error {
	if !v.IsPositive() {
		return Invalid(field, "must be positive")
	}
	return nil
}

type TradeFilter struct {
	UserID         *uuid.UUID
	Status         TradeStatus
	Symbol         string
	ExitedOnly     bool
	ProfitableOnly bool
	EntryFrom      *time.Time
	EntryTo        *time.Time
}

type TradeSort int

const (
	SortEntryDateDesc TradeSort = iota
	SortExitDateAsc
	SortPnLDesc
)

type TradePage struct {
	Total int64   `json:"total"`
	Page  int     `json:"page"`
	Limit int     `json:"limit"`
	Data  []Trade `json:"data"`
}
