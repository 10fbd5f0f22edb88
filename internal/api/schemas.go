package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/jeovahfialho/tradelog/internal/domain"
	"github.com/shopspring/decimal"
)

type RegisterRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginRequest accepts JSON or the OAuth2 password form, where the email
// travels in the username field.
type LoginRequest struct {
	Email    string `json:"email" form:"username"`
	Password string `json:"password" form:"password"`
}

type UserResponse struct {
	ID       uuid.UUID   `json:"id"`
	Email    string      `json:"email"`
	Username string      `json:"username"`
	Role     domain.Role `json:"role"`
}

type CreateTradeRequest struct {
	Symbol     string           `json:"symbol"`
	Side       domain.TradeSide `json:"side"`
	Quantity   decimal.Decimal  `json:"quantity"`
	EntryPrice decimal.Decimal  `json:"entry_price"`
	EntryDate  *time.Time       `json:"entry_date"`
}

type UpdateTradeRequest struct {
	Symbol     *string             `json:"symbol"`
	Side       *domain.TradeSide   `json:"side"`
	Quantity   *decimal.Decimal    `json:"quantity"`
	EntryPrice *decimal.Decimal    `json:"entry_price"`
	EntryDate  *time.Time          `json:"entry_date"`
	ExitPrice  *decimal.Decimal    `json:"exit_price"`
	ExitDate   *time.Time          `json:"exit_date"`
	Status     *domain.TradeStatus `json:"status"`
}

func (r UpdateTradeRequest) toUpdate() domain.TradeUpdate {
	return domain.TradeUpdate{
		Symbol:     r.Symbol,
		Side:       r.Side,
		Quantity:   r.Quantity,
		EntryPrice: r.EntryPrice,
		EntryDate:  r.EntryDate,
		ExitPrice:  r.ExitPrice,
		ExitDate:   r.ExitDate,
		Status:     r.Status,
	}
}

type CloseTradeRequest struct {
	ExitPrice *decimal.Decimal `json:"exit_price"`
	ExitDate  *time.Time       `json:"exit_date"`
}

type HealthResponse struct {
	Status    string                   `json:"status"`
	Version   string                   `json:"version"`
	Timestamp time.Time                `json:"timestamp"`
	Services  map[string]ServiceHealth `json:"services,omitempty"`
}

type ServiceHealth struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Error   string `json:"error,omitempty"`
}

type SystemStatsResponse struct {
	Database map[string]interface{} `json:"database"`
	Cache    CacheStats             `json:"cache"`
	API      APIStats               `json:"api"`
}

type CacheStats struct {
	Enabled bool `json:"enabled"`
}

type APIStats struct {
	ActiveGoroutines int    `json:"active_goroutines"`
	MemoryUsed       string `json:"memory_used"`
}

type ErrorResponse struct {
	Error     string    `json:"error"`
	Code      int       `json:"code"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type InvalidateCacheResponse struct {
	Status  string `json:"status"`
	Pattern string `json:"pattern"`
	Removed int64  `json:"removed"`
}
