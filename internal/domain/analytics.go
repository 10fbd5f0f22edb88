package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type BestAsset struct {
	Symbol   string          `json:"symbol"`
	TotalPnL decimal.Decimal `json:"total_pnl"`
}

type UserSummary struct {
	NetRealizedPnL    decimal.Decimal `json:"net_realized_pnl"`
	ProfitFactor      decimal.Decimal `json:"profit_factor"`
	WinRate           decimal.Decimal `json:"win_rate"`
	TotalClosedTrades int64           `json:"total_closed_trades"`
	ActivePositions   int64           `json:"active_positions"`
	AvgWin            decimal.Decimal `json:"avg_win"`
	AvgLoss           decimal.Decimal `json:"avg_loss"`
	BestAsset         *BestAsset      `json:"best_asset"`
}

type UserPerformance struct {
	Username string          `json:"username"`
	Email    string          `json:"email"`
	TotalPnL decimal.Decimal `json:"total_pnl"`
}

type AdminSummary struct {
	TotalUsers       int64            `json:"total_users"`
	TotalTrades      int64            `json:"total_trades"`
	ActivePositions  int64            `json:"active_positions"`
	TotalPlatformPnL decimal.Decimal  `json:"total_platform_pnl"`
	TopGainer        *UserPerformance `json:"top_gainer"`
	TopLoser         *UserPerformance `json:"top_loser"`
}

type PnLPoint struct {
	Date          time.Time       `json:"date"`
	PnL           decimal.Decimal `json:"pnl"`
	CumulativePnL decimal.Decimal `json:"cumulative_pnl"`
}

type Chart struct {
	Data []PnLPoint `json:"data"`
}

// PnLGroup is a realized PnL total keyed by symbol or owner id.
type PnLGroup struct {
	Key   string          `db:"key" json:"key"`
	Total decimal.Decimal `db:"total" json:"total"`
}

type GroupBy string

const (
	GroupBySymbol GroupBy = "symbol"
	GroupByUser   GroupBy = "user_id"
)
