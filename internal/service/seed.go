package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jeovahfialho/tradelog/internal/domain"
	"github.com/jeovahfialho/tradelog/pkg/logger"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const seedPassword = "pass123"

type seedTrade struct {
	symbol   string
	side     domain.TradeSide
	quantity string
	entry    string
	exit     string
	entryAgo time.Duration
	exitAgo  time.Duration
}

type seedUser struct {
	username string
	email    string
	trades   []seedTrade
}

const day = 24 * time.Hour

// demoUsers is a small platform with a clear top gainer (charlie), top
// loser (bob) and a trader holding open positions (alice).
var demoUsers = []seedUser{
	{username: "charlie", email: "charlie@winner.com", trades: []seedTrade{
		{symbol: "BTC/USDT", side: domain.SideLong, quantity: "2", entry: "50000", exit: "55000", entryAgo: 10 * day, exitAgo: 2 * day},
		{symbol: "SOL/USDT", side: domain.SideLong, quantity: "100", entry: "20", exit: "25", entryAgo: 5 * day, exitAgo: day},
	}},
	{username: "bob", email: "bob@loser.com", trades: []seedTrade{
		{symbol: "ETH/USDT", side: domain.SideShort, quantity: "10", entry: "3000", exit: "3200", entryAgo: 8 * day, exitAgo: 3 * day},
	}},
	{username: "alice", email: "alice@trader.com", trades: []seedTrade{
		{symbol: "BTC/USDT", side: domain.SideLong, quantity: "0.5", entry: "40000", exit: "42000", entryAgo: 20 * day, exitAgo: 15 * day},
		{symbol: "BTC/USDT", side: domain.SideLong, quantity: "1", entry: "58000", entryAgo: 4 * time.Hour},
		{symbol: "DOGE/USDT", side: domain.SideLong, quantity: "1000", entry: "0.10", entryAgo: day},
	}},
}

// Seed loads the demo traders and their trades. Users that already exist
// are kept, and trades are only added for users that have none, so running
// it twice is harmless. It returns the number of trades inserted.
func Seed(ctx context.Context, store Store, users *AuthService, now time.Time) (int64, error) {
	var inserted int64

	for _, su := range demoUsers {
		user, err := users.EnsureTrader(ctx, su.email, su.username, seedPassword)
		if err != nil {
			return inserted, err
		}

		existing, err := store.CountTrades(ctx, domain.TradeFilter{UserID: &user.ID})
		if err != nil {
			return inserted, fmt.Errorf("count trades of %s: %w", su.username, err)
		}
		if existing > 0 {
			logger.WithContext(ctx).Info("seed user already has trades", zap.String("username", su.username))
			continue
		}

		trades := make([]domain.Trade, 0, len(su.trades))
		for _, st := range su.trades {
			t, err := st.build(user.ID, now)
			if err != nil {
				return inserted, fmt.Errorf("seed trade for %s: %w", su.username, err)
			}
			trades = append(trades, *t)
		}

		n, err := store.BulkInsertTrades(ctx, trades)
		if err != nil {
			return inserted, fmt.Errorf("insert trades of %s: %w", su.username, err)
		}
		inserted += n
		invalidateAnalytics(ctx, users.cache, user.ID)
	}

	logger.WithContext(ctx).Info("database seeded", zap.Int64("trades", inserted))
	return inserted, nil
}

func (st seedTrade) build(owner uuid.UUID, now time.Time) (*domain.Trade, error) {
	entryDate := now.Add(-st.entryAgo)

	t, err := domain.NewTrade(domain.NewTradeParams{
		UserID:     owner,
		Symbol:     st.symbol,
		Side:       st.side,
		Quantity:   decimal.RequireFromString(st.quantity),
		EntryPrice: decimal.RequireFromString(st.entry),
		EntryDate:  &entryDate,
	}, now)
	if err != nil {
		return nil, err
	}

	if st.exit != "" {
		exitDate := now.Add(-st.exitAgo)
		if err := t.Close(decimal.RequireFromString(st.exit), &exitDate, now); err != nil {
			return nil, err
		}
	}
	return t, nil
}
