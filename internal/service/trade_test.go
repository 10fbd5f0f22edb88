package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jeovahfialho/tradelog/internal/access"
	"github.com/jeovahfialho/tradelog/internal/domain"
	"github.com/jeovahfialho/tradelog/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTrade(t *testing.T, e *env, p access.Principal, symbol string, side domain.TradeSide, qty, price string) *domain.Trade {
	t.Helper()

	tr, err := e.trades.Create(context.Background(), p, service.CreateTradeInput{
		Symbol:     symbol,
		Side:       side,
		Quantity:   decimal.RequireFromString(qty),
		EntryPrice: decimal.RequireFromString(price),
	})
	require.NoError(t, err)
	return tr
}

func TestTradeLifecycle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.trader(t, "alice")

	tr := openTrade(t, e, alice, " eth/usdt ", domain.SideShort, "10", "3000")
	assert.Equal(t, "ETH/USDT", tr.Symbol)
	assert.Equal(t, domain.StatusOpen, tr.Status)
	assert.True(t, tr.EntryDate.Equal(now))
	assert.Nil(t, tr.PnL)
	require.NotNil(t, tr.Owner)
	assert.Equal(t, "alice", tr.Owner.Username)

	qty := decimal.NewFromInt(5)
	tr, err := e.trades.Update(ctx, alice, tr.ID, domain.TradeUpdate{Quantity: &qty})
	require.NoError(t, err)
	assert.True(t, tr.Quantity.Equal(qty))

	exitAt := now.Add(time.Hour)
	tr, err = e.trades.Close(ctx, alice, tr.ID, decimal.NewFromInt(3200), &exitAt)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusClosed, tr.Status)
	assert.True(t, tr.PnL.Equal(decimal.NewFromInt(-1000)), "pnl = %s", tr.PnL)

	_, err = e.trades.Close(ctx, alice, tr.ID, decimal.NewFromInt(1), nil)
	assert.ErrorIs(t, err, domain.ErrAlreadyClosed)
	assert.ErrorIs(t, err, domain.ErrBusinessRule)

	reopen := domain.StatusOpen
	_, err = e.trades.Update(ctx, alice, tr.ID, domain.TradeUpdate{Status: &reopen})
	assert.ErrorIs(t, err, domain.ErrReopenNotAllowed)

	require.NoError(t, e.trades.Delete(ctx, alice, tr.ID))
	_, err = e.trades.Get(ctx, alice, tr.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCloseRejectsExitBeforeEntry(t *testing.T) {
	e := newEnv(t)
	alice := e.trader(t, "alice")
	tr := openTrade(t, e, alice, "BTC", domain.SideLong, "1", "100")

	before := now.Add(-time.Minute)
	_, err := e.trades.Close(context.Background(), alice, tr.ID, decimal.NewFromInt(110), &before)
	assert.ErrorIs(t, err, domain.ErrValidation)

	got, err := e.trades.Get(context.Background(), alice, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOpen, got.Status)
}

func TestUpdateToClosedRequiresExitFields(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.trader(t, "alice")
	tr := openTrade(t, e, alice, "BTC", domain.SideLong, "2", "100")

	closed := domain.StatusClosed
	_, err := e.trades.Update(ctx, alice, tr.ID, domain.TradeUpdate{Status: &closed})
	assert.ErrorIs(t, err, domain.ErrValidation)

	price := decimal.NewFromInt(150)
	_, err = e.trades.Update(ctx, alice, tr.ID, domain.TradeUpdate{ExitPrice: &price})
	assert.ErrorIs(t, err, domain.ErrValidation)

	exitAt := now.Add(day)
	updated, err := e.trades.Update(ctx, alice, tr.ID, domain.TradeUpdate{Status: &closed, ExitPrice: &price, ExitDate: &exitAt})
	require.NoError(t, err)
	assert.True(t, updated.PnL.Equal(decimal.NewFromInt(100)))
}

func TestTradeScoping(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.trader(t, "alice")
	bob := e.trader(t, "bob")
	tr := openTrade(t, e, alice, "BTC", domain.SideLong, "1", "100")

	_, err := e.trades.Get(ctx, bob, tr.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = e.trades.Close(ctx, bob, tr.ID, decimal.NewFromInt(120), nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, e.trades.Delete(ctx, bob, tr.ID), domain.ErrNotFound)

	got, err := e.trades.Get(ctx, e.admin, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, tr.ID, got.ID)

	_, err = e.trades.Close(ctx, e.admin, tr.ID, decimal.NewFromInt(120), nil)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = e.trades.Create(ctx, e.admin, service.CreateTradeInput{
		Symbol: "BTC", Side: domain.SideLong, Quantity: decimal.NewFromInt(1), EntryPrice: decimal.NewFromInt(1),
	})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = e.trades.Get(ctx, bob, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConcurrentCloseSucceedsOnce(t *testing.T) {
	e := newEnv(t)
	alice := e.trader(t, "alice")
	tr := openTrade(t, e, alice, "SOL", domain.SideLong, "100", "20")

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		rejected  int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.trades.Close(context.Background(), alice, tr.ID, decimal.NewFromInt(25), nil)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else if assert.ErrorIs(t, err, domain.ErrAlreadyClosed) {
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, rejected)

	got, err := e.trades.Get(context.Background(), alice, tr.ID)
	require.NoError(t, err)
	assert.True(t, got.PnL.Equal(decimal.NewFromInt(500)))
}

func TestListPagination(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.trader(t, "alice")
	bob := e.trader(t, "bob")

	for i := 0; i < 25; i++ {
		openTrade(t, e, alice, "ADA", domain.SideLong, "1", "1")
	}

	page, err := e.trades.List(ctx, alice, service.ListTradesQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(25), page.Total)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, service.DefaultPageLimit, page.Limit)
	assert.Len(t, page.Data, 20)

	page, err = e.trades.List(ctx, alice, service.ListTradesQuery{Skip: 20, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Page)
	assert.Len(t, page.Data, 5)

	page, err = e.trades.List(ctx, alice, service.ListTradesQuery{Limit: 1000})
	require.NoError(t, err)
	assert.Equal(t, service.MaxPageLimit, page.Limit)

	page, err = e.trades.List(ctx, bob, service.ListTradesQuery{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
	assert.NotNil(t, page.Data)

	page, err = e.trades.List(ctx, e.admin, service.ListTradesQuery{Status: domain.StatusOpen, Symbol: "ada"})
	require.NoError(t, err)
	assert.Equal(t, int64(25), page.Total)

	_, err = e.trades.List(ctx, alice, service.ListTradesQuery{Status: "PENDING"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestNormalizePage(t *testing.T) {
	tests := []struct {
		skip, limit         int
		wantSkip, wantLimit int
	}{
		{0, 0, 0, 20},
		{-5, 10, 0, 10},
		{40, 101, 40, 100},
		{3, 1, 3, 1},
	}

	for _, tt := range tests {
		skip, limit := service.NormalizePage(tt.skip, tt.limit)
		assert.Equal(t, tt.wantSkip, skip)
		assert.Equal(t, tt.wantLimit, limit)
	}
}

func TestMutationsInvalidateAnalytics(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.trader(t, "alice")
	tr := openTrade(t, e, alice, "BTC", domain.SideLong, "1", "100")

	_, err := e.analytics.UserSummary(ctx, alice)
	require.NoError(t, err)
	_, err = e.analytics.AdminSummary(ctx, e.admin)
	require.NoError(t, err)
	require.True(t, e.cache.has(userKey(alice.UserID)))
	require.NotEmpty(t, e.cache.keys())

	_, err = e.trades.Close(ctx, alice, tr.ID, decimal.NewFromInt(150), nil)
	require.NoError(t, err)
	assert.Empty(t, e.cache.keys())

	summary, err := e.analytics.UserSummary(ctx, alice)
	require.NoError(t, err)
	assert.True(t, summary.NetRealizedPnL.Equal(decimal.NewFromInt(50)))
}
