package service_test

import (
	"context"
	"testing"

	"github.com/jeovahfialho/tradelog/internal/domain"
	"github.com/jeovahfialho/tradelog/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestUserSummaryOnSeedData(t *testing.T) {
	e := newEnv(t)
	e.seed(t)
	ctx := context.Background()

	alice := e.principal(t, "alice@trader.com")
	summary, err := e.analytics.UserSummary(ctx, alice)
	require.NoError(t, err)

	assert.True(t, summary.NetRealizedPnL.Equal(dec("1000")))
	assert.True(t, summary.ProfitFactor.Equal(dec("99.99")))
	assert.True(t, summary.WinRate.Equal(dec("100")))
	assert.Equal(t, int64(1), summary.TotalClosedTrades)
	assert.Equal(t, int64(2), summary.ActivePositions)
	assert.True(t, summary.AvgWin.Equal(dec("1000")))
	assert.True(t, summary.AvgLoss.IsZero())
	require.NotNil(t, summary.BestAsset)
	assert.Equal(t, "BTC/USDT", summary.BestAsset.Symbol)

	bob := e.principal(t, "bob@loser.com")
	summary, err = e.analytics.UserSummary(ctx, bob)
	require.NoError(t, err)
	assert.True(t, summary.NetRealizedPnL.Equal(dec("-2000")))
	assert.True(t, summary.ProfitFactor.IsZero())
	assert.True(t, summary.WinRate.IsZero())
	assert.True(t, summary.AvgLoss.Equal(dec("2000")))
	assert.Nil(t, summary.BestAsset)
}

func TestUserSummaryIsCached(t *testing.T) {
	e := newEnv(t)
	e.seed(t)
	ctx := context.Background()
	charlie := e.principal(t, "charlie@winner.com")

	first, err := e.analytics.UserSummary(ctx, charlie)
	require.NoError(t, err)
	require.True(t, e.cache.has(userKey(charlie.UserID)))

	second, err := e.analytics.UserSummary(ctx, charlie)
	require.NoError(t, err)
	assert.True(t, first.NetRealizedPnL.Equal(second.NetRealizedPnL))
	assert.Equal(t, first.BestAsset.Symbol, second.BestAsset.Symbol)
}

func TestAdminSummaryOnSeedData(t *testing.T) {
	e := newEnv(t)
	e.seed(t)

	summary, err := e.analytics.AdminSummary(context.Background(), e.admin)
	require.NoError(t, err)

	assert.Equal(t, int64(3), summary.TotalUsers)
	assert.Equal(t, int64(6), summary.TotalTrades)
	assert.Equal(t, int64(2), summary.ActivePositions)
	assert.True(t, summary.TotalPlatformPnL.Equal(dec("9500")))

	require.NotNil(t, summary.TopGainer)
	assert.Equal(t, "charlie", summary.TopGainer.Username)
	assert.True(t, summary.TopGainer.TotalPnL.Equal(dec("10500")))

	require.NotNil(t, summary.TopLoser)
	assert.Equal(t, "bob", summary.TopLoser.Username)
	assert.True(t, summary.TopLoser.TotalPnL.Equal(dec("-2000")))
}

func TestAdminSummaryEmptyPlatform(t *testing.T) {
	e := newEnv(t)

	summary, err := e.analytics.AdminSummary(context.Background(), e.admin)
	require.NoError(t, err)
	assert.Zero(t, summary.TotalUsers)
	assert.True(t, summary.TotalPlatformPnL.IsZero())
	assert.Nil(t, summary.TopGainer)
	assert.Nil(t, summary.TopLoser)
}

func TestSummaryDispatchesOnRole(t *testing.T) {
	e := newEnv(t)
	e.seed(t)
	ctx := context.Background()

	got, err := e.analytics.Summary(ctx, e.admin)
	require.NoError(t, err)
	assert.IsType(t, &domain.AdminSummary{}, got)

	got, err = e.analytics.Summary(ctx, e.principal(t, "alice@trader.com"))
	require.NoError(t, err)
	assert.IsType(t, &domain.UserSummary{}, got)

	_, err = e.analytics.AdminSummary(ctx, e.principal(t, "alice@trader.com"))
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestPnLChart(t *testing.T) {
	e := newEnv(t)
	e.seed(t)
	ctx := context.Background()

	chart, err := e.analytics.PnLChart(ctx, e.admin)
	require.NoError(t, err)
	require.Len(t, chart.Data, 4)

	want := []string{"1000", "-1000", "9000", "9500"}
	for i, p := range chart.Data {
		assert.True(t, p.CumulativePnL.Equal(dec(want[i])), "point %d = %s", i, p.CumulativePnL)
		if i > 0 {
			assert.False(t, p.Date.Before(chart.Data[i-1].Date))
		}
	}

	chart, err = e.analytics.PnLChart(ctx, e.principal(t, "charlie@winner.com"))
	require.NoError(t, err)
	require.Len(t, chart.Data, 2)
	assert.True(t, chart.Data[1].CumulativePnL.Equal(dec("10500")))

	chart, err = e.analytics.PnLChart(ctx, e.trader(t, "newcomer"))
	require.NoError(t, err)
	assert.Empty(t, chart.Data)
}

func TestTopProfitableTrades(t *testing.T) {
	e := newEnv(t)
	e.seed(t)
	ctx := context.Background()

	page, err := e.analytics.TopProfitableTrades(ctx, e.admin)
	require.NoError(t, err)
	require.Len(t, page.Data, 3)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, service.TopTradesLimit, page.Limit)

	assert.True(t, page.Data[0].PnL.Equal(dec("10000")))
	assert.True(t, page.Data[1].PnL.Equal(dec("1000")))
	assert.True(t, page.Data[2].PnL.Equal(dec("500")))
	require.NotNil(t, page.Data[0].Owner)
	assert.Equal(t, "charlie", page.Data[0].Owner.Username)

	_, err = e.analytics.TopProfitableTrades(ctx, e.principal(t, "bob@loser.com"))
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestInvalidateCache(t *testing.T) {
	e := newEnv(t)
	e.seed(t)
	ctx := context.Background()
	alice := e.principal(t, "alice@trader.com")

	_, err := e.analytics.UserSummary(ctx, alice)
	require.NoError(t, err)
	_, err = e.analytics.PnLChart(ctx, e.admin)
	require.NoError(t, err)

	n, err := e.analytics.InvalidateCache(ctx, e.admin, "user:*")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, []string{service.CacheKeyPrefix + "chart:all"}, e.cache.keys())

	_, err = e.analytics.InvalidateCache(ctx, alice, "*")
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestSeedIsIdempotent(t *testing.T) {
	e := newEnv(t)
	e.seed(t)

	n, err := service.Seed(context.Background(), e.store, e.auth, now)
	require.NoError(t, err)
	assert.Zero(t, n)
}
