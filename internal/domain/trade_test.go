package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ptr[T any](v T) *T {
	return &v
}

func openTrade(t *testing.T, side TradeSide, qty, entry string) *Trade {
	t.Helper()

	trade, err := NewTrade(NewTradeParams{
		UserID:     uuid.New(),
		Symbol:     "btc/usdt",
		Side:       side,
		Quantity:   d(qty),
		EntryPrice: d(entry),
		EntryDate:  ptr(testNow.Add(-48 * time.Hour)),
	}, testNow)
	require.NoError(t, err)
	return trade
}

func TestNewTrade(t *testing.T) {
	trade, err := NewTrade(NewTradeParams{
		UserID:     uuid.New(),
		Symbol:     "  eth/usdt ",
		Side:       SideLong,
		Quantity:   d("1.5"),
		EntryPrice: d("3000"),
	}, testNow)
	require.NoError(t, err)

	assert.Equal(t, "ETH/USDT", trade.Symbol)
	assert.Equal(t, StatusOpen, trade.Status)
	assert.Equal(t, testNow, trade.EntryDate)
	assert.Nil(t, trade.PnL)
	assert.Nil(t, trade.ExitPrice)
	assert.Nil(t, trade.ExitDate)
	assert.NotEqual(t, uuid.Nil, trade.ID)
}

func TestNewTradeValidation(t *testing.T) {
	testCases := []struct {
		name   string
		params NewTradeParams
	}{
		{"empty symbol", NewTradeParams{Symbol: "  ", Side: SideLong, Quantity: d("1"), EntryPrice: d("1")}},
		{"bad side", NewTradeParams{Symbol: "BTC", Side: "FLAT", Quantity: d("1"), EntryPrice: d("1")}},
		{"zero quantity", NewTradeParams{Symbol: "BTC", Side: SideLong, Quantity: d("0"), EntryPrice: d("1")}},
		{"negative price", NewTradeParams{Symbol: "BTC", Side: SideShort, Quantity: d("1"), EntryPrice: d("-5")}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewTrade(tc.params, testNow)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestCloseLongTrade(t *testing.T) {
	trade := openTrade(t, SideLong, "2", "50000")

	require.NoError(t, trade.Close(d("55000"), nil, testNow))

	assert.Equal(t, StatusClosed, trade.Status)
	require.NotNil(t, trade.PnL)
	assert.True(t, trade.PnL.Equal(d("10000")), "pnl = %s", trade.PnL)
	assert.True(t, trade.ExitPrice.Equal(d("55000")))
	assert.Equal(t, testNow, *trade.ExitDate)
}

func TestCloseShortTrade(t *testing.T) {
	trade := openTrade(t, SideShort, "10", "3000")

	require.NoError(t, trade.Close(d("3200"), ptr(testNow.Add(-time.Hour)), testNow))

	assert.True(t, trade.PnL.Equal(d("-2000")), "pnl = %s", trade.PnL)
}

func TestCloseAlreadyClosed(t *testing.T) {
	trade := openTrade(t, SideLong, "1", "100")
	require.NoError(t, trade.Close(d("110"), nil, testNow))
	before := *trade

	err := trade.Close(d("500"), nil, testNow.Add(time.Hour))

	assert.ErrorIs(t, err, ErrAlreadyClosed)
	assert.ErrorIs(t, err, ErrBusinessRule)
	assert.Equal(t, before, *trade)
	assert.True(t, trade.PnL.Equal(d("10")))
}

func TestCloseBeforeEntryIsRejected(t *testing.T) {
	trade := openTrade(t, SideLong, "1", "100")

	err := trade.Close(d("110"), ptr(trade.EntryDate.Add(-time.Second)), testNow)

	assert.ErrorIs(t, err, ErrInvalidTimeline)
	assert.Equal(t, StatusOpen, trade.Status)
	assert.Nil(t, trade.PnL)
}

func TestCloseAtEntryInstantIsAllowed(t *testing.T) {
	trade := openTrade(t, SideLong, "1", "100")

	require.NoError(t, trade.Close(d("90"), ptr(trade.EntryDate), testNow))
	assert.True(t, trade.PnL.Equal(d("-10")))
}

func TestPnLSymmetry(t *testing.T) {
	testCases := []struct{ qty, entry, exit string }{
		{"2", "50000", "55000"},
		{"0.5", "40000", "42000"},
		{"1000", "0.10", "0.07"},
		{"3", "10", "10"},
	}

	for _, tc := range testCases {
		long := ComputePnL(SideLong, d(tc.entry), d(tc.exit), d(tc.qty))
		short := ComputePnL(SideShort, d(tc.exit), d(tc.entry), d(tc.qty))
		assert.True(t, long.Equal(short), "%v: long=%s short=%s", tc, long, short)
	}
}

func TestApplyRecomputesPnLOnClosedTrade(t *testing.T) {
	trade := openTrade(t, SideLong, "2", "100")
	require.NoError(t, trade.Close(d("110"), nil, testNow))

	err := trade.Apply(TradeUpdate{Quantity: ptr(d("5")), ExitPrice: ptr(d("120"))})
	require.NoError(t, err)

	assert.True(t, trade.PnL.Equal(d("100")), "pnl = %s", trade.PnL)
	assert.Equal(t, StatusClosed, trade.Status)
}

func TestApplySideFlipRecomputesPnL(t *testing.T) {
	trade := openTrade(t, SideLong, "1", "100")
	require.NoError(t, trade.Close(d("80"), nil, testNow))

	require.NoError(t, trade.Apply(TradeUpdate{Side: ptr(SideShort)}))
	assert.True(t, trade.PnL.Equal(d("20")))
}

func TestApplyOnOpenTrade(t *testing.T) {
	trade := openTrade(t, SideLong, "1", "100")

	require.NoError(t, trade.Apply(TradeUpdate{Symbol: ptr(" sol "), EntryPrice: ptr(d("90"))}))

	assert.Equal(t, "SOL", trade.Symbol)
	assert.True(t, trade.EntryPrice.Equal(d("90")))
	assert.Nil(t, trade.PnL)
	assert.Equal(t, StatusOpen, trade.Status)
}

func TestApplyRejections(t *testing.T) {
	testCases := []struct {
		name   string
		closed bool
		update TradeUpdate
		want   error
	}{
		{"reopen closed trade", true, TradeUpdate{Status: ptr(StatusOpen)}, ErrReopenNotAllowed},
		{"exit price on open trade", false, TradeUpdate{ExitPrice: ptr(d("120"))}, ErrValidation},
		{"close via update without exit fields", false, TradeUpdate{Status: ptr(StatusClosed)}, ErrValidation},
		{"exit before entry", true, TradeUpdate{ExitDate: ptr(testNow.Add(-72 * time.Hour))}, ErrInvalidTimeline},
		{"entry after exit", true, TradeUpdate{EntryDate: ptr(testNow.Add(time.Hour))}, ErrInvalidTimeline},
		{"non positive quantity", true, TradeUpdate{Quantity: ptr(d("0"))}, ErrValidation},
		{"unknown status", false, TradeUpdate{Status: ptr(TradeStatus("PENDING"))}, ErrValidation},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			trade := openTrade(t, SideLong, "1", "100")
			if tc.closed {
				require.NoError(t, trade.Close(d("110"), nil, testNow))
			}
			before := *trade

			err := trade.Apply(tc.update)

			assert.True(t, errors.Is(err, tc.want), "got %v, want %v", err, tc.want)
			assert.Equal(t, before, *trade)
		})
	}
}

func TestApplyClosesWithExitFields(t *testing.T) {
	trade := openTrade(t, SideShort, "4", "25")

	err := trade.Apply(TradeUpdate{
		Status:    ptr(StatusClosed),
		ExitPrice: ptr(d("20")),
		ExitDate:  ptr(testNow),
	})
	require.NoError(t, err)

	assert.Equal(t, StatusClosed, trade.Status)
	assert.True(t, trade.PnL.Equal(d("20")))
}

func TestClosedTradeInvariant(t *testing.T) {
	trade := openTrade(t, SideLong, "1", "100")
	assert.Equal(t, trade.Status == StatusClosed, trade.PnL != nil && trade.ExitPrice != nil && trade.ExitDate != nil)

	require.NoError(t, trade.Close(d("101"), nil, testNow))
	assert.Equal(t, trade.Status == StatusClosed, trade.PnL != nil && trade.ExitPrice != nil && trade.ExitDate != nil)
}
