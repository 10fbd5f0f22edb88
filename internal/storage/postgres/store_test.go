package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jeovahfialho/tradelog/internal/config"
	"github.com/jeovahfialho/tradelog/internal/domain"
	"github.com/jeovahfialho/tradelog/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWhereClause(t *testing.T) {
	owner := uuid.New()
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	where, args := whereClause(domain.TradeFilter{
		UserID:         &owner,
		Status:         domain.StatusClosed,
		Symbol:         "BTC/USDT",
		EntryFrom:      &from,
		ExitedOnly:     true,
		ProfitableOnly: true,
	})

	assert.Equal(t,
		" WHERE t.user_id = $1 AND t.status = $2 AND t.symbol = $3 AND t.entry_date >= $4"+
			" AND t.exit_date IS NOT NULL AND t.pnl > 0",
		where)
	assert.Equal(t, []interface{}{owner, "CLOSED", "BTC/USDT", from}, args)
}

func TestWhereClauseEmpty(t *testing.T) {
	where, args := whereClause(domain.TradeFilter{})

	assert.Empty(t, where)
	assert.Empty(t, args)
}

func TestOrderClause(t *testing.T) {
	assert.Contains(t, orderClause(domain.SortEntryDateDesc), "t.entry_date DESC")
	assert.Contains(t, orderClause(domain.SortExitDateAsc), "t.exit_date ASC, t.entry_date ASC, t.id ASC")
	assert.Contains(t, orderClause(domain.SortPnLDesc), "t.pnl DESC, t.id ASC")
}

func TestTradeSource(t *testing.T) {
	pnl := decimal.NewFromInt(5)
	src := &tradeSource{trades: []domain.Trade{
		{ID: uuid.New(), Side: domain.SideLong, Status: domain.StatusOpen},
		{ID: uuid.New(), Side: domain.SideShort, Status: domain.StatusClosed, PnL: &pnl},
	}}

	var rows [][]interface{}
	for src.Next() {
		values, err := src.Values()
		require.NoError(t, err)
		rows = append(rows, values)
	}

	require.Len(t, rows, 2)
	assert.Len(t, rows[0], len(copyColumns))
	assert.Equal(t, "SHORT", rows[1][3])
	assert.NoError(t, src.Err())
}

// TestStoreIntegration runs against a real database when TEST_DATABASE_URL
// is set.
func TestStoreIntegration(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := NewDB(ctx, &config.Config{
		DatabaseURL:         url,
		DatabaseMaxConns:    4,
		DatabaseMinConns:    1,
		DatabaseMaxConnLife: time.Hour,
	})
	require.NoError(t, err)
	store := NewStore(db)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(ctx))

	user := &domain.User{
		ID:             uuid.New(),
		Email:          uuid.NewString() + "@example.com",
		Username:       uuid.NewString(),
		HashedPassword: "x",
		Role:           domain.RoleTrader,
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, store.CreateUser(ctx, user))
	t.Cleanup(func() { _ = store.DeleteUser(ctx, user.ID) })

	trade, err := domain.NewTrade(domain.NewTradeParams{
		UserID:     user.ID,
		Symbol:     "BTC/USDT",
		Side:       domain.SideLong,
		Quantity:   decimal.NewFromInt(2),
		EntryPrice: decimal.NewFromInt(50000),
	}, time.Now())
	require.NoError(t, err)

	err = store.InTx(ctx, func(tx service.Store) error {
		if err := tx.SaveTrade(ctx, trade); err != nil {
			return err
		}
		locked, err := tx.LockTrade(ctx, trade.ID)
		if err != nil {
			return err
		}
		if err := locked.Close(decimal.NewFromInt(55000), nil, time.Now()); err != nil {
			return err
		}
		return tx.SaveTrade(ctx, locked)
	})
	require.NoError(t, err)

	got, err := store.GetTrade(ctx, trade.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusClosed, got.Status)
	assert.True(t, got.PnL.Equal(decimal.NewFromInt(10000)))
	assert.Equal(t, user.Username, got.Owner.Username)

	groups, err := store.GroupSumPnL(ctx, domain.TradeFilter{UserID: &user.ID}, domain.GroupBySymbol)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.True(t, groups[0].Total.Equal(decimal.NewFromInt(10000)))

	require.NoError(t, store.DeleteUser(ctx, user.ID))
	_, err = store.GetTrade(ctx, trade.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
