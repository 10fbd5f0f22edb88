package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jeovahfialho/tradelog/internal/domain"
	"github.com/jeovahfialho/tradelog/pkg/metrics"
	"github.com/shopspring/decimal"
)

const tradeColumns = `
            t.id,
            t.user_id,
            t.symbol,
            t.side,
            t.quantity,
            t.entry_price,
            t.entry_date,
            t.exit_price,
            t.exit_date,
            t.status,
            t.pnl,
            u.username,
            u.email`

const tradeFrom = `
        FROM trades t
        JOIN users u ON u.id = t.user_id`

var copyColumns = []string{
	"id",
	"user_id",
	"symbol",
	"side",
	"quantity",
	"entry_price",
	"entry_date",
	"exit_price",
	"exit_date",
	"status",
	"pnl",
}

// whereClause renders the filter as numbered placeholders starting at $1.
func whereClause(f domain.TradeFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}

	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.UserID != nil {
		add("t.user_id = $%d", *f.UserID)
	}
	if f.Status != "" {
		add("t.status = $%d", string(f.Status))
	}
	if f.Symbol != "" {
		add("t.symbol = $%d", f.Symbol)
	}
	if f.EntryFrom != nil {
		add("t.entry_date >= $%d", *f.EntryFrom)
	}
	if f.EntryTo != nil {
		add("t.entry_date <= $%d", *f.EntryTo)
	}
	if f.ExitedOnly {
		conds = append(conds, "t.exit_date IS NOT NULL")
	}
	if f.ProfitableOnly {
		conds = append(conds, "t.pnl > 0")
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func orderClause(sort domain.TradeSort) string {
	switch sort {
	case domain.SortExitDateAsc:
		return " ORDER BY t.exit_date ASC, t.entry_date ASC, t.id ASC"
	case domain.SortPnLDesc:
		return " ORDER BY t.pnl DESC, t.id ASC"
	default:
		return " ORDER BY t.entry_date DESC, t.id ASC"
	}
}

func (s *Store) FindTrades(ctx context.Context, filter domain.TradeFilter, sort domain.TradeSort, offset, limit int) ([]domain.Trade, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.DatabaseQueryDuration.WithLabelValues("find_trades"))

	where, args := whereClause(filter)
	query := "SELECT" + tradeColumns + tradeFrom + where + orderClause(sort)

	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if offset > 0 {
		args = append(args, offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		metrics.DatabaseQueries.WithLabelValues("find_trades", "error").Inc()
		return nil, fmt.Errorf("find trades: %w", err)
	}
	defer rows.Close()

	trades := make([]domain.Trade, 0)
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		trades = append(trades, *trade)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trades: %w", err)
	}

	metrics.DatabaseQueries.WithLabelValues("find_trades", "success").Inc()
	return trades, nil
}

func (s *Store) CountTrades(ctx context.Context, filter domain.TradeFilter) (int64, error) {
	where, args := whereClause(filter)

	var count int64
	if err := s.q.QueryRow(ctx, "SELECT COUNT(*) FROM trades t"+where, args...).Scan(&count); err != nil {
		metrics.DatabaseQueries.WithLabelValues("count_trades", "error").Inc()
		return 0, fmt.Errorf("count trades: %w", err)
	}

	metrics.DatabaseQueries.WithLabelValues("count_trades", "success").Inc()
	return count, nil
}

func (s *Store) GroupSumPnL(ctx context.Context, filter domain.TradeFilter, groupBy domain.GroupBy) ([]domain.PnLGroup, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.DatabaseQueryDuration.WithLabelValues("group_pnl"))

	var key string
	switch groupBy {
	case domain.GroupBySymbol:
		key = "t.symbol"
	case domain.GroupByUser:
		key = "t.user_id::text"
	default:
		return nil, fmt.Errorf("unsupported grouping %q", groupBy)
	}

	where, args := whereClause(filter)
	query := fmt.Sprintf(`
        SELECT %s AS key, COALESCE(SUM(t.pnl), 0) AS total
        FROM trades t%s
        GROUP BY 1
        ORDER BY 1`, key, where)

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		metrics.DatabaseQueries.WithLabelValues("group_pnl", "error").Inc()
		return nil, fmt.Errorf("group pnl: %w", err)
	}
	defer rows.Close()

	var groups []domain.PnLGroup
	for rows.Next() {
		var g domain.PnLGroup
		if err := rows.Scan(&g.Key, &g.Total); err != nil {
			return nil, fmt.Errorf("scan pnl group: %w", err)
		}
		groups = append(groups, g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pnl groups: %w", err)
	}

	metrics.DatabaseQueries.WithLabelValues("group_pnl", "success").Inc()
	return groups, nil
}

func (s *Store) GetTrade(ctx context.Context, id uuid.UUID) (*domain.Trade, error) {
	return s.getTrade(ctx, id, "")
}

// LockTrade takes a row lock that holds until the transaction ends, so
// concurrent mutations of the same trade serialize.
func (s *Store) LockTrade(ctx context.Context, id uuid.UUID) (*domain.Trade, error) {
	return s.getTrade(ctx, id, " FOR UPDATE OF t")
}

func (s *Store) getTrade(ctx context.Context, id uuid.UUID, suffix string) (*domain.Trade, error) {
	query := "SELECT" + tradeColumns + tradeFrom + " WHERE t.id = $1" + suffix

	trade, err := scanTrade(s.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFound("Trade", id.String())
	}
	if err != nil {
		return nil, err
	}
	return trade, nil
}

func (s *Store) SaveTrade(ctx context.Context, t *domain.Trade) error {
	query := `
        INSERT INTO trades (id, user_id, symbol, side, quantity, entry_price, entry_date,
                            exit_price, exit_date, status, pnl)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        ON CONFLICT (id) DO UPDATE SET
            symbol      = EXCLUDED.symbol,
            side        = EXCLUDED.side,
            quantity    = EXCLUDED.quantity,
            entry_price = EXCLUDED.entry_price,
            entry_date  = EXCLUDED.entry_date,
            exit_price  = EXCLUDED.exit_price,
            exit_date   = EXCLUDED.exit_date,
            status      = EXCLUDED.status,
            pnl         = EXCLUDED.pnl
    `

	_, err := s.q.Exec(ctx, query, tradeValues(t)...)
	if err != nil {
		metrics.DatabaseQueries.WithLabelValues("save_trade", "error").Inc()
		return fmt.Errorf("save trade %s: %w", t.ID, err)
	}

	metrics.DatabaseQueries.WithLabelValues("save_trade", "success").Inc()
	return nil
}

func (s *Store) DeleteTrade(ctx context.Context, id uuid.UUID) error {
	tag, err := s.q.Exec(ctx, "DELETE FROM trades WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete trade %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("Trade", id.String())
	}
	return nil
}

// BulkInsertTrades loads the trades with COPY inside one transaction.
func (s *Store) BulkInsertTrades(ctx context.Context, trades []domain.Trade) (int64, error) {
	if len(trades) == 0 {
		return 0, nil
	}

	tx, err := s.q.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	copyCount, err := tx.CopyFrom(
		ctx,
		pgx.Identifier{"trades"},
		copyColumns,
		&tradeSource{trades: trades},
	)
	if err != nil {
		return 0, fmt.Errorf("copy trades: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	return copyCount, nil
}

type tradeSource struct {
	trades []domain.Trade
	index  int
}

func (ts *tradeSource) Next() bool {
	ts.index++
	return ts.index <= len(ts.trades)
}

func (ts *tradeSource) Values() ([]interface{}, error) {
	if ts.index > len(ts.trades) {
		return nil, nil
	}
	return tradeValues(&ts.trades[ts.index-1]), nil
}

func (ts *tradeSource) Err() error {
	return nil
}

func tradeValues(t *domain.Trade) []interface{} {
	return []interface{}{
		t.ID,
		t.UserID,
		t.Symbol,
		string(t.Side),
		t.Quantity,
		t.EntryPrice,
		t.EntryDate,
		t.ExitPrice,
		t.ExitDate,
		string(t.Status),
		t.PnL,
	}
}

func scanTrade(row pgx.Row) (*domain.Trade, error) {
	var (
		t         domain.Trade
		side      string
		status    string
		exitPrice *decimal.Decimal
		exitDate  *time.Time
		pnl       *decimal.Decimal
		owner     domain.TradeOwner
	)

	err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.Symbol,
		&side,
		&t.Quantity,
		&t.EntryPrice,
		&t.EntryDate,
		&exitPrice,
		&exitDate,
		&status,
		&pnl,
		&owner.Username,
		&owner.Email,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan trade: %w", err)
	}

	t.Side = domain.TradeSide(side)
	t.Status = domain.TradeStatus(status)
	t.ExitPrice = exitPrice
	t.PnL = pnl
	t.EntryDate = t.EntryDate.UTC()
	if exitDate != nil {
		utc := exitDate.UTC()
		t.ExitDate = &utc
	}
	t.Owner = &owner

	return &t, nil
}
