// Package sqlite is an embedded Store backed by gorm and SQLite. It serves
// local development, the CLI and tests.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jeovahfialho/tradelog/internal/domain"
	"github.com/jeovahfialho/tradelog/internal/service"
	"github.com/jeovahfialho/tradelog/pkg/metrics"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Store implements service.Store. The pool holds a single connection, so a
// transaction excludes every other reader and writer until it ends.
type Store struct {
	db *gorm.DB
}

var _ service.Store = (*Store)(nil)

// Open connects to the database file at path and migrates the schema.
func Open(path string) (*Store, error) {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}

	db, err := gorm.Open(sqlite.Open(path+sep+"_foreign_keys=on&_busy_timeout=5000"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.Migrate(context.Background()); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&UserModel{}, &TradeModel{}); err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}
	return nil
}

func (s *Store) InTx(ctx context.Context, fn func(tx service.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Stats() map[string]interface{} {
	sqlDB, err := s.db.DB()
	if err != nil {
		return map[string]interface{}{"driver": "sqlite", "error": err.Error()}
	}
	st := sqlDB.Stats()
	return map[string]interface{}{
		"driver":          "sqlite",
		"open_conns":      st.OpenConnections,
		"in_use":          st.InUse,
		"idle":            st.Idle,
		"wait_count":      st.WaitCount,
		"wait_duration_s": st.WaitDuration.Seconds(),
	}
}

func (s *Store) trades(ctx context.Context, f domain.TradeFilter) *gorm.DB {
	q := s.db.WithContext(ctx).Table("trades")

	if f.UserID != nil {
		q = q.Where("trades.user_id = ?", f.UserID.String())
	}
	if f.Status != "" {
		q = q.Where("trades.status = ?", string(f.Status))
	}
	if f.Symbol != "" {
		q = q.Where("trades.symbol = ?", f.Symbol)
	}
	if f.EntryFrom != nil {
		q = q.Where("trades.entry_date >= ?", f.EntryFrom.UTC())
	}
	if f.EntryTo != nil {
		q = q.Where("trades.entry_date <= ?", f.EntryTo.UTC())
	}
	if f.ExitedOnly {
		q = q.Where("trades.exit_date IS NOT NULL")
	}
	if f.ProfitableOnly {
		q = q.Where("CAST(trades.pnl AS REAL) > 0")
	}
	return q
}

func withOwner(q *gorm.DB) *gorm.DB {
	return q.Select("trades.*, users.username, users.email").
		Joins("JOIN users ON users.id = trades.user_id")
}

func orderBy(q *gorm.DB, order domain.TradeSort) *gorm.DB {
	switch order {
	case domain.SortExitDateAsc:
		return q.Order("trades.exit_date ASC").Order("trades.entry_date ASC").Order("trades.id ASC")
	case domain.SortPnLDesc:
		return q.Order("CAST(trades.pnl AS REAL) DESC").Order("trades.id ASC")
	default:
		return q.Order("trades.entry_date DESC").Order("trades.id ASC")
	}
}

func (s *Store) FindTrades(ctx context.Context, filter domain.TradeFilter, order domain.TradeSort, offset, limit int) ([]domain.Trade, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.DatabaseQueryDuration.WithLabelValues("find_trades"))

	q := orderBy(withOwner(s.trades(ctx, filter)), order)
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}

	var rows []tradeRow
	if err := q.Scan(&rows).Error; err != nil {
		metrics.DatabaseQueries.WithLabelValues("find_trades", "error").Inc()
		return nil, fmt.Errorf("find trades: %w", err)
	}

	trades := make([]domain.Trade, 0, len(rows))
	for _, r := range rows {
		t, err := r.toDomain()
		if err != nil {
			return nil, fmt.Errorf("decode trade %s: %w", r.ID, err)
		}
		trades = append(trades, *t)
	}

	metrics.DatabaseQueries.WithLabelValues("find_trades", "success").Inc()
	return trades, nil
}

func (s *Store) CountTrades(ctx context.Context, filter domain.TradeFilter) (int64, error) {
	var count int64
	if err := s.trades(ctx, filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count trades: %w", err)
	}
	return count, nil
}

// GroupSumPnL sums in Go: SQLite has no exact decimal arithmetic.
func (s *Store) GroupSumPnL(ctx context.Context, filter domain.TradeFilter, groupBy domain.GroupBy) ([]domain.PnLGroup, error) {
	var column string
	switch groupBy {
	case domain.GroupBySymbol:
		column = "trades.symbol"
	case domain.GroupByUser:
		column = "trades.user_id"
	default:
		return nil, fmt.Errorf("unsupported grouping %q", groupBy)
	}

	var rows []struct {
		GroupKey string              `gorm:"column:group_key"`
		PnL      decimal.NullDecimal `gorm:"column:pnl"`
	}
	if err := s.trades(ctx, filter).Select(column + " AS group_key, trades.pnl AS pnl").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("group pnl: %w", err)
	}

	totals := make(map[string]decimal.Decimal)
	for _, r := range rows {
		total := totals[r.GroupKey]
		if r.PnL.Valid {
			total = total.Add(r.PnL.Decimal)
		}
		totals[r.GroupKey] = total
	}

	groups := make([]domain.PnLGroup, 0, len(totals))
	for key, total := range totals {
		groups = append(groups, domain.PnLGroup{Key: key, Total: total})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Key < groups[j].Key })

	return groups, nil
}

func (s *Store) GetTrade(ctx context.Context, id uuid.UUID) (*domain.Trade, error) {
	var rows []tradeRow
	err := withOwner(s.db.WithContext(ctx).Table("trades")).
		Where("trades.id = ?", id.String()).
		Limit(1).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("get trade: %w", err)
	}
	if len(rows) == 0 {
		return nil, domain.NotFound("Trade", id.String())
	}
	return rows[0].toDomain()
}

// LockTrade is GetTrade: the single connection already serializes
// transactions.
func (s *Store) LockTrade(ctx context.Context, id uuid.UUID) (*domain.Trade, error) {
	return s.GetTrade(ctx, id)
}

func (s *Store) SaveTrade(ctx context.Context, t *domain.Trade) error {
	m := fromTrade(t)
	if err := s.db.WithContext(ctx).Save(&m).Error; err != nil {
		return fmt.Errorf("save trade %s: %w", t.ID, err)
	}
	return nil
}

func (s *Store) DeleteTrade(ctx context.Context, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Delete(&TradeModel{}, "id = ?", id.String())
	if res.Error != nil {
		return fmt.Errorf("delete trade %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.NotFound("Trade", id.String())
	}
	return nil
}

func (s *Store) BulkInsertTrades(ctx context.Context, trades []domain.Trade) (int64, error) {
	if len(trades) == 0 {
		return 0, nil
	}

	models := make([]TradeModel, 0, len(trades))
	for i := range trades {
		models = append(models, fromTrade(&trades[i]))
	}

	var count int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.CreateInBatches(&models, 500)
		count = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, fmt.Errorf("bulk insert trades: %w", err)
	}
	return count, nil
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return s.getUser(ctx, "id = ?", id.String(), id.String())
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.getUser(ctx, "email = ?", email, email)
}

func (s *Store) getUser(ctx context.Context, cond string, arg interface{}, label string) (*domain.User, error) {
	var m UserModel
	err := s.db.WithContext(ctx).Where(cond, arg).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NotFound("User", label)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return m.toDomain()
}

func (s *Store) UserExists(ctx context.Context, email, username string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&UserModel{}).
		Where("email = ? OR username = ?", email, username).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check user exists: %w", err)
	}
	return count > 0, nil
}

func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	m := fromUser(u)
	err := s.db.WithContext(ctx).Create(&m).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("email or username already taken: %w", domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *Store) CountUsers(ctx context.Context, excludeRole domain.Role) (int64, error) {
	q := s.db.WithContext(ctx).Model(&UserModel{})
	if excludeRole != "" {
		q = q.Where("role <> ?", string(excludeRole))
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

// DeleteUser removes the user's trades and then the user in one transaction.
func (s *Store) DeleteUser(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id.String()).Delete(&TradeModel{}).Error; err != nil {
			return fmt.Errorf("delete trades of user %s: %w", id, err)
		}
		res := tx.Delete(&UserModel{}, "id = ?", id.String())
		if res.Error != nil {
			return fmt.Errorf("delete user %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return domain.NotFound("User", id.String())
		}
		return nil
	})
}
