package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jeovahfialho/tradelog/internal/service"
	"github.com/jeovahfialho/tradelog/pkg/logger"
	"go.uber.org/zap"
)

//go:embed schema.sql
var schema string

const uniqueViolation = "23505"

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store implements service.Store with raw SQL over pgx.
type Store struct {
	db *DB
	q  querier
}

var _ service.Store = (*Store)(nil)

func NewStore(db *DB) *Store {
	return &Store{db: db, q: db.pool}
}

// Migrate applies the embedded schema. It is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.q.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	logger.Info("schema applied")
	return nil
}

// InTx runs fn in a transaction. Inside an outer transaction it uses a
// savepoint.
func (s *Store) InTx(ctx context.Context, fn func(tx service.Store) error) error {
	tx, err := s.q.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			logger.Warn("rollback failed", zap.Error(err))
		}
	}()

	if err := fn(&Store{db: s.db, q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.HealthCheck(ctx)
}

func (s *Store) Close() error {
	s.db.Close()
	return nil
}

func (s *Store) Stats() map[string]interface{} {
	st := s.db.Stats()
	return map[string]interface{}{
		"driver":             "postgres",
		"total_conns":        st.TotalConns(),
		"idle_conns":         st.IdleConns(),
		"acquired_conns":     st.AcquiredConns(),
		"max_conns":          st.MaxConns(),
		"acquire_count":      st.AcquireCount(),
		"empty_acquire":      st.EmptyAcquireCount(),
		"canceled_acquire":   st.CanceledAcquireCount(),
		"acquire_duration_s": st.AcquireDuration().Seconds(),
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
