package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jeovahfialho/tradelog/internal/domain"
)

// TradeStore persists trades. A limit <= 0 means no limit. Reads that return
// trades join the owner's username and email.
type TradeStore interface {
	FindTrades(ctx context.Context, filter domain.TradeFilter, sort domain.TradeSort, offset, limit int) ([]domain.Trade, error)
	CountTrades(ctx context.Context, filter domain.TradeFilter) (int64, error)
	GroupSumPnL(ctx context.Context, filter domain.TradeFilter, groupBy domain.GroupBy) ([]domain.PnLGroup, error)
	GetTrade(ctx context.Context, id uuid.UUID) (*domain.Trade, error)
	// LockTrade reads the trade and holds it until the surrounding
	// transaction ends.
	LockTrade(ctx context.Context, id uuid.UUID) (*domain.Trade, error)
	SaveTrade(ctx context.Context, t *domain.Trade) error
	DeleteTrade(ctx context.Context, id uuid.UUID) error
	BulkInsertTrades(ctx context.Context, trades []domain.Trade) (int64, error)
}

type UserStore interface {
	GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	UserExists(ctx context.Context, email, username string) (bool, error)
	CreateUser(ctx context.Context, u *domain.User) error
	// CountUsers counts users whose role differs from excludeRole. An empty
	// role counts everyone.
	CountUsers(ctx context.Context, excludeRole domain.Role) (int64, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error
}

// Store is the persistence collaborator of every service. InTx runs fn
// against a transactional Store, committing when fn returns nil and rolling
// back otherwise.
type Store interface {
	TradeStore
	UserStore
	InTx(ctx context.Context, fn func(tx Store) error) error
	Ping(ctx context.Context) error
	Close() error
}

// Cache is the analytics result cache. Get returns an error on a miss.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl ...time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeletePattern(ctx context.Context, pattern string) (int64, error)
}

// Clock returns the current time; tests pin it.
type Clock func() time.Time

// StatsReporter is implemented by stores that expose connection pool
// statistics.
type StatsReporter interface {
	Stats() map[string]interface{}
}

// Migrator is implemented by stores that can create or upgrade their schema.
type Migrator interface {
	Migrate(ctx context.Context) error
}
