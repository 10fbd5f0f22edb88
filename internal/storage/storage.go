// Package storage selects the Store backend named by the configuration.
package storage

import (
	"context"
	"fmt"

	"github.com/jeovahfialho/tradelog/internal/config"
	"github.com/jeovahfialho/tradelog/internal/service"
	"github.com/jeovahfialho/tradelog/internal/storage/postgres"
	"github.com/jeovahfialho/tradelog/internal/storage/sqlite"
	"github.com/jeovahfialho/tradelog/pkg/logger"
	"go.uber.org/zap"
)

// Open connects to the configured database and applies the schema.
func Open(ctx context.Context, cfg *config.Config) (service.Store, error) {
	switch cfg.DatabaseDriver {
	case config.DriverPostgres:
		db, err := postgres.NewDB(ctx, cfg)
		if err != nil {
			return nil, err
		}
		store := postgres.NewStore(db)
		if err := store.Migrate(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
		logger.Info("connected to postgres")
		return store, nil

	case config.DriverSQLite:
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		logger.Info("opened sqlite database", zap.String("path", cfg.SQLitePath))
		return store, nil

	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}
}
