// Package backend selects the store implementation from the environment.
package backend

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hamed0406/watchdog/internal/config"
	"github.com/hamed0406/watchdog/internal/repo"
	"github.com/hamed0406/watchdog/internal/repo/memory"
	"github.com/hamed0406/watchdog/internal/repo/postgres"
	"github.com/hamed0406/watchdog/internal/repo/sqlite"
)

// Open returns the postgres store when DATABASE_URL is set, the sqlite store
// when SQLITE_PATH is set, and an in-memory store otherwise.
func Open(ctx context.Context, cfg config.Config, log *zap.Logger) (repo.Store, error) {
	switch {
	case cfg.DatabaseURL != "":
		s, err := postgres.New(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		log.Info("store_selected", zap.String("driver", "postgres"))
		return s, nil
	case cfg.SQLitePath != "":
		s, err := sqlite.New(ctx, cfg.SQLitePath, log)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		log.Info("store_selected", zap.String("driver", "sqlite"), zap.String("path", cfg.SQLitePath))
		return s, nil
	default:
		log.Warn("store_selected", zap.String("driver", "memory"))
		return memory.New(), nil
	}
}
