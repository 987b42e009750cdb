// Package store selects the user store backend from configuration.
package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ErlanBelekov/authflow/config"
	"github.com/ErlanBelekov/authflow/internal/infrastructure/memory"
	"github.com/ErlanBelekov/authflow/internal/infrastructure/postgres"
	"github.com/ErlanBelekov/authflow/internal/repository"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// UserStore is a user repository that can report its own health.
type UserStore interface {
	repository.UserRepository
	Ping(ctx context.Context) error
}

// Open connects to the configured backend, applying migrations for Postgres.
// The returned func releases the connection pool.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (UserStore, func(), error) {
	switch cfg.StoreDriver {
	case DriverMemory:
		logger.Warn("using in-memory user store, accounts are lost on restart")
		return memory.NewUserRepository(), func() {}, nil
	case DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, cfg.AppName)
		if err != nil {
			return nil, nil, err
		}
		if err = postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		logger.Info("db connected")
		return postgres.NewUserRepository(pool), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
