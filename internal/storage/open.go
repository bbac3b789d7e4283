package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jwebster45206/wayfarer/internal/config"
	"github.com/jwebster45206/wayfarer/internal/storage/postgres"
	"github.com/jwebster45206/wayfarer/internal/storage/sqlite"
	entitystore "github.com/jwebster45206/wayfarer/pkg/storage"
)

// Open connects the entity store selected by cfg.StoreBackend. Redis is waited
// for, the SQL backends create their schema before returning.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (entitystore.EntityStore, error) {
	log := logger.With("backend", cfg.StoreBackend)

	switch cfg.StoreBackend {
	case "redis":
		store, err := NewRedisStore(cfg.RedisURL, log)
		if err != nil {
			return nil, err
		}
		if err := store.WaitForConnection(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return store, nil
	case "sqlite":
		store, err := sqlite.New(ctx, cfg.SQLiteDSN, log)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return store, nil
	case "postgres":
		store, err := postgres.New(ctx, cfg.PostgresDSN, log)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres store: %w", err)
		}
		return store, nil
	case "memory":
		log.Warn("Using in-memory store; world is lost on exit")
		return entitystore.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
