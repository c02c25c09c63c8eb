package bootstrap

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"phiguard/config"
	"phiguard/storage"
)

// InitStore initializes the configured key-value store backend. A Redis
// backend that fails its ping falls back to the in-memory store with a
// warning so detection can still run; SQLite failures are fatal because an
// explicitly configured file path that cannot open is a deployment error.
func InitStore(ctx context.Context, cfg *config.Config, sugar *zap.SugaredLogger) (storage.KVStore, error) {
	switch cfg.Store.Backend {
	case config.StoreRedis:
		store := storage.NewRedisStore(
			cfg.Store.Redis.Addr,
			cfg.Store.Redis.Password,
			cfg.Store.Redis.DB,
			cfg.Store.Redis.PoolSize,
			sugar,
		)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := store.Ping(pingCtx); err != nil {
			sugar.Warnw("Redis unavailable, falling back to in-memory store",
				"addr", cfg.Store.Redis.Addr, "error", err)
			return storage.NewMemoryStore(), nil
		}
		sugar.Infow("Connected to Redis", "addr", cfg.Store.Redis.Addr)
		return store, nil

	case config.StoreSQLite:
		path := cfg.GetSQLitePath()
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory for %s: %w", path, err)
		}
		store, err := storage.NewSQLiteStore(path, sugar)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
		}
		sugar.Infow("SQLite store initialized", "path", path)
		return store, nil

	case config.StoreMemory:
		sugar.Warn("Using in-memory store, all state is lost on restart")
		return storage.NewMemoryStore(), nil

	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Store.Backend)
	}
}
