package runstore

import (
	"context"

	"github.com/akatz-ai/stepgraph/internal/config"
)

// Open returns the store selected by cfg.Store.Backend.
func Open(ctx context.Context, cfg *config.Config, baseDir string) (Store, error) {
	switch cfg.Store.Backend {
	case config.StoreBackendRedis:
		return DialRedis(ctx, cfg.Store.RedisAddr, cfg.Store.RedisPassword, cfg.Store.RedisDB, cfg.Store.RedisPrefix)
	default:
		return NewYAMLStore(cfg.RunsDir(baseDir))
	}
}
