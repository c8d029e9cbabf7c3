package metadata

import (
	"context"
	"fmt"

	"github.com/telhawk-systems/rawproc/internal/config"
)

// Open returns the store selected by cfg.Backend.
func Open(ctx context.Context, cfg config.MetadataConfig) (Store, error) {
	switch cfg.Backend {
	case config.BackendDynamoDB, "":
		return OpenDynamoStore(ctx, cfg.Table, cfg.DynamoDB.Region, cfg.DynamoDB.Endpoint)
	case config.BackendRedis:
		return OpenRedisStore(ctx, cfg.Redis.URL, cfg.Table)
	case config.BackendPostgres:
		if cfg.Postgres.Migrate {
			if err := Migrate(cfg.Postgres.MigrationsPath, cfg.Postgres.URL); err != nil {
				return nil, err
			}
		}
		return OpenPostgresStore(ctx, cfg.Postgres.URL)
	case config.BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown metadata backend %q", cfg.Backend)
	}
}
