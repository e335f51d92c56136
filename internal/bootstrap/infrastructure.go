package bootstrap

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/target/brandpulse/config"
)

// Infrastructure holds the shared connections every process mode runs on.
// Redis is nil when caching is disabled.
type Infrastructure struct {
	DB    *sql.DB
	Redis redis.UniversalClient
}

// OpenInfrastructure connects Postgres and, when enabled, Redis. A Redis
// failure closes the already-open database before returning.
func OpenInfrastructure(cfg *config.AppConfig, logger *slog.Logger) (Infrastructure, error) {
	dbCfg := DatabaseConfig{DBConfig: cfg.Postgres, RedisConfig: cfg.Redis, Logger: logger}

	db, err := ConnectDB(dbCfg)
	if err != nil {
		return Infrastructure{}, fmt.Errorf("connect db: %w", err)
	}

	client, err := ConnectRedis(dbCfg)
	if err != nil {
		return Infrastructure{}, errors.Join(fmt.Errorf("connect redis: %w", err), Infrastructure{DB: db}.Close())
	}
	return Infrastructure{DB: db, Redis: client}, nil
}

// Close releases both connections and joins their errors.
func (i Infrastructure) Close() error {
	var errs []error
	if i.DB != nil {
		if err := i.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close db: %w", err))
		}
	}
	if i.Redis != nil {
		if err := i.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	return errors.Join(errs...)
}
