package kvstore

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"stealthcompany.com/clinicportal/internal/couchbase"
)

const (
	DriverMemory    = "memory"
	DriverCouchbase = "couchbase"
	DriverPostgres  = "postgres"
	DriverRedis     = "redis"
)

// Config selects and configures a backend.
type Config struct {
	Driver string

	Couchbase couchbase.Config

	DatabaseURL string
	MaxConns    int32
	MinConns    int32

	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisNamespace string
}

// Open returns the backend named by cfg.Driver, wrapped with metrics.
func Open(ctx context.Context, cfg Config) (Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverMemory
	}
	log.Info().Str("driver", driver).Msg("Opening key-value store")

	var (
		s   Store
		err error
	)
	switch driver {
	case DriverMemory:
		s = NewMemoryStore()
	case DriverCouchbase:
		s, err = NewCouchbaseStore(cfg.Couchbase)
	case DriverPostgres:
		s, err = NewPostgresStore(ctx, cfg.DatabaseURL, cfg.MaxConns, cfg.MinConns)
	case DriverRedis:
		s, err = NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisNamespace)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", driver, err)
	}
	return Instrument(s, driver), nil
}
