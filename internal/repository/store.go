package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/joseph-ayodele/content-engine/constants"
	"github.com/joseph-ayodele/content-engine/internal/common"
)

// Stores bundles the repositories selected by configuration. Close releases
// every underlying connection.
type Stores struct {
	Jobs    JobRepository
	Content ContentRepository // nil unless a SQL driver is configured
	DB      *DB               // nil unless a SQL driver is configured
	Redis   *redis.Client     // nil unless Redis is configured
	closers []func()
}

func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// OpenStores opens the job store named by cfg.Database.Driver. A Redis client is
// opened whenever the redis driver is selected or withRedis is set.
func OpenStores(ctx context.Context, cfg *common.Config, withRedis bool, logger *slog.Logger) (*Stores, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Stores{}
	driver := constants.StoreDriver(cfg.Database.Driver)

	if driver == constants.StoreRedis || withRedis {
		rdb, err := NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		s.Redis = rdb
		s.closers = append(s.closers, func() { _ = rdb.Close() })
	}

	switch driver {
	case constants.StoreMemory, "":
		s.Jobs = NewMemoryJobRepository(logger)
	case constants.StoreRedis:
		s.Jobs = NewRedisJobRepository(s.Redis, cfg.Redis.JobTTL, logger)
	case constants.StorePostgres, constants.StoreSQLite:
		db, err := Open(ctx, Config{
			Driver:           driver,
			DSN:              cfg.Database.DSN,
			MaxConns:         cfg.Database.MaxConns,
			MinConns:         cfg.Database.MinConns,
			MaxConnLifetime:  cfg.Database.MaxConnLifetime,
			MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
			DialTimeout:      cfg.Database.DialTimeout,
			StatementTimeout: cfg.Database.StatementTimeout,
		}, logger)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, func() { db.Close(logger) })
		if err := db.Migrate(ctx); err != nil {
			s.Close()
			return nil, err
		}
		s.DB = db
		s.Jobs = NewSQLJobRepository(db, logger)
		s.Content = NewContentRepository(db, logger)
	default:
		return nil, fmt.Errorf("%w: unknown job store %q", common.ErrInvalidInput, driver)
	}
	logger.Info("job store ready", "driver", driver)
	return s, nil
}

// NewRedisClient connects to Redis and pings it.
func NewRedisClient(ctx context.Context, cfg common.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return client, nil
}
