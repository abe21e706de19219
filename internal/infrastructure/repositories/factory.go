package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"classhub/internal/core/ports"
	"classhub/internal/infrastructure/repositories/memory"
	redisrepo "classhub/internal/infrastructure/repositories/redis"
	"classhub/internal/infrastructure/repositories/sqlite"
	"classhub/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RepositoryFactory selects the persistence backend and hands out
// repositories bound to it. Redis falls back to memory when the
// connection cannot be established; sqlite failures are fatal because
// a misconfigured path should not silently lose durable records.
type RepositoryFactory struct {
	backend     string
	redisClient *redis.Client
	db          *sql.DB
	logger      *zap.SugaredLogger
}

func NewRepositoryFactory(cfg *config.Config, logger *zap.SugaredLogger) (*RepositoryFactory, error) {
	factory := &RepositoryFactory{
		backend: cfg.Store.Backend,
		logger:  logger,
	}

	switch cfg.Store.Backend {
	case config.StoreRedis:
		client, err := redisrepo.NewRedisClient(
			cfg.Redis.Address,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Redis.PoolSize,
			logger,
		)
		if err != nil {
			logger.Warnw("failed to connect to Redis, falling back to memory repositories",
				"error", err,
			)
			factory.backend = config.StoreMemory
		} else {
			factory.redisClient = client
			logger.Info("using Redis repositories")
		}
	case config.StoreSQLite:
		db, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		factory.db = db
		logger.Infow("using sqlite repositories", "path", cfg.SQLite.Path)
	case config.StoreMemory:
	default:
		return nil, fmt.Errorf("unknown store backend: %q", cfg.Store.Backend)
	}

	if factory.backend == config.StoreMemory {
		logger.Info("using memory repositories")
	}

	return factory, nil
}

func (f *RepositoryFactory) CreateSessionRepository() ports.SessionRepository {
	switch f.backend {
	case config.StoreRedis:
		return redisrepo.NewRedisSessionRepository(f.redisClient)
	case config.StoreSQLite:
		return sqlite.NewSQLiteSessionRepository(f.db)
	default:
		return memory.NewMemorySessionRepository()
	}
}

func (f *RepositoryFactory) CreateDeviceRepository() ports.DeviceRepository {
	switch f.backend {
	case config.StoreRedis:
		return redisrepo.NewRedisDeviceRepository(f.redisClient)
	case config.StoreSQLite:
		return sqlite.NewSQLiteDeviceRepository(f.db)
	default:
		return memory.NewMemoryDeviceRepository()
	}
}

func (f *RepositoryFactory) CreateParticipantRepository() ports.ParticipantRepository {
	switch f.backend {
	case config.StoreRedis:
		return redisrepo.NewRedisParticipantRepository(f.redisClient)
	case config.StoreSQLite:
		return sqlite.NewSQLiteParticipantRepository(f.db)
	default:
		return memory.NewMemoryParticipantRepository()
	}
}

func (f *RepositoryFactory) CreateControlActionRepository() ports.ControlActionRepository {
	switch f.backend {
	case config.StoreRedis:
		return redisrepo.NewRedisControlActionRepository(f.redisClient)
	case config.StoreSQLite:
		return sqlite.NewSQLiteControlActionRepository(f.db)
	default:
		return memory.NewMemoryControlActionRepository()
	}
}

func (f *RepositoryFactory) CreateScreenShareRepository() ports.ScreenShareRepository {
	switch f.backend {
	case config.StoreRedis:
		return redisrepo.NewRedisScreenShareRepository(f.redisClient)
	case config.StoreSQLite:
		return sqlite.NewSQLiteScreenShareRepository(f.db)
	default:
		return memory.NewMemoryScreenShareRepository()
	}
}

// HealthCheck pings the active backend. Memory always reports healthy.
func (f *RepositoryFactory) HealthCheck(ctx context.Context) error {
	if f.redisClient != nil {
		return f.redisClient.Ping(ctx).Err()
	}
	if f.db != nil {
		return f.db.PingContext(ctx)
	}
	return nil
}

// Close releases the backend connection if one was opened.
func (f *RepositoryFactory) Close() error {
	if f.redisClient != nil {
		return redisrepo.CloseRedisClient(f.redisClient)
	}
	if f.db != nil {
		return f.db.Close()
	}
	return nil
}
