package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/taxcrm/backend/internal/infrastructure/auth"
	"github.com/taxcrm/backend/internal/infrastructure/config"
	"github.com/taxcrm/backend/internal/infrastructure/lock"
	"go.uber.org/zap"
)

// Backends holds the redis-backed components, or their in-memory stand-ins
type Backends struct {
	Client    *redis.Client
	Locker    lock.Locker
	Blacklist auth.TokenBlacklist
}

// Close releases the redis connection if one was opened
func (b *Backends) Close() error {
	if b.Client == nil {
		return nil
	}
	return b.Client.Close()
}

// BackendFactory builds Backends from configuration
type BackendFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// BackendFactoryOption is a functional option for configuring the factory
type BackendFactoryOption func(*BackendFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) BackendFactoryOption {
	return func(f *BackendFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to in-memory backends when redis is unavailable
func WithInMemoryFallback(allow bool) BackendFactoryOption {
	return func(f *BackendFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewBackendFactory creates a factory; fallback is allowed by default
func NewBackendFactory(cfg config.RedisConfig, opts ...BackendFactoryOption) *BackendFactory {
	f := &BackendFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// InMemory returns single-process backends
func (f *BackendFactory) InMemory() *Backends {
	return &Backends{
		Locker:    lock.NewMemoryLocker(),
		Blacklist: auth.NewInMemoryTokenBlacklist(),
	}
}

// Create connects to redis, falling back to in-memory backends when allowed
func (f *BackendFactory) Create(ctx context.Context) (*Backends, error) {
	client, err := NewRedisClient(ctx, f.redisConfig)
	if err == nil {
		f.logger.Info("Using Redis for locks and token blacklist", zap.String("addr", f.redisConfig.Addr()))
		return &Backends{
			Client:    client,
			Locker:    lock.NewRedisLocker(client),
			Blacklist: auth.NewRedisTokenBlacklist(client),
		}, nil
	}
	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis required but unavailable: %w", err)
	}
	f.logger.Warn("Redis unavailable, falling back to in-memory locks and token blacklist. "+
		"Backup locks and logouts are not shared between instances.",
		zap.Error(err),
	)
	return f.InMemory(), nil
}
