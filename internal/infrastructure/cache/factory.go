package cache

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	apprevenue "github.com/revsplit/backend/internal/application/revenue"
	"github.com/revsplit/backend/internal/domain/shared"
	"github.com/revsplit/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Stores bundles the cache-backed collaborators the server wires in
type Stores struct {
	Idempotency shared.IdempotencyStore
	Balances    apprevenue.BalanceCache
	// Client is nil when the in-memory backend is in use
	Client *redis.Client
}

// Close releases the Redis connection if one was opened
func (s *Stores) Close() error {
	if c, ok := s.Balances.(interface{ Close() error }); ok {
		_ = c.Close()
	}
	_ = s.Idempotency.Close()
	if s.Client != nil {
		return s.Client.Close()
	}
	return nil
}

// Factory builds Stores from configuration
type Factory struct {
	redisConfig           config.RedisConfig
	balanceTTL            time.Duration
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// FactoryOption configures a Factory
type FactoryOption func(*Factory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(f *Factory) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithInMemoryFallback controls whether an unreachable Redis falls back to
// process-local stores. Default is true.
func WithInMemoryFallback(allow bool) FactoryOption {
	return func(f *Factory) {
		f.allowInMemoryFallback = allow
	}
}

// WithFactoryBalanceTTL sets the balance cache TTL
func WithFactoryBalanceTTL(ttl time.Duration) FactoryOption {
	return func(f *Factory) {
		f.balanceTTL = ttl
	}
}

// NewFactory creates a new Factory
func NewFactory(cfg config.RedisConfig, opts ...FactoryOption) *Factory {
	f := &Factory{
		redisConfig:           cfg,
		balanceTTL:            defaultBalanceTTL,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Create returns Redis-backed stores when Redis is enabled and reachable,
// otherwise in-memory ones
func (f *Factory) Create() (*Stores, error) {
	if !f.redisConfig.Enabled {
		f.logger.Info("redis disabled, using in-memory caches")
		return f.inMemory(), nil
	}

	client, err := NewRedisClient(f.redisConfig)
	if err != nil {
		if !f.allowInMemoryFallback {
			return nil, fmt.Errorf("redis required but unavailable: %w", err)
		}
		f.logger.Warn("Redis unavailable, falling back to in-memory caches. "+
			"Replicas will not share idempotency state.",
			zap.Error(err),
		)
		return f.inMemory(), nil
	}

	f.logger.Info("using Redis caches", zap.String("addr", f.redisConfig.Addr))
	return f.fromClient(client), nil
}

func (f *Factory) fromClient(client *redis.Client) *Stores {
	return &Stores{
		Idempotency: NewRedisIdempotencyStore(client, ""),
		Balances: NewRedisBalanceCache(client,
			WithBalanceTTL(f.balanceTTL),
			WithBalanceLogger(f.logger.Named("balance_cache"))),
		Client: client,
	}
}

func (f *Factory) inMemory() *Stores {
	return &Stores{
		Idempotency: NewInMemoryIdempotencyStore(),
		Balances:    NewInMemoryBalanceCache(WithBalanceTTL(f.balanceTTL)),
	}
}
