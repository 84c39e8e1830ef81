package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	apprevenue "github.com/revsplit/backend/internal/application/revenue"
	"github.com/revsplit/backend/internal/domain/revenue"
	"github.com/revsplit/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultBalancePrefix = "revsplit:balance:"
	defaultBalanceTTL    = 5 * time.Minute
	scanBatchSize        = 100
)

// cachedBalance is the stored form of a PartyBalance
type cachedBalance struct {
	Party             string          `json:"party"`
	Currency          string          `json:"currency"`
	TotalPending      decimal.Decimal `json:"total_pending"`
	TotalCleared      decimal.Decimal `json:"total_cleared"`
	NetBalance        decimal.Decimal `json:"net_balance"`
	PendingEntryCount int             `json:"pending_entry_count"`
	ClearedEntryCount int             `json:"cleared_entry_count"`
	LastUpdated       time.Time       `json:"last_updated"`
}

func toCached(b revenue.PartyBalance) cachedBalance {
	return cachedBalance{
		Party:             b.Party.String(),
		Currency:          b.Currency.String(),
		TotalPending:      b.TotalPending,
		TotalCleared:      b.TotalCleared,
		NetBalance:        b.NetBalance,
		PendingEntryCount: b.PendingEntryCount,
		ClearedEntryCount: b.ClearedEntryCount,
		LastUpdated:       b.LastUpdated,
	}
}

func (c cachedBalance) toDomain() revenue.PartyBalance {
	return revenue.PartyBalance{
		Party:             revenue.Party(c.Party),
		Currency:          valueobject.Currency(c.Currency),
		TotalPending:      c.TotalPending,
		TotalCleared:      c.TotalCleared,
		NetBalance:        c.NetBalance,
		PendingEntryCount: c.PendingEntryCount,
		ClearedEntryCount: c.ClearedEntryCount,
		LastUpdated:       c.LastUpdated,
	}
}

func balanceKey(prefix string, party revenue.Party, currency valueobject.Currency) string {
	return prefix + party.String() + ":" + currency.String()
}

func partyPrefix(prefix string, party revenue.Party) string {
	return prefix + party.String() + ":"
}

// RedisBalanceCache stores computed balances as JSON under
// <prefix><party>:<currency>
type RedisBalanceCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// BalanceCacheOption configures a balance cache
type BalanceCacheOption func(*balanceCacheOptions)

type balanceCacheOptions struct {
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// WithBalanceTTL sets how long a balance stays cached
func WithBalanceTTL(ttl time.Duration) BalanceCacheOption {
	return func(o *balanceCacheOptions) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithBalancePrefix sets the key prefix
func WithBalancePrefix(prefix string) BalanceCacheOption {
	return func(o *balanceCacheOptions) {
		if prefix != "" {
			o.prefix = prefix
		}
	}
}

// WithBalanceLogger sets the logger
func WithBalanceLogger(logger *zap.Logger) BalanceCacheOption {
	return func(o *balanceCacheOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func applyBalanceOptions(opts []BalanceCacheOption) balanceCacheOptions {
	o := balanceCacheOptions{prefix: defaultBalancePrefix, ttl: defaultBalanceTTL, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewRedisBalanceCache wraps client; the caller keeps ownership of it
func NewRedisBalanceCache(client *redis.Client, opts ...BalanceCacheOption) *RedisBalanceCache {
	o := applyBalanceOptions(opts)
	return &RedisBalanceCache{client: client, prefix: o.prefix, ttl: o.ttl, logger: o.logger}
}

func (c *RedisBalanceCache) Get(ctx context.Context, party revenue.Party, currency valueobject.Currency) (*revenue.PartyBalance, bool, error) {
	key := balanceKey(c.prefix, party, currency)
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached balance: %w", err)
	}

	var cb cachedBalance
	if err := json.Unmarshal(data, &cb); err != nil {
		c.logger.Warn("dropping corrupt cached balance", zap.String("key", key), zap.Error(err))
		_ = c.client.Del(ctx, key)
		return nil, false, nil
	}
	b := cb.toDomain()
	return &b, true, nil
}

func (c *RedisBalanceCache) Set(ctx context.Context, balance revenue.PartyBalance) error {
	data, err := json.Marshal(toCached(balance))
	if err != nil {
		return fmt.Errorf("failed to encode balance: %w", err)
	}
	key := balanceKey(c.prefix, balance.Party, balance.Currency)
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache balance: %w", err)
	}
	return nil
}

// Invalidate deletes every cached currency of party using SCAN so large
// keyspaces are not blocked
func (c *RedisBalanceCache) Invalidate(ctx context.Context, party revenue.Party) error {
	pattern := partyPrefix(c.prefix, party) + "*"
	var cursor uint64
	deleted := 0
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, scanBatchSize).Result()
		if err != nil {
			return fmt.Errorf("failed to scan cached balances: %w", err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("failed to delete cached balances: %w", err)
			}
			deleted += len(keys)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	c.logger.Debug("balance cache invalidated",
		zap.String("party", party.String()),
		zap.Int("keys", deleted))
	return nil
}

// InMemoryBalanceCache is the process-local BalanceCache used when Redis is
// disabled
type InMemoryBalanceCache struct {
	items  *expiringMap[revenue.PartyBalance]
	prefix string
	ttl    time.Duration
}

func NewInMemoryBalanceCache(opts ...BalanceCacheOption) *InMemoryBalanceCache {
	o := applyBalanceOptions(opts)
	return &InMemoryBalanceCache{
		items:  newExpiringMap[revenue.PartyBalance](o.ttl),
		prefix: o.prefix,
		ttl:    o.ttl,
	}
}

func (c *InMemoryBalanceCache) Get(_ context.Context, party revenue.Party, currency valueobject.Currency) (*revenue.PartyBalance, bool, error) {
	b, ok := c.items.get(balanceKey(c.prefix, party, currency))
	if !ok {
		return nil, false, nil
	}
	return &b, true, nil
}

func (c *InMemoryBalanceCache) Set(_ context.Context, balance revenue.PartyBalance) error {
	c.items.set(balanceKey(c.prefix, balance.Party, balance.Currency), balance, c.ttl)
	return nil
}

func (c *InMemoryBalanceCache) Invalidate(_ context.Context, party revenue.Party) error {
	c.items.deletePrefix(partyPrefix(c.prefix, party))
	return nil
}

// Close stops the sweeper
func (c *InMemoryBalanceCache) Close() error {
	c.items.close()
	return nil
}

var (
	_ apprevenue.BalanceCache = (*RedisBalanceCache)(nil)
	_ apprevenue.BalanceCache = (*InMemoryBalanceCache)(nil)
)
