package market

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"dropscout/internal/domain"
)

// SnapshotCache holds recent comp lookups so repeated queries for the same
// title do not hammer marketplace rate limits. Get returning (nil, nil) is a
// miss; any error is treated by callers as a miss too.
type SnapshotCache interface {
	Get(ctx context.Context, titleKey string, mp domain.Marketplace, region domain.Region) (*domain.MarketSnapshot, error)
	Set(ctx context.Context, titleKey string, snap *domain.MarketSnapshot) error
}

// NopCache is a SnapshotCache that caches nothing.
type NopCache struct{}

func (NopCache) Get(context.Context, string, domain.Marketplace, domain.Region) (*domain.MarketSnapshot, error) {
	return nil, nil
}

func (NopCache) Set(context.Context, string, *domain.MarketSnapshot) error { return nil }

// RedisCache implements SnapshotCache on Redis with a fixed TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisCache creates a cache around an existing client. The caller
// retains ownership of the client. A zero ttl defaults to 15 minutes.
func NewRedisCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache{client: client, ttl: ttl, logger: logger}
}

var _ SnapshotCache = (*RedisCache)(nil)

func cacheKey(titleKey string, mp domain.Marketplace, region domain.Region) string {
	return fmt.Sprintf("comps:%s:%s:%s", mp, region, titleKey)
}

// Get retrieves a cached snapshot. A miss returns (nil, nil).
func (c *RedisCache) Get(ctx context.Context, titleKey string, mp domain.Marketplace, region domain.Region) (*domain.MarketSnapshot, error) {
	key := cacheKey(titleKey, mp, region)

	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot from cache: %w", err)
	}

	var snap domain.MarketSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		// Corrupted entry, drop it and treat as a miss.
		_ = c.client.Del(ctx, key)
		return nil, fmt.Errorf("unmarshal cached snapshot: %w", err)
	}
	return &snap, nil
}

// Set stores a snapshot under its title/marketplace/region key.
func (c *RedisCache) Set(ctx context.Context, titleKey string, snap *domain.MarketSnapshot) error {
	if snap == nil {
		return nil
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	key := cacheKey(titleKey, snap.Marketplace, snap.Region)
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set snapshot in cache: %w", err)
	}
	return nil
}
