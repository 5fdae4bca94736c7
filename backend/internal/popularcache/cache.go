// Package popularcache caches popular article listings in Redis, keyed by
// the geohash cell of the requested center.
package popularcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mmcloughlin/geohash"
	"github.com/redis/go-redis/v9"

	"github.com/DeafMist/travel-guide/backend/internal/geo"
	"github.com/DeafMist/travel-guide/backend/internal/metrics"
	"github.com/DeafMist/travel-guide/backend/internal/models"
)

// cellPrecision of 5 characters gives cells of roughly 5 km, well inside the
// popular search radius.
const cellPrecision = 5

const keyPrefix = "travel:popular:"

// Cache stores popular listings. A nil *Cache is a valid, always-missing cache.
type Cache struct {
	rc  *redis.Client
	ttl time.Duration
}

// Open connects to Redis at addr. An empty addr disables caching and returns nil.
func Open(addr, password string, db int, ttl time.Duration) *Cache {
	if addr == "" {
		return nil
	}
	return New(redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db}), ttl)
}

// New wraps an existing Redis client.
func New(rc *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Cache{rc: rc, ttl: ttl}
}

// Key returns the cache key of a listing for lang around center.
func Key(lang string, center geo.Point) string {
	return keyPrefix + lang + ":" + geohash.EncodeWithPrecision(center.Lat, center.Lon, cellPrecision)
}

// Get returns the cached listing, if any.
func (c *Cache) Get(ctx context.Context, lang string, center geo.Point) ([]models.ArticleSummary, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	raw, err := c.rc.Get(ctx, Key(lang, center)).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.PopularCacheTotal.WithLabelValues("miss").Inc()
		return nil, false, nil
	}
	if err != nil {
		metrics.PopularCacheTotal.WithLabelValues("error").Inc()
		return nil, false, fmt.Errorf("get popular listing: %w", err)
	}

	var items []models.ArticleSummary
	if err := json.Unmarshal(raw, &items); err != nil {
		metrics.PopularCacheTotal.WithLabelValues("error").Inc()
		return nil, false, fmt.Errorf("decode popular listing: %w", err)
	}
	metrics.PopularCacheTotal.WithLabelValues("hit").Inc()
	return items, true, nil
}

// Set stores a listing for the cache ttl.
func (c *Cache) Set(ctx context.Context, lang string, center geo.Point, items []models.ArticleSummary) error {
	if c == nil {
		return nil
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode popular listing: %w", err)
	}
	if err := c.rc.Set(ctx, Key(lang, center), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("set popular listing: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func (c *Cache) Ping(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.rc.Ping(ctx).Err()
}

// Close releases the Redis connection.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.rc.Close()
}
