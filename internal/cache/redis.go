package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/parlayforge/parlayforge/internal/prediction"
)

const (
	redisOpTimeout = 500 * time.Millisecond

	// Breaker thresholds: trip after 60% failures over at least 5 calls,
	// retry after 15s with up to 3 probe requests
	breakerMinRequests     = 5
	breakerFailureRatio    = 0.6
	breakerOpenTimeout     = 15 * time.Second
	breakerHalfOpenMaxReqs = 3
	breakerCountInterval   = 10 * time.Second
)

// RedisCache stores recommendations in Redis with native TTL expiry.
// A circuit breaker wraps every operation: while Redis is unhealthy the
// cache degrades to a guaranteed miss instead of slowing requests down.
// LRU bounding is delegated to Redis' own maxmemory policy.
type RedisCache struct {
	client    *redis.Client
	breaker   *gobreaker.CircuitBreaker
	keyPrefix string
	log       zerolog.Logger
}

// NewRedisCache creates a Redis-backed aggregation cache
func NewRedisCache(client *redis.Client, log zerolog.Logger) *RedisCache {
	componentLog := log.With().Str("component", "redis_cache").Logger()

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "aggregation_cache",
		MaxRequests: breakerHalfOpenMaxReqs,
		Interval:    breakerCountInterval,
		Timeout:     breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= breakerMinRequests && ratio >= breakerFailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			componentLog.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Cache circuit breaker state change")
		},
	})

	return &RedisCache{
		client:    client,
		breaker:   breaker,
		keyPrefix: "parlayforge:rec:",
		log:       componentLog,
	}
}

// Get fetches a cached recommendation; any Redis failure is a miss
func (c *RedisCache) Get(ctx context.Context, key string) (*prediction.CombinedRecommendation, bool) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		opCtx, cancel := context.WithTimeout(ctx, redisOpTimeout)
		defer cancel()
		return c.client.Get(opCtx, c.keyPrefix+key).Result()
	})
	if err != nil {
		if err != redis.Nil {
			c.log.Debug().Err(err).Str("key", key).Msg("Redis get failed - treating as cache miss")
		}
		cacheMisses.WithLabelValues("redis").Inc()
		return nil, false
	}

	var rec prediction.CombinedRecommendation
	if err := json.Unmarshal([]byte(result.(string)), &rec); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Failed to unmarshal cached recommendation")
		cacheMisses.WithLabelValues("redis").Inc()
		return nil, false
	}

	cacheHits.WithLabelValues("redis").Inc()
	return &rec, true
}

// Put stores a recommendation with the given TTL. Non-positive TTL
// bypasses the cache; write failures are logged and swallowed.
func (c *RedisCache) Put(ctx context.Context, key string, value *prediction.CombinedRecommendation, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	data, err := json.Marshal(value)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Failed to marshal recommendation for cache")
		return
	}

	if _, err := c.breaker.Execute(func() (interface{}, error) {
		opCtx, cancel := context.WithTimeout(ctx, redisOpTimeout)
		defer cancel()
		return nil, c.client.Set(opCtx, c.keyPrefix+key, data, ttl).Err()
	}); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Failed to cache recommendation")
	}
}

// Invalidate drops a cached entry
func (c *RedisCache) Invalidate(ctx context.Context, key string) {
	if _, err := c.breaker.Execute(func() (interface{}, error) {
		opCtx, cancel := context.WithTimeout(ctx, redisOpTimeout)
		defer cancel()
		return nil, c.client.Del(opCtx, c.keyPrefix+key).Err()
	}); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Failed to invalidate cache key")
	}
}

// Len counts entries under the cache prefix. Best effort; returns 0 when
// Redis is unavailable.
func (c *RedisCache) Len() int {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	count := 0
	iter := c.client.Scan(ctx, 0, c.keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		c.log.Debug().Err(err).Msg("Redis scan failed during Len")
		return 0
	}
	return count
}

// Health checks Redis connectivity
func (c *RedisCache) Health(ctx context.Context) error {
	opCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := c.client.Ping(opCtx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}
