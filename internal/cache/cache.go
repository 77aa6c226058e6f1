// Package cache provides the aggregation result cache: an in-memory
// LRU+TTL implementation and a Redis-backed variant behind one interface.
// The cache is a performance optimization, never a correctness dependency:
// every failure path degrades to a miss.
package cache

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/parlayforge/parlayforge/internal/prediction"
)

// Cache stores combined recommendations keyed by request fingerprint.
// A ttl <= 0 on Put means "do not cache": the entry is never stored, not
// stored with immediate expiry.
type Cache interface {
	Get(ctx context.Context, key string) (*prediction.CombinedRecommendation, bool)
	Put(ctx context.Context, key string, value *prediction.CombinedRecommendation, ttl time.Duration)
	Invalidate(ctx context.Context, key string)
	Len() int
}

var (
	cacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aggregation_cache_hits_total",
		Help: "Aggregation cache hits per backend",
	}, []string{"backend"})

	cacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aggregation_cache_misses_total",
		Help: "Aggregation cache misses per backend",
	}, []string{"backend"})

	cacheEvictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aggregation_cache_evictions_total",
		Help: "Aggregation cache evictions per backend and cause",
	}, []string{"backend", "cause"})
)
