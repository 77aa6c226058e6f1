package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// RateLimitConfig configures per-IP request limiting
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerSecond int
	Burst             int
}

// ipLimiterTTL is how long an idle IP keeps its limiter before cleanup
const ipLimiterTTL = 10 * time.Minute

type ipLimiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter applies a token bucket per client IP
type IPRateLimiter struct {
	mu      sync.Mutex
	entries map[string]*ipLimiterEntry
	rps     rate.Limit
	burst   int
	log     zerolog.Logger
}

// NewIPRateLimiter creates a per-IP limiter and starts its cleanup loop
func NewIPRateLimiter(cfg RateLimitConfig, log zerolog.Logger) *IPRateLimiter {
	l := &IPRateLimiter{
		entries: make(map[string]*ipLimiterEntry),
		rps:     rate.Limit(cfg.RequestsPerSecond),
		burst:   cfg.Burst,
		log:     log.With().Str("component", "rate_limiter").Logger(),
	}
	go l.cleanupLoop()
	return l
}

// allow checks the token bucket for one IP
func (l *IPRateLimiter) allow(ip string) bool {
	l.mu.Lock()
	entry, ok := l.entries[ip]
	if !ok {
		entry = &ipLimiterEntry{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.entries[ip] = entry
	}
	entry.lastSeen = time.Now()
	l.mu.Unlock()

	return entry.limiter.Allow()
}

// Middleware rejects over-limit requests with 429
func (l *IPRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !l.allow(ip) {
			l.log.Warn().Str("ip", ip).Msg("Rate limit exceeded")
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// cleanupLoop drops limiters for IPs idle longer than the TTL
func (l *IPRateLimiter) cleanupLoop() {
	ticker := time.NewTicker(ipLimiterTTL)
	defer ticker.Stop()

	for range ticker.C {
		cutoff := time.Now().Add(-ipLimiterTTL)
		l.mu.Lock()
		for ip, entry := range l.entries {
			if entry.lastSeen.Before(cutoff) {
				delete(l.entries, ip)
			}
		}
		l.mu.Unlock()
	}
}
