// ratelimit.go provides Gin middleware that enforces per-client token-bucket rate limits on
// the credential endpoints, returning 429 responses when the configured requests-per-minute
// threshold is exceeded.
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/config"
)

// RateLimitConfig holds configuration for rate limiting
type RateLimitConfig struct {
	// RequestsPerMinute is the sustained number of requests allowed per minute
	RequestsPerMinute int
	// BurstSize is the maximum burst of requests allowed
	BurstSize int
	// CleanupInterval is how often idle in-process buckets are dropped
	CleanupInterval time.Duration
}

// CredentialRateLimitConfig returns the limits applied to login, registration and
// password recovery submissions.
func CredentialRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 10,
		BurstSize:         5,
		CleanupInterval:   5 * time.Minute,
	}
}

// RateLimitDecision is the outcome of one limiter check.
type RateLimitDecision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter decides whether the request identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (RateLimitDecision, error)
}

// NewLimiter builds the limiter selected by cfg. The redis backend requires rdb.
func NewLimiter(cfg config.RateLimitingConfig, rdb redis.UniversalClient) (Limiter, error) {
	rl := CredentialRateLimitConfig()
	if cfg.RequestsPerMinute > 0 {
		rl.RequestsPerMinute = cfg.RequestsPerMinute
	}
	if cfg.Burst > 0 {
		rl.BurstSize = cfg.Burst
	}
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryLimiter(rl), nil
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("redis rate limiting requires a redis client")
		}
		return NewRedisLimiter(rdb, rl), nil
	default:
		return nil, fmt.Errorf("unknown rate limiting backend: %s", cfg.Backend)
	}
}

// bucket tracks one client's limiter.
type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MemoryLimiter is a per-process token bucket keyed by client.
type MemoryLimiter struct {
	config  RateLimitConfig
	buckets map[string]*bucket
	mu      sync.Mutex
	stopCh  chan struct{}
	stop    sync.Once
}

// NewMemoryLimiter creates a new in-process limiter with the given config
func NewMemoryLimiter(config RateLimitConfig) *MemoryLimiter {
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 5 * time.Minute
	}
	ml := &MemoryLimiter{
		config:  config,
		buckets: make(map[string]*bucket),
		stopCh:  make(chan struct{}),
	}

	go ml.cleanup()

	return ml
}

// cleanup periodically removes idle buckets
func (ml *MemoryLimiter) cleanup() {
	ticker := time.NewTicker(ml.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ml.mu.Lock()
			now := time.Now()
			for key, b := range ml.buckets {
				if now.Sub(b.lastSeen) > 10*time.Minute {
					delete(ml.buckets, key)
				}
			}
			ml.mu.Unlock()
		case <-ml.stopCh:
			return
		}
	}
}

// Stop stops the cleanup goroutine
func (ml *MemoryLimiter) Stop() {
	ml.stop.Do(func() { close(ml.stopCh) })
}

func (ml *MemoryLimiter) bucketFor(key string, now time.Time) *rate.Limiter {
	ml.mu.Lock()
	defer ml.mu.Unlock()
	b, ok := ml.buckets[key]
	if !ok {
		perSecond := rate.Limit(float64(ml.config.RequestsPerMinute) / 60.0)
		b = &bucket{limiter: rate.NewLimiter(perSecond, ml.config.BurstSize)}
		ml.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter
}

// Allow checks if a request from the given key should be allowed
func (ml *MemoryLimiter) Allow(_ context.Context, key string) (RateLimitDecision, error) {
	now := time.Now()
	lim := ml.bucketFor(key, now)

	d := RateLimitDecision{Limit: ml.config.RequestsPerMinute}
	r := lim.ReserveN(now, 1)
	if !r.OK() {
		return d, nil
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		d.RetryAfter = delay
		return d, nil
	}
	d.Allowed = true
	d.Remaining = int(math.Max(0, math.Floor(lim.TokensAt(now))))
	return d, nil
}

// RedisLimiter shares buckets across replicas through redis.
type RedisLimiter struct {
	limiter *redis_rate.Limiter
	limit   redis_rate.Limit
}

// NewRedisLimiter returns a GCRA limiter stored in rdb.
func NewRedisLimiter(rdb redis.UniversalClient, config RateLimitConfig) *RedisLimiter {
	limit := redis_rate.PerMinute(config.RequestsPerMinute)
	if config.BurstSize > 0 {
		limit.Burst = config.BurstSize
	}
	return &RedisLimiter{limiter: redis_rate.NewLimiter(rdb), limit: limit}
}

// Allow checks if a request from the given key should be allowed
func (rl *RedisLimiter) Allow(ctx context.Context, key string) (RateLimitDecision, error) {
	res, err := rl.limiter.Allow(ctx, "ventas:ratelimit:"+key, rl.limit)
	if err != nil {
		return RateLimitDecision{Allowed: true}, err
	}
	return RateLimitDecision{
		Allowed:    res.Allowed > 0,
		Limit:      rl.limit.Rate,
		Remaining:  res.Remaining,
		RetryAfter: res.RetryAfter,
	}, nil
}

// RateLimitMiddleware creates a Gin middleware that rate limits requests by client IP.
// onLimited renders the rejection; when nil a JSON 429 is returned. A limiter error lets
// the request through.
func RateLimitMiddleware(limiter Limiter, onLimited gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := getRateLimitKey(c)

		d, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			slog.Warn("rate limiter unavailable", "key", key, "error", err)
			c.Next()
			return
		}

		if d.Limit > 0 {
			c.Header("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))

		if !d.Allowed {
			retry := int(math.Ceil(d.RetryAfter.Seconds()))
			if retry < 1 {
				retry = 60
			}
			c.Header("Retry-After", strconv.Itoa(retry))
			c.Status(http.StatusTooManyRequests)
			if onLimited != nil {
				onLimited(c)
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": retry,
			})
			return
		}

		c.Next()
	}
}

// getRateLimitKey determines the key to use for rate limiting. Credential endpoints are
// anonymous, so the client IP is the only stable identity.
func getRateLimitKey(c *gin.Context) string {
	ip := c.ClientIP()
	if ip == "" {
		ip = c.Request.RemoteAddr
	}
	return "ip:" + ip
}
