package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/config"
)

// ---------------------------------------------------------------------------
// Config constructors
// ---------------------------------------------------------------------------

func TestCredentialRateLimitConfig(t *testing.T) {
	cfg := CredentialRateLimitConfig()
	if cfg.RequestsPerMinute != 10 {
		t.Errorf("RequestsPerMinute = %d, want 10", cfg.RequestsPerMinute)
	}
	if cfg.BurstSize != 5 {
		t.Errorf("BurstSize = %d, want 5", cfg.BurstSize)
	}
	if cfg.CleanupInterval != 5*time.Minute {
		t.Errorf("CleanupInterval = %v, want 5m", cfg.CleanupInterval)
	}
}

func TestNewLimiter_Backends(t *testing.T) {
	l, err := NewLimiter(config.RateLimitingConfig{Backend: "memory", RequestsPerMinute: 30, Burst: 2}, nil)
	if err != nil {
		t.Fatalf("NewLimiter(memory) error = %v", err)
	}
	ml, ok := l.(*MemoryLimiter)
	if !ok {
		t.Fatalf("NewLimiter(memory) = %T, want *MemoryLimiter", l)
	}
	defer ml.Stop()
	if ml.config.RequestsPerMinute != 30 || ml.config.BurstSize != 2 {
		t.Errorf("config = %+v, want rpm 30 burst 2", ml.config)
	}

	if _, err := NewLimiter(config.RateLimitingConfig{Backend: "redis"}, nil); err == nil {
		t.Error("NewLimiter(redis, nil client) error = nil, want error")
	}
	if _, err := NewLimiter(config.RateLimitingConfig{Backend: "memcached"}, nil); err == nil {
		t.Error("NewLimiter(memcached) error = nil, want error")
	}
}

// ---------------------------------------------------------------------------
// MemoryLimiter.Allow
// ---------------------------------------------------------------------------

func newTestLimiter(rpm, burst int) *MemoryLimiter {
	ml := NewMemoryLimiter(RateLimitConfig{
		RequestsPerMinute: rpm,
		BurstSize:         burst,
		CleanupInterval:   time.Hour, // Don't clean up during tests
	})
	return ml
}

func allow(t *testing.T, l Limiter, key string) RateLimitDecision {
	t.Helper()
	d, err := l.Allow(context.Background(), key)
	if err != nil {
		t.Fatalf("Allow(%q) error = %v", key, err)
	}
	return d
}

func TestMemoryLimiter_AllowsUpToBurstSize(t *testing.T) {
	rl := newTestLimiter(1, 3)
	defer rl.Stop()

	for i := 0; i < 3; i++ {
		if d := allow(t, rl, "ip:1.2.3.4"); !d.Allowed {
			t.Fatalf("request %d denied, want allowed", i+1)
		}
	}
	d := allow(t, rl, "ip:1.2.3.4")
	if d.Allowed {
		t.Fatal("request beyond burst allowed, want denied")
	}
	if d.RetryAfter <= 0 {
		t.Errorf("RetryAfter = %v, want > 0", d.RetryAfter)
	}
}

func TestMemoryLimiter_RemainingDecreases(t *testing.T) {
	rl := newTestLimiter(1, 3)
	defer rl.Stop()

	first := allow(t, rl, "ip:k")
	second := allow(t, rl, "ip:k")
	if first.Remaining != 2 || second.Remaining != 1 {
		t.Errorf("Remaining = %d then %d, want 2 then 1", first.Remaining, second.Remaining)
	}
	if first.Limit != 1 {
		t.Errorf("Limit = %d, want 1", first.Limit)
	}
}

func TestMemoryLimiter_DifferentKeysAreIndependent(t *testing.T) {
	rl := newTestLimiter(1, 1)
	defer rl.Stop()

	if !allow(t, rl, "ip:a").Allowed {
		t.Fatal("first request for a denied")
	}
	if allow(t, rl, "ip:a").Allowed {
		t.Fatal("second request for a allowed")
	}
	if !allow(t, rl, "ip:b").Allowed {
		t.Error("first request for b denied; keys must not share a bucket")
	}
}

func TestMemoryLimiter_DeniedRequestDoesNotConsumeTokens(t *testing.T) {
	rl := newTestLimiter(6000, 1) // refills one token every 10ms
	defer rl.Stop()

	allow(t, rl, "ip:k")
	for i := 0; i < 5; i++ {
		allow(t, rl, "ip:k")
	}
	time.Sleep(30 * time.Millisecond)
	if !allow(t, rl, "ip:k").Allowed {
		t.Error("request after refill denied; rejected requests must not borrow future tokens")
	}
}

func TestMemoryLimiter_StopIsIdempotent(t *testing.T) {
	rl := newTestLimiter(1, 1)
	rl.Stop()
	rl.Stop()
}

// ---------------------------------------------------------------------------
// RedisLimiter
// ---------------------------------------------------------------------------

// Requires a reachable redis; set VENTAS_TEST_REDIS_ADDR to run.
func TestRedisLimiter_AllowsUpToBurstSize(t *testing.T) {
	addr := os.Getenv("VENTAS_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("VENTAS_TEST_REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	defer rdb.Close()

	rl := NewRedisLimiter(rdb, RateLimitConfig{RequestsPerMinute: 1, BurstSize: 2})
	key := "test:" + strconv.FormatInt(time.Now().UnixNano(), 10)
	if !allow(t, rl, key).Allowed || !allow(t, rl, key).Allowed {
		t.Fatal("requests within burst denied")
	}
	if allow(t, rl, key).Allowed {
		t.Error("request beyond burst allowed")
	}
}

// ---------------------------------------------------------------------------
// getRateLimitKey
// ---------------------------------------------------------------------------

func TestGetRateLimitKey_IP(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/login", nil)
	c.Request.RemoteAddr = "10.0.0.7:51234"

	if got := getRateLimitKey(c); got != "ip:10.0.0.7" {
		t.Errorf("getRateLimitKey() = %q, want ip:10.0.0.7", got)
	}
}

// ---------------------------------------------------------------------------
// RateLimitMiddleware
// ---------------------------------------------------------------------------

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (RateLimitDecision, error) {
	return RateLimitDecision{}, errors.New("redis: connection refused")
}

func newRateLimitRouter(limiter Limiter, onLimited gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.POST("/login", RateLimitMiddleware(limiter, onLimited), func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	return r
}

func postLogin(r *gin.Engine) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = "192.0.2.1:4000"
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimitMiddleware_Allowed(t *testing.T) {
	rl := newTestLimiter(10, 5)
	defer rl.Stop()

	w := postLogin(newRateLimitRouter(rl, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := w.Header().Get("X-RateLimit-Limit"); got != "10" {
		t.Errorf("X-RateLimit-Limit = %q, want 10", got)
	}
	if got := w.Header().Get("X-RateLimit-Remaining"); got != "4" {
		t.Errorf("X-RateLimit-Remaining = %q, want 4", got)
	}
}

func TestRateLimitMiddleware_BlockedJSON(t *testing.T) {
	rl := newTestLimiter(1, 1)
	defer rl.Stop()
	r := newRateLimitRouter(rl, nil)

	postLogin(r)
	w := postLogin(r)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header missing")
	}
	if ct := w.Header().Get("Content-Type"); ct == "" || ct[:16] != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
}

func TestRateLimitMiddleware_BlockedCustomHandler(t *testing.T) {
	rl := newTestLimiter(1, 1)
	defer rl.Stop()
	r := newRateLimitRouter(rl, func(c *gin.Context) {
		c.String(http.StatusTooManyRequests, "demasiados intentos")
	})

	postLogin(r)
	w := postLogin(r)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if w.Body.String() != "demasiados intentos" {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestRateLimitMiddleware_LimiterErrorFailsOpen(t *testing.T) {
	w := postLogin(newRateLimitRouter(failingLimiter{}, nil))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 when the limiter is unavailable", w.Code)
	}
}
