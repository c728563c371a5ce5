package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/medbliss/medbliss/internal/platform/auth"
)

// RateLimitConfig configures RateLimit. Each session gets BurstSize tokens
// refilled at RequestsPerSecond.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int

	// Skipper exempts requests from the limit. The default skips the
	// websocket upgrade, which holds one connection for its lifetime.
	Skipper func(c echo.Context) bool

	now func() time.Time
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 20,
		BurstSize:         40,
	}
}

func skipWebsocket(c echo.Context) bool {
	return strings.HasSuffix(c.Request().URL.Path, "/ws")
}

const (
	idleBucketTTL  = 10 * time.Minute
	maxIdleBuckets = 10000
)

// bucket is a token bucket refilled lazily on each take.
type bucket struct {
	mu     sync.Mutex
	tokens float64
	last   time.Time
}

// take spends one token if available and reports the tokens left, or how
// long until the next token when none are.
func (b *bucket) take(now time.Time, rate float64, burst int) (ok bool, remaining int, wait time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.tokens = math.Min(float64(burst), b.tokens+now.Sub(b.last).Seconds()*rate)
	b.last = now
	if b.tokens >= 1 {
		b.tokens--
		return true, int(b.tokens), 0
	}
	if rate <= 0 {
		return false, 0, time.Second
	}
	return false, 0, time.Duration((1 - b.tokens) / rate * float64(time.Second))
}

func (b *bucket) idle(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return now.Sub(b.last) > idleBucketTTL
}

// limiter holds one bucket per key.
type limiter struct {
	cfg     RateLimitConfig
	mu      sync.Mutex
	buckets map[string]*bucket
}

func newLimiter(cfg RateLimitConfig) *limiter {
	if cfg.now == nil {
		cfg.now = time.Now
	}
	if cfg.Skipper == nil {
		cfg.Skipper = skipWebsocket
	}
	return &limiter{cfg: cfg, buckets: make(map[string]*bucket)}
}

func (l *limiter) bucket(key string, now time.Time) *bucket {
	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.buckets[key]; ok {
		return b
	}
	if len(l.buckets) >= maxIdleBuckets {
		for k, b := range l.buckets {
			if b.idle(now) {
				delete(l.buckets, k)
			}
		}
	}
	b := &bucket{tokens: float64(l.cfg.BurstSize), last: now}
	l.buckets[key] = b
	return b
}

func (l *limiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// RateLimit keys buckets by session, or by client IP before a session is
// known, so it must run after the auth middleware.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	return newLimiter(cfg).middleware
}

func (l *limiter) middleware(next echo.HandlerFunc) echo.HandlerFunc {
	limit := strconv.FormatFloat(l.cfg.RequestsPerSecond, 'f', -1, 64)
	return func(c echo.Context) error {
		if l.cfg.Skipper(c) {
			return next(c)
		}
		key := "ip:" + c.RealIP()
		if sid := auth.SessionFromContext(c); sid != "" {
			key = "session:" + sid
		}

		now := l.cfg.now()
		ok, remaining, wait := l.bucket(key, now).take(now, l.cfg.RequestsPerSecond, l.cfg.BurstSize)
		h := c.Response().Header()
		h.Set("X-RateLimit-Limit", limit)
		h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !ok {
			h.Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
		}
		return next(c)
	}
}
