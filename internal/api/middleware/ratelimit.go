package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/bcnelson/seo-insights/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// RateLimiter throttles requests per client address with a token bucket.
// With a Redis client attached the budget is a per-minute window shared by
// every instance.
type RateLimiter struct {
	limit rate.Limit
	burst int
	ttl   time.Duration
	now   func() time.Time

	redis  *redis.Client
	prefix string

	mu      sync.Mutex
	clients map[string]*client
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows perMinute requests per client, with bursts of the
// same size. Idle clients are forgotten after ten minutes.
func NewRateLimiter(perMinute int) *RateLimiter {
	return &RateLimiter{
		limit:   rate.Limit(float64(perMinute) / 60),
		burst:   max(perMinute, 1),
		ttl:     10 * time.Minute,
		now:     time.Now,
		clients: make(map[string]*client),
	}
}

// Allow reports whether key may make a request now.
func (l *RateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for k, c := range l.clients {
		if now.Sub(c.lastSeen) > l.ttl {
			delete(l.clients, k)
		}
	}

	c, ok := l.clients[key]
	if !ok {
		c = &client{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

// WithRedis moves the counters to Redis. The local bucket is used whenever
// Redis cannot be reached.
func (l *RateLimiter) WithRedis(client *redis.Client) *RateLimiter {
	l.redis = client
	l.prefix = "ratelimit:login:"
	return l
}

// AllowContext is Allow against the shared Redis window when one is attached.
func (l *RateLimiter) AllowContext(ctx context.Context, key string) bool {
	if l.redis == nil {
		return l.Allow(key)
	}

	window := l.now().Unix() / 60
	rkey := fmt.Sprintf("%s%s:%d", l.prefix, key, window)
	pipe := l.redis.TxPipeline()
	incr := pipe.Incr(ctx, rkey)
	pipe.Expire(ctx, rkey, time.Minute)
	if _, err := pipe.Exec(ctx); err != nil {
		return l.Allow(key)
	}
	return incr.Val() <= int64(l.burst)
}

// Middleware answers 429 once a client exceeds its budget.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.AllowContext(r.Context(), clientKey(r)) {
			w.Header().Set("Retry-After", "60")
			WriteError(w, http.StatusTooManyRequests, domain.ErrCodeRateLimited, "too many requests, try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
