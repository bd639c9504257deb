package middleware

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/amoylab/agridash/internal/common/config"
	"github.com/amoylab/agridash/internal/common/errorx"
	"github.com/amoylab/agridash/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Decision is the outcome of one rate limit check
type Decision struct {
	Allowed   bool
	Count     int
	Remaining int
	ResetAt   time.Time
}

// Limiter counts hits per key in a fixed window
type Limiter interface {
	Allow(ctx context.Context, key string, max int) (Decision, error)
	Close() error
}

// KeyFunc derives the bucket key of a request
type KeyFunc func(c *gin.Context) string

// ByClientIP buckets requests per client address under scope
func ByClientIP(scope string) KeyFunc {
	return func(c *gin.Context) string {
		return scope + ":" + c.ClientIP()
	}
}

// NewLimiter creates a limiter for the configured backend
func NewLimiter(cfg config.RateLimitConfig) (Limiter, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryLimiter(cfg.Window), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return NewRedisLimiter(client, cfg.Redis.Prefix, cfg.Window), nil
	default:
		return nil, fmt.Errorf("unsupported rate limit type: %s", cfg.Type)
	}
}

// RateLimit rejects requests beyond max per window with 429.
// Limiter errors let the request through.
func RateLimit(limiter Limiter, keyFn KeyFunc, max int, m *metrics.Metrics, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		d, err := limiter.Allow(c.Request.Context(), keyFn(c), max)
		if err != nil {
			logger.Warn("rate limiter unavailable, allowing request", zap.Error(err))
			c.Next()
			return
		}

		h := c.Writer.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(max))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))

		if !d.Allowed {
			retry := int(time.Until(d.ResetAt).Seconds() + 0.5)
			if retry < 1 {
				retry = 1
			}
			h.Set("Retry-After", strconv.Itoa(retry))
			m.RateLimited(c.FullPath())
			abort(c, errorx.ErrRateLimitExceeded.WithDetail("retry_after_seconds", retry))
			return
		}
		c.Next()
	}
}

func decide(count, max int, resetAt time.Time) Decision {
	remaining := max - count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   count <= max,
		Count:     count,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}

type window struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter keeps fixed windows in process memory
type MemoryLimiter struct {
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string]*window
}

func NewMemoryLimiter(w time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		window:  w,
		now:     time.Now,
		buckets: make(map[string]*window),
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string, max int) (Decision, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok || !now.Before(b.resetAt) {
		if len(l.buckets) > 4096 {
			l.sweep(now)
		}
		b = &window{resetAt: now.Add(l.window)}
		l.buckets[key] = b
	}
	b.count++
	return decide(b.count, max, b.resetAt), nil
}

// sweep drops expired windows; caller holds mu
func (l *MemoryLimiter) sweep(now time.Time) {
	for k, b := range l.buckets {
		if !now.Before(b.resetAt) {
			delete(l.buckets, k)
		}
	}
}

func (l *MemoryLimiter) Close() error { return nil }

// RedisLimiter shares fixed windows across replicas through INCR and PEXPIRE
type RedisLimiter struct {
	client redis.UniversalClient
	prefix string
	window time.Duration
}

func NewRedisLimiter(client redis.UniversalClient, prefix string, w time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		prefix: prefix,
		window: w,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, max int) (Decision, error) {
	k := l.prefix + key

	count, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit %s: %w", key, err)
	}
	if count == 1 {
		if err := l.client.PExpire(ctx, k, l.window).Err(); err != nil {
			return Decision{}, fmt.Errorf("rate limit %s: %w", key, err)
		}
	}
	ttl, err := l.client.PTTL(ctx, k).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit %s: %w", key, err)
	}

	if ttl <= 0 {
		// key lost its expiry
		_ = l.client.PExpire(ctx, k, l.window).Err()
		ttl = l.window
	}
	return decide(int(count), max, time.Now().Add(ttl)), nil
}

func (l *RedisLimiter) Close() error {
	return l.client.Close()
}
