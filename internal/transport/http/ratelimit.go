package http

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// newCommandLimiter returns a per-connection token bucket, or nil when
// limiting is disabled.
func newCommandLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = int(perSecond)
		if burst < 1 {
			burst = 1
		}
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

func allowCommand(l *rate.Limiter) bool {
	return l == nil || l.Allow()
}

// RedeemLimiter throttles pin code lookups per client key.
type RedeemLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// MemoryRedeemLimiter keeps one token bucket per key in process memory.
type MemoryRedeemLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	buckets map[string]*bucket
	idleTTL time.Duration
	now     func() time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewMemoryRedeemLimiter allows perMinute lookups per key.
func NewMemoryRedeemLimiter(perMinute int) *MemoryRedeemLimiter {
	if perMinute <= 0 {
		perMinute = 1
	}
	return &MemoryRedeemLimiter{
		limit:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   perMinute,
		buckets: make(map[string]*bucket),
		idleTTL: 10 * time.Minute,
		now:     time.Now,
	}
}

// Allow implements RedeemLimiter.
func (m *MemoryRedeemLimiter) Allow(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	b, ok := m.buckets[key]
	if !ok {
		m.evictIdle(now)
		b = &bucket{limiter: rate.NewLimiter(m.limit, m.burst)}
		m.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1), nil
}

func (m *MemoryRedeemLimiter) evictIdle(now time.Time) {
	for k, b := range m.buckets {
		if now.Sub(b.lastSeen) > m.idleTTL {
			delete(m.buckets, k)
		}
	}
}

// RedisRedeemLimiter counts lookups per key in fixed windows shared by every
// server instance.
type RedisRedeemLimiter struct {
	client *redis.Client
	max    int64
	window time.Duration
	prefix string
}

// NewRedisRedeemLimiter allows perMinute lookups per key per minute.
func NewRedisRedeemLimiter(client *redis.Client, perMinute int) *RedisRedeemLimiter {
	if perMinute <= 0 {
		perMinute = 1
	}
	return &RedisRedeemLimiter{
		client: client,
		max:    int64(perMinute),
		window: time.Minute,
		prefix: "arview:redeem:",
	}
}

// Allow implements RedeemLimiter.
func (r *RedisRedeemLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := r.prefix + key

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.ExpireNX(ctx, redisKey, r.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("redis rate limit: %w", err)
	}
	return incr.Val() <= r.max, nil
}

// RateLimitMiddleware rejects clients that exceed limiter. Limiter errors fail
// open so a redis outage does not lock headsets out.
func RateLimitMiddleware(limiter RedeemLimiter, logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		ok, err := limiter.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			logger.Warn().Err(err).Msg("rate limiter unavailable")
			c.Next()
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{Message: "too many requests"})
			return
		}
		c.Next()
	}
}
