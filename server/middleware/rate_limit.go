package middleware

import (
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Limit is a token-bucket rate: sustained requests per second plus a
// burst allowance.
type Limit struct {
	RPS   int
	Burst int
}

// RateLimiter hands out per-client token buckets. Buckets are scoped
// per route class: the expensive video-analysis upload gets its own,
// stricter bucket so an upload burst cannot consume the allowance for
// the cheap player reads, and vice versa.
type RateLimiter struct {
	buckets      map[string]*tokenBucket
	mu           sync.Mutex
	logger       *zap.Logger
	defaultLimit Limit
	stop         chan struct{}
}

type tokenBucket struct {
	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
}

func NewRateLimiter(defaultRPS, burst int, logger *zap.Logger) *RateLimiter {
	rl := &RateLimiter{
		buckets:      make(map[string]*tokenBucket),
		defaultLimit: Limit{RPS: defaultRPS, Burst: burst},
		logger:       logger,
		stop:         make(chan struct{}),
	}
	go rl.evictIdleBuckets()
	return rl
}

// RateLimit enforces the default limit, bucketed per client IP.
func (rl *RateLimiter) RateLimit() gin.HandlerFunc {
	return rl.limit("default", rl.defaultLimit)
}

// RateLimitWithConfig enforces a route-specific limit. Each scope gets
// its own bucket per client, independent of the default one.
func (rl *RateLimiter) RateLimitWithConfig(scope string, limit Limit) gin.HandlerFunc {
	return rl.limit(scope, limit)
}

func (rl *RateLimiter) limit(scope string, limit Limit) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()

		if !rl.allow(scope+"|"+clientIP, limit) {
			rl.logger.Warn("Rate limit exceeded",
				zap.String("client_ip", clientIP),
				zap.String("scope", scope),
				zap.String("path", c.Request.URL.Path))

			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": retryAfterSeconds(limit),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

func (rl *RateLimiter) allow(key string, limit Limit) bool {
	rl.mu.Lock()
	bucket, exists := rl.buckets[key]
	if !exists {
		bucket = &tokenBucket{
			tokens:     float64(limit.Burst),
			lastRefill: time.Now(),
		}
		rl.buckets[key] = bucket
	}
	rl.mu.Unlock()

	return bucket.take(limit)
}

// take refills fractionally from elapsed time, so low-RPS scopes still
// accumulate tokens between sub-second requests.
func (b *tokenBucket) take(limit Limit) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	b.tokens += now.Sub(b.lastRefill).Seconds() * float64(limit.RPS)
	if b.tokens > float64(limit.Burst) {
		b.tokens = float64(limit.Burst)
	}
	b.lastRefill = now

	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// retryAfterSeconds is the wait until the bucket is guaranteed one
// token again.
func retryAfterSeconds(limit Limit) int {
	if limit.RPS <= 0 {
		return 60
	}
	return int(math.Ceil(1 / float64(limit.RPS)))
}

func (rl *RateLimiter) evictIdleBuckets() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			now := time.Now()
			for key, bucket := range rl.buckets {
				bucket.mu.Lock()
				idle := now.Sub(bucket.lastRefill) > 10*time.Minute
				bucket.mu.Unlock()
				if idle {
					delete(rl.buckets, key)
				}
			}
			rl.mu.Unlock()
		case <-rl.stop:
			return
		}
	}
}

func (rl *RateLimiter) Shutdown() {
	close(rl.stop)
}
