package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hundredminds/backend/internal/cache"
	"github.com/hundredminds/backend/pkg/errors"
	"github.com/hundredminds/backend/pkg/logger"
	"github.com/hundredminds/backend/pkg/response"
)

var errTooManyRequests = errors.ErrRateLimit.WithMessage("Too many requests from this IP, please try again later")

// RateLimit limits requests per (client IP, route) within a fixed window using
// the shared counter store, so every instance sees the same counts.
func RateLimit(store cache.Store, maxRequests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if store == nil || maxRequests <= 0 || window <= 0 {
			c.Next()
			return
		}

		key := "ratelimit:" + c.ClientIP() + "|" + c.FullPath()
		count, ttl, err := store.IncrementWithTTL(c.Request.Context(), key, window)
		if err != nil {
			// fail open
			logger.WithModule("http").Warn("rate limit store unavailable", zap.Error(err))
			c.Next()
			return
		}

		remaining := maxRequests - int(count)
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.Itoa(int(ttl.Seconds())))

		if int(count) > maxRequests {
			c.Header("Retry-After", strconv.Itoa(int(ttl.Seconds())+1))
			response.Error(c, errTooManyRequests)
			c.Abort()
			return
		}
		c.Next()
	}
}

// Throttle is a per-client-IP token bucket for endpoints that must absorb
// short bursts but not sustained hammering, such as sign-in.
func Throttle(perSecond float64, burst int) gin.HandlerFunc {
	type bucket struct {
		limiter  *rate.Limiter
		lastSeen time.Time
	}
	var (
		mu      sync.Mutex
		buckets = make(map[string]*bucket)
		sweep   = time.Now()
	)
	const idle = 10 * time.Minute

	return func(c *gin.Context) {
		if perSecond <= 0 || burst <= 0 {
			c.Next()
			return
		}

		now := time.Now()
		ip := c.ClientIP()

		mu.Lock()
		if now.Sub(sweep) > idle {
			for key, b := range buckets {
				if now.Sub(b.lastSeen) > idle {
					delete(buckets, key)
				}
			}
			sweep = now
		}
		b, ok := buckets[ip]
		if !ok {
			b = &bucket{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
			buckets[ip] = b
		}
		b.lastSeen = now
		allowed := b.limiter.AllowN(now, 1)
		mu.Unlock()

		if !allowed {
			response.Error(c, errTooManyRequests)
			c.Abort()
			return
		}
		c.Next()
	}
}
