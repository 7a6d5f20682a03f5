package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/T-Rylander/unifi-edtech-stack/internal/metrics"
)

// ClientLimiter hands out one token bucket per remote address. Counters
// live in memory only and reset on restart.
type ClientLimiter struct {
	visitors map[string]*rate.Limiter
	mutex    sync.Mutex
	limit    rate.Limit
	burst    int
}

// NewClientLimiter creates a limiter enforcing the given refill rate and
// burst for each distinct address.
func NewClientLimiter(limit rate.Limit, burst int) *ClientLimiter {
	return &ClientLimiter{
		visitors: make(map[string]*rate.Limiter),
		limit:    limit,
		burst:    burst,
	}
}

// Allow reports whether the given address may proceed.
func (l *ClientLimiter) Allow(addr string) bool {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	limiter, exists := l.visitors[addr]
	if !exists {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.visitors[addr] = limiter
	}

	return limiter.Allow()
}

// RateLimit creates a Gin middleware rejecting requests over the
// per-address quota with 429. The caller is expected to retry later; the
// server never retries on its behalf.
func RateLimit(limiter *ClientLimiter, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			logger.Warn("Rate limit exceeded", zap.String("client", c.ClientIP()))
			metrics.RateLimitedTotal.Inc()
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded. Try again later."})
			c.Abort()
			return
		}

		c.Next()
	}
}
