package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const clientIdleTTL = 10 * time.Minute

type clientBucket struct {
	limiter *rate.Limiter
	seen    time.Time
}

// ClientRateLimiter gives every client IP its own token bucket so one caller
// cannot starve the others. Buckets idle for clientIdleTTL are dropped.
type ClientRateLimiter struct {
	rps   rate.Limit
	burst int
	now   func() time.Time

	mu        sync.Mutex
	clients   map[string]*clientBucket
	lastPrune time.Time
}

func NewClientRateLimiter(rps int) *ClientRateLimiter {
	return &ClientRateLimiter{
		rps:     rate.Limit(rps),
		burst:   rps,
		now:     time.Now,
		clients: make(map[string]*clientBucket),
	}
}

func (l *ClientRateLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastPrune) > clientIdleTTL {
		for k, b := range l.clients {
			if now.Sub(b.seen) > clientIdleTTL {
				delete(l.clients, k)
			}
		}
		l.lastPrune = now
	}

	b, ok := l.clients[key]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.clients[key] = b
	}
	b.seen = now
	return b.limiter.AllowN(now, 1)
}

func (l *ClientRateLimiter) clientCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

func (l *ClientRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
