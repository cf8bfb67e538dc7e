package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterStore keeps one token bucket per client key.
type limiterStore struct {
	mu       sync.Mutex
	r        rate.Limit
	b        int
	visitors map[string]*visitor
}

func (s *limiterStore) get(key string, now time.Time) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(s.r, s.b)}
		s.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter
}

func (s *limiterStore) evict(cutoff time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range s.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(s.visitors, k)
		}
	}
}

// rateKey buckets authenticated requests per user and the rest per IP.
func rateKey(c *gin.Context) string {
	if uid := GetUserID(c); uid != 0 {
		return "u:" + strconv.FormatInt(uid, 10)
	}
	return "ip:" + c.ClientIP()
}

// RateLimit provides token-bucket rate limiting, r requests per second with
// burst b. A non-positive r disables limiting.
func RateLimit(r rate.Limit, b int) gin.HandlerFunc {
	if r <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if b < 1 {
		b = 1
	}
	store := &limiterStore{r: r, b: b, visitors: make(map[string]*visitor)}

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for now := range ticker.C {
			store.evict(now.Add(-10 * time.Minute))
		}
	}()

	return func(c *gin.Context) {
		if !store.get(rateKey(c), time.Now()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "RATE_LIMITED", "message": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
