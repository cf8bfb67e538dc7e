package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func newRateLimitRouter(r rate.Limit, b int) *gin.Engine {
	eng := gin.New()
	eng.Use(RateLimit(r, b))
	eng.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })
	return eng
}

func TestRateLimit_AllowsFirst(t *testing.T) {
	r := newRateLimitRouter(100, 5)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Real-IP", "10.0.0.1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimit_Burst(t *testing.T) {
	// Burst of 3, then reject
	r := newRateLimitRouter(0.001, 3) // near-zero refill so we exhaust quickly
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Real-IP", "10.0.1.1")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, "request %d should be allowed", i+1)
	}
	// 4th request should be rejected
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Real-IP", "10.0.1.1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestRateLimit_PerIP(t *testing.T) {
	// Two IPs with burst=1 each → each gets one allowed request
	r := newRateLimitRouter(0.001, 1)

	for _, ip := range []string{"10.1.1.1", "10.1.1.2"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Real-IP", ip)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, "first request from %s should be OK", ip)
	}

	// Second request from first IP should be rejected
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Real-IP", "10.1.1.1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestRateLimit_Disabled(t *testing.T) {
	r := newRateLimitRouter(0, 0)
	for i := 0; i < 10; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Real-IP", "10.2.2.2")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestRateLimit_PerUser(t *testing.T) {
	eng := gin.New()
	eng.Use(func(c *gin.Context) {
		if uid := c.GetHeader("X-Test-User"); uid != "" {
			id, _ := strconv.ParseInt(uid, 10, 64)
			c.Set(UserIDKey, id)
		}
		c.Next()
	})
	eng.Use(RateLimit(0.001, 1))
	eng.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	// Two users behind one IP get separate buckets.
	for _, uid := range []string{"1", "2"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Real-IP", "10.3.3.3")
		req.Header.Set("X-Test-User", uid)
		w := httptest.NewRecorder()
		eng.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, "user %s", uid)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Real-IP", "10.3.3.3")
	req.Header.Set("X-Test-User", "1")
	w := httptest.NewRecorder()
	eng.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}
