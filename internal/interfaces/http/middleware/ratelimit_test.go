package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newTestLimiter(t *testing.T, limit int, period time.Duration, clock *time.Time) *RateLimiter {
	t.Helper()
	rl := NewRateLimiter(limit, period)
	t.Cleanup(rl.Stop)
	if clock != nil {
		rl.now = func() time.Time { return *clock }
	}
	return rl
}

func TestRateLimiter(t *testing.T) {
	t.Run("allows requests within limit", func(t *testing.T) {
		limiter := newTestLimiter(t, 5, time.Minute, nil)
		for i := 0; i < 5; i++ {
			assert.True(t, limiter.Allow("client1"), "request %d should be allowed", i+1)
		}
		assert.False(t, limiter.Allow("client1"))
	})

	t.Run("separate limits per client", func(t *testing.T) {
		limiter := newTestLimiter(t, 2, time.Minute, nil)
		assert.True(t, limiter.Allow("clientA"))
		assert.True(t, limiter.Allow("clientA"))
		assert.False(t, limiter.Allow("clientA"))
		assert.True(t, limiter.Allow("clientB"))
	})

	t.Run("resets after window", func(t *testing.T) {
		clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		limiter := newTestLimiter(t, 1, time.Minute, &clock)
		assert.True(t, limiter.Allow("client3"))

		ok, wait := limiter.Take("client3")
		assert.False(t, ok)
		assert.Equal(t, time.Minute, wait)

		clock = clock.Add(45 * time.Second)
		_, wait = limiter.Take("client3")
		assert.Equal(t, 15*time.Second, wait)

		clock = clock.Add(15 * time.Second)
		assert.True(t, limiter.Allow("client3"))
	})

	t.Run("remaining", func(t *testing.T) {
		limiter := newTestLimiter(t, 3, time.Minute, nil)
		assert.Equal(t, 3, limiter.Remaining("client4"))
		limiter.Allow("client4")
		assert.Equal(t, 2, limiter.Remaining("client4"))
	})

	t.Run("concurrent access", func(t *testing.T) {
		limiter := newTestLimiter(t, 100, time.Minute, nil)
		var wg sync.WaitGroup
		var mu sync.Mutex
		allowed := 0
		for i := 0; i < 150; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if limiter.Allow("shared") {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 100, allowed)
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := newTestLimiter(t, 2, time.Minute, nil)
	router := gin.New()
	router.POST("/auth/login", RateLimit(limiter), func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	rec := do()
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, http.StatusOK, do().Code)

	rec = do()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "ERR_RATE_LIMITED", errorCode(t, rec))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestRateLimitByKey(t *testing.T) {
	limiter := newTestLimiter(t, 1, time.Minute, nil)
	router := gin.New()
	router.GET("/ask", RateLimitByKey(limiter, func(c *gin.Context) string { return c.GetHeader("X-Key") }),
		func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func(key string) int {
		req := httptest.NewRequest(http.MethodGet, "/ask", nil)
		req.Header.Set("X-Key", key)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, do("a"))
	assert.Equal(t, http.StatusTooManyRequests, do("a"))
	assert.Equal(t, http.StatusOK, do("b"))
}
