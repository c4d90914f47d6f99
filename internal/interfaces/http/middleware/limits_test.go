package middleware

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRateLimiter(t *testing.T) {
	ctx := context.Background()

	t.Run("blocks requests exceeding limit", func(t *testing.T) {
		limiter := NewMemoryRateLimiter(3, time.Minute)

		for i := 0; i < 3; i++ {
			allowed, remaining, err := limiter.Allow(ctx, "caseworker-1")
			require.NoError(t, err)
			assert.True(t, allowed, "request %d should be allowed", i+1)
			assert.Equal(t, 2-i, remaining)
		}

		allowed, remaining, _ := limiter.Allow(ctx, "caseworker-1")
		assert.False(t, allowed)
		assert.Zero(t, remaining)
	})

	t.Run("separate limits per key", func(t *testing.T) {
		limiter := NewMemoryRateLimiter(1, time.Minute)

		allowed, _, _ := limiter.Allow(ctx, "a")
		assert.True(t, allowed)
		allowed, _, _ = limiter.Allow(ctx, "a")
		assert.False(t, allowed)
		allowed, _, _ = limiter.Allow(ctx, "b")
		assert.True(t, allowed)
	})

	t.Run("resets after window", func(t *testing.T) {
		limiter := NewMemoryRateLimiter(1, time.Minute)
		now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
		limiter.now = func() time.Time { return now }

		allowed, _, _ := limiter.Allow(ctx, "a")
		assert.True(t, allowed)
		allowed, _, _ = limiter.Allow(ctx, "a")
		assert.False(t, allowed)

		now = now.Add(time.Minute)
		allowed, _, _ = limiter.Allow(ctx, "a")
		assert.True(t, allowed)
	})

	t.Run("concurrent access is safe", func(t *testing.T) {
		limiter := NewMemoryRateLimiter(100, time.Minute)
		var wg sync.WaitGroup
		var mu sync.Mutex
		allowedCount := 0

		for i := 0; i < 150; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if ok, _, _ := limiter.Allow(ctx, "shared"); ok {
					mu.Lock()
					allowedCount++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 100, allowedCount)
	})
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (bool, int, error) {
	return false, 0, assert.AnError
}

func (failingLimiter) Limit() int { return 1 }

func TestRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newRouter := func(l Limiter) *gin.Engine {
		r := gin.New()
		r.Use(RateLimit(l, nil))
		r.GET("/api/v1/ledgers", func(c *gin.Context) { c.Status(http.StatusOK) })
		return r
	}

	t.Run("sets headers and rejects over limit", func(t *testing.T) {
		router := newRouter(NewMemoryRateLimiter(1, time.Minute))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/ledgers", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

		w = httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/ledgers", nil))
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Contains(t, w.Body.String(), "RATE_LIMITED")
	})

	t.Run("fails open when limiter errors", func(t *testing.T) {
		router := newRouter(failingLimiter{})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/ledgers", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("keys by authenticated user", func(t *testing.T) {
		r := gin.New()
		r.Use(HeaderIdentity(), RateLimit(NewMemoryRateLimiter(1, time.Minute), nil))
		r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

		for _, user := range []string{"cw-1", "cw-2"} {
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			req.Header.Set(HeaderUserID, user)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, http.StatusOK, w.Code, user)
		}
	})
}

func TestBodyLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newRouter := func(limit int64) *gin.Engine {
		r := gin.New()
		r.Use(BodyLimit(limit))
		r.POST("/test", func(c *gin.Context) {
			if _, err := io.ReadAll(c.Request.Body); err != nil {
				c.String(http.StatusBadRequest, "body too large")
				return
			}
			c.String(http.StatusOK, "ok")
		})
		return r
	}

	t.Run("allows request within limit", func(t *testing.T) {
		w := httptest.NewRecorder()
		newRouter(1024).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/test", bytes.NewReader([]byte("small body"))))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("rejects declared length over limit", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(strings.Repeat("x", 200)))
		w := httptest.NewRecorder()
		newRouter(100).ServeHTTP(w, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Contains(t, w.Body.String(), "REQUEST_TOO_LARGE")
	})

	t.Run("caps streamed bodies", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/test", io.NopCloser(strings.NewReader(strings.Repeat("x", 100))))
		req.ContentLength = -1
		w := httptest.NewRecorder()
		newRouter(50).ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
