package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/haven/ledger/internal/infrastructure/logger"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestCORS(t *testing.T) {
	newRouter := func(origins ...string) *gin.Engine {
		cfg := DefaultCORSConfig()
		cfg.AllowOrigins = origins
		router := gin.New()
		router.Use(CORS(cfg))
		router.GET("/test", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
		return router
	}

	tests := []struct {
		name        string
		origins     []string
		method      string
		origin      string
		wantStatus  int
		wantAllow   string
		wantCredent string
	}{
		{"empty whitelist sets no headers", nil, http.MethodGet, "http://evil.example", http.StatusOK, "", ""},
		{"listed origin is echoed", []string{"https://case.haven.org"}, http.MethodGet, "https://case.haven.org", http.StatusOK, "https://case.haven.org", "true"},
		{"unlisted origin is ignored", []string{"https://case.haven.org"}, http.MethodGet, "https://other.org", http.StatusOK, "", ""},
		{"wildcard never sends credentials", []string{"*"}, http.MethodGet, "https://any.org", http.StatusOK, "*", ""},
		{"preflight for listed origin", []string{"https://case.haven.org"}, http.MethodOptions, "https://case.haven.org", http.StatusNoContent, "https://case.haven.org", "true"},
		{"preflight for unlisted origin", []string{"https://case.haven.org"}, http.MethodOptions, "https://other.org", http.StatusNoContent, "", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/test", nil)
			req.Header.Set("Origin", tc.origin)
			w := httptest.NewRecorder()
			newRouter(tc.origins...).ServeHTTP(w, req)

			assert.Equal(t, tc.wantStatus, w.Code)
			assert.Equal(t, tc.wantAllow, w.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tc.wantCredent, w.Header().Get("Access-Control-Allow-Credentials"))
			if tc.wantAllow != "" {
				assert.Equal(t, "43200", w.Header().Get("Access-Control-Max-Age"))
				assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), HeaderUserID)
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/test", func(c *gin.Context) {
		assert.Equal(t, GetRequestID(c), logger.GetRequestID(c.Request.Context()))
		c.String(http.StatusOK, GetRequestID(c))
	})

	t.Run("generates id when absent", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		id := w.Header().Get(HeaderRequestID)
		_, err := uuid.Parse(id)
		assert.NoError(t, err)
		assert.Equal(t, id, w.Body.String())
	})

	t.Run("propagates incoming id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(HeaderRequestID, "upstream-123")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, "upstream-123", w.Header().Get(HeaderRequestID))
	})

	t.Run("replaces oversized id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(HeaderRequestID, strings.Repeat("a", 200))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Len(t, w.Header().Get(HeaderRequestID), 36)
	})
}

func TestSecure(t *testing.T) {
	tests := []struct {
		name     string
		cfg      SecurityConfig
		wantHSTS string
	}{
		{"without hsts", SecurityConfig{}, ""},
		{"hsts with default max age", SecurityConfig{HSTSEnabled: true}, "max-age=31536000; includeSubDomains"},
		{"hsts with custom max age", SecurityConfig{HSTSEnabled: true, HSTSMaxAge: int((24 * time.Hour).Seconds())}, "max-age=86400; includeSubDomains"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			router := gin.New()
			router.Use(Secure(tc.cfg))
			router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

			assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
			assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
			assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
			assert.Contains(t, w.Header().Get("Content-Security-Policy"), "default-src 'none'")
			assert.Equal(t, tc.wantHSTS, w.Header().Get("Strict-Transport-Security"))
		})
	}
}
