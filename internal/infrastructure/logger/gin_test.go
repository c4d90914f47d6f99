package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newLoggedRouter(t *testing.T) (*gin.Engine, *observer.ObservedLogs) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.DebugLevel)
	base := zap.New(core)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		ctx, _ := WithRequestID(c.Request.Context(), zap.NewNop(), "req-42")
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})
	r.Use(GinMiddleware(base), Recovery(base))
	return r, logs
}

func accessLog(t *testing.T, logs *observer.ObservedLogs) observer.LoggedEntry {
	t.Helper()
	entries := logs.FilterMessage("HTTP request").All()
	require.Len(t, entries, 1)
	return entries[0]
}

func TestGinMiddleware(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantLevel zapcore.Level
	}{
		{"ok", http.StatusOK, zapcore.InfoLevel},
		{"client error", http.StatusConflict, zapcore.WarnLevel},
		{"server error", http.StatusServiceUnavailable, zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, logs := newLoggedRouter(t)
			r.GET("/api/v1/ledgers", func(c *gin.Context) { c.Status(tt.status) })

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/ledgers", nil))
			assert.Equal(t, tt.status, w.Code)

			entry := accessLog(t, logs)
			assert.Equal(t, tt.wantLevel, entry.Level)
			fields := entry.ContextMap()
			assert.Equal(t, "req-42", fields["request_id"])
			assert.Equal(t, "/api/v1/ledgers", fields["route"])
			assert.EqualValues(t, tt.status, fields["status"])
		})
	}
}

func TestGinMiddleware_LedgerAndUser(t *testing.T) {
	r, logs := newLoggedRouter(t)
	r.POST("/api/v1/ledgers/:id/payments", func(c *gin.Context) {
		ctx, _ := WithUserID(c.Request.Context(), FromContext(c.Request.Context()), "cw-3")
		c.Request = c.Request.WithContext(ctx)

		assert.Equal(t, "ledger-7", GetLedgerID(c.Request.Context()))
		GetGinLogger(c).Info("handler")
		c.Status(http.StatusCreated)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/ledgers/ledger-7/payments", nil))
	require.Equal(t, http.StatusCreated, w.Code)

	handlerLog := logs.FilterMessage("handler").All()
	require.Len(t, handlerLog, 1)
	assert.Equal(t, "cw-3", handlerLog[0].ContextMap()["user_id"])

	fields := accessLog(t, logs).ContextMap()
	assert.Equal(t, "ledger-7", fields["ledger_id"])
	assert.Equal(t, "cw-3", fields["user_id"])
}

func TestRecovery(t *testing.T) {
	r, logs := newLoggedRouter(t)
	r.GET("/boom", func(c *gin.Context) { panic("ledger exploded") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")

	panics := logs.FilterMessage("Panic recovered").All()
	require.Len(t, panics, 1)
	assert.Equal(t, "req-42", panics[0].ContextMap()["request_id"])
	assert.Equal(t, zapcore.ErrorLevel, accessLog(t, logs).Level)
}

func TestGetGinLogger_NoRequestLogger(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	assert.NotNil(t, GetGinLogger(c))
}
