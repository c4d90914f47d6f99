package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemHandler_Info(t *testing.T) {
	h := NewSystemHandler("haven-ledger", "1.2.0",
		HealthCheck{Name: "database", Check: func(context.Context) error { return nil }})
	c, w := newTestContext(http.MethodGet, "/system/info")

	h.Info(c)

	require.Equal(t, http.StatusOK, w.Code)
	info := decode[SystemInfoResponse](t, w).Data
	assert.Equal(t, "haven-ledger", info.Name)
	assert.Equal(t, "1.2.0", info.Version)
	assert.NotEmpty(t, info.GoVersion)
	assert.NotEmpty(t, info.Uptime)
	assert.Equal(t, []string{"database"}, info.Dependencies)
}

func TestSystemHandler_Ping(t *testing.T) {
	h := NewSystemHandler("haven-ledger", "1.2.0")
	c, w := newTestContext(http.MethodGet, "/system/ping")

	h.Ping(c)

	require.Equal(t, http.StatusOK, w.Code)
	pong := decode[PingResponse](t, w).Data
	assert.Equal(t, "pong", pong.Message)
	_, err := time.Parse(time.RFC3339, pong.Timestamp)
	assert.NoError(t, err)
}

func TestSystemHandler_Health(t *testing.T) {
	ok := HealthCheck{Name: "database", Check: func(context.Context) error { return nil }}
	down := HealthCheck{Name: "redis", Check: func(context.Context) error { return errors.New("connection refused") }}

	tests := []struct {
		name         string
		checks       []HealthCheck
		expectedCode int
		expected     map[string]string
	}{
		{"no dependencies", nil, http.StatusOK, map[string]string{}},
		{"all healthy", []HealthCheck{ok}, http.StatusOK, map[string]string{"database": "healthy"}},
		{"one down", []HealthCheck{ok, down}, http.StatusServiceUnavailable, map[string]string{"database": "healthy", "redis": "unhealthy"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewSystemHandler("haven-ledger", "dev", tt.checks...)
			c, w := newTestContext(http.MethodGet, "/health")

			h.Health(c)

			assert.Equal(t, tt.expectedCode, w.Code)
			var resp HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.expected, resp.Checks)
		})
	}

	t.Run("slow checks time out", func(t *testing.T) {
		slow := HealthCheck{Name: "s3", Check: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}}
		h := NewSystemHandler("haven-ledger", "dev", slow)
		h.timeout = 10 * time.Millisecond
		c, w := newTestContext(http.MethodGet, "/health")

		h.Health(c)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}
