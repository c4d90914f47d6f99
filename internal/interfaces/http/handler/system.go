package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/haven/ledger/internal/infrastructure/logger"
	"github.com/haven/ledger/internal/interfaces/http/dto"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
)

// HealthCheck probes one dependency
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// SystemHandler serves liveness and build information
type SystemHandler struct {
	BaseHandler
	name    string
	version string
	checks  []HealthCheck
	timeout time.Duration
	started time.Time
}

// NewSystemHandler creates a SystemHandler reporting on checks
func NewSystemHandler(name, version string, checks ...HealthCheck) *SystemHandler {
	return &SystemHandler{
		name:    name,
		version: version,
		checks:  checks,
		timeout: 3 * time.Second,
		started: time.Now(),
	}
}

// SystemInfoResponse describes the running service
type SystemInfoResponse struct {
	Name         string   `json:"name" example:"haven-ledger"`
	Version      string   `json:"version" example:"1.0.0"`
	GoVersion    string   `json:"go_version" example:"go1.25.5"`
	Uptime       string   `json:"uptime" example:"1h30m45s"`
	Dependencies []string `json:"dependencies"`
}

// HealthResponse maps each dependency to healthy or unhealthy
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// PingResponse answers /system/ping
type PingResponse struct {
	Message   string `json:"message" example:"pong"`
	Timestamp string `json:"timestamp" example:"2026-01-23T12:00:00Z"`
}

// probe runs every check in parallel under the handler timeout and returns
// the failures by name.
func (h *SystemHandler) probe(ctx context.Context) map[string]error {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	errs := make([]error, len(h.checks))
	var g errgroup.Group
	for i := range h.checks {
		g.Go(func() error {
			errs[i] = h.checks[i].Check(ctx)
			return nil
		})
	}
	_ = g.Wait()

	failed := make(map[string]error)
	for i, err := range errs {
		if err != nil {
			failed[h.checks[i].Name] = err
		}
	}
	return failed
}

// Health answers 200 when every dependency responds and 503 otherwise
func (h *SystemHandler) Health(c *gin.Context) {
	failed := h.probe(c.Request.Context())

	resp := HealthResponse{Status: statusHealthy, Checks: make(map[string]string, len(h.checks))}
	for _, check := range h.checks {
		resp.Checks[check.Name] = statusHealthy
	}
	for name, err := range failed {
		logger.GetGinLogger(c).Warn("Health check failed", zap.String("check", name), zap.Error(err))
		resp.Checks[name] = statusUnhealthy
		resp.Status = statusUnhealthy
	}

	status := http.StatusOK
	if len(failed) > 0 {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}

// Info godoc
// @ID           getSystemInfo
// @Summary      Get service information
// @Tags         system
// @Produce      json
// @Success      200 {object} dto.Response{data=SystemInfoResponse}
// @Router       /system/info [get]
func (h *SystemHandler) Info(c *gin.Context) {
	deps := make([]string, 0, len(h.checks))
	for _, check := range h.checks {
		deps = append(deps, check.Name)
	}
	h.Success(c, SystemInfoResponse{
		Name:         h.name,
		Version:      h.version,
		GoVersion:    runtime.Version(),
		Uptime:       time.Since(h.started).Round(time.Second).String(),
		Dependencies: deps,
	})
}

// Ping answers pong with the server time
func (h *SystemHandler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, dto.OK(PingResponse{
		Message:   "pong",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}))
}
