package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/haven/ledger/internal/domain/shared"
	"github.com/haven/ledger/internal/infrastructure/logger"
	"github.com/haven/ledger/internal/interfaces/http/dto"
	"github.com/haven/ledger/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// BaseHandler holds the response and parameter helpers every handler
// shares.
type BaseHandler struct{}

func (h *BaseHandler) Success(c *gin.Context, data any) { c.JSON(http.StatusOK, dto.OK(data)) }

func (h *BaseHandler) Created(c *gin.Context, data any) { c.JSON(http.StatusCreated, dto.OK(data)) }

func (h *BaseHandler) NoContent(c *gin.Context) { c.Status(http.StatusNoContent) }

// Page writes one page of a list with its pagination meta
func (h *BaseHandler) Page(c *gin.Context, data any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.Paged(data, total, page, pageSize))
}

// Error writes an error envelope tagged with the request id
func (h *BaseHandler) Error(c *gin.Context, status int, code, message string) {
	c.JSON(status, dto.Fail(code, message, middleware.GetRequestID(c)))
}

// HandleError writes domain errors with their mapped status. Anything
// else is logged and answered with a generic 500.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	var de *shared.DomainError
	if errors.As(err, &de) {
		code := dto.NormalizeErrorCode(de.Code)
		h.Error(c, dto.GetHTTPStatus(code), code, de.Message)
		return
	}
	logger.GetGinLogger(c).Error("Request failed", zap.Error(err))
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, "An unexpected error occurred")
}

// BindJSON binds the body into req. On failure the validation error has
// been written and the handler should return.
func (h *BaseHandler) BindJSON(c *gin.Context, req any) bool {
	return h.bound(c, c.ShouldBindJSON(req))
}

// BindQuery is BindJSON for query parameters
func (h *BaseHandler) BindQuery(c *gin.Context, req any) bool {
	return h.bound(c, c.ShouldBindQuery(req))
}

func (h *BaseHandler) bound(c *gin.Context, err error) bool {
	if err != nil {
		middleware.HandleValidationError(c, err)
		return false
	}
	return true
}

// PathUUID parses a required UUID path parameter
func (h *BaseHandler) PathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidID, fmt.Sprintf("Invalid %s format", name))
		return uuid.Nil, false
	}
	return id, true
}

// QueryUUID parses an optional UUID query parameter; nil when absent
func (h *BaseHandler) QueryUUID(c *gin.Context, name string) (*uuid.UUID, bool) {
	raw, present := c.GetQuery(name)
	if !present || raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidID, fmt.Sprintf("Invalid %s format", name))
		return nil, false
	}
	return &id, true
}

// QueryDate parses an optional YYYY-MM-DD query parameter; zero when absent
func (h *BaseHandler) QueryDate(c *gin.Context, name string) (time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return time.Time{}, true
	}
	d, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, fmt.Sprintf("Invalid %s: expected YYYY-MM-DD", name))
		return time.Time{}, false
	}
	return d, true
}

// recordedBy is the caller recorded on ledger changes. Anonymous writes
// are rejected with 401.
func (h *BaseHandler) recordedBy(c *gin.Context) (string, bool) {
	if user := middleware.RecordedBy(c); user != "" {
		return user, true
	}
	h.Error(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, "Caller identity is required for ledger changes")
	return "", false
}

// pageParams clamps list paging to [1, MaxPageSize]
func pageParams(page, pageSize int) (int, int) {
	page = max(page, 1)
	if pageSize <= 0 {
		return page, dto.DefaultPageSize
	}
	return page, min(pageSize, dto.MaxPageSize)
}
