package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/haven/ledger/internal/infrastructure/auth"
	"github.com/haven/ledger/internal/infrastructure/logger"
	"github.com/haven/ledger/internal/interfaces/http/dto"
	"github.com/haven/ledger/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// AuthHandler exposes the caller's session. Tokens are issued by the
// identity provider; this service only validates and revokes them.
type AuthHandler struct {
	BaseHandler
	revocations auth.RevocationList
	now         func() time.Time
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(revocations auth.RevocationList) *AuthHandler {
	return &AuthHandler{revocations: revocations, now: time.Now}
}

// CurrentUserResponse describes the authenticated caller
type CurrentUserResponse struct {
	Subject   string    `json:"subject" example:"cw-1042"`
	Name      string    `json:"name,omitempty" example:"Dana Ruiz"`
	Roles     []string  `json:"roles"`
	ExpiresAt time.Time `json:"expires_at"`
}

// LogoutResponse represents the logout response
type LogoutResponse struct {
	Message string `json:"message" example:"Logged out successfully"`
}

// GetCurrentUser godoc
// @Summary      Get the authenticated caller
// @Tags         auth
// @Produce      json
// @Success      200 {object} dto.Response{data=CurrentUserResponse}
// @Failure      401 {object} dto.Response
// @Security     BearerAuth
// @Router       /auth/me [get]
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		h.Error(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, "Authentication required")
		return
	}
	resp := CurrentUserResponse{
		Subject: claims.Subject,
		Name:    claims.Name,
		Roles:   claims.Roles,
	}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.Time
	}
	if resp.Roles == nil {
		resp.Roles = []string{}
	}
	h.Success(c, resp)
}

// Logout godoc
// @Summary      Revoke the current access token
// @Tags         auth
// @Produce      json
// @Success      200 {object} dto.Response{data=LogoutResponse}
// @Failure      401 {object} dto.Response
// @Security     BearerAuth
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil || claims.ID == "" {
		h.Error(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, "Authentication required")
		return
	}

	// The entry only needs to outlive the token itself
	if err := h.revocations.Revoke(c.Request.Context(), claims.ID, claims.RemainingTTL(h.now())); err != nil {
		logger.GetGinLogger(c).Error("Failed to revoke token", zap.String("jti", claims.ID), zap.Error(err))
		h.Error(c, http.StatusServiceUnavailable, dto.ErrCodeUnavailable, "Could not revoke token, try again")
		return
	}
	h.Success(c, LogoutResponse{Message: "Logged out successfully"})
}
