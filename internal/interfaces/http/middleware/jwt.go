package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/haven/ledger/internal/infrastructure/auth"
	"github.com/haven/ledger/internal/infrastructure/logger"
	"github.com/haven/ledger/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

const (
	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "
)

// TokenValidator validates bearer tokens. *auth.JWTService implements it.
type TokenValidator interface {
	ValidateAccessToken(token string) (*auth.Claims, error)
}

// AuthConfig holds configuration for the authentication middleware
type AuthConfig struct {
	Validator TokenValidator
	// Revocations is optional; lookups that fail let the request through.
	Revocations auth.RevocationList
	SkipPaths   []string
	Logger      *zap.Logger
}

// DefaultSkipPaths are reachable without a token
var DefaultSkipPaths = []string{"/health", "/api/v1/system/ping"}

// Authenticate validates the bearer token and stores its claims. The token
// subject becomes the user id recorded on ledger changes.
func Authenticate(cfg AuthConfig) gin.HandlerFunc {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	skip := cfg.SkipPaths
	if skip == nil {
		skip = DefaultSkipPaths
	}

	return func(c *gin.Context) {
		for _, p := range skip {
			if c.Request.URL.Path == p {
				c.Next()
				return
			}
		}

		header := c.GetHeader(AuthHeaderKey)
		if !strings.HasPrefix(header, BearerPrefix) || strings.TrimSpace(strings.TrimPrefix(header, BearerPrefix)) == "" {
			abortUnauthorized(c, log, errMissingCredentials, "missing bearer token")
			return
		}

		claims, err := cfg.Validator.ValidateAccessToken(strings.TrimSpace(strings.TrimPrefix(header, BearerPrefix)))
		if err != nil {
			abortUnauthorized(c, log, err, "token validation failed")
			return
		}

		if cfg.Revocations != nil && claims.ID != "" {
			revoked, err := cfg.Revocations.IsRevoked(c.Request.Context(), claims.ID)
			switch {
			case err != nil:
				log.Error("Failed to check token revocation", zap.String("jti", claims.ID), zap.Error(err))
			case revoked:
				abortUnauthorized(c, log, auth.ErrTokenRevoked, "token revoked")
				return
			}
		}

		c.Set(ClaimsKey, claims)
		c.Set(UserIDKey, claims.Subject)

		ctx, _ := logger.WithUserID(c.Request.Context(), logger.FromContext(c.Request.Context()), claims.Subject)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// HeaderIdentity is used instead of Authenticate when JWT is disabled. The
// caller names itself with X-User-ID.
func HeaderIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID := strings.TrimSpace(c.GetHeader(HeaderUserID)); userID != "" {
			c.Set(UserIDKey, userID)
			ctx, _ := logger.WithUserID(c.Request.Context(), logger.FromContext(c.Request.Context()), userID)
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}

// RequireRole rejects authenticated callers that hold none of the roles.
// Requests without claims pass, so the gate is inert when JWT is disabled.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil || claims.HasAnyRole(roles...) {
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusForbidden, dto.Fail(
			dto.ErrCodeForbidden, "Insufficient role for this operation", GetRequestID(c)))
	}
}

// GetClaims returns the validated token claims, or nil
func GetClaims(c *gin.Context) *auth.Claims {
	if v, ok := c.Get(ClaimsKey); ok {
		if claims, ok := v.(*auth.Claims); ok {
			return claims
		}
	}
	return nil
}

// RecordedBy returns the identity recorded as the author of ledger changes
func RecordedBy(c *gin.Context) string {
	return c.GetString(UserIDKey)
}

// errMissingCredentials is an absent or malformed Authorization header
var errMissingCredentials = errors.New("missing bearer credentials")

func abortUnauthorized(c *gin.Context, log *zap.Logger, err error, reason string) {
	log.Warn("Authentication failed",
		zap.Error(err),
		zap.String("reason", reason),
		zap.String("path", c.Request.URL.Path),
	)

	code, message := dto.ErrCodeUnauthorized, "Authentication required"
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		code, message = dto.ErrCodeTokenExpired, "Token has expired"
	case errors.Is(err, auth.ErrTokenRevoked):
		code, message = dto.ErrCodeTokenInvalid, "Token has been revoked"
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrInvalidClaims),
		errors.Is(err, auth.ErrTokenNotYetValid), errors.Is(err, auth.ErrMissingSubject):
		code, message = dto.ErrCodeTokenInvalid, "Invalid token"
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, dto.Fail(code, message, GetRequestID(c)))
}
