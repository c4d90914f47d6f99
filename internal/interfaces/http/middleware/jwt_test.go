package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/haven/ledger/internal/infrastructure/auth"
	"github.com/haven/ledger/internal/infrastructure/config"
	"github.com/haven/ledger/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-at-least-32-chars"

func newTestJWTService() *auth.JWTService {
	return auth.NewJWTService(config.JWTConfig{
		Enabled:               true,
		Secret:                testSecret,
		Issuer:                "haven-idp",
		AccessTokenExpiration: 15 * time.Minute,
	})
}

func issue(t *testing.T, svc *auth.JWTService, subject string, roles ...string) string {
	t.Helper()
	token, _, err := svc.IssueAccessToken(subject, "Test User", roles)
	require.NoError(t, err)
	return token
}

func newAuthRouter(cfg AuthConfig, handler gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(RequestID(), Authenticate(cfg))
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/api/v1/ledgers", handler)
	return router
}

func serve(router *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/ledgers", nil)
	if header != "" {
		req.Header.Set(AuthHeaderKey, header)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) dto.ErrorInfo {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	return *resp.Error
}

func TestAuthenticate_ValidToken(t *testing.T) {
	svc := newTestJWTService()
	token := issue(t, svc, "cw-42", auth.RoleCaseworker)

	router := newAuthRouter(AuthConfig{Validator: svc}, func(c *gin.Context) {
		claims := GetClaims(c)
		require.NotNil(t, claims)
		assert.Equal(t, "cw-42", claims.Subject)
		assert.Equal(t, "cw-42", RecordedBy(c))
		c.Status(http.StatusOK)
	})

	rec := serve(router, "Bearer "+token)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthenticate_Rejections(t *testing.T) {
	svc := newTestJWTService()

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "cw-1",
			Issuer:    "haven-idp",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	expiredToken, err := expired.SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name     string
		header   string
		wantCode string
	}{
		{"missing header", "", dto.ErrCodeUnauthorized},
		{"wrong scheme", "Basic abc", dto.ErrCodeUnauthorized},
		{"empty bearer", "Bearer ", dto.ErrCodeUnauthorized},
		{"garbage token", "Bearer not-a-token", dto.ErrCodeTokenInvalid},
		{"expired token", "Bearer " + expiredToken, dto.ErrCodeTokenExpired},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			router := newAuthRouter(AuthConfig{Validator: svc}, func(c *gin.Context) {
				t.Fatal("handler must not run")
			})

			rec := serve(router, tc.header)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			errInfo := decodeError(t, rec)
			assert.Equal(t, tc.wantCode, errInfo.Code)
			assert.NotEmpty(t, errInfo.RequestID)
		})
	}
}

func TestAuthenticate_SkipPaths(t *testing.T) {
	router := newAuthRouter(AuthConfig{Validator: newTestJWTService()}, func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthenticate_RevokedToken(t *testing.T) {
	svc := newTestJWTService()
	token := issue(t, svc, "cw-7")
	claims, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)

	revocations := auth.NewInMemoryRevocationList()
	router := newAuthRouter(AuthConfig{Validator: svc, Revocations: revocations}, func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	assert.Equal(t, http.StatusOK, serve(router, "Bearer "+token).Code)

	require.NoError(t, revocations.Revoke(context.Background(), claims.ID, time.Minute))
	rec := serve(router, "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Token has been revoked", decodeError(t, rec).Message)
}

func TestHeaderIdentity(t *testing.T) {
	router := gin.New()
	router.Use(HeaderIdentity())
	router.GET("/x", func(c *gin.Context) {
		c.String(http.StatusOK, RecordedBy(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderUserID, " cw-9 ")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, "cw-9", rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Empty(t, rec.Body.String())
}

func TestRequireRole(t *testing.T) {
	svc := newTestJWTService()

	newRouter := func() *gin.Engine {
		router := gin.New()
		router.Use(Authenticate(AuthConfig{Validator: svc}))
		router.DELETE("/api/v1/ledgers/:id", RequireRole(auth.RoleSupervisor), func(c *gin.Context) {
			c.Status(http.StatusNoContent)
		})
		return router
	}

	tests := []struct {
		name   string
		roles  []string
		status int
	}{
		{"supervisor allowed", []string{auth.RoleSupervisor}, http.StatusNoContent},
		{"caseworker forbidden", []string{auth.RoleCaseworker}, http.StatusForbidden},
		{"no roles forbidden", nil, http.StatusForbidden},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodDelete, "/api/v1/ledgers/abc", nil)
			req.Header.Set(AuthHeaderKey, "Bearer "+issue(t, svc, "user-1", tc.roles...))
			rec := httptest.NewRecorder()
			newRouter().ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
		})
	}

	t.Run("inert without claims", func(t *testing.T) {
		router := gin.New()
		router.GET("/x", RequireRole(auth.RoleSupervisor), func(c *gin.Context) { c.Status(http.StatusOK) })
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
