package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/haven/ledger/internal/infrastructure/auth"
	"github.com/haven/ledger/internal/interfaces/http/dto"
	"github.com/haven/ledger/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingRevocations struct{}

func (failingRevocations) Revoke(context.Context, string, time.Duration) error {
	return errors.New("redis: connection refused")
}

func (failingRevocations) IsRevoked(context.Context, string) (bool, error) {
	return false, nil
}

func testClaims(now time.Time) *auth.Claims {
	return &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "jti-1",
			Subject:   testUser,
			ExpiresAt: jwt.NewNumericDate(now.Add(10 * time.Minute)),
		},
		Name:  "Dana Ruiz",
		Roles: []string{auth.RoleCaseworker},
	}
}

func TestAuthHandler_GetCurrentUser(t *testing.T) {
	h := NewAuthHandler(auth.NewInMemoryRevocationList())

	t.Run("with claims", func(t *testing.T) {
		c, w := newTestContext(http.MethodGet, "/auth/me")
		c.Set(middleware.ClaimsKey, testClaims(time.Now()))

		h.GetCurrentUser(c)

		require.Equal(t, http.StatusOK, w.Code)
		me := decode[CurrentUserResponse](t, w).Data
		assert.Equal(t, testUser, me.Subject)
		assert.Equal(t, []string{auth.RoleCaseworker}, me.Roles)
		assert.False(t, me.ExpiresAt.IsZero())
	})

	t.Run("without claims", func(t *testing.T) {
		c, w := newTestContext(http.MethodGet, "/auth/me")
		h.GetCurrentUser(c)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestAuthHandler_Logout(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	t.Run("revokes until expiry", func(t *testing.T) {
		revocations := auth.NewInMemoryRevocationList()
		h := NewAuthHandler(revocations)
		h.now = func() time.Time { return now }

		c, w := newTestContext(http.MethodPost, "/auth/logout")
		c.Set(middleware.ClaimsKey, testClaims(now))

		h.Logout(c)

		require.Equal(t, http.StatusOK, w.Code)
		revoked, err := revocations.IsRevoked(context.Background(), "jti-1")
		require.NoError(t, err)
		assert.True(t, revoked)
	})

	t.Run("store failure", func(t *testing.T) {
		h := NewAuthHandler(failingRevocations{})
		h.now = func() time.Time { return now }
		c, w := newTestContext(http.MethodPost, "/auth/logout")
		c.Set(middleware.ClaimsKey, testClaims(now))

		h.Logout(c)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, dto.ErrCodeUnavailable, errorCode(t, w))
	})

	t.Run("anonymous", func(t *testing.T) {
		h := NewAuthHandler(auth.NewInMemoryRevocationList())
		c, w := newTestContext(http.MethodPost, "/auth/logout")
		h.Logout(c)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
