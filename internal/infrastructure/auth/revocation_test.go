package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRevocationList(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	list := NewInMemoryRevocationList()
	list.now = func() time.Time { return now }

	revoked, err := list.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, list.Revoke(ctx, "jti-1", time.Minute))
	revoked, err = list.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	// zero ttl means the token has already expired
	require.NoError(t, list.Revoke(ctx, "jti-2", 0))
	revoked, _ = list.IsRevoked(ctx, "jti-2")
	assert.False(t, revoked)

	now = now.Add(2 * time.Minute)
	revoked, _ = list.IsRevoked(ctx, "jti-1")
	assert.False(t, revoked)
	assert.Empty(t, list.revoked)
}
