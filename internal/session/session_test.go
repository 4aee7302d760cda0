package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, userID string, expiresAt time.Time) string {
	t.Helper()
	claims := Claims{
		UserID: userID,
		Email:  userID + "@example.com",
		Role:   "customer",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   userID,
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

// ============================================
// Credential Tests
// ============================================

func TestContext_NoCredential(t *testing.T) {
	ctx := NewContext()

	_, err := ctx.Credential()

	assert.ErrorIs(t, err, ErrNoCredential)
	assert.False(t, ctx.IsAuthenticated())
}

func TestContext_SetCredential_Valid(t *testing.T) {
	ctx := NewContext()
	token := signedToken(t, "user-123", time.Now().Add(time.Hour))

	require.NoError(t, ctx.SetCredential(token))

	got, err := ctx.Credential()
	require.NoError(t, err)
	assert.Equal(t, token, got)
	assert.True(t, ctx.IsAuthenticated())
	assert.Equal(t, "user-123", ctx.UserID())
}

func TestContext_SetCredential_Garbage(t *testing.T) {
	ctx := NewContext()

	err := ctx.SetCredential("not-a-jwt")

	assert.ErrorIs(t, err, ErrNoCredential)
}

func TestContext_Credential_Expired(t *testing.T) {
	ctx := NewContext()
	token := signedToken(t, "user-123", time.Now().Add(time.Hour))
	require.NoError(t, ctx.SetCredential(token))

	// Move the clock past the token's expiry.
	ctx.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	_, err := ctx.Credential()
	assert.ErrorIs(t, err, ErrNoCredential)
	assert.False(t, ctx.IsAuthenticated())
}

// ============================================
// Invalidation Tests
// ============================================

func TestContext_Invalidate_DropsCredential(t *testing.T) {
	ctx := NewContext()
	require.NoError(t, ctx.SetCredential(signedToken(t, "user-123", time.Now().Add(time.Hour))))

	ctx.Invalidate()

	_, err := ctx.Credential()
	assert.ErrorIs(t, err, ErrNoCredential)
	assert.Empty(t, ctx.UserID())
}

func TestContext_Invalidate_NotifiesSubscribers(t *testing.T) {
	ctx := NewContext()
	require.NoError(t, ctx.SetCredential(signedToken(t, "user-123", time.Now().Add(time.Hour))))

	first := ctx.Revoked()
	second := ctx.Revoked()

	ctx.Invalidate()

	select {
	case <-first:
	case <-time.After(time.Second):
		t.Fatal("first subscriber not notified")
	}
	select {
	case <-second:
	case <-time.After(time.Second):
		t.Fatal("second subscriber not notified")
	}
}

func TestContext_Revoked_AfterInvalidation_FiresOnNext(t *testing.T) {
	ctx := NewContext()
	ctx.Invalidate()

	ch := ctx.Revoked()
	select {
	case <-ch:
		t.Fatal("channel fired without a new invalidation")
	default:
	}

	ctx.Invalidate()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("subscriber not notified on next invalidation")
	}
}
