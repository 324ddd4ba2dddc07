package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campuslib/internal/cache"
	"campuslib/internal/model"
)

func TestJWTService_AccessTokenRoundTrip(t *testing.T) {
	svc := NewJWTService("test-secret")
	userID := uuid.New()

	token, err := svc.GenerateAccessToken(userID, model.RoleFaculty)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.UserID)
	assert.Equal(t, model.RoleFaculty, claims.Role)
	assert.Equal(t, TokenTypeAccess, claims.TokenType)
	assert.NotEmpty(t, claims.ID)

	parsed, err := claims.UserUUID()
	require.NoError(t, err)
	assert.Equal(t, userID, parsed)

	_, err = svc.ValidateRefreshToken(token)
	assert.Error(t, err, "access tokens cannot refresh")
}

func TestJWTService_RejectsForeignAndExpiredTokens(t *testing.T) {
	svc := NewJWTService("test-secret")
	other := NewJWTService("other-secret")

	token, err := other.GenerateAccessToken(uuid.New(), model.RoleAdmin)
	require.NoError(t, err)
	_, err = svc.ValidateToken(token)
	assert.Error(t, err)

	issued := time.Now()
	svc.now = func() time.Time { return issued }
	token, err = svc.GenerateAccessToken(uuid.New(), model.RoleStudent)
	require.NoError(t, err)

	svc.now = func() time.Time { return issued.Add(AccessTokenExpiry + time.Minute) }
	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestJWTService_RejectsNoneAlgorithm(t *testing.T) {
	svc := NewJWTService("test-secret")
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: uuid.NewString()}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = svc.ValidateToken(unsigned)
	assert.Error(t, err)
}

func TestTokenStore_RefreshLifecycle(t *testing.T) {
	mr := miniredis.RunT(t)
	store := NewTokenStore(cache.New(mr.Addr(), "", 0))
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, store.StoreRefreshToken(ctx, "jti-1", userID, time.Hour))
	got, err := store.GetRefreshToken(ctx, "jti-1")
	require.NoError(t, err)
	assert.Equal(t, userID, got)

	require.NoError(t, store.DeleteRefreshToken(ctx, "jti-1"))
	_, err = store.GetRefreshToken(ctx, "jti-1")
	assert.ErrorIs(t, err, ErrRefreshTokenNotFound)
}

func TestTokenStore_Blacklist(t *testing.T) {
	mr := miniredis.RunT(t)
	store := NewTokenStore(cache.New(mr.Addr(), "", 0))
	ctx := context.Background()

	listed, err := store.IsAccessTokenBlacklisted(ctx, "jti-2")
	require.NoError(t, err)
	assert.False(t, listed)

	require.NoError(t, store.BlacklistAccessToken(ctx, "jti-2", time.Minute))
	listed, err = store.IsAccessTokenBlacklisted(ctx, "jti-2")
	require.NoError(t, err)
	assert.True(t, listed)

	mr.FastForward(2 * time.Minute)
	listed, _ = store.IsAccessTokenBlacklisted(ctx, "jti-2")
	assert.False(t, listed)
}
