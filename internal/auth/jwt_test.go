// AngelaMos | 2026
// jwt_test.go

package auth

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/licensegate/internal/config"
	"github.com/carterperez-dev/licensegate/internal/core"
)

func newTestTokenManager(t *testing.T, expire time.Duration) *TokenManager {
	t.Helper()

	dir := t.TempDir()
	privatePath := filepath.Join(dir, "private.pem")
	publicPath := filepath.Join(dir, "public.pem")

	require.NoError(t, GenerateKeyPair(privatePath, publicPath))

	tm, err := NewTokenManager(config.JWTConfig{
		PrivateKeyPath: privatePath,
		PublicKeyPath:  publicPath,
		TokenExpire:    expire,
		Issuer:         "licensegate-test",
		Audience:       "licensegate-clients",
	})
	require.NoError(t, err)

	return tm
}

func TestTokenManager_RoundTrip(t *testing.T) {
	tm := newTestTokenManager(t, time.Hour)

	token, expiresAt, err := tm.CreateSessionToken(SessionTokenClaims{
		UserID: "user-1",
		Email:  "trader@example.com",
		Role:   "user",
	})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	claims, err := tm.VerifySessionToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "trader@example.com", claims.Email)
	assert.Equal(t, "user", claims.Role)
}

func TestTokenManager_RejectsTamperedToken(t *testing.T) {
	tm := newTestTokenManager(t, time.Hour)

	token, _, err := tm.CreateSessionToken(SessionTokenClaims{
		UserID: "user-1",
		Email:  "trader@example.com",
		Role:   "user",
	})
	require.NoError(t, err)

	tampered := token[:len(token)-4] + "AAAA"

	_, err = tm.VerifySessionToken(tampered)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrTokenInvalid))
}

func TestTokenManager_RejectsExpiredToken(t *testing.T) {
	tm := newTestTokenManager(t, -time.Minute)

	token, _, err := tm.CreateSessionToken(SessionTokenClaims{
		UserID: "user-1",
		Email:  "trader@example.com",
		Role:   "user",
	})
	require.NoError(t, err)

	_, err = tm.VerifySessionToken(token)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrTokenExpired))
}

func TestTokenManager_RejectsForeignKey(t *testing.T) {
	issuer := newTestTokenManager(t, time.Hour)
	verifier := newTestTokenManager(t, time.Hour)

	token, _, err := issuer.CreateSessionToken(SessionTokenClaims{
		UserID: "user-1",
		Email:  "trader@example.com",
		Role:   "user",
	})
	require.NoError(t, err)

	_, err = verifier.VerifySessionToken(token)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrTokenInvalid))
}

func TestTokenManager_KeyID(t *testing.T) {
	tm := newTestTokenManager(t, time.Hour)
	assert.NotEmpty(t, tm.GetKeyID())
}
