// AngelaMos | 2026
// security_test.go

package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword_VerifyRoundTrip(t *testing.T) {
	hash, err := HashPassword("CorrectHorse9")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$"))

	valid, err := VerifyPassword("CorrectHorse9", hash)
	require.NoError(t, err)
	assert.True(t, valid)

	valid, err = VerifyPassword("WrongHorse9", hash)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestHashPassword_UniqueSalts(t *testing.T) {
	first, err := HashPassword("CorrectHorse9")
	require.NoError(t, err)

	second, err := HashPassword("CorrectHorse9")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestVerifyPassword_MalformedHash(t *testing.T) {
	_, err := VerifyPassword("anything", "not-a-hash")
	assert.Error(t, err)
}

func TestVerifyPasswordTimingSafe_NilHash(t *testing.T) {
	valid, err := VerifyPasswordTimingSafe("anything", nil)
	require.NoError(t, err)
	assert.False(t, valid)

	empty := ""
	valid, err = VerifyPasswordTimingSafe("anything", &empty)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestVerifyPasswordTimingSafe_RealHash(t *testing.T) {
	hash, err := HashPassword("CorrectHorse9")
	require.NoError(t, err)

	valid, err := VerifyPasswordTimingSafe("CorrectHorse9", &hash)
	require.NoError(t, err)
	assert.True(t, valid)

	valid, err = VerifyPasswordTimingSafe("WrongHorse9", &hash)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestHashToken_DigestNotToken(t *testing.T) {
	digest := HashToken("raw-bearer-token")

	assert.Len(t, digest, 64)
	assert.NotContains(t, digest, "raw-bearer-token")
	assert.Equal(t, digest, HashToken("raw-bearer-token"))
	assert.NotEqual(t, digest, HashToken("other-token"))
}

func TestCompareTokenHash(t *testing.T) {
	digest := HashToken("raw-bearer-token")

	assert.True(t, CompareTokenHash("raw-bearer-token", digest))
	assert.False(t, CompareTokenHash("other-token", digest))
}

func TestGenerateSecureToken(t *testing.T) {
	first, err := GenerateSecureToken(32)
	require.NoError(t, err)

	second, err := GenerateSecureToken(32)
	require.NoError(t, err)

	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}
