package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)

	assert.True(t, CheckPassword(hash, "correct horse"))
	assert.False(t, CheckPassword(hash, "wrong horse"))
	assert.False(t, CheckPassword("", "correct horse"))
}

func TestHashPassword_TooShort(t *testing.T) {
	_, err := HashPassword("short")
	assert.Error(t, err)
}

func TestGenerateAPIKey(t *testing.T) {
	key, hash, prefix, err := GenerateAPIKey()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, APIKeyPrefix))
	assert.Len(t, key, len(APIKeyPrefix)+64)
	assert.Equal(t, HashToken(key), hash)
	assert.Equal(t, key[:12], prefix)

	other, _, _, err := GenerateAPIKey()
	require.NoError(t, err)
	assert.NotEqual(t, key, other)
}
