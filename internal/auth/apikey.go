package auth

import (
	"crypto/rand"
	"encoding/hex"
)

// APIKeyPrefix marks keys issued by this service.
const APIKeyPrefix = "seo_"

// GenerateAPIKey generates a new random API key and returns the key,
// its hash for storage and a short prefix for display.
func GenerateAPIKey() (key, hash, prefix string, err error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", "", "", err
	}

	key = APIKeyPrefix + hex.EncodeToString(bytes)
	hash = HashToken(key)
	prefix = key[:12] // "seo_" + first 8 chars of hex

	return key, hash, prefix, nil
}
