package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// Opaque token sizes, in random bytes before encoding.
const (
	TokenSize128 = 16
	TokenSize256 = 32
)

// GenerateToken returns size random bytes, base64url encoded without padding.
// The fake backend mints refresh tokens and its HMAC signing key with it.
func GenerateToken(size int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("token size must be positive, got %d", size)
	}

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// MustGenerateToken panics where GenerateToken would fail. Startup only.
func MustGenerateToken(size int) string {
	token, err := GenerateToken(size)
	if err != nil {
		panic("cryptox: " + err.Error())
	}
	return token
}

// FingerprintToken is the SHA-256 of token, base64url encoded. Refresh
// tokens are indexed by fingerprint so the raw value is never kept.
func FingerprintToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
