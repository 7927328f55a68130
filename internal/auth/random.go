package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// GenerateSecureToken creates a URL-safe random string from length random
// bytes. Callers store only the hash; the raw value goes to the user once.
func GenerateSecureToken(length int) (string, error) {
	if length < 32 {
		length = 32
	}
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashToken uses SHA-256 for deterministic token lookup. Reference tokens
// are high-entropy, so a fast unsalted hash is sufficient at rest.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// SecureCompare performs a constant-time comparison of two strings.
// Use it for any secret-bearing comparison, never ==.
func SecureCompare(provided, expected string) bool {
	return subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) == 1
}
