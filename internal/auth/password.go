// Package auth implements credential verification, token issuance, and the
// account flows built on them: login with lockout, refresh rotation,
// password recovery, email verification, API keys, and role management.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/hyrelay/hyrelay/internal/domain"
	"golang.org/x/crypto/argon2"
)

// ValidatePassword enforces the minimum password policy. Strength estimation
// beyond length is left to the client.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return domain.E(domain.CodeValidationError, "password must be at least 8 characters")
	}
	if len(password) > 128 {
		return domain.E(domain.CodeValidationError, "password must be at most 128 characters")
	}
	return nil
}

// PasswordHasher defines the contract for password operations.
// The interface allows mocking hashing in tests or swapping algorithms.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// Argon2idHasher implements PasswordHasher using Argon2id with parameters
// encoded in the hash string, so parameters can be raised without breaking
// existing hashes.
type Argon2idHasher struct {
	memory      uint32
	iterations  uint32
	parallelism uint8
	saltLength  uint32
	keyLength   uint32
}

// NewArgon2idHasher creates a hasher with the recommended defaults
// (64 MiB memory, 3 iterations, 4 lanes).
func NewArgon2idHasher() *Argon2idHasher {
	return &Argon2idHasher{
		memory:      64 * 1024,
		iterations:  3,
		parallelism: 4,
		saltLength:  16,
		keyLength:   32,
	}
}

// Hash returns the PHC-formatted Argon2id hash of the password.
func (h *Argon2idHasher) Hash(password string) (string, error) {
	salt := make([]byte, h.saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, h.iterations, h.memory, h.parallelism, h.keyLength)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.memory, h.iterations, h.parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key)), nil
}

// Compare checks the password against a stored hash in constant time.
// Returns nil on match.
func (h *Argon2idHasher) Compare(hash, password string) error {
	memory, iterations, parallelism, salt, key, err := decodeHash(hash)
	if err != nil {
		return err
	}

	candidate := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, uint32(len(key)))
	if subtle.ConstantTimeCompare(key, candidate) != 1 {
		return fmt.Errorf("password mismatch")
	}
	return nil
}

func decodeHash(hash string) (memory, iterations uint32, parallelism uint8, salt, key []byte, err error) {
	parts := strings.Split(hash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return 0, 0, 0, nil, nil, fmt.Errorf("malformed password hash")
	}

	var version int
	if _, err = fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return 0, 0, 0, nil, nil, fmt.Errorf("malformed password hash: %w", err)
	}
	if version != argon2.Version {
		return 0, 0, 0, nil, nil, fmt.Errorf("unsupported argon2 version %d", version)
	}

	if _, err = fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		return 0, 0, 0, nil, nil, fmt.Errorf("malformed password hash: %w", err)
	}

	salt, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return 0, 0, 0, nil, nil, fmt.Errorf("malformed password hash: %w", err)
	}
	key, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return 0, 0, 0, nil, nil, fmt.Errorf("malformed password hash: %w", err)
	}
	return memory, iterations, parallelism, salt, key, nil
}
