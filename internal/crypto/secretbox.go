// Package crypto encrypts channel credentials at rest with AES-256-GCM.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

// encPrefix marks ciphertext in storage; it prevents double encryption and
// makes accidental plaintext writes detectable.
const encPrefix = "enc:"

// SecretBox seals and opens secrets with one 32-byte key. The key is passed
// in explicitly; nothing in this package reads the environment.
type SecretBox struct {
	aead cipher.AEAD
}

// NewSecretBox builds a box from a hex-encoded 32-byte key.
func NewSecretBox(keyHex string) (*SecretBox, error) {
	if len(keyHex) != 64 {
		return nil, fmt.Errorf("secret key must be exactly 32 bytes (64 hex characters)")
	}
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("secret key must be hex: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM mode: %w", err)
	}
	return &SecretBox{aead: aead}, nil
}

// Seal encrypts plaintext with a fresh random nonce and returns the
// prefixed, base64-encoded ciphertext.
func (b *SecretBox) Seal(plaintext string) (string, error) {
	// Nonce reuse under one key breaks GCM; always draw a fresh one.
	nonce := make([]byte, b.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := b.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return encPrefix + base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Open decrypts a sealed value. Tampered or truncated input fails
// authentication and returns an error; the plaintext must never reach logs.
func (b *SecretBox) Open(sealed string) (string, error) {
	if !strings.HasPrefix(sealed, encPrefix) {
		return "", fmt.Errorf("value is not encrypted (missing %q prefix)", encPrefix)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(sealed[len(encPrefix):])
	if err != nil {
		return "", fmt.Errorf("invalid base64 ciphertext: %w", err)
	}

	nonceSize := b.aead.NonceSize()
	if len(ciphertext) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}
	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]

	plaintext, err := b.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decryption failed: %w", err)
	}
	return string(plaintext), nil
}

// IsSealed reports whether the value carries the ciphertext prefix.
func IsSealed(value string) bool { return strings.HasPrefix(value, encPrefix) }

// GenerateKey returns a fresh hex-encoded 32-byte key, for initial setup and
// rotation.
func GenerateKey() (string, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("failed to generate random key: %w", err)
	}
	return hex.EncodeToString(key), nil
}
