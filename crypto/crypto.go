// Package crypto seals secrets kept in the database, the bot's OAuth tokens,
// with AES-256-GCM. Every sealed value is bound to a label (the row and column
// it belongs to) so a ciphertext copied into another row fails to open.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

// KeyVersion is written in front of every sealed value.
const KeyVersion = "v1"

var (
	// ErrKey is returned for a missing or malformed key.
	ErrKey = errors.New("invalid encryption key")
	// ErrOpen is returned when a sealed value is corrupt, was sealed with another
	// key, or carries a different label.
	ErrOpen = errors.New("decryption failed: authentication or integrity check failed")
)

// Box seals and opens values with one key. It is safe for concurrent use.
type Box struct {
	aead cipher.AEAD
}

// NewBox builds a Box from a base64 encoded 32-byte key, as produced by
// `openssl rand -base64 32` or GenerateKey.
func NewBox(base64Key string) (*Box, error) {
	if base64Key == "" {
		return nil, fmt.Errorf("%w: empty", ErrKey)
	}
	key, err := base64.StdEncoding.DecodeString(base64Key)
	if err != nil {
		return nil, fmt.Errorf("%w: base64 decode failed: %w", ErrKey, err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("%w: must be 32 bytes (256 bits), got %d bytes", ErrKey, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return &Box{aead: aead}, nil
}

// GenerateKey returns a fresh random key in the form NewBox expects.
func GenerateKey() (string, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// Seal encrypts plaintext for label and returns "v1:" followed by the base64
// of nonce || ciphertext || tag. An empty plaintext seals to "".
func (b *Box) Seal(plaintext, label string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	nonce := make([]byte, b.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := b.aead.Seal(nonce, nonce, []byte(plaintext), []byte(label))
	return KeyVersion + ":" + base64.StdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal. The label must match the one used to seal.
func (b *Box) Open(sealed, label string) (string, error) {
	if sealed == "" {
		return "", nil
	}
	version, body, ok := strings.Cut(sealed, ":")
	if !ok || version != KeyVersion {
		return "", fmt.Errorf("%w: unknown key version", ErrOpen)
	}
	raw, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return "", fmt.Errorf("%w: base64 decode failed", ErrOpen)
	}
	n := b.aead.NonceSize()
	if len(raw) < n+b.aead.Overhead() {
		return "", fmt.Errorf("%w: ciphertext too short", ErrOpen)
	}
	plain, err := b.aead.Open(nil, raw[:n], raw[n:], []byte(label))
	if err != nil {
		return "", ErrOpen
	}
	return string(plain), nil
}

// IsSealed reports whether s looks like the output of Seal.
func IsSealed(s string) bool {
	return strings.HasPrefix(s, KeyVersion+":")
}
