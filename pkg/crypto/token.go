package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
)

var (
	ErrEmptyInput = errors.New("input cannot be empty")
)

const (
	DefaultSecretLength = 32 // 256 bits
	fingerprintLength   = 12
)

// GenerateSecret returns byteLength random bytes as unpadded base64url. The
// output never contains '.', so it can sit after the key separator.
func GenerateSecret(byteLength int) (string, error) {
	if byteLength <= 0 {
		byteLength = DefaultSecretLength
	}

	bytes := make([]byte, byteLength)

	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

// Fingerprint returns a short, non-reversible tag for a secret value so logs
// can correlate it without containing it.
func Fingerprint(value string) (string, error) {
	if value == "" {
		return "", ErrEmptyInput
	}
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])[:fingerprintLength], nil
}
