// Package token issues the opaque random values used for email verification
// and admin markers.
package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// Generate returns n random bytes from crypto/rand rendered as lowercase hex,
// so the result is always 2n characters long.
func Generate(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("token size must be positive, got %d", n)
	}
	raw := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(raw), nil
}

// Hash is the at-rest form of a token. Only the hash is persisted.
func Hash(raw string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(raw)))
}

// WellFormed reports whether raw could have come from Generate.
func WellFormed(raw string) bool {
	if raw == "" || len(raw)%2 != 0 {
		return false
	}
	_, err := hex.DecodeString(raw)
	return err == nil
}
