package checkout

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// tokenBytes gives download tokens 256 bits of entropy.
const tokenBytes = 32

// GenerateToken returns a URL-safe random download token.
func GenerateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
