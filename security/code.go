package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// codeBytes gives 192 bits of entropy, above the 128-bit floor bearer
// codes need.
const codeBytes = 24

// GenerateCode returns a cryptographically random, URL-safe code string
// for activation, reminder and persistence records.
func GenerateCode() (string, error) {
	buf := make([]byte, codeBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
