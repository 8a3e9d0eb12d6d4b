package oauth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const maxStateLength = 128

var errInvalidState = errors.New("oauth: invalid state")

// GenerateState creates a cryptographically random CSRF state parameter.
func GenerateState() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("oauth: generate random state: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// ValidateState rejects state values that could not have come from an
// initiation: empty, oversized, or carrying characters outside the URL-safe
// alphabet.
func ValidateState(state string) error {
	trimmed := strings.TrimSpace(state)
	if trimmed == "" {
		return fmt.Errorf("%w: empty", errInvalidState)
	}
	if len(trimmed) > maxStateLength {
		return fmt.Errorf("%w: too long", errInvalidState)
	}
	for _, r := range trimmed {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return fmt.Errorf("%w: invalid character", errInvalidState)
		}
	}
	return nil
}
