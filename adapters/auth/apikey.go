package auth

import (
	"crypto/rand"
	"encoding/hex"
)

// API keys look like "qg_<40 hex chars>". The first PrefixLength characters
// are stored in clear for lookup; the full key is bcrypt-hashed at rest.
const (
	keyScheme    = "qg_"
	keySecretLen = 20

	// PrefixLength is the number of leading key characters stored in clear.
	PrefixLength = 11
)

// NewAPIKey generates a fresh API key.
func NewAPIKey() string {
	b := make([]byte, keySecretLen)
	rand.Read(b)
	return keyScheme + hex.EncodeToString(b)
}

// KeyPrefix returns the lookup prefix of a key, or "" if the key is too
// short to carry one.
func KeyPrefix(key string) string {
	if len(key) < PrefixLength {
		return ""
	}
	return key[:PrefixLength]
}
