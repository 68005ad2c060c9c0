package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

// NewSecret returns a 48-byte random secret, hex encoded (96 chars). Used
// for refresh tokens and all single-use ephemeral tokens. The plaintext is
// handed to the caller exactly once; only HashSecret output is stored.
func NewSecret() (string, error) {
	buf := make([]byte, 48)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// HashSecret returns the SHA-256 of a secret as hex. Secrets carry their own
// entropy, so an unsalted digest is the lookup key; bcrypt would make
// lookup-by-hash impossible.
func HashSecret(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
