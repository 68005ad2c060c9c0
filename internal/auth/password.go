package auth

import "golang.org/x/crypto/bcrypt"

// HashPassword returns a bcrypt hash at the given cost. The salt is embedded
// in the hash string, so no separate salt column exists anywhere.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword compares a bcrypt hash and a plaintext candidate. Mismatch
// is a false return, never an error.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
