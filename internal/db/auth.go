package db

import "golang.org/x/crypto/bcrypt"

// HashPassword hashes a password with bcrypt. Persisted password
// representation is not required to bit-match an external client
// (SPEC_FULL.md §3), unlike the wire protocol.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches the stored bcrypt hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
