package services

import "golang.org/x/crypto/bcrypt"

// HashPassword produces a salted one-way hash of the plaintext. The
// same plaintext hashes differently on every call; verification stays
// stable.
func HashPassword(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword reports whether the plaintext matches the hash. A
// malformed hash is simply a mismatch, never an error.
func VerifyPassword(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
