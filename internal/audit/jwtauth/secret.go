package jwtauth

import (
	"golang.org/x/crypto/bcrypt"
)

// DefaultCost matches the teacher's pkg/password hashing cost.
const DefaultCost = 12

// HashSecret hashes the admin shared secret for storage in config.
func HashSecret(secret string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// VerifySecret checks secret against its bcrypt hash.
func VerifySecret(hash, secret string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
}
