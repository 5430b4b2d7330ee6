package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	BcryptCost         = 14 // OWASP 2026 recommendation
	StayLoggedInKeyLen = 32 // 256 bits
)

func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

func ComparePassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// GenerateStayLoggedInKey produces the per-user secret embedded in
// persistent login cookies. Renewing it invalidates every cookie
// issued with the previous key.
func GenerateStayLoggedInKey() (string, error) {
	bytes := make([]byte, StayLoggedInKeyLen)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate stay-logged-in key: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}
