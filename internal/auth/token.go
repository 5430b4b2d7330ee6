package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mwaldhauser/loginguard/internal/models"
)

// Claims are the JWT claims carried by API access tokens.
type Claims struct {
	UserID   string `json:"uid"`
	Username string `json:"username"`
	TenantID string `json:"tenant,omitempty"`
	jwt.RegisteredClaims
}

// TokenManager issues and validates the short-lived API access tokens
// handed out alongside the browser session. Tokens are signed with a
// composite of the global secret and the user's stay-logged-in key, so
// rotating that key also invalidates outstanding API tokens.
type TokenManager struct {
	secret       string
	accessExpiry time.Duration
	keys         PersistentLoginRepository
}

func NewTokenManager(secret string, accessExpiry time.Duration, keys PersistentLoginRepository) *TokenManager {
	return &TokenManager{
		secret:       secret,
		accessExpiry: accessExpiry,
		keys:         keys,
	}
}

func (tm *TokenManager) signingKey(ctx context.Context, userID string) []byte {
	if tm.keys == nil {
		return []byte(tm.secret)
	}
	key, err := tm.keys.GetStayLoggedInKey(ctx, userID)
	if err != nil || key == "" {
		return []byte(tm.secret)
	}
	return []byte(tm.secret + key)
}

// GenerateAccessToken creates a short-lived access token for the user.
func (tm *TokenManager) GenerateAccessToken(ctx context.Context, user *models.User) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:   user.ID,
		Username: user.Username,
		TenantID: user.TenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.accessExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.signingKey(ctx, user.ID))
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}

	return tokenString, nil
}

// ValidateToken verifies a token and returns its claims.
func (tm *TokenManager) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		if parsed, ok := token.Claims.(*Claims); ok && parsed.UserID != "" {
			return tm.signingKey(ctx, parsed.UserID), nil
		}
		return []byte(tm.secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return claims, nil
}
