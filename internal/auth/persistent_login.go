package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mwaldhauser/loginguard/internal/models"
	pkgauth "github.com/mwaldhauser/loginguard/pkg/auth"
)

// PersistentLoginRepository is the slice of the user repository the
// token service needs.
type PersistentLoginRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetStayLoggedInKey(ctx context.Context, id string) (string, error)
	RenewStayLoggedInKey(ctx context.Context, id, key string) error
}

// PersistentLoginService issues and validates the "stay logged in"
// cookie value. The value is userID:username:key where key is a
// server-held rotating secret; rotating the key revokes every cookie
// previously issued for the user.
type PersistentLoginService struct {
	repo   PersistentLoginRepository
	logger *slog.Logger
}

func NewPersistentLoginService(repo PersistentLoginRepository, logger *slog.Logger) *PersistentLoginService {
	return &PersistentLoginService{repo: repo, logger: logger}
}

// Issue composes the cookie value for the user.
func (s *PersistentLoginService) Issue(ctx context.Context, userID string) (string, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to load user for persistent login: %w", err)
	}

	key, err := s.repo.GetStayLoggedInKey(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to load stay-logged-in key: %w", err)
	}
	if key == "" {
		// First issuance for this user: mint and store a key.
		key, err = pkgauth.GenerateStayLoggedInKey()
		if err != nil {
			return "", err
		}
		if err := s.repo.RenewStayLoggedInKey(ctx, userID, key); err != nil {
			return "", fmt.Errorf("failed to store stay-logged-in key: %w", err)
		}
	}

	return user.ID + ":" + user.Username + ":" + key, nil
}

// Validate parses a presented cookie value and returns the matching
// user, or models.ErrTokenInvalid if the value is malformed, names an
// unknown user, or carries a stale secret.
func (s *PersistentLoginService) Validate(ctx context.Context, cookieValue string) (*models.User, error) {
	parts := strings.SplitN(cookieValue, ":", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return nil, models.ErrTokenInvalid
	}
	userID, username, presentedKey := parts[0], parts[1], parts[2]

	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrTokenInvalid
		}
		return nil, fmt.Errorf("failed to load user for token validation: %w", err)
	}

	if user.Username != username {
		return nil, models.ErrTokenInvalid
	}

	storedKey, err := s.repo.GetStayLoggedInKey(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load stay-logged-in key: %w", err)
	}
	if storedKey == "" || subtle.ConstantTimeCompare([]byte(storedKey), []byte(presentedKey)) != 1 {
		s.logger.Warn("persistent login token rejected", slog.String("user_id", userID))
		return nil, models.ErrTokenInvalid
	}

	return user, nil
}

// Rotate renews the user's stay-logged-in key, invalidating every
// previously issued cookie for that user.
func (s *PersistentLoginService) Rotate(ctx context.Context, userID string) error {
	key, err := pkgauth.GenerateStayLoggedInKey()
	if err != nil {
		return err
	}
	if err := s.repo.RenewStayLoggedInKey(ctx, userID, key); err != nil {
		return fmt.Errorf("failed to rotate stay-logged-in key: %w", err)
	}
	s.logger.Info("stay-logged-in key rotated", slog.String("user_id", userID))
	return nil
}
