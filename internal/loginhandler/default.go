package loginhandler

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mwaldhauser/loginguard/internal/models"
	pkgauth "github.com/mwaldhauser/loginguard/pkg/auth"
)

// DefaultHandler authenticates against the local user store with
// bcrypt password verification.
type DefaultHandler struct {
	users  UserSource
	logger *slog.Logger
}

func NewDefaultHandler(users UserSource, logger *slog.Logger) *DefaultHandler {
	return &DefaultHandler{users: users, logger: logger}
}

func (h *DefaultHandler) CheckLogin(ctx context.Context, username, password string) *models.LoginResult {
	user, err := h.users.GetByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			h.logger.Error("failed to load user for login", slog.Any("error", err))
		}
		// Burn a bcrypt round so unknown usernames cost the same as
		// wrong passwords.
		_ = pkgauth.ComparePassword(dummyBcryptHash, password)
		return models.NewLoginResult(models.LoginFailed)
	}

	if user.PasswordHash == "" {
		h.logger.Warn("login rejected: account has no local password",
			slog.String("user_id", user.ID))
		return models.NewLoginResult(models.LoginFailed)
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, password); err != nil {
		return models.NewLoginResult(models.LoginFailed)
	}

	if user.Status == "disabled" {
		h.logger.Info("login rejected: account disabled", slog.String("user_id", user.ID))
		return models.NewLoginResult(models.LoginAccountDisabled)
	}

	return models.SuccessLoginResult(user)
}

// bcrypt hash of an unguessable throwaway value, used only to equalize
// timing for unknown usernames.
const dummyBcryptHash = "$2a$14$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"
