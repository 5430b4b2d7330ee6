package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/mwaldhauser/loginguard/internal/loginhandler"
	"github.com/mwaldhauser/loginguard/internal/loginprotection"
	"github.com/mwaldhauser/loginguard/internal/models"
	pkglogger "github.com/mwaldhauser/loginguard/pkg/logger"
)

// LastLoginRecorder stamps a user's most recent successful login.
type LastLoginRecorder interface {
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
}

// LoginService is the single entry point for authentication. It guards
// the configured login handler with the failed-login protection and
// maps every input to a LoginResult; it never returns an error for
// expected conditions.
type LoginService struct {
	handler    loginhandler.Handler
	protection *loginprotection.Protection
	logger     *slog.Logger
	audit      *pkglogger.AuditLogger
	lastLogin  LastLoginRecorder
}

func NewLoginService(
	handler loginhandler.Handler,
	protection *loginprotection.Protection,
	logger *slog.Logger,
	audit *pkglogger.AuditLogger,
) *LoginService {
	return &LoginService{
		handler:    handler,
		protection: protection,
		logger:     logger,
		audit:      audit,
	}
}

// SetLastLoginRecorder enables last-login stamping on successful
// authentication. Optional; handlers that synthesize users (LDAP
// master) may log in users without a local record.
func (s *LoginService) SetLastLoginRecorder(r LastLoginRecorder) {
	s.lastLogin = r
}

// CheckLogin authenticates credentials originating from clientAddr.
//
// Empty credentials are rejected without being counted as attacks. An
// active lockout for (username, clientAddr) short-circuits before the
// handler sees the password, so a locked-out caller learns nothing
// about whether the password was correct. Success clears the failure
// record for the key; a rejected password increments it.
func (s *LoginService) CheckLogin(ctx context.Context, username, password, clientAddr string) *models.LoginResult {
	if username == "" || password == "" {
		return models.NewLoginResult(models.LoginFailed)
	}

	if s.handler == nil {
		// Fail closed: a misconfigured process denies all logins.
		s.logger.Warn("no login handler configured, denying login")
		return models.NewLoginResult(models.LoginFailed)
	}

	offset := s.protection.FailedLoginTimeOffset(ctx, username, clientAddr)
	if offset > 0 {
		attempts := s.protection.FailedLoginAttempts(ctx, username, clientAddr)
		s.logger.Warn("login attempt during active lockout",
			slog.String("username", pkglogger.SanitizedUsername(username)),
			slog.String("client_addr", clientAddr),
			slog.Duration("remaining", offset),
			slog.Int("failed_attempts", attempts))
		s.audit.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_locked_out",
			Username:      username,
			ClientAddr:    clientAddr,
			FailureReason: "rate_limited",
			Success:       false,
		})
		return models.LockedOutLoginResult(offset, attempts)
	}

	result := s.handler.CheckLogin(ctx, username, password)

	switch result.Status {
	case models.LoginSuccess:
		s.protection.ClearLockout(ctx, username, clientAddr)
		if s.lastLogin != nil && result.User.ID != "" {
			if err := s.lastLogin.UpdateLastLogin(ctx, result.User.ID, time.Now()); err != nil {
				s.logger.Error("failed to stamp last login", slog.Any("error", err))
			}
		}
		s.logger.Info("user logged in", slog.String("user_id", result.User.ID))
		s.audit.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:  "login_success",
			UserID:     result.User.ID,
			Username:   username,
			ClientAddr: clientAddr,
			Success:    true,
		})
	case models.LoginFailed:
		s.protection.IncrementFailedLogins(ctx, username, clientAddr)
		s.audit.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			Username:      username,
			ClientAddr:    clientAddr,
			FailureReason: "invalid_credentials",
			Success:       false,
		})
	default:
		// Other statuses (e.g. disabled account) pass through without
		// touching the failure record.
		s.audit.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			Username:      username,
			ClientAddr:    clientAddr,
			FailureReason: result.Status.String(),
			Success:       false,
		})
	}

	return result
}
