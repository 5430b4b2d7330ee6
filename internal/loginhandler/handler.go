// Package loginhandler contains the pluggable authentication backends.
// Exactly one handler is selected at startup; handlers verify
// credentials and nothing else. Rate limiting and session state are the
// callers' concern.
package loginhandler

import (
	"context"
	"log/slog"

	"github.com/mwaldhauser/loginguard/internal/config"
	"github.com/mwaldhauser/loginguard/internal/models"
)

// Handler verifies credentials against exactly one backend.
type Handler interface {
	CheckLogin(ctx context.Context, username, password string) *models.LoginResult
}

// UserSource is the slice of the user repository the handlers need.
type UserSource interface {
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

// UserCreator is implemented by user sources that can persist records
// synthesized from a directory entry in master mode.
type UserCreator interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
}

// Deps bundles the collaborators a handler may need.
type Deps struct {
	Users  UserSource
	LDAP   config.LDAPConfig
	Logger *slog.Logger
}

// Configuration values selecting a non-default handler. Any other
// value, including the empty string, selects the local-store handler.
const (
	HandlerLdapMaster = "ldap-master"
	HandlerLdapSlave  = "ldap-slave"
)

// FromConfig resolves the configured handler name to a concrete
// backend. Called once at process startup.
func FromConfig(name string, deps Deps) Handler {
	switch name {
	case HandlerLdapMaster:
		return NewLdapHandler(LdapMaster, deps.LDAP, deps.Users, deps.Logger)
	case HandlerLdapSlave:
		return NewLdapHandler(LdapSlave, deps.LDAP, deps.Users, deps.Logger)
	default:
		if name != "" {
			deps.Logger.Warn("unrecognized login handler, falling back to local store",
				slog.String("handler", name))
		}
		return NewDefaultHandler(deps.Users, deps.Logger)
	}
}
