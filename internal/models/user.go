package models

import (
	"time"
)

type User struct {
	ID              string
	TenantID        string
	Username        string
	Name            string
	Email           string
	PasswordHash    string // empty for directory-managed accounts
	StayLoggedInKey string // per-user secret; rotating it invalidates issued persistent cookies
	Role            string // e.g., "user", "admin"
	Status          string // "active", "disabled"
	LastLoginAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CopyWithoutSecrets returns a copy of the user with all secret fields
// stripped. Only sanitized copies may be bound to a session.
func (u *User) CopyWithoutSecrets() *User {
	clone := *u
	clone.PasswordHash = ""
	clone.StayLoggedInKey = ""
	return &clone
}

// AuthenticatedUser is a sanitized user plus the authorization context
// resolved at login time.
type AuthenticatedUser struct {
	User   *User
	Groups []string
}

func NewAuthenticatedUser(user *User, groups []string) *AuthenticatedUser {
	return &AuthenticatedUser{
		User:   user.CopyWithoutSecrets(),
		Groups: groups,
	}
}

// InGroup reports whether the user belongs to the named group.
func (a *AuthenticatedUser) InGroup(name string) bool {
	for _, g := range a.Groups {
		if g == name {
			return true
		}
	}
	return false
}
