package models

import "time"

// LoginResultStatus is the outcome of a single authentication attempt.
type LoginResultStatus int

const (
	// LoginFailed covers both rejected credentials and unusable input.
	LoginFailed LoginResultStatus = iota
	// LoginSuccess means the backend accepted the credentials.
	LoginSuccess
	// LoginTimeOffset means the key is locked out; no backend was consulted.
	LoginTimeOffset
	// LoginAccountDisabled means credentials matched a deactivated account.
	LoginAccountDisabled
)

func (s LoginResultStatus) String() string {
	switch s {
	case LoginSuccess:
		return "success"
	case LoginTimeOffset:
		return "login_time_offset"
	case LoginAccountDisabled:
		return "account_disabled"
	default:
		return "failed"
	}
}

// LoginResult is a tagged outcome: exactly one variant is meaningful per
// call. User is set only on LoginSuccess; LockoutRemaining and
// FailedAttempts only on LoginTimeOffset.
type LoginResult struct {
	Status           LoginResultStatus
	User             *User
	LockoutRemaining time.Duration
	FailedAttempts   int
}

func NewLoginResult(status LoginResultStatus) *LoginResult {
	return &LoginResult{Status: status}
}

func SuccessLoginResult(user *User) *LoginResult {
	return &LoginResult{Status: LoginSuccess, User: user}
}

func LockedOutLoginResult(remaining time.Duration, attempts int) *LoginResult {
	return &LoginResult{
		Status:           LoginTimeOffset,
		LockoutRemaining: remaining,
		FailedAttempts:   attempts,
	}
}

// RemainingSeconds rounds the lockout up to whole seconds so a caller
// never tells a client to retry too early.
func (r *LoginResult) RemainingSeconds() int {
	if r.LockoutRemaining <= 0 {
		return 0
	}
	secs := int((r.LockoutRemaining + time.Second - 1) / time.Second)
	return secs
}
