package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Account and token state errors
	ErrAccountDisabled = errors.New("account is disabled")
	ErrTokenInvalid    = errors.New("persistent login token is invalid")
)
