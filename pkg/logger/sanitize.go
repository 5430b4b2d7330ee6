package logger

import (
	"strings"
)

// SanitizedUsername masks a username for logging (e.g., "a****e").
// Short names are fully masked so length leaks nothing useful.
func SanitizedUsername(username string) string {
	if username == "" {
		return "[empty]"
	}
	if len(username) <= 2 {
		return strings.Repeat("*", len(username))
	}
	return string(username[0]) + strings.Repeat("*", len(username)-2) + string(username[len(username)-1])
}

// SanitizeQueryString checks if query string contains sensitive parameters
// and returns true if the entire query string should be redacted
func SanitizeQueryString(rawQuery string) bool {
	sensitiveParams := []string{
		"password",
		"token",
		"secret",
		"key",
		"auth",
		"cookie",
	}

	query := strings.ToLower(rawQuery)
	for _, param := range sensitiveParams {
		if strings.Contains(query, param) {
			return true
		}
	}
	return false
}
