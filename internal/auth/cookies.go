package auth

import (
	"net/http"
	"time"

	"github.com/mwaldhauser/loginguard/internal/config"
)

const (
	// SessionCookieName carries the server-side session identifier.
	SessionCookieName = "session_id"
	// StayLoggedInCookieName carries the persistent login token. Its
	// lifetime is independent of the session.
	StayLoggedInCookieName = "stay_logged_in"
)

// SetSessionCookie binds the session identifier to the browser for the
// lifetime of the browser session.
func SetSessionCookie(w http.ResponseWriter, sessionID string, cfg config.CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		Domain:   cfg.Domain,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: parseSameSite(cfg.SameSite),
	})
}

// ClearSessionCookie removes the session cookie.
func ClearSessionCookie(w http.ResponseWriter, cfg config.CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   cfg.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: parseSameSite(cfg.SameSite),
	})
}

// GetSessionCookie retrieves the session identifier from the request.
func GetSessionCookie(r *http.Request) (string, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return "", err
	}
	return cookie.Value, nil
}

// SetStayLoggedInCookie issues the persistent login cookie.
func SetStayLoggedInCookie(w http.ResponseWriter, value string, cfg config.CookieConfig) {
	maxAge := int(cfg.StayLoggedInMaxAge / time.Second)
	http.SetCookie(w, &http.Cookie{
		Name:     StayLoggedInCookieName,
		Value:    value,
		Path:     "/",
		Domain:   cfg.Domain,
		Expires:  time.Now().Add(cfg.StayLoggedInMaxAge),
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: parseSameSite(cfg.SameSite),
	})
}

// ExpireStayLoggedInCookie overwrites the persistent login cookie with
// an empty, immediately expiring one at root scope so the browser
// discards it.
func ExpireStayLoggedInCookie(w http.ResponseWriter, cfg config.CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     StayLoggedInCookieName,
		Value:    "",
		Path:     "/",
		Domain:   cfg.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: parseSameSite(cfg.SameSite),
	})
}

// GetStayLoggedInCookie retrieves the persistent login cookie value, or
// "" if not presented.
func GetStayLoggedInCookie(r *http.Request) string {
	cookie, err := r.Cookie(StayLoggedInCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// parseSameSite converts string to http.SameSite constant
func parseSameSite(sameSite string) http.SameSite {
	switch sameSite {
	case "strict":
		return http.SameSiteStrictMode
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteDefaultMode
	}
}
