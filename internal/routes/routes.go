package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mwaldhauser/loginguard/internal/handlers"
	"github.com/mwaldhauser/loginguard/internal/middleware"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	healthCheck http.HandlerFunc,
) {
	rateLimitConfig := middleware.DefaultAuthRateLimit()

	router.Get("/health", healthCheck)

	// Login is rate limited per IP in addition to the per-account
	// lockout applied inside the service.
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/auth/login", authHandler.Login)

	router.Post("/auth/logout", authHandler.Logout)
	router.Get("/auth/session", authHandler.Session)
}
