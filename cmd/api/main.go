package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/mwaldhauser/loginguard/internal/auth"
	"github.com/mwaldhauser/loginguard/internal/background"
	"github.com/mwaldhauser/loginguard/internal/caches"
	"github.com/mwaldhauser/loginguard/internal/config"
	"github.com/mwaldhauser/loginguard/internal/database"
	"github.com/mwaldhauser/loginguard/internal/handlers"
	"github.com/mwaldhauser/loginguard/internal/loginhandler"
	"github.com/mwaldhauser/loginguard/internal/loginprotection"
	middlewareCustom "github.com/mwaldhauser/loginguard/internal/middleware"
	"github.com/mwaldhauser/loginguard/internal/repositories"
	"github.com/mwaldhauser/loginguard/internal/routes"
	"github.com/mwaldhauser/loginguard/internal/services"
	"github.com/mwaldhauser/loginguard/internal/session"
	pkghttp "github.com/mwaldhauser/loginguard/pkg/http"
	pkglogger "github.com/mwaldhauser/loginguard/pkg/logger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("login_handler", cfg.Login.Handler),
		slog.String("lockout_store", cfg.Lockout.Store))

	if err := database.Migrate(cfg.Database.DSN(), logger); err != nil {
		logger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Repositories
	userRepo := repositories.NewUserRepository(db)
	groupRepo := repositories.NewGroupRepository(db)
	prefsRepo := repositories.NewPreferencesRepository(db)

	auditLogger := pkglogger.NewAuditLogger(logger)

	// Failed-login protection, backed by memory or Redis.
	policy := loginprotection.Policy{
		BaseDelay: cfg.Lockout.BaseDelay,
		MaxDelay:  cfg.Lockout.MaxDelay,
		RecordTTL: cfg.Lockout.RecordTTL,
	}
	var (
		protection *loginprotection.Protection
		sweeper    *background.Sweeper
	)
	if cfg.Lockout.Store == "redis" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Lockout.RedisAddr,
			Password: cfg.Lockout.RedisPassword,
			DB:       cfg.Lockout.RedisDB,
		})
		defer client.Close()
		protection = loginprotection.New(
			loginprotection.NewRedisStore(client, cfg.Lockout.RecordTTL), policy, logger)
	} else {
		store := loginprotection.NewMemoryStore()
		protection = loginprotection.New(store, policy, logger)
		sweeper = background.NewSweeper(store, logger, cfg.Lockout.SweepInterval, cfg.Lockout.RecordTTL)
	}

	// Login handler and orchestration
	handler := loginhandler.FromConfig(cfg.Login.Handler, loginhandler.Deps{
		Users:  userRepo,
		LDAP:   cfg.Login.LDAP,
		Logger: logger,
	})
	loginService := services.NewLoginService(handler, protection, logger, auditLogger)
	loginService.SetLastLoginRecorder(userRepo)

	// Per-user caches and session management
	groupCache := caches.NewUserGroupCache(groupRepo, logger)
	prefsCache := caches.NewPreferencesCache(prefsRepo, logger)
	menuCache := caches.NewMenuCache()
	sessionManager := session.NewManager(
		groupCache, prefsCache, menuCache, session.NewRegistry(),
		cfg.Cookie, logger, auditLogger,
	)
	sessionManager.SetMaintenanceMode(cfg.Server.MaintenanceMode)

	// Persistent login and API tokens
	persistentLogin := auth.NewPersistentLoginService(userRepo, logger)
	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenExpiry, userRepo)

	addrCfg := &pkghttp.AddrResolverConfig{TrustedProxies: cfg.Server.TrustedProxies}
	authHandler := handlers.NewAuthHandler(loginService, sessionManager, persistentLogin, tokenManager, addrCfg)

	healthCheck := func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := db.HealthCheck(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	}

	// Router
	// No RealIP middleware: it would rewrite RemoteAddr from forwarding
	// headers regardless of sender, and the lockout key must come from
	// the trusted-proxy-gated resolver only.
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(router, authHandler, healthCheck)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()
	if sweeper != nil {
		go sweeper.Start(sweepCtx)
	}

	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	sweepCancel()
	if sweeper != nil {
		sweeper.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}
