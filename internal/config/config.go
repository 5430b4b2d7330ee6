package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Auth     AuthConfig
	Lockout  LockoutConfig
	Login    LoginConfig
	Cookie   CookieConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type ServerConfig struct {
	Port            string
	Env             string
	LogLevel        string
	MaintenanceMode bool
	TrustedProxies  []string // CIDR ranges allowed to set forwarding headers
}

type AuthConfig struct {
	JWTSecret         string
	AccessTokenExpiry time.Duration
}

// LockoutConfig drives the failed-login protection policy.
type LockoutConfig struct {
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	RecordTTL     time.Duration
	SweepInterval time.Duration
	Store         string // "memory" or "redis"
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// LoginConfig selects the login handler variant. Recognized values are
// "ldap-master" and "ldap-slave"; anything else selects the local
// store handler.
type LoginConfig struct {
	Handler string
	LDAP    LDAPConfig
}

type LDAPConfig struct {
	URL            string
	BindDN         string
	BindPassword   string
	BaseDN         string
	UserFilter     string
	ConnectTimeout time.Duration
}

type CookieConfig struct {
	Domain             string // empty string = current host only
	Secure             bool   // HTTPS only
	SameSite           string // "strict", "lax", or "none"
	StayLoggedInMaxAge time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "loginguard"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			Env:             env,
			LogLevel:        getEnv("LOG_LEVEL", "info"),
			MaintenanceMode: getEnvAsBool("MAINTENANCE_MODE", false),
			TrustedProxies:  getEnvAsSlice("TRUSTED_PROXIES", nil),
		},
		Auth: AuthConfig{
			JWTSecret:         jwtSecret,
			AccessTokenExpiry: getEnvAsDuration("ACCESS_TOKEN_EXPIRY", 15*time.Minute),
		},
		Lockout: LockoutConfig{
			BaseDelay:     getEnvAsDuration("LOCKOUT_BASE_DELAY", 1*time.Second),
			MaxDelay:      getEnvAsDuration("LOCKOUT_MAX_DELAY", 4*time.Hour),
			RecordTTL:     getEnvAsDuration("LOCKOUT_RECORD_TTL", 24*time.Hour),
			SweepInterval: getEnvAsDuration("LOCKOUT_SWEEP_INTERVAL", 1*time.Hour),
			Store:         getEnv("LOCKOUT_STORE", "memory"),
			RedisAddr:     getEnv("LOCKOUT_REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnv("LOCKOUT_REDIS_PASSWORD", ""),
			RedisDB:       getEnvAsInt("LOCKOUT_REDIS_DB", 0),
		},
		Login: LoginConfig{
			Handler: getEnv("LOGIN_HANDLER", ""),
			LDAP: LDAPConfig{
				URL:            getEnv("LDAP_URL", "ldap://localhost:389"),
				BindDN:         getEnv("LDAP_BIND_DN", ""),
				BindPassword:   getEnv("LDAP_BIND_PASSWORD", ""),
				BaseDN:         getEnv("LDAP_BASE_DN", ""),
				UserFilter:     getEnv("LDAP_USER_FILTER", "(uid=%s)"),
				ConnectTimeout: getEnvAsDuration("LDAP_CONNECT_TIMEOUT", 10*time.Second),
			},
		},
		Cookie: CookieConfig{
			Domain:             getEnv("COOKIE_DOMAIN", ""),
			Secure:             getEnvAsBool("COOKIE_SECURE", env == "production"),
			SameSite:           getEnv("COOKIE_SAMESITE", "lax"),
			StayLoggedInMaxAge: getEnvAsDuration("STAY_LOGGED_IN_MAX_AGE", 30*24*time.Hour),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if err := validateJWTSecret(jwtSecret, env); err != nil {
		return nil, err
	}

	if cfg.Lockout.Store != "memory" && cfg.Lockout.Store != "redis" {
		return nil, fmt.Errorf("LOCKOUT_STORE must be \"memory\" or \"redis\", got %q", cfg.Lockout.Store)
	}

	if strings.HasPrefix(cfg.Login.Handler, "ldap-") && cfg.Login.LDAP.BaseDN == "" {
		return nil, fmt.Errorf("LDAP_BASE_DN is required when LOGIN_HANDLER is %q", cfg.Login.Handler)
	}

	return cfg, nil
}

// validateJWTSecret enforces minimum security standards for the signing secret
func validateJWTSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsSlice(key string, defaultVal []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultVal
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}
