package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// App holds the runtime configuration loaded from environment variables.
type App struct {
	Env             string
	HTTPPort        string
	LogLevel        string
	DBDriver        string
	DatabaseURL     string
	SessionBackend  string
	RedisAddr       string
	SessionIssuer   string
	SessionKey      string
	SessionTTL      time.Duration
	GeoURL          string
	GeoTimeout      time.Duration
	GeoSkip         bool
	RateLimitPerMin int
	TrustedProxies  []string
	CORSOrigins     []string
	RecentWindow    time.Duration

	// Bootstrap leader, only used when the usuarios table is empty.
	LeaderUsername     string
	LeaderEmail        string
	LeaderName         string
	LeaderPassword     string
	SeedExampleMembers bool
}

// Supported values for DB_DRIVER.
const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite3"
)

// ErrMissingDatabaseURL is returned by Load when DATABASE_URL is unset.
var ErrMissingDatabaseURL = errors.New("DATABASE_URL environment variable is required")

// Load returns application config populated from environment variables with sensible defaults.
// A .env file in the working directory is loaded first when present.
func Load() (App, error) {
	_ = godotenv.Load()

	cfg := App{
		Env:                getEnv("APP_ENV", "dev"),
		HTTPPort:           getEnv("HTTP_PORT", "5000"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		DBDriver:           getEnv("DB_DRIVER", DriverPostgres),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		SessionBackend:     getEnv("SESSION_BACKEND", "memory"),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		SessionIssuer:      getEnv("SESSION_ISSUER", "checkin-obreiros"),
		SessionKey:         os.Getenv("SESSION_SIGNING_KEY"),
		SessionTTL:         durationEnv("SESSION_TTL", 12*time.Hour),
		GeoURL:             getEnv("GEO_URL", "https://ipapi.co/json/"),
		GeoTimeout:         durationEnv("GEO_TIMEOUT", 5*time.Second),
		GeoSkip:            boolEnv("GEO_SKIP", false),
		RateLimitPerMin:    intEnv("RATE_LIMIT_PER_MIN", 30),
		TrustedProxies:     listEnv("TRUSTED_PROXIES"),
		CORSOrigins:        listEnv("CORS_ORIGINS"),
		RecentWindow:       durationEnv("RECENT_WINDOW", 7*24*time.Hour),
		LeaderUsername:     getEnv("LEADER_USERNAME", "admin"),
		LeaderEmail:        getEnv("LEADER_EMAIL", "admin@igreja.com"),
		LeaderName:         getEnv("LEADER_NAME", "Administrador"),
		LeaderPassword:     os.Getenv("LEADER_PASSWORD"),
		SeedExampleMembers: boolEnv("SEED_EXAMPLE_MEMBERS", false),
	}

	if cfg.DatabaseURL == "" {
		return App{}, ErrMissingDatabaseURL
	}
	if cfg.DBDriver != DriverPostgres && cfg.DBDriver != DriverSQLite {
		return App{}, fmt.Errorf("DB_DRIVER must be %q or %q, got %q", DriverPostgres, DriverSQLite, cfg.DBDriver)
	}
	if cfg.SessionBackend != "memory" && cfg.SessionBackend != "redis" {
		return App{}, fmt.Errorf("SESSION_BACKEND must be \"memory\" or \"redis\", got %q", cfg.SessionBackend)
	}
	if cfg.SessionKey == "" && cfg.Production() {
		return App{}, errors.New("SESSION_SIGNING_KEY must be set in production")
	}
	return cfg, nil
}

// Production reports whether the app runs with production settings.
func (a App) Production() bool {
	return a.Env == "production" || a.Env == "prod"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil || d <= 0 {
			logrus.Warnf("invalid duration for %s: %q, using fallback %s", key, val, fallback)
			return fallback
		}
		return d
	}
	return fallback
}

func boolEnv(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		switch strings.ToLower(val) {
		case "1", "true", "yes":
			return true
		case "0", "false", "no":
			return false
		}
		logrus.Warnf("invalid bool for %s, using fallback %v", key, fallback)
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var parsed int
		if _, err := fmt.Sscanf(val, "%d", &parsed); err == nil && parsed > 0 {
			return parsed
		}
		logrus.Warnf("invalid int for %s, using fallback %d", key, fallback)
	}
	return fallback
}

func listEnv(key string) []string {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
