package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Storage backends.
const (
	BackendSupabase = "supabase"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Duplicate-check failure policies.
const (
	PolicyFailOpen   = "fail-open"
	PolicyFailClosed = "fail-closed"
)

// Daily guards.
const (
	GuardNone  = "none"
	GuardRedis = "redis"
)

// App holds the runtime configuration loaded from environment variables.
type App struct {
	Env      string
	HTTPPort string

	Backend         string
	SupabaseURL     string
	SupabaseKey     string
	Table           string
	SupabaseTimeout time.Duration
	DatabaseURL     string
	DailyUnique     bool

	SecretKey  string
	SessionTTL time.Duration

	Timezone    string
	CheckPolicy string
	Guard       string
	RedisAddr   string

	RateLimitPerMin int

	LogLevel  string
	LogFormat string
}

// Load reads an optional .env file, then builds and validates the config.
func Load() (App, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return App{}, fmt.Errorf("load .env: %w", err)
	}
	cfg, err := FromEnv()
	if err != nil {
		return App{}, err
	}
	return cfg, cfg.Validate()
}

// FromEnv populates App from the process environment with defaults.
func FromEnv() (App, error) {
	var errs []error
	cfg := App{
		Env:             getEnv("APP_ENV", "dev"),
		HTTPPort:        getEnv("PORT", "5000"),
		Backend:         strings.ToLower(getEnv("DB_BACKEND", BackendSupabase)),
		SupabaseURL:     strings.TrimRight(getEnv("SUPABASE_URL", ""), "/"),
		SupabaseKey:     getEnv("SUPABASE_KEY", ""),
		Table:           getEnv("TABLE", getEnv("SUPABASE_TABLE", "absensi")),
		SupabaseTimeout: durationEnv("SUPABASE_TIMEOUT", 10*time.Second, &errs),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		DailyUnique:     boolEnv("DAILY_UNIQUE", false, &errs),
		SecretKey:       getEnv("SECRET_KEY", "absensi-secret-key-2024"),
		SessionTTL:      durationEnv("SESSION_TTL", 30*24*time.Hour, &errs),
		Timezone:        getEnv("TIMEZONE", "Asia/Jakarta"),
		CheckPolicy:     strings.ToLower(getEnv("CHECK_POLICY", PolicyFailOpen)),
		Guard:           strings.ToLower(getEnv("GUARD", GuardNone)),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RateLimitPerMin: intEnv("RATE_LIMIT_PER_MIN", 120, &errs),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       strings.ToLower(getEnv("LOG_FORMAT", "text")),
	}
	return cfg, errors.Join(errs...)
}

// Validate rejects configurations the service cannot start with.
func (c App) Validate() error {
	var errs []error
	switch c.Backend {
	case BackendSupabase:
		if c.SupabaseURL == "" || c.SupabaseKey == "" {
			errs = append(errs, errors.New("SUPABASE_URL and SUPABASE_KEY are required for the supabase backend"))
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres backend"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("DB_BACKEND: unknown backend %q", c.Backend))
	}
	if c.CheckPolicy != PolicyFailOpen && c.CheckPolicy != PolicyFailClosed {
		errs = append(errs, fmt.Errorf("CHECK_POLICY: want %s or %s, got %q", PolicyFailOpen, PolicyFailClosed, c.CheckPolicy))
	}
	if c.Guard != GuardNone && c.Guard != GuardRedis {
		errs = append(errs, fmt.Errorf("GUARD: want %s or %s, got %q", GuardNone, GuardRedis, c.Guard))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("TIMEZONE: %w", err))
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT: want text or json, got %q", c.LogFormat))
	}
	if c.SecretKey == "" {
		errs = append(errs, errors.New("SECRET_KEY must not be empty"))
	}
	return errors.Join(errs...)
}

// Location returns the configured day-boundary timezone.
func (c App) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Production reports whether gin should run in release mode.
func (c App) Production() bool {
	return c.Env == "production" || c.Env == "prod"
}

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func (c App) NewLogger() *logrus.Logger {
	log := logrus.New()
	if lvl, err := logrus.ParseLevel(c.LogLevel); err == nil {
		log.SetLevel(lvl)
	}
	if c.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}

func getEnv(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration, errs *[]error) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
			return fallback
		}
		return d
	}
	return fallback
}

func boolEnv(key string, fallback bool, errs *[]error) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
			return fallback
		}
		return b
	}
	return fallback
}

func intEnv(key string, fallback int, errs *[]error) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
			return fallback
		}
		return n
	}
	return fallback
}
