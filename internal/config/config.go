package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const developmentJWTSecret = "dev-only-insecure-secret-change-me"

type Config struct {
	AppEnv          string
	Port            string
	StorageBackend  string
	DatabaseURL     string
	MigrateOnStart  bool
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	ResetCodeTTL    time.Duration
	ResetCodeLength int
	FrontendBaseURL string
	AllowOrigins    []string
	CookieSecure    bool

	AuthProtectedPrefixes []string
	AuthExcludedPrefixes  []string
	RateLimitPerSecond    float64
	RateLimitTrustProxy   bool

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string
	SMTPTimeout  time.Duration

	SweepSchedule   string
	SweepBatchSize  int
	HashConcurrency int

	LogLevel        string
	LogstashTCPAddr string
}

// IsDevelopment reports whether insecure local defaults are allowed.
func (c Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// Load reads the environment (and an optional .env file) into a Config.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	cfg := Config{
		AppEnv:          strings.ToLower(getenv("APP_ENV", "development")),
		Port:            getenv("PORT", "8080"),
		StorageBackend:  strings.ToLower(getenv("STORAGE_BACKEND", "postgres")),
		DatabaseURL:     databaseURL(),
		MigrateOnStart:  getenv("MIGRATE_ON_START", "false") == "true",
		FrontendBaseURL: strings.TrimRight(getenv("FRONTEND_BASE_URL", "http://localhost:3000"), "/"),
		AllowOrigins:    splitAndTrim(getenv("ALLOW_ORIGINS", "*"), []string{"*"}),
		CookieSecure:    getenv("COOKIE_SECURE", "true") == "true",

		AuthProtectedPrefixes: splitAndTrim(getenv("AUTH_PROTECTED_PREFIXES", ""), []string{"/users", "/expenses"}),
		AuthExcludedPrefixes:  splitAndTrim(getenv("AUTH_EXCLUDED_PREFIXES", ""), []string{"/auth", "/swagger", "/health"}),
		RateLimitTrustProxy:   getenv("RATE_LIMIT_TRUST_PROXY_HEADERS", "false") == "true",

		SMTPHost:     getenv("SMTP_HOST", ""),
		SMTPUsername: getenv("SMTP_USERNAME", ""),
		SMTPPassword: getenv("SMTP_PASSWORD", ""),
		SMTPFrom:     getenv("SMTP_FROM", ""),
		SMTPFromName: getenv("SMTP_FROM_NAME", "Expense Tracker"),

		SweepSchedule: getenv("SWEEP_SCHEDULE", "0 2 * * 0"),

		LogLevel:        strings.ToUpper(getenv("LOG_LEVEL", "INFO")),
		LogstashTCPAddr: getenv("LOGSTASH_TCP_ADDR", ""),
	}

	var err error
	if cfg.AccessTokenTTL, err = duration("ACCESS_TOKEN_TTL", "60m"); err != nil {
		return Config{}, err
	}
	if cfg.RefreshTokenTTL, err = duration("REFRESH_TOKEN_TTL", "720h"); err != nil {
		return Config{}, err
	}
	if cfg.ResetCodeTTL, err = duration("RESET_CODE_TTL", "10m"); err != nil {
		return Config{}, err
	}
	if cfg.SMTPTimeout, err = duration("SMTP_TIMEOUT", "15s"); err != nil {
		return Config{}, err
	}
	if cfg.ResetCodeLength, err = positiveInt("RESET_CODE_LENGTH", "6"); err != nil {
		return Config{}, err
	}
	if cfg.SMTPPort, err = positiveInt("SMTP_PORT", "587"); err != nil {
		return Config{}, err
	}
	if cfg.SweepBatchSize, err = positiveInt("SWEEP_BATCH_SIZE", "500"); err != nil {
		return Config{}, err
	}
	if cfg.HashConcurrency, err = positiveInt("HASH_CONCURRENCY", "4"); err != nil {
		return Config{}, err
	}
	rate, err := strconv.ParseFloat(getenv("RATE_LIMIT_PER_SECOND", "5"), 64)
	if err != nil || rate < 0 {
		return Config{}, fmt.Errorf("invalid RATE_LIMIT_PER_SECOND: %q", os.Getenv("RATE_LIMIT_PER_SECOND"))
	}
	cfg.RateLimitPerSecond = rate

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		if !cfg.IsDevelopment() {
			return Config{}, fmt.Errorf("missing env: JWT_SECRET")
		}
		log.Printf("Warning: JWT_SECRET not set, using the development secret")
		cfg.JWTSecret = developmentJWTSecret
	}

	switch cfg.StorageBackend {
	case "postgres", "memory":
	default:
		return Config{}, fmt.Errorf("invalid STORAGE_BACKEND: %q", cfg.StorageBackend)
	}

	return cfg, nil
}

// databaseURL prefers DATABASE_URL and otherwise assembles one from the DB_* parts.
func databaseURL() string {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		return v
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(getenv("DB_USER", "postgres"), getenv("DB_PASSWORD", "passw0rd")),
		Host:     getenv("DB_HOST", "localhost") + ":" + getenv("DB_PORT", "5432"),
		Path:     "/" + getenv("DB_NAME", "postgres"),
		RawQuery: "sslmode=" + getenv("DB_SSLMODE", "disable"),
	}
	return u.String()
}

func duration(k, d string) (time.Duration, error) {
	v, err := time.ParseDuration(getenv(k, d))
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", k, os.Getenv(k))
	}
	return v, nil
}

func positiveInt(k, d string) (int, error) {
	v, err := strconv.Atoi(getenv(k, d))
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", k, os.Getenv(k))
	}
	return v, nil
}

func splitAndTrim(input string, fallback []string) []string {
	parts := strings.Split(input, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
