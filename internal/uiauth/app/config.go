package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/uiauth/internal/uiauth/captcha"
	"github.com/aussiebroadwan/uiauth/internal/uiauth/service"
)

// Nonce store backends.
const (
	NonceBackendMemory = "memory"
	NonceBackendRedis  = "redis"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	ServerName        string // Home server name used to qualify user ids and as macaroon location (default: localhost)
	MacaroonSecretKey string // Optional: macaroon root key; random per process when empty

	RecaptchaPublicKey     string // Optional: published to clients for the recaptcha stage
	RecaptchaPrivateKey    string // Optional: enables the recaptcha stage
	RecaptchaSiteVerifyAPI string // Optional: siteverify endpoint (default: Google)

	TrustedIDServers []string // Optional: identity servers trusted for email validation
	IDServerScheme   string   // Optional: scheme used to reach identity servers (default: https)

	DatabaseFile string // Optional: path to SQLite database file (default: ./uiauth.db)
	PepperFile   string // Optional: path to file containing pepper for password hashing (default: ./pepper)

	NonceBackend string // Optional: memory or redis (default: memory)
	RedisURL     string // Required for the redis nonce backend

	SessionTTL           time.Duration // Idle lifetime of interactive auth sessions (default: 1h)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 60s)
	StageLimit           service.RateLimitConfig

	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	MetricsPort         int           // Prometheus listener port, 0 disables it (default: 0)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
}

func LoadConfig() Config {
	return Config{
		ServerName:        getEnvOrDefault("UIAUTH_SERVER_NAME", "localhost"),
		MacaroonSecretKey: os.Getenv("UIAUTH_MACAROON_SECRET_KEY"),

		RecaptchaPublicKey:     os.Getenv("UIAUTH_RECAPTCHA_PUBLIC_KEY"),
		RecaptchaPrivateKey:    os.Getenv("UIAUTH_RECAPTCHA_PRIVATE_KEY"),
		RecaptchaSiteVerifyAPI: getEnvOrDefault("UIAUTH_RECAPTCHA_SITEVERIFY_API", captcha.DefaultSiteVerifyURL),

		TrustedIDServers: getEnvListOrDefault("UIAUTH_TRUSTED_ID_SERVERS", nil),
		IDServerScheme:   getEnvOrDefault("UIAUTH_ID_SERVER_SCHEME", "https"),

		DatabaseFile: getEnvOrDefault("UIAUTH_DATABASE_FILE", "uiauth.db"),
		PepperFile:   getEnvOrDefault("UIAUTH_PEPPER_FILE", "pepper"),

		NonceBackend: strings.ToLower(getEnvOrDefault("UIAUTH_NONCE_BACKEND", NonceBackendMemory)),
		RedisURL:     os.Getenv("UIAUTH_REDIS_URL"),

		SessionTTL:           getEnvDurationOrDefault("UIAUTH_SESSION_TTL", time.Hour),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", service.DefaultHousekeepingInterval),
		StageLimit: service.RateLimitConfig{
			RequestsPerWindow: getEnvIntOrDefault("RATELIMIT_STAGE_REQUESTS", service.DefaultStageLimit.RequestsPerWindow),
			Window:            time.Duration(getEnvIntOrDefault("RATELIMIT_STAGE_WINDOW_SEC", 60)) * time.Second,
			Burst:             getEnvIntOrDefault("RATELIMIT_STAGE_BURST", service.DefaultStageLimit.Burst),
		},

		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		MetricsPort:         getEnvIntOrDefault("METRICS_PORT", 0),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}
}

// Validate reports settings that cannot be started with.
func (c Config) Validate() error {
	switch c.NonceBackend {
	case NonceBackendMemory:
	case NonceBackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("%w: UIAUTH_REDIS_URL is required for the redis nonce backend", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown nonce backend %q", ErrInvalidConfig, c.NonceBackend)
	}
	if c.ServerName == "" {
		return fmt.Errorf("%w: server name is empty", ErrInvalidConfig)
	}
	if c.RecaptchaPrivateKey != "" && c.RecaptchaPublicKey == "" {
		return fmt.Errorf("%w: recaptcha private key set without a public key", ErrInvalidConfig)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are seconds.
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}

func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
