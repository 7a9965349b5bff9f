package app

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/uiauth/internal/uiauth/captcha"
	"github.com/aussiebroadwan/uiauth/internal/uiauth/service"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, key := range []string{
		"UIAUTH_SERVER_NAME", "UIAUTH_MACAROON_SECRET_KEY", "UIAUTH_RECAPTCHA_PUBLIC_KEY",
		"UIAUTH_RECAPTCHA_PRIVATE_KEY", "UIAUTH_RECAPTCHA_SITEVERIFY_API", "UIAUTH_TRUSTED_ID_SERVERS",
		"UIAUTH_ID_SERVER_SCHEME", "UIAUTH_DATABASE_FILE", "UIAUTH_PEPPER_FILE", "UIAUTH_NONCE_BACKEND",
		"UIAUTH_REDIS_URL", "UIAUTH_SESSION_TTL", "HOUSEKEEPING_INTERVAL", "RATELIMIT_STAGE_REQUESTS",
		"RATELIMIT_STAGE_WINDOW_SEC", "RATELIMIT_STAGE_BURST", "ENV", "LOG_LEVEL", "LOG_FORMAT",
		"METRICS_PORT", "SHUTDOWN_GRACE_PERIOD",
	} {
		t.Setenv(key, "")
	}

	want := Config{
		ServerName:             "localhost",
		RecaptchaSiteVerifyAPI: captcha.DefaultSiteVerifyURL,
		IDServerScheme:         "https",
		DatabaseFile:           "uiauth.db",
		PepperFile:             "pepper",
		NonceBackend:           NonceBackendMemory,
		SessionTTL:             time.Hour,
		HousekeepingInterval:   60 * time.Second,
		StageLimit:             service.DefaultStageLimit,
		Env:                    "dev",
		LogLevel:               "info",
		LogFormat:              "json",
		ShutdownGracePeriod:    10 * time.Second,
	}
	if diff := cmp.Diff(want, LoadConfig()); diff != "" {
		t.Fatalf("LoadConfig() mismatch (-want +got):\n%s", diff)
	}
	require.NoError(t, want.Validate())
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("UIAUTH_SERVER_NAME", "matrix.example.com")
	t.Setenv("UIAUTH_TRUSTED_ID_SERVERS", " id.example.com, ,vector.im ")
	t.Setenv("UIAUTH_NONCE_BACKEND", "REDIS")
	t.Setenv("UIAUTH_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("UIAUTH_SESSION_TTL", "90") // seconds
	t.Setenv("HOUSEKEEPING_INTERVAL", "2m")
	t.Setenv("RATELIMIT_STAGE_REQUESTS", "5")
	t.Setenv("RATELIMIT_STAGE_WINDOW_SEC", "30")
	t.Setenv("RATELIMIT_STAGE_BURST", "not-a-number")
	t.Setenv("METRICS_PORT", "9100")

	cfg := LoadConfig()
	require.Equal(t, "matrix.example.com", cfg.ServerName)
	require.Equal(t, []string{"id.example.com", "vector.im"}, cfg.TrustedIDServers)
	require.Equal(t, NonceBackendRedis, cfg.NonceBackend)
	require.Equal(t, 90*time.Second, cfg.SessionTTL)
	require.Equal(t, 2*time.Minute, cfg.HousekeepingInterval)
	require.Equal(t, service.RateLimitConfig{
		RequestsPerWindow: 5,
		Window:            30 * time.Second,
		Burst:             service.DefaultStageLimit.Burst,
	}, cfg.StageLimit)
	require.Equal(t, 9100, cfg.MetricsPort)
	require.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	base := Config{ServerName: "example.com", NonceBackend: NonceBackendMemory}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.NonceBackend = "etcd" }},
		{"redis without url", func(c *Config) { c.NonceBackend = NonceBackendRedis }},
		{"empty server name", func(c *Config) { c.ServerName = "" }},
		{"captcha without public key", func(c *Config) { c.RecaptchaPrivateKey = "secret" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			require.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}
