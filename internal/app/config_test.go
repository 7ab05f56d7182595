package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/taskhub/internal/auth"
)

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join("testdata")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)
	require.Equal(t, 20*time.Second, cfg.Server.ShutdownTimeout)

	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, "db.example.com", cfg.Database.Postgres.Host)
	require.Equal(t, 5433, cfg.Database.Postgres.Port)
	require.Equal(t, 20, cfg.Database.MaxOpenConns)

	require.Equal(t, "jwt-secret", cfg.Auth.JWT.Secret)
	require.Equal(t, "taskhub-test", cfg.Auth.JWT.Issuer)
	require.Equal(t, 30*time.Minute, cfg.Auth.JWT.TTL)

	require.True(t, cfg.Notifications.Async)
	require.Equal(t, 3*time.Second, cfg.Notifications.PushTimeout)
	require.Equal(t, 50, cfg.Notifications.ListLimit)

	require.Equal(t, PushProviderWebhook, cfg.Push.Provider)
	require.Equal(t, 250, cfg.Push.BatchSize)
	require.Equal(t, "https://push.example.com/send", cfg.Push.Webhook.URL)
	require.Equal(t, "push-key", cfg.Push.Webhook.APIKey)
	require.Equal(t, 2*time.Second, cfg.Push.Webhook.Timeout)

	// defaults survive for keys the file omits
	require.True(t, cfg.Monitoring.Prometheus.Enabled)
	require.Equal(t, "/metrics", cfg.Monitoring.Prometheus.Endpoint)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, "./data/taskhub.sqlite", cfg.Database.Path)
	require.Equal(t, PushProviderRealtime, cfg.Push.Provider)
	require.Equal(t, 500, cfg.Push.BatchSize)
	require.Equal(t, 10*time.Second, cfg.Notifications.PushTimeout)
	require.Equal(t, 200, cfg.Notifications.ListLimit)
	require.False(t, cfg.Notifications.Async)
	require.Empty(t, cfg.Auth.JWT.Secret)
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	t.Setenv("TASKHUB_SERVER_PORT", "7070")
	t.Setenv("TASKHUB_PUSH_PROVIDER", "none")
	t.Setenv("TASKHUB_NOTIFICATIONS_PUSH_TIMEOUT", "1s")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 7070, cfg.Server.Port)
	require.Equal(t, PushProviderNone, cfg.Push.Provider)
	require.Equal(t, time.Second, cfg.Notifications.PushTimeout)
}

func TestLoadConfigRejectsInvalidPushProvider(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("push:\n  provider: carrier-pigeon\n"), 0o600))

	_, err := LoadConfig(dir)
	require.Error(t, err)
	require.Contains(t, err.Error(), "carrier-pigeon")
}

func TestValidateWebhookRequiresURL(t *testing.T) {
	cfg := Config{Push: PushConfig{Provider: PushProviderWebhook}}
	require.Error(t, cfg.Validate())

	cfg.Push.Webhook.URL = "https://push.example.com"
	require.NoError(t, cfg.Validate())
}

func TestAuthConfigAdapters(t *testing.T) {
	cfg := Config{
		Auth: AuthConfig{
			JWT: JWTSettings{
				Secret: "secret",
				Issuer: "issuer",
				TTL:    30 * time.Minute,
			},
		},
	}

	jwtCfg := cfg.Auth.JWTServiceConfig()
	require.Equal(t, auth.JWTConfig{
		Secret:         "secret",
		Issuer:         "issuer",
		AccessTokenTTL: 30 * time.Minute,
	}, jwtCfg)
}

func TestAuthConfigAdaptersFallback(t *testing.T) {
	var cfg AuthConfig

	jwtCfg := cfg.JWTServiceConfig()
	require.Equal(t, auth.DefaultAccessTokenTTL, jwtCfg.AccessTokenTTL)
}

func TestDatabaseConnectionConfig(t *testing.T) {
	cfg := DatabaseConfig{
		Driver: "Postgres",
		Postgres: DBAuthConfig{
			Host:     "db",
			Port:     5432,
			Database: "taskhub",
			Username: "svc",
			Password: "pw",
		},
		MaxOpenConns: 5,
	}

	conn := cfg.ConnectionConfig()
	require.Equal(t, "postgres", conn.Driver)
	require.Equal(t, "db", conn.Host)
	require.Equal(t, 5432, conn.Port)
	require.Equal(t, "taskhub", conn.Name)
	require.Equal(t, "svc", conn.User)
	require.Equal(t, "pw", conn.Password)
	require.Equal(t, 5, conn.MaxOpenConns)

	sqlite := DatabaseConfig{Driver: "sqlite", Path: "/tmp/x.sqlite", MySQL: DBAuthConfig{Host: "ignored"}}.ConnectionConfig()
	require.Equal(t, "/tmp/x.sqlite", sqlite.Path)
	require.Empty(t, sqlite.Host)
}
