package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var managedKeys = []string{
	"HOSTPANEL_CONFIG", "HOSTPANEL_ENV", "SERVER_BIND_ADDRESS", "LOG_LEVEL",
	"NGINX_SITES_AVAILABLE", "NGINX_SITES_ENABLED", "NGINX_BINARY", "NGINX_RELOAD_COMMAND",
	"NGINX_COMMAND_TIMEOUT", "DOCKER_SOCKET_PATH", "AUTH_JWT_SECRET", "ADMIN_USERNAME",
	"ADMIN_PASSWORD_HASH", "AUDIT_DRIVER", "AUDIT_DSN", "SWEEP_SCHEDULE", "SITES_WATCH",
	"ACME_DIRECTORY_URL", "ACME_WEBROOT", "ACME_EMAIL", "CERT_DIR", "CORS_ALLOWED_ORIGINS",
}

// clearEnv unsets every key Load reads; t.Setenv restores the originals afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range managedKeys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoad_Development(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOSTPANEL_ENV", "development")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "0.0.0.0:8080", cfg.BindAddress)
	assert.Equal(t, "/etc/nginx/sites-available", cfg.SitesAvailable)
	assert.Equal(t, "/etc/nginx/sites-enabled", cfg.SitesEnabled)
	assert.Equal(t, "unix:///var/run/docker.sock", cfg.DockerHost)
	assert.Equal(t, 30*time.Second, cfg.CommandTimeout)
	assert.Equal(t, []string{"systemctl", "reload", "nginx"}, cfg.ReloadArgs())
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.AllowedOrigins)
	assert.False(t, cfg.AuthEnabled())
	assert.True(t, cfg.WatchSites)
}

func TestLoad_Production(t *testing.T) {
	t.Run("Missing secret", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("CORS_ALLOWED_ORIGINS", "https://panel.example.com")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "AUTH_JWT_SECRET")
	})

	t.Run("Short secret", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("AUTH_JWT_SECRET", "too-short")
		t.Setenv("CORS_ALLOWED_ORIGINS", "https://panel.example.com")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "at least 32")
	})

	t.Run("Missing CORS", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("AUTH_JWT_SECRET", "supersecret-at-least-32-chars-long-123")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "CORS_ALLOWED_ORIGINS")
	})

	t.Run("Complete", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("AUTH_JWT_SECRET", "supersecret-at-least-32-chars-long-123")
		t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")
		t.Setenv("NGINX_COMMAND_TIMEOUT", "5s")
		t.Setenv("SITES_WATCH", "false")

		cfg, err := Load()
		require.NoError(t, err)
		assert.True(t, cfg.IsProduction())
		assert.True(t, cfg.AuthEnabled())
		assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.AllowedOrigins)
		assert.Equal(t, 5*time.Second, cfg.CommandTimeout)
		assert.False(t, cfg.WatchSites)
	})
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := map[string]string{
		"NGINX_COMMAND_TIMEOUT": "soon",
		"SITES_WATCH":           "maybe",
		"AUDIT_DRIVER":          "mysql",
		"NGINX_RELOAD_COMMAND":  "   ",
	}

	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("HOSTPANEL_ENV", "development")
			t.Setenv(key, value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_FileLayer(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "hostpanel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
environment: development
bind_address: 127.0.0.1:9000
sites_available: /srv/nginx/available
sites_enabled: /srv/nginx/enabled
command_timeout: 45s
audit_dsn: /var/lib/hostpanel/audit.db
`), 0o600))

	t.Setenv("HOSTPANEL_CONFIG", path)
	t.Setenv("NGINX_SITES_ENABLED", "/override/enabled")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "127.0.0.1:9000", cfg.BindAddress)
	assert.Equal(t, "/srv/nginx/available", cfg.SitesAvailable)
	assert.Equal(t, "/override/enabled", cfg.SitesEnabled, "environment wins over the file")
	assert.Equal(t, 45*time.Second, cfg.CommandTimeout)
	assert.Equal(t, "/var/lib/hostpanel/audit.db", cfg.AuditDSN)
	assert.Equal(t, "sqlite", cfg.AuditDriver, "defaults survive a partial file")
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOSTPANEL_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := Load()
	assert.Error(t, err)
}
