package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds every runtime setting for the panel.
// Precedence: environment > .env > YAML file (HOSTPANEL_CONFIG) > defaults.
type Config struct {
	Environment    string   `yaml:"environment"`
	BindAddress    string   `yaml:"bind_address"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	LogLevel       string   `yaml:"log_level"`

	// nginx layout and tooling
	SitesAvailable string        `yaml:"sites_available"`
	SitesEnabled   string        `yaml:"sites_enabled"`
	NginxBinary    string        `yaml:"nginx_binary"`
	ReloadCommand  string        `yaml:"reload_command"`
	CommandTimeout time.Duration `yaml:"command_timeout"`

	DockerHost string `yaml:"docker_host"`

	// Identity
	JWTSecret         string `yaml:"jwt_secret"`
	AdminUsername     string `yaml:"admin_username"`
	AdminPasswordHash string `yaml:"admin_password_hash"`

	// Audit log; an empty DSN disables persistence.
	AuditDriver string `yaml:"audit_driver"`
	AuditDSN    string `yaml:"audit_dsn"`

	// Maintenance workers
	SweepSchedule string `yaml:"sweep_schedule"`
	WatchSites    bool   `yaml:"watch_sites"`

	// ACME
	ACMEDirectoryURL string `yaml:"acme_directory_url"`
	ACMEWebroot      string `yaml:"acme_webroot"`
	ACMEEmail        string `yaml:"acme_email"`
	CertDir          string `yaml:"cert_dir"`
}

const minJWTSecretLen = 32

// Defaults returns the configuration used when nothing else is set.
func Defaults() *Config {
	return &Config{
		Environment:      "production",
		BindAddress:      "0.0.0.0:8080",
		LogLevel:         "info",
		SitesAvailable:   "/etc/nginx/sites-available",
		SitesEnabled:     "/etc/nginx/sites-enabled",
		NginxBinary:      "nginx",
		ReloadCommand:    "systemctl reload nginx",
		CommandTimeout:   30 * time.Second,
		DockerHost:       "unix:///var/run/docker.sock",
		AdminUsername:    "admin",
		AuditDriver:      "sqlite",
		SweepSchedule:    "*/15 * * * *",
		WatchSites:       true,
		ACMEDirectoryURL: "https://acme-v02.api.letsencrypt.org/directory",
		ACMEWebroot:      "/var/www/html",
		CertDir:          "/etc/letsencrypt/live",
	}
}

// Load builds the configuration from all layers and validates the result.
func Load() (*Config, error) {
	cfg := Defaults()

	// 1. Optional YAML file
	if path, ok := os.LookupEnv("HOSTPANEL_CONFIG"); ok && path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	// 2. .env never overrides variables already present in the process
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to parse .env: %w", err)
	}

	// 3. Environment
	cfg.Environment = getEnv("HOSTPANEL_ENV", cfg.Environment)
	cfg.BindAddress = getEnv("SERVER_BIND_ADDRESS", cfg.BindAddress)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.SitesAvailable = getEnv("NGINX_SITES_AVAILABLE", cfg.SitesAvailable)
	cfg.SitesEnabled = getEnv("NGINX_SITES_ENABLED", cfg.SitesEnabled)
	cfg.NginxBinary = getEnv("NGINX_BINARY", cfg.NginxBinary)
	cfg.ReloadCommand = getEnv("NGINX_RELOAD_COMMAND", cfg.ReloadCommand)
	cfg.DockerHost = getEnv("DOCKER_SOCKET_PATH", cfg.DockerHost)
	cfg.JWTSecret = getEnv("AUTH_JWT_SECRET", cfg.JWTSecret)
	cfg.AdminUsername = getEnv("ADMIN_USERNAME", cfg.AdminUsername)
	cfg.AdminPasswordHash = getEnv("ADMIN_PASSWORD_HASH", cfg.AdminPasswordHash)
	cfg.AuditDriver = getEnv("AUDIT_DRIVER", cfg.AuditDriver)
	cfg.AuditDSN = getEnv("AUDIT_DSN", cfg.AuditDSN)
	cfg.SweepSchedule = getEnv("SWEEP_SCHEDULE", cfg.SweepSchedule)
	cfg.ACMEDirectoryURL = getEnv("ACME_DIRECTORY_URL", cfg.ACMEDirectoryURL)
	cfg.ACMEWebroot = getEnv("ACME_WEBROOT", cfg.ACMEWebroot)
	cfg.ACMEEmail = getEnv("ACME_EMAIL", cfg.ACMEEmail)
	cfg.CertDir = getEnv("CERT_DIR", cfg.CertDir)

	if raw, ok := os.LookupEnv("CORS_ALLOWED_ORIGINS"); ok {
		cfg.AllowedOrigins = splitList(raw)
	}

	timeout, err := getDuration("NGINX_COMMAND_TIMEOUT", cfg.CommandTimeout)
	if err != nil {
		return nil, err
	}
	cfg.CommandTimeout = timeout

	watch, err := getBool("SITES_WATCH", cfg.WatchSites)
	if err != nil {
		return nil, err
	}
	cfg.WatchSites = watch

	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsProduction reports whether strict checks apply.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// AuthEnabled is false only in development without a signing key.
func (c *Config) AuthEnabled() bool {
	return c.JWTSecret != ""
}

// ReloadArgs splits the reload command into argv form.
func (c *Config) ReloadArgs() []string {
	return strings.Fields(c.ReloadCommand)
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) finalize() error {
	if c.SitesAvailable == "" || c.SitesEnabled == "" {
		return errors.New("NGINX_SITES_AVAILABLE and NGINX_SITES_ENABLED must not be empty")
	}
	if len(c.ReloadArgs()) == 0 {
		return errors.New("NGINX_RELOAD_COMMAND must not be empty")
	}
	if c.CommandTimeout <= 0 {
		return errors.New("NGINX_COMMAND_TIMEOUT must be positive")
	}

	switch c.AuditDriver {
	case "sqlite", "pgx":
	default:
		return fmt.Errorf("AUDIT_DRIVER must be sqlite or pgx, got %q", c.AuditDriver)
	}

	if !c.IsProduction() {
		if len(c.AllowedOrigins) == 0 {
			c.AllowedOrigins = []string{"http://localhost:5173"}
		}
		return nil
	}

	// Production: refuse to boot without a signing key or an explicit CORS policy.
	if c.JWTSecret == "" {
		return errors.New("AUTH_JWT_SECRET is required in production")
	}
	if len(c.JWTSecret) < minJWTSecretLen {
		return fmt.Errorf("AUTH_JWT_SECRET must be at least %d characters", minJWTSecretLen)
	}
	if len(c.AllowedOrigins) == 0 {
		return errors.New("CORS_ALLOWED_ORIGINS is required in production")
	}
	return nil
}

// getEnv retrieves an environment variable or returns a fallback value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return d, nil
}

func getBool(key string, fallback bool) (bool, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return b, nil
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
