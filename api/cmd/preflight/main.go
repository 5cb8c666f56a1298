package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"

	"github.com/irgordon/hostpanel/api/internal/config"
	"github.com/irgordon/hostpanel/api/internal/db"
)

const minJWTSecretLen = 32

// check is one posture audit point. A nil error is a pass.
type check struct {
	name string
	run  func() error
}

func main() {
	fmt.Println("hostpanel preflight: checking host posture...")

	if err := godotenv.Load(); err != nil {
		fmt.Println("notice: no .env file found, checking process environment only")
	}

	defaults := config.Defaults()
	available := envOr("NGINX_SITES_AVAILABLE", defaults.SitesAvailable)
	enabled := envOr("NGINX_SITES_ENABLED", defaults.SitesEnabled)
	binary := envOr("NGINX_BINARY", defaults.NginxBinary)
	reload := strings.Fields(envOr("NGINX_RELOAD_COMMAND", defaults.ReloadCommand))

	checks := []check{
		{"sites-available is writable", func() error { return writable(available) }},
		{"sites-enabled is writable", func() error { return writable(enabled) }},
		{"nginx binary on PATH", func() error {
			_, err := exec.LookPath(binary)
			return err
		}},
		{"reload command on PATH", func() error {
			if len(reload) == 0 {
				return errors.New("NGINX_RELOAD_COMMAND is empty")
			}
			_, err := exec.LookPath(reload[0])
			return err
		}},
		{"JWT secret strength", func() error {
			secret := os.Getenv("AUTH_JWT_SECRET")
			if len(secret) < minJWTSecretLen {
				return fmt.Errorf("AUTH_JWT_SECRET must be at least %d characters (current: %d)", minJWTSecretLen, len(secret))
			}
			return nil
		}},
		{"admin password hash is bcrypt", func() error {
			hash := os.Getenv("ADMIN_PASSWORD_HASH")
			if hash == "" {
				return errors.New("ADMIN_PASSWORD_HASH is empty; every login will be rejected")
			}
			cost, err := bcrypt.Cost([]byte(hash))
			if err != nil {
				return fmt.Errorf("ADMIN_PASSWORD_HASH is not a bcrypt hash: %w", err)
			}
			if cost < bcrypt.DefaultCost {
				return fmt.Errorf("bcrypt cost %d is below %d", cost, bcrypt.DefaultCost)
			}
			return nil
		}},
		{"audit database reachable", func() error {
			dsn := os.Getenv("AUDIT_DSN")
			if dsn == "" {
				return nil
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			conn, err := db.Open(ctx, envOr("AUDIT_DRIVER", defaults.AuditDriver), dsn)
			if err != nil {
				return err
			}
			return conn.Close()
		}},
	}

	failed := false
	for _, c := range checks {
		if err := c.run(); err != nil {
			fmt.Printf("FAIL: %s: %v\n", c.name, err)
			failed = true
			continue
		}
		fmt.Printf("PASS: %s\n", c.name)
	}

	fmt.Println("--------------------------------------------------")
	if failed {
		fmt.Println("VERDICT: preflight failed. Fix the errors above before starting the API.")
		os.Exit(1)
	}
	fmt.Println("VERDICT: host is ready.")
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

// writable proves dir accepts new files the same way the API writes them.
func writable(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	f, err := os.CreateTemp(dir, ".preflight-*.tmp")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(filepath.Clean(name))
}
