package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/irgordon/hostpanel/api/internal/adapters"
	"github.com/irgordon/hostpanel/api/internal/api/handlers"
	"github.com/irgordon/hostpanel/api/internal/api/middleware"
	"github.com/irgordon/hostpanel/api/internal/api/router"
	"github.com/irgordon/hostpanel/api/internal/config"
	"github.com/irgordon/hostpanel/api/internal/core/domain"
	"github.com/irgordon/hostpanel/api/internal/core/services"
	"github.com/irgordon/hostpanel/api/internal/db"
	"github.com/irgordon/hostpanel/api/internal/telemetry"
	"github.com/irgordon/hostpanel/api/internal/workers"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// --- 1. Core Telemetry & Configuration ---
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("FATAL: configuration rejected", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		logger.Warn("unknown LOG_LEVEL, using info", slog.String("log_level", cfg.LogLevel))
	}
	logger.Info("booting hostpanel", slog.String("version", version), slog.String("environment", cfg.Environment))

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	// --- 2. Outbound Infrastructure ---
	metrics := telemetry.NewMetrics()
	hub := telemetry.NewHub()

	var audit domain.AuditRepository = db.NopAuditRepository{}
	if cfg.AuditDSN != "" {
		conn, err := db.Open(rootCtx, cfg.AuditDriver, cfg.AuditDSN)
		if err != nil {
			logger.Error("FATAL: audit database unavailable", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer conn.Close()

		repo := db.NewAuditRepository(conn)
		if err := repo.Migrate(rootCtx); err != nil {
			logger.Error("FATAL: audit migration failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		audit = repo
	} else {
		logger.Info("AUDIT_DSN not set, audit log disabled")
	}

	layout := adapters.NewSiteLayout(cfg.SitesAvailable, cfg.SitesEnabled)
	nginx := adapters.NewNginxAdapter(cfg.NginxBinary, cfg.ReloadArgs(), cfg.CommandTimeout, metrics, logger)

	docker, err := adapters.NewDockerEngine(cfg.DockerHost, logger)
	if err != nil {
		logger.Error("FATAL: docker client", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer docker.Close()

	host, err := adapters.NewHostSnapshot("/proc")
	if err != nil {
		logger.Error("FATAL: host metrics", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// --- 3. Services ---
	proxyService := services.NewProxyService(layout, nginx, audit, hub, metrics, logger)
	authService := services.NewAdminAuthService(cfg.JWTSecret, cfg.AdminUsername, cfg.AdminPasswordHash)
	if !authService.Enabled() {
		logger.Warn("AUTH_JWT_SECRET not set, API authentication is disabled")
	}

	issuer := adapters.NewAcmeIssuer(cfg.ACMEDirectoryURL, cfg.ACMEWebroot, logger)
	certService := services.NewCertificateService(proxyService, issuer, cfg.CertDir, cfg.ACMEEmail, audit, hub, logger)

	// --- 4. Background Workers ---
	sweeper := workers.NewSiteSweeper(layout, hub, metrics, cfg.SweepSchedule, logger)
	if err := sweeper.Start(rootCtx); err != nil {
		logger.Error("FATAL: site sweeper", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if cfg.WatchSites {
		watcher, err := workers.NewSiteWatcher(hub, logger, cfg.SitesAvailable, cfg.SitesEnabled)
		if err != nil {
			// The directories may not exist yet; the API reports that per request.
			logger.Warn("site watcher disabled", slog.String("error", err.Error()))
		} else {
			go func() {
				if err := watcher.Watch(rootCtx); err != nil {
					logger.Error("site watcher exited", slog.String("error", err.Error()))
				}
			}()
			defer watcher.Stop()
		}
	}

	// --- 5. HTTP Gateway ---
	authMiddleware := middleware.NewAuthMiddleware(authService, logger)
	defer authMiddleware.Close()

	mux := router.NewRouter(router.RouterConfig{
		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         logger,
		AuthMiddleware: authMiddleware,
		AuthHandler:    handlers.NewAuthHandler(authService, cfg.IsProduction()),
		ProxyHandler:   handlers.NewProxyHandler(proxyService, certService, sweeper),
		SystemHandler:  handlers.NewSystemHandler(host, version),
		DockerHandler:  handlers.NewDockerHandler(docker),
		EventsHandler:  handlers.NewEventsHandler(hub, cfg.AllowedOrigins, logger),
		AuditHandler:   handlers.NewAuditHandler(audit),
		MetricsHandler: metrics.Handler(),
	})

	// No WriteTimeout: the event stream is long-lived.
	server := &http.Server{
		Addr:              cfg.BindAddress,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return rootCtx },
	}

	// --- 6. Graceful Exit ---
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("hostpanel API listening", slog.String("address", cfg.BindAddress))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-stop:
		logger.Info("shutting down")
	case err := <-serverErr:
		logger.Error("CRITICAL: server crashed", slog.String("error", err.Error()))
	}

	// Cancelling the base context ends event streams so Shutdown can drain.
	cancelRoot()
	sweeper.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", slog.String("error", err.Error()))
	}

	// Running issuances are cancelled rather than allowed their full timeout.
	certService.Shutdown()
	logger.Info("hostpanel stopped")
}
