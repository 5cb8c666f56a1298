package router

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/irgordon/hostpanel/api/internal/api/handlers"
	auth_middleware "github.com/irgordon/hostpanel/api/internal/api/middleware"
)

const maxRequestBody = 1 << 20

// RouterConfig defines the dependencies required to build the API routing tree.
type RouterConfig struct {
	AllowedOrigins []string
	Logger         *slog.Logger
	AuthMiddleware *auth_middleware.AuthMiddleware
	AuthHandler    *handlers.AuthHandler
	ProxyHandler   *handlers.ProxyHandler
	SystemHandler  *handlers.SystemHandler
	DockerHandler  *handlers.DockerHandler
	EventsHandler  *handlers.EventsHandler
	AuditHandler   *handlers.AuditHandler
	MetricsHandler http.Handler
}

// NewRouter constructs the Chi multiplexer, attaches global middleware, and wires all endpoints.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// =========================================================================
	// 1. Global Gateway Middleware Pipeline
	// =========================================================================

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(auth_middleware.StructuredLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(auth_middleware.MaxBytes(maxRequestBody))
	r.Use(cfg.AuthMiddleware.RateLimit)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Link", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// =========================================================================
	// 2. Public Surface
	// =========================================================================

	r.Get("/", cfg.SystemHandler.Index)
	r.Get("/health", cfg.SystemHandler.Health)
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	// =========================================================================
	// 3. API Routing Tree
	// =========================================================================

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", cfg.AuthHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(cfg.AuthMiddleware.RequireAuthentication)

			// --- Reverse proxies ---
			r.Route("/nginx", func(r chi.Router) {
				r.Get("/proxies", cfg.ProxyHandler.List)
				r.Post("/proxies", cfg.ProxyHandler.Create)
				r.Put("/proxies/{name}", cfg.ProxyHandler.Update)
				r.Delete("/proxies/{name}", cfg.ProxyHandler.Delete)
				r.Post("/proxies/{name}/certificate", cfg.ProxyHandler.RequestCertificate)
				r.Post("/format", cfg.ProxyHandler.Format)
				r.Get("/sweep", cfg.ProxyHandler.SweepReport)
			})

			// --- Live events ---
			r.Get("/events", cfg.EventsHandler.Stream)
			r.Get("/events/ws", cfg.EventsHandler.WebSocket)

			r.Get("/audit", cfg.AuditHandler.List)

			// --- Host ---
			r.Get("/system", cfg.SystemHandler.SystemInfo)
			r.Get("/cpu", cfg.SystemHandler.CPUInfo)
			r.Get("/cpu/usage", cfg.SystemHandler.CPUUsage)
			r.Get("/memory", cfg.SystemHandler.Memory)
			r.Get("/disks", cfg.SystemHandler.Disks)
			r.Get("/network", cfg.SystemHandler.Network)
			r.Get("/processes", cfg.SystemHandler.Processes)
			r.Delete("/processes/{pid}", cfg.SystemHandler.KillProcess)
			r.Get("/load", cfg.SystemHandler.LoadAverage)

			// --- Docker ---
			r.Route("/docker", func(r chi.Router) {
				r.Get("/containers", cfg.DockerHandler.ListContainers)
				r.Post("/containers/{id}/start", cfg.DockerHandler.StartContainer)
				r.Post("/containers/{id}/stop", cfg.DockerHandler.StopContainer)
				r.Post("/containers/{id}/restart", cfg.DockerHandler.RestartContainer)
				r.Delete("/containers/{id}", cfg.DockerHandler.RemoveContainer)
				r.Get("/containers/{id}/logs", cfg.DockerHandler.ContainerLogs)
				r.Get("/images", cfg.DockerHandler.ListImages)
				r.Delete("/images/{id}", cfg.DockerHandler.RemoveImage)
				r.Get("/volumes", cfg.DockerHandler.ListVolumes)
				r.Delete("/volumes/{name}", cfg.DockerHandler.RemoveVolume)
				r.Get("/networks", cfg.DockerHandler.ListNetworks)
				r.Delete("/networks/{id}", cfg.DockerHandler.RemoveNetwork)
			})
		})
	})

	return r
}
