package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/irgordon/hostpanel/api/internal/core/domain"
)

const defaultProcessLimit = 50

// APIInfo is served at the root so operators can discover the surface.
type APIInfo struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description"`
	Endpoints   []string `json:"endpoints"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

type KillResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	PID     int    `json:"pid"`
}

type SystemHandler struct {
	Metrics domain.HostMetrics
	Version string
}

func NewSystemHandler(metrics domain.HostMetrics, version string) *SystemHandler {
	return &SystemHandler{Metrics: metrics, Version: version}
}

// Index handles GET /
func (h *SystemHandler) Index(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIInfo{
		Name:        "hostpanel",
		Version:     h.Version,
		Description: "Host resource monitoring, container control and nginx reverse proxy management",
		Endpoints: []string{
			"/api/system", "/api/cpu", "/api/cpu/usage", "/api/memory", "/api/disks",
			"/api/network", "/api/processes", "/api/load",
			"/api/nginx/proxies", "/api/nginx/format", "/api/nginx/sweep",
			"/api/docker/containers", "/api/docker/images", "/api/docker/volumes", "/api/docker/networks",
			"/api/events", "/api/audit", "/health", "/metrics",
		},
	})
}

// Health handles GET /health
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

func (h *SystemHandler) SystemInfo(w http.ResponseWriter, r *http.Request) {
	v, err := h.Metrics.SystemInfo(r.Context())
	respond(w, r, v, err)
}

func (h *SystemHandler) CPUInfo(w http.ResponseWriter, r *http.Request) {
	v, err := h.Metrics.CPUInfo(r.Context())
	respond(w, r, v, err)
}

// CPUUsage blocks for the sampling interval.
func (h *SystemHandler) CPUUsage(w http.ResponseWriter, r *http.Request) {
	v, err := h.Metrics.CPUUsage(r.Context())
	respond(w, r, v, err)
}

func (h *SystemHandler) Memory(w http.ResponseWriter, r *http.Request) {
	v, err := h.Metrics.Memory(r.Context())
	respond(w, r, v, err)
}

func (h *SystemHandler) Disks(w http.ResponseWriter, r *http.Request) {
	v, err := h.Metrics.Disks(r.Context())
	respond(w, r, v, err)
}

func (h *SystemHandler) Network(w http.ResponseWriter, r *http.Request) {
	v, err := h.Metrics.Network(r.Context())
	respond(w, r, v, err)
}

// Processes handles GET /api/processes?limit=N
func (h *SystemHandler) Processes(w http.ResponseWriter, r *http.Request) {
	limit := defaultProcessLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeMessage(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	v, err := h.Metrics.Processes(r.Context(), limit)
	respond(w, r, v, err)
}

func (h *SystemHandler) LoadAverage(w http.ResponseWriter, r *http.Request) {
	v, err := h.Metrics.LoadAverage(r.Context())
	respond(w, r, v, err)
}

// KillProcess handles DELETE /api/processes/{pid}
func (h *SystemHandler) KillProcess(w http.ResponseWriter, r *http.Request) {
	pid, err := strconv.Atoi(chi.URLParam(r, "pid"))
	if err != nil || pid <= 0 {
		writeMessage(w, http.StatusBadRequest, "invalid pid")
		return
	}

	name, err := h.Metrics.KillProcess(r.Context(), pid)
	if err != nil {
		HandleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, KillResponse{
		Success: true,
		Message: fmt.Sprintf("Process '%s' (PID: %d) terminated successfully", name, pid),
		PID:     pid,
	})
}

// respond writes v as JSON, or maps err.
func respond(w http.ResponseWriter, r *http.Request, v any, err error) {
	if err != nil {
		HandleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}
