package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/irgordon/hostpanel/api/internal/core/domain"
)

// ==============================================================================
// 1. Request Payloads (Input Validation)
// ==============================================================================

type ProxyRequest struct {
	Name        string `json:"name" validate:"required,sitename"`
	Domain      string `json:"domain" validate:"required,max=253,directive"`
	Backend     string `json:"backend" validate:"required,max=2048,directive"`
	SSL         bool   `json:"ssl"`
	ExtraConfig string `json:"extra_config" validate:"max=65536"`
}

func (p ProxyRequest) definition() domain.ProxyDefinition {
	return domain.ProxyDefinition{
		Name:        p.Name,
		Domain:      p.Domain,
		Backend:     p.Backend,
		SSL:         p.SSL,
		ExtraConfig: p.ExtraConfig,
	}
}

type FormatRequest struct {
	Config string `json:"config"`
}

type FormatResponse struct {
	Success   bool   `json:"success"`
	Formatted string `json:"formatted,omitempty"`
	Error     string `json:"error,omitempty"`
}

type CertificateRequestBody struct {
	Email string `json:"email" validate:"omitempty,email"`
}

// ==============================================================================
// 2. The Handler Struct (Dependency Injection)
// ==============================================================================

// CertificateRequester starts background certificate issuance.
type CertificateRequester interface {
	Request(ctx context.Context, name, email string) (*domain.CertificateRequest, error)
}

// SweepReporter exposes the most recent maintenance sweep.
type SweepReporter interface {
	LastReport() *domain.SweepReport
}

type ProxyHandler struct {
	Service      domain.ProxyService
	Certificates CertificateRequester
	Sweeps       SweepReporter
}

func NewProxyHandler(service domain.ProxyService, certs CertificateRequester, sweeps SweepReporter) *ProxyHandler {
	return &ProxyHandler{
		Service:      service,
		Certificates: certs,
		Sweeps:       sweeps,
	}
}

// ==============================================================================
// 3. HTTP Methods
// ==============================================================================

// List handles GET /api/nginx/proxies. Directory problems come back as a 200
// with a warning or error field.
func (h *ProxyHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Service.List(r.Context()))
}

// Create handles POST /api/nginx/proxies
func (h *ProxyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req ProxyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if err := validate.Struct(req); err != nil {
		HandleError(w, r, err)
		return
	}

	res, err := h.Service.Upsert(r.Context(), req.definition())
	if err != nil {
		HandleError(w, r, err)
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeMessage(w, status, res.Message)
}

// Update handles PUT /api/nginx/proxies/{name}
func (h *ProxyHandler) Update(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req ProxyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if err := validate.Struct(req); err != nil {
		HandleError(w, r, err)
		return
	}

	res, err := h.Service.Update(r.Context(), name, req.definition())
	if err != nil {
		HandleError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, res.Message)
}

// Delete handles DELETE /api/nginx/proxies/{name}. A failed reload is still a
// successful delete; the message says so.
func (h *ProxyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	res, err := h.Service.Remove(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		HandleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		statusResponse
		ReloadError string `json:"reload_error,omitempty"`
	}{statusResponse{Success: true, Message: res.Message}, res.ReloadError})
}

// Format handles POST /api/nginx/format. Syntax problems are a normal
// response, not an HTTP error.
func (h *ProxyHandler) Format(w http.ResponseWriter, r *http.Request) {
	var req FormatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	formatted, err := h.Service.Format(req.Config)
	if err != nil {
		writeJSON(w, http.StatusOK, FormatResponse{Success: false, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, FormatResponse{Success: true, Formatted: formatted})
}

// RequestCertificate handles POST /api/nginx/proxies/{name}/certificate.
// Issuance runs in the background; progress arrives on the event stream.
func (h *ProxyHandler) RequestCertificate(w http.ResponseWriter, r *http.Request) {
	var body CertificateRequestBody
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &body); err != nil {
			writeMessage(w, http.StatusBadRequest, "invalid JSON payload")
			return
		}
		if err := validate.Struct(body); err != nil {
			HandleError(w, r, err)
			return
		}
	}

	accepted, err := h.Certificates.Request(r.Context(), chi.URLParam(r, "name"), body.Email)
	if err != nil {
		HandleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, accepted)
}

// SweepReport handles GET /api/nginx/sweep
func (h *ProxyHandler) SweepReport(w http.ResponseWriter, r *http.Request) {
	report := h.Sweeps.LastReport()
	if report == nil {
		writeMessage(w, http.StatusNotFound, "no sweep has run yet")
		return
	}
	writeJSON(w, http.StatusOK, report)
}
