package handlers

import (
	"net/http"
	"strconv"

	"github.com/irgordon/hostpanel/api/internal/core/domain"
)

type AuditHandler struct {
	Repo domain.AuditRepository
}

func NewAuditHandler(repo domain.AuditRepository) *AuditHandler {
	return &AuditHandler{Repo: repo}
}

// List handles GET /api/audit?limit=N. The repository clamps the limit.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}

	events, err := h.Repo.List(r.Context(), limit)
	if err != nil {
		HandleError(w, r, err)
		return
	}
	if events == nil {
		events = []domain.AuditEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}
