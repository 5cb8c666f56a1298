package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/irgordon/hostpanel/api/internal/core/domain"
)

type statusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, statusResponse{Success: status < 400, Message: message})
}

// HandleError maps core errors onto HTTP statuses. Anything it does not
// recognise is logged and reported as a generic 500.
func HandleError(w http.ResponseWriter, r *http.Request, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		writeMessage(w, http.StatusBadRequest, describeValidation(verrs))
		return
	}

	var pe *domain.ProxyError
	if !errors.As(err, &pe) {
		slog.Default().Error("unhandled error",
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeMessage(w, http.StatusInternalServerError, "internal server error")
		return
	}

	status := statusFor(err)
	if status >= 500 {
		slog.Default().Error("request failed",
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
	writeMessage(w, status, pe.UserMessage())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrRollback):
		return http.StatusInternalServerError
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrConflict):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func describeValidation(verrs validator.ValidationErrors) string {
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "sitename":
			msgs = append(msgs, field+" may only contain letters, digits, '.', '_' and '-'")
		case "directive":
			msgs = append(msgs, field+" must not contain ';', '{', '}' or control characters")
		case "max":
			msgs = append(msgs, field+" must be at most "+fe.Param()+" characters")
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return strings.Join(msgs, "; ")
}
