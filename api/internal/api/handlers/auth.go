package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/irgordon/hostpanel/api/internal/core/domain"
	"github.com/irgordon/hostpanel/api/internal/core/services"
)

const accessTokenMaxAge = 15 * time.Minute

type LoginRequest struct {
	Username string `json:"username" validate:"required,max=128"`
	Password string `json:"password" validate:"required,max=1024"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type AuthHandler struct {
	Service      domain.AuthService
	SecureCookie bool
}

func NewAuthHandler(service domain.AuthService, secureCookie bool) *AuthHandler {
	return &AuthHandler{Service: service, SecureCookie: secureCookie}
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if !h.Service.Enabled() {
		writeMessage(w, http.StatusNotFound, "authentication is disabled")
		return
	}

	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if err := validate.Struct(req); err != nil {
		HandleError(w, r, err)
		return
	}

	token, err := h.Service.Login(r.Context(), req.Username, req.Password)
	if errors.Is(err, services.ErrInvalidCredentials) {
		writeMessage(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		HandleError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     domain.AccessTokenCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(accessTokenMaxAge.Seconds()),
	})

	writeJSON(w, http.StatusOK, LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(accessTokenMaxAge.Seconds()),
	})
}
