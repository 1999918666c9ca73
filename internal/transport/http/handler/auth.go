package handler

import (
	"net/http"

	"github.com/go-bank-sync/internal/application/auth"
	"github.com/go-bank-sync/internal/transport/http/middleware"
)

// AuthHandler handles the two-step login.
type AuthHandler struct {
	svc auth.Service
}

func NewAuthHandler(svc auth.Service) *AuthHandler { return &AuthHandler{svc: svc} }

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if !decode(w, r, &req) {
		return
	}
	ch, err := h.svc.Login(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, OTPEnvelope{Success: true, Message: "verification code sent", ExpiresIn: ch.ExpiresIn})
}

func (h *AuthHandler) VerifyLogin(w http.ResponseWriter, r *http.Request) {
	var req auth.VerifyLoginRequest
	if !decode(w, r, &req) {
		return
	}
	sess, err := h.svc.CompleteLogin(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeData(w, sess)
}

// Session echoes the caller's token claims.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeData(w, map[string]any{
		"userId":    claims.UserID,
		"email":     claims.Email,
		"role":      claims.Role,
		"expiresAt": claims.ExpiresAt,
	})
}
