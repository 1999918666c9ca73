package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-bank-sync/internal/domain"
)

// Envelope is the response wrapper for sync and device endpoints.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// RegistryEnvelope is the registry read/write answer. LastUpdated is absent
// until the registry has been written once.
type RegistryEnvelope struct {
	Success     bool                  `json:"success"`
	Message     string                `json:"message,omitempty"`
	Data        []domain.RegistryUser `json:"data"`
	LastUpdated *time.Time            `json:"lastUpdated,omitempty"`
}

// OTPEnvelope wraps OTP issue, verify and clear responses.
type OTPEnvelope struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	ExpiresIn int    `json:"expiresIn,omitempty"`
}

type OTPStatusEnvelope struct {
	Verified         bool `json:"verified"`
	RemainingSeconds int  `json:"remainingSeconds"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, Envelope{Success: false, Message: msg})
}

func writeData(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, Envelope{Success: true, Data: data})
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

var statusBySentinel = []struct {
	err    error
	status int
}{
	{domain.ErrValidation, http.StatusBadRequest},
	{domain.ErrMismatch, http.StatusUnauthorized},
	{domain.ErrUnauthorized, http.StatusUnauthorized},
	{domain.ErrTransfersDisabled, http.StatusForbidden},
	{domain.ErrUserTransfersDisabled, http.StatusForbidden},
	{domain.ErrForbidden, http.StatusForbidden},
	{domain.ErrNotFound, http.StatusNotFound},
	{domain.ErrConflict, http.StatusConflict},
	{domain.ErrExpired, http.StatusGone},
	{domain.ErrTooManyAttempts, http.StatusTooManyRequests},
	{domain.ErrSyncUnavailable, http.StatusServiceUnavailable},
	{domain.ErrDeliveryFailure, http.StatusServiceUnavailable},
}

// httpStatus maps a domain error to its status code; unknown errors are 500.
func httpStatus(err error) int {
	for _, m := range statusBySentinel {
		if errors.Is(err, m.err) {
			return m.status
		}
	}
	return http.StatusInternalServerError
}

// publicMessage strips the trailing sentinel text that services append with %w,
// leaving the actionable part ("invalid code, 4 attempts remaining").
func publicMessage(err error) string {
	msg := err.Error()
	for _, m := range statusBySentinel {
		if errors.Is(err, m.err) {
			return strings.TrimSuffix(msg, ": "+m.err.Error())
		}
	}
	if httpStatus(err) == http.StatusInternalServerError {
		return "internal error"
	}
	return msg
}

func httpError(w http.ResponseWriter, err error) {
	status := httpStatus(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "err", err)
	}
	writeError(w, status, publicMessage(err))
}
