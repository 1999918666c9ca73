package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-bank-sync/internal/application/otp"
	"github.com/go-chi/chi/v5"
)

// OTPService is what the OTP endpoints need from the code authority.
type OTPService interface {
	Issue(ctx context.Context, address string) (*otp.IssueResult, error)
	Verify(ctx context.Context, address, code string) error
	Clear(ctx context.Context, address string) error
	Status(ctx context.Context, address string) (*otp.Status, error)
	Peek(address string) (code string, expiresAt time.Time, ok bool)
}

// OTPHandler handles /otp endpoints and the admin lookup.
type OTPHandler struct {
	svc OTPService
}

func NewOTPHandler(svc OTPService) *OTPHandler { return &OTPHandler{svc: svc} }

type addressRequest struct {
	Address string `json:"address"`
	Code    string `json:"code,omitempty"`
}

func (h *OTPHandler) Issue(w http.ResponseWriter, r *http.Request) {
	var req addressRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.svc.Issue(r.Context(), req.Address)
	if err != nil {
		writeJSON(w, httpStatus(err), OTPEnvelope{Message: publicMessage(err)})
		return
	}
	writeJSON(w, http.StatusOK, OTPEnvelope{Success: true, Message: "verification code sent", ExpiresIn: res.ExpiresIn})
}

func (h *OTPHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req addressRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.Verify(r.Context(), req.Address, req.Code); err != nil {
		writeJSON(w, httpStatus(err), OTPEnvelope{Message: publicMessage(err)})
		return
	}
	writeJSON(w, http.StatusOK, OTPEnvelope{Success: true, Message: "code verified"})
}

func (h *OTPHandler) Clear(w http.ResponseWriter, r *http.Request) {
	var req addressRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.Clear(r.Context(), req.Address); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, OTPEnvelope{Success: true})
}

func (h *OTPHandler) Status(w http.ResponseWriter, r *http.Request) {
	var req addressRequest
	if !decode(w, r, &req) {
		return
	}
	st, err := h.svc.Status(r.Context(), req.Address)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, OTPStatusEnvelope{Verified: st.Verified, RemainingSeconds: st.RemainingSeconds})
}

// Peek is the operator side channel for codes whose delivery failed.
func (h *OTPHandler) Peek(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")
	code, expiresAt, ok := h.svc.Peek(address)
	if !ok {
		writeError(w, http.StatusNotFound, "no active code for this address")
		return
	}
	writeData(w, map[string]any{"address": address, "code": code, "expiresAt": expiresAt})
}
