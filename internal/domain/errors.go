package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrValidation   = errors.New("validation error")

	// OTP verification outcomes.
	ErrExpired         = errors.New("expired")
	ErrTooManyAttempts = errors.New("too many attempts")
	ErrMismatch        = errors.New("code mismatch")

	// Transfer policy rejections.
	ErrTransfersDisabled     = errors.New("transfers are disabled")
	ErrUserTransfersDisabled = errors.New("transfers are disabled for this user")

	// Infrastructure failures. These are logged and absorbed, never fatal.
	ErrDeliveryFailure = errors.New("delivery failure")
	ErrSyncUnavailable = errors.New("sync unavailable")
)
