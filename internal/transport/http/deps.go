package http

import (
	"github.com/go-bank-sync/internal/application/auth"
	"github.com/go-bank-sync/internal/application/authority"
	"github.com/go-bank-sync/internal/application/otp"
	jwtinfra "github.com/go-bank-sync/internal/infrastructure/jwt"
	"github.com/go-bank-sync/internal/transport/http/handler"
)

// Deps holds everything the authority router needs.
type Deps struct {
	OTP         *otp.Service
	Authority   *authority.Service
	Auth        auth.Service
	JWTProvider *jwtinfra.Provider // nil disables /auth/session and the admin routes
}

// DeviceDeps holds everything a device's local router needs.
type DeviceDeps struct {
	Transfers handler.TransferService
	State     handler.DeviceState
	UserID    string
}
