package http

import (
	"net/http"

	"github.com/go-bank-sync/internal/config"
	"github.com/go-bank-sync/internal/domain"
	"github.com/go-bank-sync/internal/transport/http/handler"
	appmiddleware "github.com/go-bank-sync/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"
)

// NewRouter builds the authority router: OTP, sync, login and admin endpoints.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// 5 requests/second, burst of 10, per client IP on code-bearing endpoints.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10, cfg.TrustProxyHeaders)

	healthH := handler.NewHealthHandler()
	otpH := handler.NewOTPHandler(deps.OTP)
	syncH := handler.NewSyncHandler(deps.Authority)

	r.Get("/health", healthH.Health)

	r.Route("/otp", func(r chi.Router) {
		r.With(sensitiveRL.Limit).Post("/issue", otpH.Issue)
		r.With(sensitiveRL.Limit).Post("/verify", otpH.Verify)
		r.Post("/clear", otpH.Clear)
		r.Post("/status", otpH.Status)
	})

	r.Route("/sync", func(r chi.Router) {
		r.Get("/profile/{email}", syncH.GetProfile)
		r.Post("/profile/{email}", syncH.PutProfile)
		r.Get("/balance", syncH.GetBalance)
		r.Post("/balance", syncH.PutBalance)
		r.Get("/registry", syncH.GetRegistry)
		r.Post("/registry", syncH.PutRegistry)
		r.Get("/policy/global", syncH.GetGlobalPolicy)
		r.Post("/policy/global", syncH.PutGlobalPolicy)
		r.Get("/policy/user", syncH.ListUserPolicies)
		r.Post("/policy/user/bulk", syncH.PutUserPoliciesBulk)
		r.Get("/policy/user/{id}", syncH.GetUserPolicy)
		r.Post("/policy/user/{id}", syncH.PutUserPolicy)
	})

	if deps.Auth != nil {
		authH := handler.NewAuthHandler(deps.Auth)
		r.With(sensitiveRL.Limit).Post("/auth/login", authH.Login)
		r.With(sensitiveRL.Limit).Post("/auth/login/verify", authH.VerifyLogin)

		if deps.JWTProvider != nil {
			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.Auth(deps.JWTProvider))
				r.Get("/auth/session", authH.Session)

				// Admin-only routes
				r.Group(func(r chi.Router) {
					r.Use(appmiddleware.RequireRole(domain.RoleAdmin))
					r.Get("/admin/otp/{address}", otpH.Peek)
				})
			})
		}
	}

	return r
}

// NewDeviceRouter builds a device's local API. It is meant for loopback use
// and carries no auth.
func NewDeviceRouter(deps *DeviceDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)

	healthH := handler.NewHealthHandler()
	deviceH := handler.NewDeviceHandler(deps.Transfers, deps.State, deps.UserID)

	r.Get("/health", healthH.Health)
	r.Get("/state", deviceH.State)
	r.Post("/sync/pull", deviceH.Pull)
	r.Post("/transfers", deviceH.RequestTransfer)
	r.Post("/transfers/{id}/confirm", deviceH.ConfirmTransfer)

	return r
}
