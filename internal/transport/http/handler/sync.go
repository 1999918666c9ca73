package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-bank-sync/internal/domain"
	"github.com/go-chi/chi/v5"
)

// AuthorityService is the canonical record store behind the /sync endpoints.
type AuthorityService interface {
	GetProfile(ctx context.Context, email string) (*domain.Profile, error)
	PutProfile(ctx context.Context, email string, patch domain.ProfilePatch) (*domain.Profile, error)
	GetBalance(ctx context.Context, email string) (float64, error)
	PutBalance(ctx context.Context, email string, balance float64) (*domain.Profile, error)

	GetGlobalPolicy(ctx context.Context) (*domain.GlobalPolicy, error)
	PutGlobalPolicy(ctx context.Context, patch domain.GlobalPolicyPatch) (*domain.GlobalPolicy, error)
	GetUserPolicy(ctx context.Context, userID string) (*domain.UserPolicy, error)
	ListUserPolicies(ctx context.Context) map[string]domain.UserPolicy
	PutUserPolicy(ctx context.Context, userID string, patch domain.UserPolicyPatch) (*domain.UserPolicy, error)
	PutUserPolicies(ctx context.Context, patches map[string]domain.UserPolicyPatch) (map[string]domain.UserPolicy, error)

	Registry(ctx context.Context) []domain.RegistryUser
	RegistryLastUpdated(ctx context.Context) time.Time
	ReplaceRegistry(ctx context.Context, users []domain.RegistryUser) error
}

// SyncHandler serves the authority's per-family read and write endpoints.
type SyncHandler struct {
	svc AuthorityService
}

func NewSyncHandler(svc AuthorityService) *SyncHandler { return &SyncHandler{svc: svc} }

// --- profiles ---

func (h *SyncHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetProfile(r.Context(), chi.URLParam(r, "email"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeData(w, p)
}

func (h *SyncHandler) PutProfile(w http.ResponseWriter, r *http.Request) {
	var patch domain.ProfilePatch
	if !decode(w, r, &patch) {
		return
	}
	p, err := h.svc.PutProfile(r.Context(), chi.URLParam(r, "email"), patch)
	if err != nil {
		httpError(w, err)
		return
	}
	writeData(w, p)
}

type balanceRequest struct {
	Email   string   `json:"email"`
	Balance *float64 `json:"balance"`
}

func (h *SyncHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if strings.TrimSpace(email) == "" {
		writeError(w, http.StatusBadRequest, "email query parameter is required")
		return
	}
	b, err := h.svc.GetBalance(r.Context(), email)
	if err != nil {
		httpError(w, err)
		return
	}
	writeData(w, map[string]any{"email": email, "balance": b})
}

func (h *SyncHandler) PutBalance(w http.ResponseWriter, r *http.Request) {
	var req balanceRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Balance == nil {
		writeError(w, http.StatusBadRequest, "balance is required")
		return
	}
	p, err := h.svc.PutBalance(r.Context(), req.Email, *req.Balance)
	if err != nil {
		httpError(w, err)
		return
	}
	writeData(w, p)
}

// --- policies ---

func (h *SyncHandler) GetGlobalPolicy(w http.ResponseWriter, r *http.Request) {
	g, err := h.svc.GetGlobalPolicy(r.Context())
	if err != nil {
		httpError(w, err)
		return
	}
	writeData(w, g)
}

func (h *SyncHandler) PutGlobalPolicy(w http.ResponseWriter, r *http.Request) {
	var patch domain.GlobalPolicyPatch
	if !decode(w, r, &patch) {
		return
	}
	g, err := h.svc.PutGlobalPolicy(r.Context(), patch)
	if err != nil {
		httpError(w, err)
		return
	}
	writeData(w, g)
}

func (h *SyncHandler) ListUserPolicies(w http.ResponseWriter, r *http.Request) {
	writeData(w, h.svc.ListUserPolicies(r.Context()))
}

// GetUserPolicy answers with the default policy for users that have no entry.
func (h *SyncHandler) GetUserPolicy(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetUserPolicy(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, domain.ErrNotFound) {
		def := domain.DefaultUserPolicy()
		p, err = &def, nil
	}
	if err != nil {
		httpError(w, err)
		return
	}
	writeData(w, p)
}

func (h *SyncHandler) PutUserPolicy(w http.ResponseWriter, r *http.Request) {
	var patch domain.UserPolicyPatch
	if !decode(w, r, &patch) {
		return
	}
	p, err := h.svc.PutUserPolicy(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		httpError(w, err)
		return
	}
	writeData(w, p)
}

func (h *SyncHandler) PutUserPoliciesBulk(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Policies map[string]domain.UserPolicyPatch `json:"policies"`
	}
	if !decode(w, r, &req) {
		return
	}
	out, err := h.svc.PutUserPolicies(r.Context(), req.Policies)
	if err != nil {
		httpError(w, err)
		return
	}
	writeData(w, out)
}

// --- registry ---

func (h *SyncHandler) GetRegistry(w http.ResponseWriter, r *http.Request) {
	users := h.svc.Registry(r.Context())
	if users == nil {
		users = []domain.RegistryUser{}
	}
	env := RegistryEnvelope{Success: true, Data: users}
	if at := h.svc.RegistryLastUpdated(r.Context()); !at.IsZero() {
		env.LastUpdated = &at
	}
	writeJSON(w, http.StatusOK, env)
}

func (h *SyncHandler) PutRegistry(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Users []domain.RegistryUser `json:"users"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Users == nil {
		writeError(w, http.StatusBadRequest, "users is required")
		return
	}
	if err := h.svc.ReplaceRegistry(r.Context(), req.Users); err != nil {
		httpError(w, err)
		return
	}
	at := h.svc.RegistryLastUpdated(r.Context())
	writeJSON(w, http.StatusOK, RegistryEnvelope{Success: true, Message: "registry replaced", Data: req.Users, LastUpdated: &at})
}
