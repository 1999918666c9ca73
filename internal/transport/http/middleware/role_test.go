package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-bank-sync/internal/domain"
	jwtinfra "github.com/go-bank-sync/internal/infrastructure/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveWithRole(role *string, allowed ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/admin/otp/a@b.test", nil)
	if role != nil {
		req = req.WithContext(WithClaims(req.Context(), &jwtinfra.Claims{UserID: "u1", Role: *role}))
	}
	rr := httptest.NewRecorder()
	RequireRole(allowed...)(http.HandlerFunc(okHandler)).ServeHTTP(rr, req)
	return rr
}

func TestRequireRole(t *testing.T) {
	admin, user, none := domain.RoleAdmin, domain.RoleUser, ""
	tests := []struct {
		name    string
		role    *string
		allowed []string
		want    int
	}{
		{"no session", nil, []string{domain.RoleAdmin}, http.StatusUnauthorized},
		{"user on admin route", &user, []string{domain.RoleAdmin}, http.StatusForbidden},
		{"admin on admin route", &admin, []string{domain.RoleAdmin}, http.StatusOK},
		{"empty role counts as user", &none, []string{domain.RoleUser}, http.StatusOK},
		{"empty role denied admin", &none, []string{domain.RoleAdmin}, http.StatusForbidden},
		{"any of several", &user, []string{domain.RoleAdmin, domain.RoleUser}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, serveWithRole(tt.role, tt.allowed...).Code)
		})
	}
}

func TestRequireRole_RejectionUsesEnvelope(t *testing.T) {
	user := domain.RoleUser
	rr := serveWithRole(&user, domain.RoleAdmin)

	var body failure
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.False(t, body.Success)
	assert.Contains(t, body.Message, "role user")
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
}
