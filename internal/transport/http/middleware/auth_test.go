package middleware

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-bank-sync/internal/config"
	"github.com/go-bank-sync/internal/domain"
	jwtinfra "github.com/go-bank-sync/internal/infrastructure/jwt"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sessionKeys writes a fresh RSA pair to PEM files and returns a provider
// built from them together with the private key, for forging tokens.
func sessionKeys(t *testing.T) (*jwtinfra.Provider, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	dir := t.TempDir()
	cfg := &config.Config{
		JWTPrivateKeyPath: filepath.Join(dir, "session.key"),
		JWTPublicKeyPath:  filepath.Join(dir, "session.pub"),
		JWTExpiry:         time.Hour,
	}
	pub, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(cfg.JWTPrivateKeyPath,
		pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}), 0o600))
	require.NoError(t, os.WriteFile(cfg.JWTPublicKeyPath,
		pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pub}), 0o600))

	p, err := jwtinfra.NewProvider(cfg)
	require.NoError(t, err)
	return p, key
}

func forge(t *testing.T, key *rsa.PrivateKey, role string, expiresAt time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, &jwtinfra.Claims{
		UserID: "U7",
		Email:  "ops@bank.test",
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "U7",
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, err := tok.SignedString(key)
	require.NoError(t, err)
	return signed
}

func okHandler(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }

func bearer(h http.Handler, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestAuth_RejectsBadHeaders(t *testing.T) {
	p, key := sessionKeys(t)
	_, otherKey := sessionKeys(t)
	h := Auth(p)(http.HandlerFunc(okHandler))

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"not bearer", "Basic dXNlcjpwdw=="},
		{"garbage", "Bearer not-a-token"},
		{"expired", "Bearer " + forge(t, key, domain.RoleUser, time.Now().Add(-time.Minute))},
		{"foreign key", "Bearer " + forge(t, otherKey, domain.RoleUser, time.Now().Add(time.Hour))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, http.StatusUnauthorized, bearer(h, tt.header).Code)
		})
	}
}

func TestAuth_InjectsSignedClaims(t *testing.T) {
	p, _ := sessionKeys(t)
	signed, err := p.Sign("U1", "ana@bank.test", domain.RoleUser)
	require.NoError(t, err)

	var got *jwtinfra.Claims
	h := Auth(p)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rr := bearer(h, "Bearer "+signed)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, got)
	assert.Equal(t, "U1", got.UserID)
	assert.Equal(t, "U1", got.Subject)
	assert.Equal(t, "ana@bank.test", got.Email)
	assert.Equal(t, domain.RoleUser, got.Role)
}

func TestAuth_ChainedWithAdminRole(t *testing.T) {
	p, key := sessionKeys(t)
	h := Auth(p)(RequireRole(domain.RoleAdmin)(http.HandlerFunc(okHandler)))

	assert.Equal(t, http.StatusForbidden,
		bearer(h, "Bearer "+forge(t, key, domain.RoleUser, time.Now().Add(time.Hour))).Code)
	assert.Equal(t, http.StatusOK,
		bearer(h, "Bearer "+forge(t, key, domain.RoleAdmin, time.Now().Add(time.Hour))).Code)
}
