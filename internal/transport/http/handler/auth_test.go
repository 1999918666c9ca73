package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-bank-sync/internal/application/auth"
	"github.com/go-bank-sync/internal/domain"
	jwtinfra "github.com/go-bank-sync/internal/infrastructure/jwt"
	"github.com/go-bank-sync/internal/transport/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockAuthSvc struct{ mock.Mock }

func (m *mockAuthSvc) Login(ctx context.Context, req auth.LoginRequest) (*auth.Challenge, error) {
	args := m.Called(ctx, req)
	if c, _ := args.Get(0).(*auth.Challenge); c != nil {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthSvc) CompleteLogin(ctx context.Context, req auth.VerifyLoginRequest) (*auth.Session, error) {
	args := m.Called(ctx, req)
	if s, _ := args.Get(0).(*auth.Session); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func TestLogin_SendsCode(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("Login", mock.Anything, auth.LoginRequest{Email: "a@bank.test", Credential: "pw"}).
		Return(&auth.Challenge{ExpiresIn: 600}, nil)

	rr := postJSON(t, http.HandlerFunc(NewAuthHandler(svc).Login), "/auth/login",
		map[string]string{"email": "a@bank.test", "credential": "pw"})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"expiresIn":600`)
}

func TestLogin_BadCredentials(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("Login", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("invalid email or credential: %w", domain.ErrUnauthorized))

	rr := postJSON(t, http.HandlerFunc(NewAuthHandler(svc).Login), "/auth/login",
		map[string]string{"email": "a@bank.test", "credential": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid email or credential")
}

func TestVerifyLogin_ReturnsBearer(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("CompleteLogin", mock.Anything, auth.VerifyLoginRequest{Email: "a@bank.test", Code: "123456"}).
		Return(&auth.Session{Bearer: "tok", User: &domain.RegistryUser{ID: "U1"}}, nil)

	rr := postJSON(t, http.HandlerFunc(NewAuthHandler(svc).VerifyLogin), "/auth/login/verify",
		map[string]string{"email": "a@bank.test", "code": "123456"})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"Bearer":"tok"`)
}

func TestSession_RequiresClaims(t *testing.T) {
	h := NewAuthHandler(&mockAuthSvc{})

	rr := httptest.NewRecorder()
	h.Session(rr, httptest.NewRequest(http.MethodGet, "/auth/session", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
	req = req.WithContext(middleware.WithClaims(req.Context(), &jwtinfra.Claims{UserID: "U1", Email: "a@bank.test", Role: "admin"}))
	rr = httptest.NewRecorder()
	h.Session(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"role":"admin"`)
}
