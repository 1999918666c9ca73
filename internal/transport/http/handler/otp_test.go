package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-bank-sync/internal/application/otp"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopNotifier struct{}

func (nopNotifier) Send(context.Context, string, string) error { return nil }

func newOTPRouter(t *testing.T) (chi.Router, *otp.Service) {
	t.Helper()
	svc := otp.NewService(nopNotifier{}, otp.Options{Generate: func() (string, error) { return "424242", nil }})
	t.Cleanup(svc.WaitDeliveries)
	h := NewOTPHandler(svc)
	r := chi.NewRouter()
	r.Post("/otp/issue", h.Issue)
	r.Post("/otp/verify", h.Verify)
	r.Post("/otp/clear", h.Clear)
	r.Post("/otp/status", h.Status)
	r.Get("/admin/otp/{address}", h.Peek)
	return r, svc
}

func postJSON(t *testing.T, r http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestOTPFlow_IssueMismatchVerifyReuse(t *testing.T) {
	r, _ := newOTPRouter(t)

	rr := postJSON(t, r, "/otp/issue", map[string]string{"address": "user@bank.test"})
	require.Equal(t, http.StatusOK, rr.Code)
	var issued OTPEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &issued))
	assert.True(t, issued.Success)
	assert.Equal(t, 600, issued.ExpiresIn)

	rr = postJSON(t, r, "/otp/verify", map[string]string{"address": "user@bank.test", "code": "000000"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	var bad OTPEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &bad))
	assert.False(t, bad.Success)
	assert.Equal(t, "invalid code, 4 attempts remaining", bad.Message)

	rr = postJSON(t, r, "/otp/verify", map[string]string{"address": "user@bank.test", "code": "424242"})
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = postJSON(t, r, "/otp/status", map[string]string{"address": "user@bank.test"})
	require.Equal(t, http.StatusOK, rr.Code)
	var st OTPStatusEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &st))
	assert.True(t, st.Verified)
	assert.Greater(t, st.RemainingSeconds, 0)

	rr = postJSON(t, r, "/otp/verify", map[string]string{"address": "user@bank.test", "code": "424242"})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestOTPClear(t *testing.T) {
	r, _ := newOTPRouter(t)
	postJSON(t, r, "/otp/issue", map[string]string{"address": "user@bank.test"})

	rr := postJSON(t, r, "/otp/clear", map[string]string{"address": "user@bank.test"})
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = postJSON(t, r, "/otp/status", map[string]string{"address": "user@bank.test"})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestOTPIssue_MissingAddress(t *testing.T) {
	r, _ := newOTPRouter(t)
	rr := postJSON(t, r, "/otp/issue", map[string]string{"address": "  "})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestOTPIssue_BadBody(t *testing.T) {
	r, _ := newOTPRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/otp/issue", bytes.NewBufferString("{"))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestOTPPeek(t *testing.T) {
	r, _ := newOTPRouter(t)
	postJSON(t, r, "/otp/issue", map[string]string{"address": "user@bank.test"})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/otp/user@bank.test", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"code":"424242"`)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/otp/nobody@bank.test", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
