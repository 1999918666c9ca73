package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-bank-sync/internal/application/authority"
	"github.com/go-bank-sync/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSyncRouter() chi.Router {
	h := NewSyncHandler(authority.NewService(nil))
	r := chi.NewRouter()
	r.Get("/sync/profile/{email}", h.GetProfile)
	r.Post("/sync/profile/{email}", h.PutProfile)
	r.Get("/sync/balance", h.GetBalance)
	r.Post("/sync/balance", h.PutBalance)
	r.Get("/sync/policy/global", h.GetGlobalPolicy)
	r.Post("/sync/policy/global", h.PutGlobalPolicy)
	r.Get("/sync/policy/user", h.ListUserPolicies)
	r.Post("/sync/policy/user/bulk", h.PutUserPoliciesBulk)
	r.Get("/sync/policy/user/{id}", h.GetUserPolicy)
	r.Post("/sync/policy/user/{id}", h.PutUserPolicy)
	r.Get("/sync/registry", h.GetRegistry)
	r.Post("/sync/registry", h.PutRegistry)
	return r
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func decodeData[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var env struct {
		Success bool `json:"success"`
		Data    T    `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	require.True(t, env.Success, rr.Body.String())
	return env.Data
}

func TestProfile_MissingThenMerged(t *testing.T) {
	r := newSyncRouter()

	assert.Equal(t, http.StatusNotFound, get(r, "/sync/profile/a@bank.test").Code)

	rr := postJSON(t, r, "/sync/profile/a@bank.test", map[string]any{"fullName": "Ada", "balance": 100})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = postJSON(t, r, "/sync/balance", map[string]any{"email": "a@bank.test", "balance": 80})
	require.Equal(t, http.StatusOK, rr.Code)

	p := decodeData[domain.Profile](t, get(r, "/sync/profile/a@bank.test"))
	assert.Equal(t, "Ada", p.FullName)
	assert.Equal(t, 80.0, p.Balance)
	assert.False(t, p.LastUpdated.IsZero())

	bal := decodeData[map[string]any](t, get(r, "/sync/balance?email=a@bank.test"))
	assert.Equal(t, 80.0, bal["balance"])
}

func TestBalance_RequiresValue(t *testing.T) {
	r := newSyncRouter()
	rr := postJSON(t, r, "/sync/balance", map[string]any{"email": "a@bank.test"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, http.StatusBadRequest, get(r, "/sync/balance").Code)
}

func TestGlobalPolicy_ColdThenSet(t *testing.T) {
	r := newSyncRouter()
	assert.Equal(t, http.StatusNotFound, get(r, "/sync/policy/global").Code)

	rr := postJSON(t, r, "/sync/policy/global", map[string]any{"transfersEnabled": true, "successRate": 50, "dailyLimit": 500})
	require.Equal(t, http.StatusOK, rr.Code)

	g := decodeData[domain.GlobalPolicy](t, get(r, "/sync/policy/global"))
	assert.True(t, g.TransfersEnabled)
	assert.Equal(t, 50, g.SuccessRate)

	rr = postJSON(t, r, "/sync/policy/global", map[string]any{"successRate": 101})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUserPolicy_DefaultAndBulk(t *testing.T) {
	r := newSyncRouter()

	def := decodeData[domain.UserPolicy](t, get(r, "/sync/policy/user/U9"))
	assert.Equal(t, domain.DefaultUserPolicy().SuccessRate, def.SuccessRate)
	assert.True(t, def.TransfersEnabled)

	rr := postJSON(t, r, "/sync/policy/user/bulk", map[string]any{"policies": map[string]any{
		"U1": map[string]any{"successRate": 0},
		"U2": map[string]any{"transfersEnabled": false},
	}})
	require.Equal(t, http.StatusOK, rr.Code)

	all := decodeData[map[string]domain.UserPolicy](t, get(r, "/sync/policy/user"))
	require.Len(t, all, 2)
	assert.Equal(t, 0, all["U1"].SuccessRate)
	assert.True(t, all["U1"].TransfersEnabled)
	assert.False(t, all["U2"].TransfersEnabled)

	rr = postJSON(t, r, "/sync/policy/user/U1", map[string]any{"successRate": 75})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 75, decodeData[domain.UserPolicy](t, get(r, "/sync/policy/user/U1")).SuccessRate)
}

func TestRegistry_ReplaceAndDuplicates(t *testing.T) {
	r := newSyncRouter()

	cold := get(r, "/sync/registry")
	assert.Empty(t, decodeData[[]domain.RegistryUser](t, cold))
	assert.NotContains(t, cold.Body.String(), "lastUpdated")

	rr := postJSON(t, r, "/sync/registry", map[string]any{"users": []map[string]any{
		{"id": "U1", "email": "a@bank.test"},
		{"id": "U2", "email": "b@bank.test"},
	}})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = postJSON(t, r, "/sync/registry", map[string]any{"users": []map[string]any{
		{"id": "U3", "email": "c@bank.test"},
	}})
	require.Equal(t, http.StatusOK, rr.Code)
	users := decodeData[[]domain.RegistryUser](t, get(r, "/sync/registry"))
	require.Len(t, users, 1)
	assert.Equal(t, "U3", users[0].ID)

	var stamped RegistryEnvelope
	require.NoError(t, json.Unmarshal(get(r, "/sync/registry").Body.Bytes(), &stamped))
	require.NotNil(t, stamped.LastUpdated)
	assert.False(t, stamped.LastUpdated.IsZero())

	rr = postJSON(t, r, "/sync/registry", map[string]any{"users": []map[string]any{
		{"id": "U4", "email": "d@bank.test"},
		{"id": "U4", "email": "e@bank.test"},
	}})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Len(t, decodeData[[]domain.RegistryUser](t, get(r, "/sync/registry")), 1)
}
