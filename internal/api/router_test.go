package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/interpretly/booking/internal/api"
	mw "github.com/interpretly/booking/internal/api/middleware"
	"github.com/interpretly/booking/internal/cache"
	"github.com/interpretly/booking/internal/store"
	"github.com/interpretly/booking/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- stub store that returns empty results (all auth fails) ---

type stubStore struct {
	store.Store
}

func (s *stubStore) GetAPIKeyByPrefix(context.Context, string) ([]*models.APIKey, error) {
	return nil, nil
}

func (s *stubStore) UpdateAPIKeyLastUsed(context.Context, uuid.UUID) error { return nil }

// --- stub cache ---

type stubCache struct {
	cache.Cache
}

func (c *stubCache) IncrWithExpiry(context.Context, string, time.Duration) (int64, error) {
	return 1, nil
}

// --- router tests ---

func newTestRouter() http.Handler {
	return api.NewRouter(api.Dependencies{
		Auth:      mw.NewAuth(&stubStore{}),
		RateLimit: mw.NewRateLimit(&stubCache{}, 60),
		HealthHandler: func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		},
	})
}

func TestRouter_HealthEndpoint_Public(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_ProtectedEndpoints_RequireAuth(t *testing.T) {
	router := newTestRouter()
	jobID := uuid.NewString()

	endpoints := []struct {
		method string
		path   string
	}{
		{"POST", "/api/v1/jobs"},
		{"POST", "/api/v1/jobs/email"},
		{"GET", "/api/v1/jobs"},
		{"GET", "/api/v1/jobs/history"},
		{"GET", "/api/v1/jobs/potential"},
		{"POST", "/api/v1/jobs/accept"},
		{"GET", "/api/v1/jobs/" + jobID},
		{"PUT", "/api/v1/jobs/" + jobID},
		{"POST", "/api/v1/jobs/" + jobID + "/accept"},
		{"POST", "/api/v1/jobs/" + jobID + "/start"},
		{"POST", "/api/v1/jobs/" + jobID + "/end"},
		{"POST", "/api/v1/jobs/" + jobID + "/cancel"},
		{"POST", "/api/v1/jobs/" + jobID + "/customer-no-show"},
		{"POST", "/api/v1/jobs/" + jobID + "/reopen"},
		{"POST", "/api/v1/jobs/" + jobID + "/notifications/resend"},
		{"POST", "/api/v1/jobs/" + jobID + "/notifications/resend-sms"},
		{"GET", "/api/v1/jobs/" + jobID + "/notifications"},
		{"POST", "/api/v1/distance-feed"},
	}

	for _, ep := range endpoints {
		t.Run(ep.method+" "+ep.path, func(t *testing.T) {
			req := httptest.NewRequest(ep.method, ep.path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			errObj := body["error"].(map[string]any)
			assert.Equal(t, "INVALID_TOKEN", errObj["code"])
		})
	}
}

func TestRouter_NotFound(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest("GET", "/api/v1/nonexistent", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
