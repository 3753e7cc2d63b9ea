package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mzaki9/Atomus-Lumea/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestBackend(t *testing.T, handler http.HandlerFunc, token string) *Backend {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewBackend(Config{BaseURL: server.URL + "/", Timeout: time.Second}, StaticTokenSource(token), zap.NewNop())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestStaticTokenSource(t *testing.T) {
	token, err := StaticTokenSource(" abc ").AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", token)

	_, err = StaticTokenSource("").AccessToken(context.Background())
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestSaveHealthData(t *testing.T) {
	var got models.HealthCheckInput
	backend := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/health", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusCreated, models.HealthResponse{
			Success: true,
			Data:    &models.HealthData{ID: 7, UserID: 3, HeartRate: got.HeartRate, Status: got.Status},
		})
	}, "secret")

	data, err := NewHealthClient(backend).SaveHealthData(context.Background(), models.HealthCheckInput{
		HeartRate:       72,
		BloodOxygen:     98.5,
		RespiratoryRate: 18,
		Status:          models.StatusVeryHealthy,
	})
	require.NoError(t, err)
	require.NotNil(t, data)
	assert.Equal(t, 7, data.ID)
	assert.Equal(t, 72, data.HeartRate)
	assert.Equal(t, models.StatusVeryHealthy, got.Status)
	assert.Equal(t, 98.5, got.BloodOxygen)
}

func TestGetHealthData(t *testing.T) {
	backend := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "3", r.URL.Query().Get("userId"))
		writeJSON(w, http.StatusOK, models.HealthResponse{
			Success: true,
			Data:    &models.HealthData{ID: 1, UserID: 3, HeartRate: 80, Status: "Cukup Sehat", Date: "2025-05-01"},
		})
	}, "secret")

	data, err := NewHealthClient(backend).GetHealthData(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 80, data.HeartRate)
	assert.Equal(t, models.RiskFairHealthy, models.ParseStatus(data.Status))
}

func TestUpdateAndDeleteHealthData(t *testing.T) {
	var methods []string
	backend := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method)
		writeJSON(w, http.StatusOK, models.HealthResponse{Success: true})
	}, "secret")
	c := NewHealthClient(backend)

	_, err := c.UpdateHealthData(context.Background(), models.HealthCheckInput{HeartRate: 65})
	require.NoError(t, err)
	require.NoError(t, c.DeleteHealthData(context.Background()))
	assert.Equal(t, []string{http.MethodPut, http.MethodDelete}, methods)
}

func TestHealthData_BackendFailure(t *testing.T) {
	backend := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, models.HealthResponse{Success: false, Message: "invalid bpm"})
	}, "secret")

	_, err := NewHealthClient(backend).SaveHealthData(context.Background(), models.HealthCheckInput{})
	require.ErrorIs(t, err, ErrAPI)
	assert.Contains(t, err.Error(), "invalid bpm")
}

func TestHealthData_ErrorStatus(t *testing.T) {
	backend := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, models.HealthResponse{Success: false, Message: "expired"})
	}, "secret")

	_, err := NewHealthClient(backend).GetHealthData(context.Background(), 1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAPI)
	assert.Contains(t, err.Error(), "401")
}

func TestHealthData_NoToken(t *testing.T) {
	called := false
	backend := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	}, "")

	_, err := NewHealthClient(backend).SaveHealthData(context.Background(), models.HealthCheckInput{})
	assert.ErrorIs(t, err, ErrNoToken)
	assert.False(t, called)
}

func TestLocationClient(t *testing.T) {
	var sent models.Location
	backend := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/location", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		switch r.Method {
		case http.MethodPost:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&sent))
			w.WriteHeader(http.StatusCreated)
		case http.MethodGet:
			writeJSON(w, http.StatusOK, []models.Location{
				{UserID: "3", Latitude: -6.2, Longitude: 106.8, LastCheckedDate: "2025-05-01T10:00:00Z"},
			})
		}
	}, "secret")
	c := NewLocationClient(backend)

	require.NoError(t, c.SendLocation(context.Background(), models.Location{Latitude: -6.2, Longitude: 106.8}))
	assert.Equal(t, -6.2, sent.Latitude)

	locs, err := c.GetLocations(context.Background())
	require.NoError(t, err)
	require.Len(t, locs, 1)
	assert.Equal(t, "3", locs[0].UserID)
}

func TestLocationClient_ErrorStatus(t *testing.T) {
	backend := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}, "secret")

	err := NewLocationClient(backend).SendLocation(context.Background(), models.Location{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}
