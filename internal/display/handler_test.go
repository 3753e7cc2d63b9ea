package display

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mzaki9/Atomus-Lumea/internal/models"
	"github.com/mzaki9/Atomus-Lumea/internal/risk"
	"github.com/mzaki9/Atomus-Lumea/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeController struct {
	status   session.Status
	startErr error
	stopErr  error
	resetErr error
	starts   int
	stops    int
}

func (c *fakeController) Start(context.Context) error {
	c.starts++
	return c.startErr
}

func (c *fakeController) Stop(context.Context) error {
	c.stops++
	return c.stopErr
}

func (c *fakeController) ResetResult() error { return c.resetErr }

func (c *fakeController) Status() session.Status { return c.status }

type fakeClassifier struct {
	class models.RiskClass
	err   error
}

func (f fakeClassifier) Classify(context.Context, *models.HeartRateEstimate) (models.RiskClass, []float32, error) {
	if f.err != nil {
		return models.RiskUnknown, nil, f.err
	}
	return f.class, []float32{0.1, 0.1, 0.7, 0.1}, nil
}

type fakeHistory struct {
	records   []models.MeasurementRecord
	err       error
	lastLimit int
}

func (f *fakeHistory) GetLatestByDevice(_ context.Context, _ string, limit int) ([]models.MeasurementRecord, error) {
	f.lastLimit = limit
	return f.records, f.err
}

func sampleEstimate(n int) *models.HeartRateEstimate {
	readings := make([]models.ColorReading, n)
	for i := range readings {
		readings[i] = models.NewColorReading(int64(1000+i*33), 180, 120+float64(i%5), 60)
	}
	return &models.HeartRateEstimate{
		HeartRate:       75,
		Confidence:      0.8,
		RespiratoryRate: 15,
		SpO2:            98.5,
		Measurements:    readings,
	}
}

func newTestRouter(ctrl Controller, classifier RiskClassifier, history HistoryStore) *Router {
	logger := zap.NewNop()
	r := NewRouter(logger)
	r.RegisterPPGRoutes(NewHandler(ctrl, classifier, history, "dev-1", logger))
	return r
}

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestStatus_NoEstimatePrompt(t *testing.T) {
	ctrl := &fakeController{status: session.Status{State: session.StateMeasuring, SessionID: "s1", ReadingCount: 12}}
	rec := do(t, newTestRouter(ctrl, nil, nil), http.MethodGet, "/api/v1/ppg/status")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, float64(ResultSuccess), body["code"])
	result := body["result"].(map[string]any)
	assert.Equal(t, NoEstimatePrompt, result["prompt"])
	assert.Equal(t, "measuring", result["state"])
	assert.Equal(t, float64(12), result["reading_count"])
	assert.NotContains(t, result, "estimate")
}

func TestStatus_WithEstimateAndRisk(t *testing.T) {
	ctrl := &fakeController{status: session.Status{State: session.StateIdle, SessionID: "s1", Estimate: sampleEstimate(60)}}
	rec := do(t, newTestRouter(ctrl, fakeClassifier{class: models.RiskLessHealthy}, nil), http.MethodGet, "/api/v1/ppg/status")

	require.Equal(t, http.StatusOK, rec.Code)
	result := decode(t, rec)["result"].(map[string]any)
	assert.NotContains(t, result, "prompt")
	est := result["estimate"].(map[string]any)
	assert.Equal(t, float64(75), est["heart_rate"])
	assert.Equal(t, float64(60), est["reading_count"])
	assert.Equal(t, float64(2), est["risk_class"])
	assert.Equal(t, models.StatusLessHealthy, est["status"])
	assert.Len(t, est["scores"], 4)
}

type countingPredictor struct {
	calls int
}

func (p *countingPredictor) Predict(context.Context, risk.Features) ([]float32, error) {
	p.calls++
	return []float32{0.1, 0.1, 0.1, 0.7}, nil
}

func TestStatus_PollingClassifiesEstimateOnce(t *testing.T) {
	predictor := &countingPredictor{}
	classifier := risk.NewCachedClassifier(risk.NewClassifier(predictor, 0, zap.NewNop()))
	ctrl := &fakeController{status: session.Status{State: session.StateMeasuring, Estimate: sampleEstimate(60)}}
	r := newTestRouter(ctrl, classifier, nil)

	for i := 0; i < 3; i++ {
		rec := do(t, r, http.MethodGet, "/api/v1/ppg/status")
		require.Equal(t, http.StatusOK, rec.Code)
		est := decode(t, rec)["result"].(map[string]any)["estimate"].(map[string]any)
		assert.Equal(t, models.StatusVeryHealthy, est["status"])
	}
	assert.Equal(t, 1, predictor.calls)

	ctrl.status.Estimate = sampleEstimate(61)
	do(t, r, http.MethodGet, "/api/v1/ppg/status")
	assert.Equal(t, 2, predictor.calls)
}

func TestStatus_ClassifierErrorStillReturnsEstimate(t *testing.T) {
	ctrl := &fakeController{status: session.Status{State: session.StateIdle, Estimate: sampleEstimate(60)}}
	rec := do(t, newTestRouter(ctrl, fakeClassifier{err: errors.New("model down")}, nil), http.MethodGet, "/api/v1/ppg/status")

	require.Equal(t, http.StatusOK, rec.Code)
	est := decode(t, rec)["result"].(map[string]any)["estimate"].(map[string]any)
	assert.Equal(t, float64(0), est["risk_class"])
	assert.Equal(t, models.StatusUnknown, est["status"])
}

func TestStartStop(t *testing.T) {
	ctrl := &fakeController{status: session.Status{State: session.StateMeasuring}}
	r := newTestRouter(ctrl, nil, nil)

	rec := do(t, r, http.MethodPost, "/api/v1/ppg/start")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, r, http.MethodPost, "/api/v1/ppg/stop")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, ctrl.starts)
	assert.Equal(t, 1, ctrl.stops)
}

func TestControlErrors(t *testing.T) {
	tests := []struct {
		name string
		ctrl *fakeController
		path string
		code int
	}{
		{"start conflict", &fakeController{startErr: fmt.Errorf("%w: cannot start from Measuring", session.ErrInvalidTransition)}, "/api/v1/ppg/start", http.StatusConflict},
		{"stop conflict", &fakeController{stopErr: fmt.Errorf("%w: cannot stop from Idle", session.ErrInvalidTransition)}, "/api/v1/ppg/stop", http.StatusConflict},
		{"reset conflict", &fakeController{resetErr: fmt.Errorf("%w: cannot reset while Measuring", session.ErrInvalidTransition)}, "/api/v1/ppg/reset", http.StatusConflict},
		{"camera failure", &fakeController{startErr: errors.New("camera busy")}, "/api/v1/ppg/start", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, newTestRouter(tt.ctrl, nil, nil), http.MethodPost, tt.path)
			assert.Equal(t, tt.code, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, "error", body["type"])
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	r := newTestRouter(&fakeController{}, nil, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, r, http.MethodGet, "/api/v1/ppg/start").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, r, http.MethodPost, "/api/v1/ppg/status").Code)
}

func TestChartAndExport_NoEstimate(t *testing.T) {
	r := newTestRouter(&fakeController{}, nil, nil)
	for _, path := range []string{"/api/v1/ppg/chart", "/api/v1/ppg/export"} {
		rec := do(t, r, http.MethodGet, path)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.Equal(t, NoEstimatePrompt, decode(t, rec)["message"], path)
	}
}

func TestChart(t *testing.T) {
	ctrl := &fakeController{status: session.Status{SessionID: "s-chart", Estimate: sampleEstimate(60)}}
	rec := do(t, newTestRouter(ctrl, nil, nil), http.MethodGet, "/api/v1/ppg/chart")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html"))
	assert.Contains(t, rec.Body.String(), "Heart rate 75 BPM")
	assert.Contains(t, rec.Body.String(), "s-chart")
}

func TestExport(t *testing.T) {
	ctrl := &fakeController{status: session.Status{SessionID: "s-x", Estimate: sampleEstimate(5)}}
	rec := do(t, newTestRouter(ctrl, fakeClassifier{class: models.RiskVeryHealthy}, nil), http.MethodGet, "/api/v1/ppg/export")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "ppg_s-x.xlsx")
	assert.NotEmpty(t, rec.Body.Bytes())
}

func TestHistory(t *testing.T) {
	class := 3
	history := &fakeHistory{records: []models.MeasurementRecord{
		{ID: 7, SessionID: "s-old", HeartRate: 70, RiskClass: &class, Status: models.StatusFairHealthy, ReadingCount: 60, CompletedAt: time.Unix(100, 0)},
	}}
	rec := do(t, newTestRouter(&fakeController{}, nil, history), http.MethodGet, "/api/v1/ppg/history?limit=3")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, history.lastLimit)
	items := decode(t, rec)["result"].([]any)
	require.Len(t, items, 1)
	item := items[0].(map[string]any)
	assert.Equal(t, "s-old", item["session_id"])
	assert.Equal(t, float64(3), item["risk_class"])
}

func TestHistory_Disabled(t *testing.T) {
	rec := do(t, newTestRouter(&fakeController{}, nil, nil), http.MethodGet, "/api/v1/ppg/history")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode(t, rec)["result"])
}

func TestHistory_Error(t *testing.T) {
	history := &fakeHistory{err: errors.New("db down")}
	rec := do(t, newTestRouter(&fakeController{}, nil, history), http.MethodGet, "/api/v1/ppg/history")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 10, history.lastLimit)
}
