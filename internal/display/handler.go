package display

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mzaki9/Atomus-Lumea/internal/models"
	"github.com/mzaki9/Atomus-Lumea/internal/session"

	"go.uber.org/zap"
)

// NoEstimatePrompt 还没有估计结果时的提示
const NoEstimatePrompt = "Place your finger over the camera"

// Controller 会话控制器（session.Controller 实现）
type Controller interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	ResetResult() error
	Status() session.Status
}

// RiskClassifier 风险分类（可选）
type RiskClassifier interface {
	Classify(ctx context.Context, est *models.HeartRateEstimate) (models.RiskClass, []float32, error)
}

// HistoryStore 测量历史（可选，未启用持久化时为 nil）
type HistoryStore interface {
	GetLatestByDevice(ctx context.Context, deviceID string, limit int) ([]models.MeasurementRecord, error)
}

// EstimateView 展示给前端的估计结果
type EstimateView struct {
	HeartRate       int       `json:"heart_rate"`
	Confidence      float64   `json:"confidence"`
	RespiratoryRate float64   `json:"respiratory_rate"`
	SpO2            float64   `json:"spo2"`
	ReadingCount    int       `json:"reading_count"`
	RiskClass       int       `json:"risk_class"`
	Status          string    `json:"status"`
	Scores          []float32 `json:"scores,omitempty"`
}

// StatusResponse GET /api/v1/ppg/status
type StatusResponse struct {
	session.Status
	Estimate *EstimateView `json:"estimate,omitempty"`
	Prompt   string        `json:"prompt,omitempty"`
}

// HistoryItem 历史记录（不含原始读数）
type HistoryItem struct {
	ID              int64     `json:"id"`
	SessionID       string    `json:"session_id"`
	HeartRate       int       `json:"heart_rate"`
	Confidence      float64   `json:"confidence"`
	RespiratoryRate float64   `json:"respiratory_rate"`
	SpO2            float64   `json:"spo2"`
	RiskClass       *int      `json:"risk_class,omitempty"`
	Status          string    `json:"status"`
	ReadingCount    int       `json:"reading_count"`
	StartedAt       time.Time `json:"started_at"`
	CompletedAt     time.Time `json:"completed_at"`
}

type Handler struct {
	ctrl       Controller
	classifier RiskClassifier
	history    HistoryStore
	deviceID   string
	logger     *zap.Logger
}

func NewHandler(ctrl Controller, classifier RiskClassifier, history HistoryStore, deviceID string, logger *zap.Logger) *Handler {
	return &Handler{
		ctrl:       ctrl,
		classifier: classifier,
		history:    history,
		deviceID:   deviceID,
		logger:     logger,
	}
}

func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	if err := h.ctrl.Start(r.Context()); err != nil {
		h.writeControlError(w, "start", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(h.ctrl.Status()))
}

func (h *Handler) Stop(w http.ResponseWriter, r *http.Request) {
	if err := h.ctrl.Stop(r.Context()); err != nil {
		h.writeControlError(w, "stop", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(h.ctrl.Status()))
}

func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.ctrl.ResetResult(); err != nil {
		h.writeControlError(w, "reset", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(h.ctrl.Status()))
}

func (h *Handler) writeControlError(w http.ResponseWriter, action string, err error) {
	if errors.Is(err, session.ErrInvalidTransition) {
		writeJSON(w, http.StatusConflict, Conflict(err.Error()))
		return
	}
	h.logger.Error("Measurement control failed", zap.String("action", action), zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, Fail(fmt.Sprintf("failed to %s measurement: %v", action, err)))
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	st := h.ctrl.Status()
	resp := StatusResponse{Status: st}
	if !st.HasEstimate() {
		resp.Prompt = NoEstimatePrompt
		writeJSON(w, http.StatusOK, Ok(resp))
		return
	}

	view := &EstimateView{
		HeartRate:       st.Estimate.HeartRate,
		Confidence:      st.Estimate.Confidence,
		RespiratoryRate: st.Estimate.RespiratoryRate,
		SpO2:            st.Estimate.SpO2,
		ReadingCount:    st.Estimate.ReadingCount(),
		Status:          models.StatusUnknown,
	}
	if h.classifier != nil {
		class, scores, err := h.classifier.Classify(r.Context(), st.Estimate)
		if err != nil {
			h.logger.Warn("Risk classification failed", zap.String("session_id", st.SessionID), zap.Error(err))
		} else {
			view.RiskClass = int(class)
			view.Status = class.Status()
			view.Scores = scores
		}
	}
	resp.Estimate = view
	writeJSON(w, http.StatusOK, Ok(resp))
}

func (h *Handler) Chart(w http.ResponseWriter, r *http.Request) {
	st := h.ctrl.Status()
	if !st.HasEstimate() {
		writeJSON(w, http.StatusNotFound, Warn(NoEstimatePrompt))
		return
	}
	page, err := RenderMeasurementChart(st.Estimate, st.SessionID)
	if err != nil {
		h.logger.Error("Failed to render chart", zap.String("session_id", st.SessionID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail(err.Error()))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(page)
}

func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	st := h.ctrl.Status()
	if !st.HasEstimate() {
		writeJSON(w, http.StatusNotFound, Warn(NoEstimatePrompt))
		return
	}

	meta := ExportMeta{SessionID: st.SessionID, DeviceID: h.deviceID, CreatedAt: time.Now()}
	if h.classifier != nil {
		if class, _, err := h.classifier.Classify(r.Context(), st.Estimate); err == nil {
			meta.Risk = class
		}
	}
	data, err := GenerateMeasurementExport(st.Estimate, meta)
	if err != nil {
		h.logger.Error("Failed to generate export", zap.String("session_id", st.SessionID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail(err.Error()))
		return
	}

	filename := fmt.Sprintf("ppg_%s.xlsx", st.SessionID)
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeJSON(w, http.StatusOK, Ok([]HistoryItem{}))
		return
	}
	limit := parseInt(r.URL.Query().Get("limit"), 10)
	records, err := h.history.GetLatestByDevice(r.Context(), h.deviceID, limit)
	if err != nil {
		h.logger.Error("Failed to load measurement history", zap.String("device_id", h.deviceID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to load history"))
		return
	}
	items := make([]HistoryItem, 0, len(records))
	for _, rec := range records {
		items = append(items, HistoryItem{
			ID:              rec.ID,
			SessionID:       rec.SessionID,
			HeartRate:       rec.HeartRate,
			Confidence:      rec.Confidence,
			RespiratoryRate: rec.RespiratoryRate,
			SpO2:            rec.SpO2,
			RiskClass:       rec.RiskClass,
			Status:          rec.Status,
			ReadingCount:    rec.ReadingCount,
			StartedAt:       rec.StartedAt,
			CompletedAt:     rec.CompletedAt,
		})
	}
	writeJSON(w, http.StatusOK, Ok(items))
}
