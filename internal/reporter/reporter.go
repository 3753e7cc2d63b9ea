// Package reporter 会话完成后的协作方：健康数据同步、位置上报、本地持久化
//
// 每个协作方只在会话以有效估计结束时被调用一次。
package reporter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mzaki9/Atomus-Lumea/internal/models"
	"github.com/mzaki9/Atomus-Lumea/internal/session"

	"go.uber.org/zap"
)

// ErrNoLocation 没有可用的位置
var ErrNoLocation = errors.New("location unavailable")

// HealthSaver 健康数据上报（*client.HealthClient 实现）
type HealthSaver interface {
	SaveHealthData(ctx context.Context, input models.HealthCheckInput) (*models.HealthData, error)
}

// HealthReporter 把结果和风险状态保存到后端
type HealthReporter struct {
	health HealthSaver
	logger *zap.Logger
}

// NewHealthReporter 创建健康数据上报
func NewHealthReporter(health HealthSaver, logger *zap.Logger) *HealthReporter {
	return &HealthReporter{health: health, logger: logger}
}

// Name 协作方名称
func (r *HealthReporter) Name() string { return "health_sync" }

// OnMeasurementComplete 上报健康数据；没有有效分类时状态记为 Unknown
func (r *HealthReporter) OnMeasurementComplete(ctx context.Context, result session.Result) error {
	est := result.Estimate
	if est == nil {
		return nil
	}

	input := models.HealthCheckInput{
		HeartRate:       est.HeartRate,
		BloodOxygen:     est.SpO2,
		RespiratoryRate: est.RespiratoryRate,
		Status:          result.Risk.Status(),
	}
	data, err := r.health.SaveHealthData(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to save health data: %w", err)
	}

	fields := []zap.Field{
		zap.String("session_id", result.SessionID),
		zap.Int("heart_rate", input.HeartRate),
		zap.String("status", input.Status),
	}
	if data != nil {
		fields = append(fields, zap.Int("record_id", data.ID))
	}
	r.logger.Info("Health data saved", fields...)
	return nil
}

// LocationProvider 提供当前位置
type LocationProvider interface {
	CurrentLocation(ctx context.Context) (models.Location, error)
}

// StaticLocation 配置中的固定坐标
type StaticLocation struct {
	Latitude  float64
	Longitude float64
	Set       bool
}

// CurrentLocation 未配置时返回 ErrNoLocation
func (l StaticLocation) CurrentLocation(context.Context) (models.Location, error) {
	if !l.Set {
		return models.Location{}, ErrNoLocation
	}
	return models.Location{Latitude: l.Latitude, Longitude: l.Longitude}, nil
}

// LocationSender 位置上报（*client.LocationClient 实现）
type LocationSender interface {
	SendLocation(ctx context.Context, loc models.Location) error
}

// LocationReporter 测量完成后上报位置
type LocationReporter struct {
	provider LocationProvider
	sender   LocationSender
	logger   *zap.Logger
}

// NewLocationReporter 创建位置上报
func NewLocationReporter(provider LocationProvider, sender LocationSender, logger *zap.Logger) *LocationReporter {
	return &LocationReporter{provider: provider, sender: sender, logger: logger}
}

// Name 协作方名称
func (r *LocationReporter) Name() string { return "location" }

// OnMeasurementComplete 没有位置时静默跳过
func (r *LocationReporter) OnMeasurementComplete(ctx context.Context, result session.Result) error {
	if result.Estimate == nil {
		return nil
	}

	loc, err := r.provider.CurrentLocation(ctx)
	if errors.Is(err, ErrNoLocation) {
		r.logger.Debug("No location available, skipping", zap.String("session_id", result.SessionID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get location: %w", err)
	}
	if loc.LastCheckedDate == "" {
		loc.LastCheckedDate = result.CompletedAt.UTC().Format(time.RFC3339)
	}

	if err := r.sender.SendLocation(ctx, loc); err != nil {
		return fmt.Errorf("failed to send location: %w", err)
	}
	r.logger.Info("Location sent",
		zap.String("session_id", result.SessionID),
		zap.Float64("latitude", loc.Latitude),
		zap.Float64("longitude", loc.Longitude),
	)
	return nil
}

// MeasurementStore 测量记录存储（*repository.MeasurementRepository 实现）
type MeasurementStore interface {
	Insert(ctx context.Context, record *models.MeasurementRecord) (int64, error)
}

// MeasurementReporter 把会话结果写入数据库
type MeasurementReporter struct {
	store  MeasurementStore
	logger *zap.Logger
}

// NewMeasurementReporter 创建持久化协作方
func NewMeasurementReporter(store MeasurementStore, logger *zap.Logger) *MeasurementReporter {
	return &MeasurementReporter{store: store, logger: logger}
}

// Name 协作方名称
func (r *MeasurementReporter) Name() string { return "persistence" }

// OnMeasurementComplete 写入测量记录
func (r *MeasurementReporter) OnMeasurementComplete(ctx context.Context, result session.Result) error {
	record := BuildRecord(result)
	if record == nil {
		return nil
	}

	id, err := r.store.Insert(ctx, record)
	if err != nil {
		return fmt.Errorf("failed to persist measurement: %w", err)
	}
	r.logger.Info("Measurement persisted",
		zap.Int64("id", id),
		zap.String("session_id", result.SessionID),
		zap.Int("reading_count", record.ReadingCount),
	)
	return nil
}

// BuildRecord 会话结果 → 存储记录；没有估计时返回 nil
func BuildRecord(result session.Result) *models.MeasurementRecord {
	est := result.Estimate
	if est == nil {
		return nil
	}
	record := &models.MeasurementRecord{
		SessionID:       result.SessionID,
		DeviceID:        result.DeviceID,
		HeartRate:       est.HeartRate,
		Confidence:      est.Confidence,
		RespiratoryRate: est.RespiratoryRate,
		SpO2:            est.SpO2,
		Status:          result.Risk.Status(),
		ReadingCount:    est.ReadingCount(),
		Readings:        est.Measurements,
		StartedAt:       result.StartedAt,
		CompletedAt:     result.CompletedAt,
	}
	if result.Risk.Valid() {
		class := int(result.Risk)
		record.RiskClass = &class
	}
	return record
}
