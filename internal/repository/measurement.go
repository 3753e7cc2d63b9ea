package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/mzaki9/Atomus-Lumea/internal/models"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// SchemaSQL ppg_measurements 表结构
const SchemaSQL = `
	CREATE TABLE IF NOT EXISTS ppg_measurements (
		id               BIGSERIAL PRIMARY KEY,
		session_id       TEXT NOT NULL UNIQUE,
		device_id        TEXT NOT NULL,
		heart_rate       INTEGER NOT NULL,
		confidence       DOUBLE PRECISION NOT NULL,
		respiratory_rate DOUBLE PRECISION NOT NULL,
		spo2             DOUBLE PRECISION NOT NULL,
		risk_class       INTEGER,
		status           TEXT NOT NULL,
		reading_count    INTEGER NOT NULL,
		readings         JSONB NOT NULL DEFAULT '[]',
		started_at       TIMESTAMPTZ NOT NULL,
		completed_at     TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_ppg_measurements_device_completed
		ON ppg_measurements (device_id, completed_at DESC);
`

const selectColumns = `
		id,
		session_id,
		device_id,
		heart_rate,
		confidence,
		respiratory_rate,
		spo2,
		risk_class,
		status,
		reading_count,
		readings,
		started_at,
		completed_at
`

// MeasurementRepository 测量记录仓库
type MeasurementRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMeasurementRepository 创建测量记录仓库
func NewMeasurementRepository(db *sql.DB, logger *zap.Logger) *MeasurementRepository {
	return &MeasurementRepository{
		db:     db,
		logger: logger,
	}
}

// EnsureSchema 建表（幂等）
func (r *MeasurementRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, SchemaSQL); err != nil {
		return fmt.Errorf("failed to ensure ppg_measurements schema: %w", err)
	}
	return nil
}

// Insert 写入一条记录，返回 id
func (r *MeasurementRepository) Insert(ctx context.Context, record *models.MeasurementRecord) (int64, error) {
	readings := record.Readings
	if readings == nil {
		readings = []models.ColorReading{}
	}
	readingsJSON, err := json.Marshal(readings)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal readings: %w", err)
	}

	query := `
		INSERT INTO ppg_measurements (
			session_id,
			device_id,
			heart_rate,
			confidence,
			respiratory_rate,
			spo2,
			risk_class,
			status,
			reading_count,
			readings,
			started_at,
			completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`

	var id int64
	err = r.db.QueryRowContext(ctx, query,
		record.SessionID,
		record.DeviceID,
		record.HeartRate,
		record.Confidence,
		record.RespiratoryRate,
		record.SpO2,
		record.RiskClass,
		record.Status,
		record.ReadingCount,
		readingsJSON,
		record.StartedAt,
		record.CompletedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert measurement: %w", err)
	}

	record.ID = id
	return id, nil
}

// GetLatestByDevice 设备最近的 limit 条记录，按完成时间倒序
func (r *MeasurementRepository) GetLatestByDevice(ctx context.Context, deviceID string, limit int) ([]models.MeasurementRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `SELECT` + selectColumns + `
		FROM ppg_measurements
		WHERE device_id = $1
		ORDER BY completed_at DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query measurements: %w", err)
	}
	defer rows.Close()
	return r.scanRecords(rows)
}

// GetBySessionIDs 按会话 ID 批量查询
func (r *MeasurementRepository) GetBySessionIDs(ctx context.Context, sessionIDs []string) ([]models.MeasurementRecord, error) {
	if len(sessionIDs) == 0 {
		return nil, nil
	}
	query := `SELECT` + selectColumns + `
		FROM ppg_measurements
		WHERE session_id = ANY($1)
		ORDER BY completed_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(sessionIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query measurements by session: %w", err)
	}
	defer rows.Close()
	return r.scanRecords(rows)
}

func (r *MeasurementRepository) scanRecords(rows *sql.Rows) ([]models.MeasurementRecord, error) {
	var records []models.MeasurementRecord
	for rows.Next() {
		var rec models.MeasurementRecord
		var riskClass sql.NullInt64
		var readingsJSON []byte
		if err := rows.Scan(
			&rec.ID,
			&rec.SessionID,
			&rec.DeviceID,
			&rec.HeartRate,
			&rec.Confidence,
			&rec.RespiratoryRate,
			&rec.SpO2,
			&riskClass,
			&rec.Status,
			&rec.ReadingCount,
			&readingsJSON,
			&rec.StartedAt,
			&rec.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan measurement: %w", err)
		}
		if riskClass.Valid {
			c := int(riskClass.Int64)
			rec.RiskClass = &c
		}
		if len(readingsJSON) > 0 {
			if err := json.Unmarshal(readingsJSON, &rec.Readings); err != nil {
				r.logger.Warn("Failed to unmarshal stored readings",
					zap.String("session_id", rec.SessionID),
					zap.Error(err),
				)
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate measurements: %w", err)
	}
	return records, nil
}
