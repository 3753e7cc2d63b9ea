package models

import "time"

// MeasurementRecord 一次完整测量会话的持久化记录（写入 ppg_measurements 表）
type MeasurementRecord struct {
	ID              int64
	SessionID       string
	DeviceID        string
	HeartRate       int
	Confidence      float64
	RespiratoryRate float64
	SpO2            float64
	RiskClass       *int
	Status          string
	ReadingCount    int
	Readings        []ColorReading
	StartedAt       time.Time
	CompletedAt     time.Time
}
