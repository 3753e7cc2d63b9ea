package models

import "strings"

// HealthCheckInput 上报到后端的健康数据
type HealthCheckInput struct {
	HeartRate       int     `json:"bpm"`
	BloodOxygen     float64 `json:"spo2"`
	RespiratoryRate float64 `json:"resp_rate"`
	Status          string  `json:"status"`
}

// HealthResponse 后端 api/health 的统一响应
type HealthResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    *HealthData `json:"data,omitempty"`
}

// HealthData 后端保存的健康记录
type HealthData struct {
	ID              int     `json:"id"`
	UserID          int     `json:"userId"`
	HeartRate       int     `json:"bpm"`
	BloodOxygen     float64 `json:"spo2"`
	RespiratoryRate float64 `json:"resp_rate"`
	Status          string  `json:"status"`
	Date            string  `json:"date"`
}

// Location 测量完成后上报的位置
type Location struct {
	UserID          string  `json:"userId,omitempty"`
	Latitude        float64 `json:"latitude"`
	Longitude       float64 `json:"longitude"`
	LastCheckedDate string  `json:"lastCheckedDate,omitempty"`
}

// RiskClass 健康风险分类（1-4，0 表示未知）
type RiskClass int

const (
	RiskUnknown     RiskClass = 0
	RiskUnhealthy   RiskClass = 1 // Tidak Sehat
	RiskLessHealthy RiskClass = 2 // Kurang Sehat
	RiskFairHealthy RiskClass = 3 // Cukup Sehat
	RiskVeryHealthy RiskClass = 4 // Sangat Sehat
)

// 后端使用的状态标签
const (
	StatusUnhealthy   = "Tidak Sehat"
	StatusLessHealthy = "Kurang Sehat"
	StatusFairHealthy = "Cukup Sehat"
	StatusVeryHealthy = "Sangat Sehat"
	StatusUnknown     = "Unknown"
)

// Status 分类对应的状态标签
func (c RiskClass) Status() string {
	switch c {
	case RiskUnhealthy:
		return StatusUnhealthy
	case RiskLessHealthy:
		return StatusLessHealthy
	case RiskFairHealthy:
		return StatusFairHealthy
	case RiskVeryHealthy:
		return StatusVeryHealthy
	default:
		return StatusUnknown
	}
}

// Valid 是否为 1-4 之间的有效分类
func (c RiskClass) Valid() bool {
	return c >= RiskUnhealthy && c <= RiskVeryHealthy
}

// ParseStatus 将后端状态标签（大小写不敏感）转换为分类
func ParseStatus(status string) RiskClass {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "tidak sehat":
		return RiskUnhealthy
	case "kurang sehat":
		return RiskLessHealthy
	case "cukup sehat":
		return RiskFairHealthy
	case "sangat sehat":
		return RiskVeryHealthy
	default:
		return RiskUnknown
	}
}
