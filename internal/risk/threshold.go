package risk

import (
	"context"
)

// Range 闭区间，nil 表示不限
type Range struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// Contains 是否落在区间内
func (r Range) Contains(v float64) bool {
	if r.Min != nil && v < *r.Min {
		return false
	}
	if r.Max != nil && v > *r.Max {
		return false
	}
	return true
}

// VitalBands 单项体征的正常 / 警告区间，先匹配正常区间，都不命中视为紧急
type VitalBands struct {
	Normal  []Range `json:"normal"`
	Warning []Range `json:"warning"`
}

// penalty 0 正常，1 警告，2 紧急
func (b VitalBands) penalty(v float64) int {
	for _, r := range b.Normal {
		if r.Contains(v) {
			return 0
		}
	}
	for _, r := range b.Warning {
		if r.Contains(v) {
			return 1
		}
	}
	return 2
}

// Thresholds 内置预测器使用的阈值
type Thresholds struct {
	HeartRate       VitalBands `json:"heart_rate"`
	RespiratoryRate VitalBands `json:"respiratory_rate"`
	SpO2            VitalBands `json:"spo2"`
}

func bound(v float64) *float64 { return &v }

// DefaultThresholds 成人静息参考范围
func DefaultThresholds() Thresholds {
	return Thresholds{
		HeartRate: VitalBands{
			Normal:  []Range{{Min: bound(60), Max: bound(100)}},
			Warning: []Range{{Min: bound(50), Max: bound(120)}},
		},
		RespiratoryRate: VitalBands{
			Normal:  []Range{{Min: bound(12), Max: bound(20)}},
			Warning: []Range{{Min: bound(10), Max: bound(24)}},
		},
		SpO2: VitalBands{
			Normal:  []Range{{Min: bound(95)}},
			Warning: []Range{{Min: bound(90)}},
		},
	}
}

// ThresholdPredictor 没有远端模型时的确定性预测器
//
// 三项体征的惩罚分相加（0-6），映射到分类：0→4，1→3，2-3→2，≥4→1。
// 血氧为 0 表示无法计算，不计分。
type ThresholdPredictor struct {
	thresholds Thresholds
}

// NewThresholdPredictor 创建内置预测器
func NewThresholdPredictor(thresholds Thresholds) *ThresholdPredictor {
	return &ThresholdPredictor{thresholds: thresholds}
}

// Predict 返回四个分类的分数，命中的分类 0.7，其余各 0.1
func (p *ThresholdPredictor) Predict(ctx context.Context, f Features) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	total := p.thresholds.HeartRate.penalty(float64(f.HeartRate)) +
		p.thresholds.RespiratoryRate.penalty(float64(f.RespiratoryRate))
	if f.SpO2 > 0 {
		total += p.thresholds.SpO2.penalty(float64(f.SpO2))
	}

	var index int
	switch {
	case total == 0:
		index = 3
	case total == 1:
		index = 2
	case total <= 3:
		index = 1
	default:
		index = 0
	}

	scores := []float32{0.1, 0.1, 0.1, 0.1}
	scores[index] = 0.7
	return scores, nil
}
