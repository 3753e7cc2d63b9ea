// Package estimator 根据一段颜色读数估算心率、置信度、呼吸率与血氧
//
// 估算是纯函数：相同的读数序列总是得到相同的结果。数据不足或噪声过大时返回 (nil, false)，
// 这是采样初期的正常情况，不是错误。
package estimator

import (
	"math"
	"sort"

	"github.com/mzaki9/Atomus-Lumea/internal/models"

	"gonum.org/v1/gonum/stat"
)

const (
	// MinReadings 估算所需的最少读数
	MinReadings = 50

	smoothingWindow  = 5
	outlierTolerance = 0.4 // 相对中位数允许的偏差

	minHeartRate = 40 // 不含
	maxHeartRate = 200 // 不含

	confidenceCVWeight = 5.0

	beatsPerBreath     = 4.0
	minRespiratoryRate = 12.0
	maxRespiratoryRate = 20.0

	spo2Intercept         = 110.0
	spo2Slope             = 25.0
	spo2CalibrationScale  = 1.1
	spo2CalibrationOffset = 5.0
)

// Calculator 心率估算器（无状态，可并发使用）
type Calculator struct{}

// NewCalculator 创建估算器
func NewCalculator() *Calculator {
	return &Calculator{}
}

// Calculate 见 Calculate
func (c *Calculator) Calculate(readings []models.ColorReading) (*models.HeartRateEstimate, bool) {
	return Calculate(readings)
}

// Calculate 估算心率
//
// 步骤：绿色通道 → 5 点滑动平均 → 局部极大值检测 → 峰间隔（使用原始时间戳）
// → 中位数 40% 外离群剔除 → 心率/置信度/呼吸率 → 红色与亮度通道的 AC/DC 比值估算血氧。
func Calculate(readings []models.ColorReading) (*models.HeartRateEstimate, bool) {
	if len(readings) < MinReadings {
		return nil, false
	}

	green := make([]float64, len(readings))
	for i, r := range readings {
		green[i] = r.GreenMean
	}

	peaks := detectPeaks(movingAverage(green, smoothingWindow))
	if len(peaks) < 2 {
		return nil, false
	}

	intervals := filterOutliers(peakIntervals(readings, peaks))
	if len(intervals) == 0 {
		return nil, false
	}

	values := make([]float64, len(intervals))
	for i, v := range intervals {
		values[i] = float64(v)
	}
	avgInterval := stat.Mean(values, nil)
	if avgInterval <= 0 {
		return nil, false
	}

	heartRate := int(math.Floor(60000 / avgInterval))
	if heartRate <= minHeartRate || heartRate >= maxHeartRate {
		return nil, false
	}

	cv := stat.PopStdDev(values, nil) / avgInterval
	confidence := clamp(1-confidenceCVWeight*cv, 0, 1)

	measurements := make([]models.ColorReading, len(readings))
	copy(measurements, readings)

	return &models.HeartRateEstimate{
		HeartRate:       heartRate,
		Confidence:      confidence,
		RespiratoryRate: respiratoryRate(avgInterval),
		SpO2:            spo2(readings),
		Measurements:    measurements,
	}, true
}

// movingAverage 居中滑动平均，边界处只使用可用的邻居（不补零、不回绕）
func movingAverage(values []float64, window int) []float64 {
	half := window / 2
	out := make([]float64, len(values))
	for i := range values {
		start := max(0, i-half)
		end := min(len(values)-1, i+half)
		sum := 0.0
		for j := start; j <= end; j++ {
			sum += values[j]
		}
		out[i] = sum / float64(end-start+1)
	}
	return out
}

// detectPeaks 严格大于左右邻居的点（首尾不参与）
func detectPeaks(values []float64) []int {
	var peaks []int
	for i := 1; i < len(values)-1; i++ {
		if values[i] > values[i-1] && values[i] > values[i+1] {
			peaks = append(peaks, i)
		}
	}
	return peaks
}

// peakIntervals 相邻峰之间的时间差（毫秒）
func peakIntervals(readings []models.ColorReading, peaks []int) []int64 {
	intervals := make([]int64, 0, len(peaks)-1)
	for i := 1; i < len(peaks); i++ {
		intervals = append(intervals, readings[peaks[i]].Timestamp-readings[peaks[i-1]].Timestamp)
	}
	return intervals
}

// filterOutliers 剔除偏离中位数超过 40% 的间隔；不超过 2 个间隔时不做剔除
func filterOutliers(intervals []int64) []int64 {
	if len(intervals) <= 2 {
		return intervals
	}

	m := median(intervals)
	maxDeviation := float64(m) * outlierTolerance

	filtered := make([]int64, 0, len(intervals))
	for _, v := range intervals {
		if math.Abs(float64(v-m)) <= maxDeviation {
			filtered = append(filtered, v)
		}
	}
	return filtered
}

// median 整数中位数；偶数个时取中间两个的平均并向下取整
func median(values []int64) int64 {
	sorted := make([]int64, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}

// respiratoryRate 按约 4 次心跳 1 次呼吸粗略估算
func respiratoryRate(avgInterval float64) float64 {
	return clamp(60000/(avgInterval*beatsPerBreath), minRespiratoryRate, maxRespiratoryRate)
}

// spo2 红色通道与亮度通道（近似红外）的 AC/DC 比值法
func spo2(readings []models.ColorReading) float64 {
	red := make([]float64, len(readings))
	ir := make([]float64, len(readings))
	for i, r := range readings {
		red[i] = r.RedMean
		ir[i] = r.Intensity
	}

	redDC, redAC := dcAC(red)
	irDC, irAC := dcAC(ir)
	if redDC == 0 || irDC == 0 || irAC == 0 {
		return 0
	}

	ratio := (redAC / redDC) / (irAC / irDC)
	raw := spo2Intercept - spo2Slope*ratio
	return clamp(raw*spo2CalibrationScale+spo2CalibrationOffset, 0, 100)
}

// dcAC DC 为均值，AC 为总体标准差；空序列返回 0
func dcAC(values []float64) (dc, ac float64) {
	if len(values) == 0 {
		return 0, 0
	}
	return stat.Mean(values, nil), stat.PopStdDev(values, nil)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
