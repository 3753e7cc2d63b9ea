package models

// ColorReading 单帧的颜色读数（由帧采样器生成，创建后不可修改）
type ColorReading struct {
	Timestamp int64   `json:"timestamp"` // 采集时间（毫秒）
	RedMean   float64 `json:"red_mean"`
	GreenMean float64 `json:"green_mean"`
	BlueMean  float64 `json:"blue_mean"`
	Intensity float64 `json:"intensity"` // 三通道均值的平均
}

// NewColorReading 根据三个通道均值创建读数，intensity 取三者平均
func NewColorReading(timestamp int64, red, green, blue float64) ColorReading {
	return ColorReading{
		Timestamp: timestamp,
		RedMean:   red,
		GreenMean: green,
		BlueMean:  blue,
		Intensity: (red + green + blue) / 3,
	}
}

// HeartRateEstimate 一次估算的结果
//
// Measurements 是估算时使用的读数快照（用于图表展示、导出），不与缓冲区共享底层数组。
type HeartRateEstimate struct {
	HeartRate       int            `json:"heart_rate"`
	Confidence      float64        `json:"confidence"`
	RespiratoryRate float64        `json:"respiratory_rate"`
	SpO2            float64        `json:"spo2"`
	Measurements    []ColorReading `json:"measurements,omitempty"`
}

// ReadingCount 估算使用的读数数量
func (e *HeartRateEstimate) ReadingCount() int {
	if e == nil {
		return 0
	}
	return len(e.Measurements)
}

// Summary 去掉 measurements 的浅拷贝（用于缓存、推送等不需要原始序列的场景）
func (e *HeartRateEstimate) Summary() HeartRateEstimate {
	return HeartRateEstimate{
		HeartRate:       e.HeartRate,
		Confidence:      e.Confidence,
		RespiratoryRate: e.RespiratoryRate,
		SpO2:            e.SpO2,
	}
}
