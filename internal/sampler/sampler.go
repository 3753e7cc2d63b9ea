// Package sampler 将单个相机帧转换为一条颜色读数
//
// 只处理中心 30% x 30% 的感兴趣区域（手指压住镜头的位置），读取亮度平面：
//   - green 通道累加原始亮度
//   - red 通道累加亮度 x 0.7
//   - blue 通道累加亮度 x 0.5
//
// 这里没有做真正的 YUV→RGB 转换，三个通道的权重是刻意保留的近似值。
package sampler

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/mzaki9/Atomus-Lumea/internal/models"

	"go.uber.org/zap"
)

const (
	roiFraction = 0.3
	redWeight   = 0.7
	greenWeight = 1.0
	blueWeight  = 0.5
)

var (
	// ErrUnsupportedFormat 非 YUV 平面格式
	ErrUnsupportedFormat = errors.New("unsupported pixel format")
	// ErrMissingLumaPlane 帧缺少亮度平面或步长无效
	ErrMissingLumaPlane = errors.New("missing luma plane")
)

// Stats 采样计数
type Stats struct {
	Sampled  int64 `json:"sampled"`
	Rejected int64 `json:"rejected"` // 格式不支持
	Failed   int64 `json:"failed"`   // 处理失败
}

// Sampler 帧采样器（无状态，计数器除外；可被单个帧处理协程复用）
type Sampler struct {
	logger   *zap.Logger
	now      func() int64
	sampled  atomic.Int64
	rejected atomic.Int64
	failed   atomic.Int64
}

// New 创建帧采样器
func New(logger *zap.Logger) *Sampler {
	return &Sampler{
		logger: logger,
		now:    func() int64 { return time.Now().UnixMilli() },
	}
}

// Sample 采样一帧
//
// 返回 ok=false 表示该帧被丢弃（格式不支持或处理失败），错误只记日志，不向上传递。
// 无论成功与否，帧都会被 Close。
func (s *Sampler) Sample(frame Frame) (reading models.ColorReading, ok bool) {
	defer func() {
		if err := frame.Close(); err != nil {
			s.logger.Debug("Failed to release frame", zap.Error(err))
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			s.failed.Add(1)
			s.logger.Warn("Frame processing panicked, frame dropped", zap.Any("panic", r))
			reading, ok = models.ColorReading{}, false
		}
	}()

	if !frame.Format().IsPlanarYUV() {
		s.rejected.Add(1)
		s.logger.Debug("Unsupported frame format, frame skipped",
			zap.String("format", frame.Format().String()),
		)
		return models.ColorReading{}, false
	}

	red, green, blue, err := ExtractColorMeans(frame)
	if err != nil {
		s.failed.Add(1)
		s.logger.Warn("Failed to extract color data, frame dropped", zap.Error(err))
		return models.ColorReading{}, false
	}

	ts := frame.Timestamp()
	if ts <= 0 {
		ts = s.now()
	}

	s.sampled.Add(1)
	return models.NewColorReading(ts, red, green, blue), true
}

// Stats 返回累计计数
func (s *Sampler) Stats() Stats {
	return Stats{
		Sampled:  s.sampled.Load(),
		Rejected: s.rejected.Load(),
		Failed:   s.failed.Load(),
	}
}

// ROI 计算中心感兴趣区域（起点与宽高）
func ROI(width, height int) (startX, startY, roiWidth, roiHeight int) {
	roiWidth = int(float64(width) * roiFraction)
	roiHeight = int(float64(height) * roiFraction)
	startX = (width - roiWidth) / 2
	startY = (height - roiHeight) / 2
	return startX, startY, roiWidth, roiHeight
}

// ExtractColorMeans 计算 ROI 内的三通道均值；ROI 内没有可读像素时返回 0
func ExtractColorMeans(frame Frame) (red, green, blue float64, err error) {
	if !frame.Format().IsPlanarYUV() {
		return 0, 0, 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, frame.Format())
	}
	planes := frame.Planes()
	if len(planes) == 0 {
		return 0, 0, 0, ErrMissingLumaPlane
	}
	luma := planes[0]
	if luma.RowStride <= 0 || luma.PixelStride <= 0 {
		return 0, 0, 0, fmt.Errorf("%w: row_stride=%d pixel_stride=%d", ErrMissingLumaPlane, luma.RowStride, luma.PixelStride)
	}

	startX, startY, w, h := ROI(frame.Width(), frame.Height())

	var redSum, greenSum, blueSum float64
	pixelCount := 0
	for y := startY; y < startY+h; y++ {
		for x := startX; x < startX+w; x++ {
			idx := y*luma.RowStride + x*luma.PixelStride
			if idx < 0 || idx >= len(luma.Data) {
				continue
			}
			v := float64(luma.Data[idx])
			greenSum += v * greenWeight
			redSum += v * redWeight
			blueSum += v * blueWeight
			pixelCount++
		}
	}

	if pixelCount == 0 {
		return 0, 0, 0, nil
	}
	n := float64(pixelCount)
	return redSum / n, greenSum / n, blueSum / n, nil
}
