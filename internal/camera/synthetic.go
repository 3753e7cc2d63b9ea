package camera

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/mzaki9/Atomus-Lumea/internal/sampler"

	"go.uber.org/zap"
)

// ErrAlreadyAcquired 相机已被占用
var ErrAlreadyAcquired = errors.New("camera already acquired")

// 4x4 有序抖动矩阵，使整数亮度的区域均值保留小数精度
var bayer4 = [4][4]uint8{
	{0, 8, 2, 10},
	{12, 4, 14, 6},
	{3, 11, 1, 9},
	{15, 7, 13, 5},
}

// SyntheticConfig 模拟相机配置
type SyntheticConfig struct {
	Width     int
	Height    int
	FPS       int
	BPM       float64
	Noise     float64
	Baseline  float64 // 亮度基线
	Amplitude float64 // 脉搏亮度幅度
	// Pace 实际出帧间隔；0 表示 1/FPS。时间戳始终按 FPS 推进。
	Pace time.Duration
}

// DefaultSyntheticConfig 默认配置
func DefaultSyntheticConfig() SyntheticConfig {
	return SyntheticConfig{
		Width:     320,
		Height:    240,
		FPS:       30,
		BPM:       72,
		Noise:     0.01,
		Baseline:  140,
		Amplitude: 40,
	}
}

// SyntheticCamera 模拟后置摄像头 + 闪光灯，输出 YUV_420_888 帧
type SyntheticCamera struct {
	config SyntheticConfig
	logger *zap.Logger

	lumaPool sync.Pool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	torch  bool
}

// NewSyntheticCamera 创建模拟相机
func NewSyntheticCamera(cfg SyntheticConfig, logger *zap.Logger) *SyntheticCamera {
	def := DefaultSyntheticConfig()
	if cfg.Width <= 0 {
		cfg.Width = def.Width
	}
	if cfg.Height <= 0 {
		cfg.Height = def.Height
	}
	if cfg.FPS <= 0 {
		cfg.FPS = def.FPS
	}
	if cfg.BPM <= 0 {
		cfg.BPM = def.BPM
	}
	if cfg.Baseline <= 0 {
		cfg.Baseline = def.Baseline
	}
	if cfg.Amplitude <= 0 {
		cfg.Amplitude = def.Amplitude
	}

	size := cfg.Width * cfg.Height
	c := &SyntheticCamera{config: cfg, logger: logger}
	c.lumaPool.New = func() any {
		buf := make([]byte, size)
		return &buf
	}
	return c
}

// Acquire 打开闪光灯并开始出帧
func (c *SyntheticCamera) Acquire(ctx context.Context, deliver func(sampler.Frame)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		return ErrAlreadyAcquired
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	c.torch = true

	go c.run(runCtx, c.done, deliver)

	c.logger.Info("Synthetic camera acquired",
		zap.Int("width", c.config.Width),
		zap.Int("height", c.config.Height),
		zap.Int("fps", c.config.FPS),
		zap.Float64("bpm", c.config.BPM),
	)
	return nil
}

// Release 停止出帧并关闭闪光灯，可重复调用
func (c *SyntheticCamera) Release(ctx context.Context) error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.torch = false
	c.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	c.logger.Info("Synthetic camera released")
	return nil
}

// TorchOn 闪光灯状态
func (c *SyntheticCamera) TorchOn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.torch
}

func (c *SyntheticCamera) run(ctx context.Context, done chan struct{}, deliver func(sampler.Frame)) {
	defer close(done)

	pace := c.config.Pace
	if pace <= 0 {
		pace = time.Second / time.Duration(c.config.FPS)
	}
	ticker := time.NewTicker(pace)
	defer ticker.Stop()

	sim := NewPulseSim(float64(c.config.FPS), c.config.BPM, c.config.Noise)
	start := time.Now().UnixMilli()
	var index int64

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ts := start + index*1000/int64(c.config.FPS)
			index++
			luma := c.config.Baseline + c.config.Amplitude*sim.Next()
			deliver(c.frame(luma, ts))
		}
	}
}

// frame 生成一帧均匀亮度（带抖动）的 YUV_420_888 图像
func (c *SyntheticCamera) frame(luma float64, ts int64) sampler.Frame {
	w, h := c.config.Width, c.config.Height
	bufPtr := c.lumaPool.Get().(*[]byte)
	y := *bufPtr

	for row := 0; row < h; row++ {
		line := y[row*w : (row+1)*w]
		for col := range line {
			v := math.Floor(luma + float64(bayer4[row%4][col%4])/16)
			line[col] = uint8(math.Max(0, math.Min(255, v)))
		}
	}

	chroma := make([]byte, (w/2)*(h/2))
	for i := range chroma {
		chroma[i] = 128
	}

	planes := []sampler.Plane{
		{Data: y, RowStride: w, PixelStride: 1},
		{Data: chroma, RowStride: w / 2, PixelStride: 1},
		{Data: chroma, RowStride: w / 2, PixelStride: 1},
	}
	return NewRawFrame(sampler.FormatYUV420888, w, h, ts, planes, func() {
		c.lumaPool.Put(bufPtr)
	})
}
