package camera

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mzaki9/Atomus-Lumea/internal/estimator"
	"github.com/mzaki9/Atomus-Lumea/internal/models"
	"github.com/mzaki9/Atomus-Lumea/internal/sampler"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPulseSim_IsPeriodic(t *testing.T) {
	sim := NewPulseSim(30, 60, 0)
	first := make([]float64, 30)
	for i := range first {
		first[i] = sim.Next()
	}
	// 60 BPM @ 30 fps：每 30 帧一个周期，仅呼吸基线不同
	for i := range first {
		assert.InDelta(t, first[i], sim.Next(), 0.07)
	}
}

func TestSyntheticCamera_ProducesMeasurablePulse(t *testing.T) {
	cam := NewSyntheticCamera(SyntheticConfig{
		Width:  64,
		Height: 48,
		FPS:    30,
		BPM:    75,
		Noise:  0.01,
		Pace:   time.Millisecond,
	}, zap.NewNop())
	s := sampler.New(zap.NewNop())

	var mu sync.Mutex
	var readings []models.ColorReading
	var lastTS int64
	ordered := true

	err := cam.Acquire(context.Background(), func(f sampler.Frame) {
		mu.Lock()
		defer mu.Unlock()
		if f.Timestamp() <= lastTS {
			ordered = false
		}
		lastTS = f.Timestamp()
		if r, ok := s.Sample(f); ok && len(readings) < 60 {
			readings = append(readings, r)
		}
	})
	require.NoError(t, err)
	assert.True(t, cam.TorchOn())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(readings) >= 60
	}, 5*time.Second, 5*time.Millisecond)

	require.NoError(t, cam.Release(context.Background()))
	assert.False(t, cam.TorchOn())

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, ordered)

	est, ok := estimator.Calculate(readings)
	require.True(t, ok)
	assert.InDelta(t, 75, est.HeartRate, 2)
	assert.InDelta(t, 98.5, est.SpO2, 1e-6)
}

func TestSyntheticCamera_AcquireTwice(t *testing.T) {
	cam := NewSyntheticCamera(SyntheticConfig{Width: 8, Height: 8, Pace: time.Hour}, zap.NewNop())
	noop := func(f sampler.Frame) { _ = f.Close() }

	require.NoError(t, cam.Acquire(context.Background(), noop))
	assert.ErrorIs(t, cam.Acquire(context.Background(), noop), ErrAlreadyAcquired)

	require.NoError(t, cam.Release(context.Background()))
	require.NoError(t, cam.Release(context.Background()))

	// 释放后可以再次获取
	require.NoError(t, cam.Acquire(context.Background(), noop))
	require.NoError(t, cam.Release(context.Background()))
}

func TestSyntheticCamera_CancelledContext(t *testing.T) {
	cam := NewSyntheticCamera(SyntheticConfig{}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := cam.Acquire(ctx, func(f sampler.Frame) { _ = f.Close() })
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, cam.TorchOn())
}
