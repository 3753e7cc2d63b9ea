package sampler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeFrame struct {
	format    PixelFormat
	width     int
	height    int
	planes    []Plane
	timestamp int64
	closed    int
}

func (f *fakeFrame) Format() PixelFormat { return f.format }
func (f *fakeFrame) Width() int          { return f.width }
func (f *fakeFrame) Height() int         { return f.height }
func (f *fakeFrame) Planes() []Plane     { return f.planes }
func (f *fakeFrame) Timestamp() int64    { return f.timestamp }
func (f *fakeFrame) Close() error {
	f.closed++
	return nil
}

// uniformFrame 亮度全部为 luma 的 YUV_420_888 帧
func uniformFrame(width, height int, luma byte, ts int64) *fakeFrame {
	y := make([]byte, width*height)
	for i := range y {
		y[i] = luma
	}
	return &fakeFrame{
		format:    FormatYUV420888,
		width:     width,
		height:    height,
		timestamp: ts,
		planes: []Plane{
			{Data: y, RowStride: width, PixelStride: 1},
			{Data: make([]byte, width*height/4), RowStride: width / 2, PixelStride: 1},
			{Data: make([]byte, width*height/4), RowStride: width / 2, PixelStride: 1},
		},
	}
}

func TestROI_CenterThirtyPercent(t *testing.T) {
	x, y, w, h := ROI(640, 480)
	assert.Equal(t, 192, w)
	assert.Equal(t, 144, h)
	assert.Equal(t, 224, x)
	assert.Equal(t, 168, y)
}

func TestSample_UniformLumaWeights(t *testing.T) {
	s := New(zap.NewNop())
	f := uniformFrame(100, 100, 200, 1234)

	r, ok := s.Sample(f)
	require.True(t, ok)
	assert.Equal(t, int64(1234), r.Timestamp)
	assert.InDelta(t, 200.0, r.GreenMean, 1e-9)
	assert.InDelta(t, 140.0, r.RedMean, 1e-9)
	assert.InDelta(t, 100.0, r.BlueMean, 1e-9)
	assert.InDelta(t, (200.0+140.0+100.0)/3, r.Intensity, 1e-9)
	assert.Equal(t, 1, f.closed)
	assert.Equal(t, int64(1), s.Stats().Sampled)
}

func TestSample_OnlyROIPixelsCount(t *testing.T) {
	f := uniformFrame(10, 10, 0, 1)
	// ROI 为 3x3，起点 (3,3)
	for y := 3; y < 6; y++ {
		for x := 3; x < 6; x++ {
			f.planes[0].Data[y*10+x] = 90
		}
	}
	red, green, blue, err := ExtractColorMeans(f)
	require.NoError(t, err)
	assert.InDelta(t, 90.0, green, 1e-9)
	assert.InDelta(t, 63.0, red, 1e-9)
	assert.InDelta(t, 45.0, blue, 1e-9)
}

func TestSample_UnsupportedFormatIsSkippedAndReleased(t *testing.T) {
	s := New(zap.NewNop())
	f := uniformFrame(64, 48, 128, 1)
	f.format = FormatRGBA8888

	_, ok := s.Sample(f)
	assert.False(t, ok)
	assert.Equal(t, 1, f.closed)
	assert.Equal(t, Stats{Rejected: 1}, s.Stats())
}

func TestSample_MissingPlaneDropsFrame(t *testing.T) {
	s := New(zap.NewNop())
	f := uniformFrame(64, 48, 128, 1)
	f.planes = nil

	_, ok := s.Sample(f)
	assert.False(t, ok)
	assert.Equal(t, 1, f.closed)
	assert.Equal(t, int64(1), s.Stats().Failed)
}

func TestSample_TruncatedBufferYieldsZeroMeans(t *testing.T) {
	s := New(zap.NewNop())
	f := uniformFrame(64, 48, 128, 1)
	f.planes[0].Data = f.planes[0].Data[:10]

	r, ok := s.Sample(f)
	require.True(t, ok)
	assert.Zero(t, r.GreenMean)
	assert.Zero(t, r.Intensity)
}

func TestSample_FallsBackToClockWhenTimestampMissing(t *testing.T) {
	s := New(zap.NewNop())
	s.now = func() int64 { return 42 }

	r, ok := s.Sample(uniformFrame(20, 20, 10, 0))
	require.True(t, ok)
	assert.Equal(t, int64(42), r.Timestamp)
}

type panicFrame struct{ fakeFrame }

func (p *panicFrame) Planes() []Plane { panic("buffer gone") }

func TestSample_PanicIsRecoveredAndFrameReleased(t *testing.T) {
	s := New(zap.NewNop())
	p := &panicFrame{fakeFrame: *uniformFrame(20, 20, 10, 1)}

	_, ok := s.Sample(p)
	assert.False(t, ok)
	assert.Equal(t, 1, p.closed)
	assert.Equal(t, int64(1), s.Stats().Failed)
}

func TestPixelFormat_String(t *testing.T) {
	assert.Equal(t, "YUV_420_888", FormatYUV420888.String())
	assert.Equal(t, "FORMAT_0x7", PixelFormat(7).String())
	assert.False(t, FormatNV21.IsPlanarYUV())
}
