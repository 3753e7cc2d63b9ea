package camera

import (
	"sync/atomic"

	"github.com/mzaki9/Atomus-Lumea/internal/sampler"
)

// RawFrame 内存中的相机帧
//
// release 在第一次 Close 时调用（归还缓冲区等），之后的 Close 为空操作。
type RawFrame struct {
	format    sampler.PixelFormat
	width     int
	height    int
	timestamp int64
	planes    []sampler.Plane
	release   func()
	closed    atomic.Bool
}

// NewRawFrame 创建帧
func NewRawFrame(format sampler.PixelFormat, width, height int, timestamp int64, planes []sampler.Plane, release func()) *RawFrame {
	return &RawFrame{
		format:    format,
		width:     width,
		height:    height,
		timestamp: timestamp,
		planes:    planes,
		release:   release,
	}
}

func (f *RawFrame) Format() sampler.PixelFormat { return f.format }
func (f *RawFrame) Width() int                  { return f.width }
func (f *RawFrame) Height() int                 { return f.height }
func (f *RawFrame) Planes() []sampler.Plane     { return f.planes }
func (f *RawFrame) Timestamp() int64            { return f.timestamp }

// Close 释放帧资源（幂等）
func (f *RawFrame) Close() error {
	if f.closed.CompareAndSwap(false, true) && f.release != nil {
		f.release()
	}
	return nil
}

// Closed 是否已释放
func (f *RawFrame) Closed() bool {
	return f.closed.Load()
}
