package sampler

import "fmt"

// PixelFormat 帧像素格式（取值与 Android ImageFormat 一致，便于设备端直接透传）
type PixelFormat int32

const (
	FormatUnknown   PixelFormat = 0
	FormatRGBA8888  PixelFormat = 1
	FormatNV21      PixelFormat = 0x11
	FormatYUV420888 PixelFormat = 0x23
	FormatYUV422888 PixelFormat = 0x27
	FormatYUV444888 PixelFormat = 0x28
	FormatJPEG      PixelFormat = 0x100
)

// IsPlanarYUV 是否为可采样的亮度/色度平面格式
func (f PixelFormat) IsPlanarYUV() bool {
	switch f {
	case FormatYUV420888, FormatYUV422888, FormatYUV444888:
		return true
	default:
		return false
	}
}

func (f PixelFormat) String() string {
	switch f {
	case FormatRGBA8888:
		return "RGBA_8888"
	case FormatNV21:
		return "NV21"
	case FormatYUV420888:
		return "YUV_420_888"
	case FormatYUV422888:
		return "YUV_422_888"
	case FormatYUV444888:
		return "YUV_444_888"
	case FormatJPEG:
		return "JPEG"
	default:
		return fmt.Sprintf("FORMAT_%#x", int32(f))
	}
}

// Plane 单个像素平面（plane 0 为亮度 Y）
type Plane struct {
	Data        []byte
	RowStride   int
	PixelStride int
}

// Frame 相机帧
//
// 帧持有底层资源，处理完必须 Close，否则会阻塞采集端。
type Frame interface {
	Format() PixelFormat
	Width() int
	Height() int
	Planes() []Plane
	// Timestamp 采集时间（毫秒）
	Timestamp() int64
	Close() error
}
