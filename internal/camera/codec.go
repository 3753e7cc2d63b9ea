package camera

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/mzaki9/Atomus-Lumea/internal/sampler"
)

// 帧的二进制编码（小端）：
//
//	magic "PPGF" | format int32 | width uint32 | height uint32 | timestamp int64 | plane_count uint8
//	每个平面: row_stride uint32 | pixel_stride uint32 | length uint32 | data
var frameMagic = [4]byte{'P', 'P', 'G', 'F'}

const (
	maxFrameDimension = 8192
	maxPlanes         = 4
	frameHeaderSize   = 4 + 4 + 4 + 4 + 8 + 1
	planeHeaderSize   = 4 + 4 + 4
)

// ErrMalformedFrame 帧载荷无法解析
var ErrMalformedFrame = errors.New("malformed frame payload")

// EncodeFrame 编码帧
func EncodeFrame(frame sampler.Frame) ([]byte, error) {
	planes := frame.Planes()
	if len(planes) > maxPlanes {
		return nil, fmt.Errorf("too many planes: %d", len(planes))
	}

	size := frameHeaderSize
	for _, p := range planes {
		size += planeHeaderSize + len(p.Data)
	}

	buf := bytes.NewBuffer(make([]byte, 0, size))
	buf.Write(frameMagic[:])
	_ = binary.Write(buf, binary.LittleEndian, int32(frame.Format()))
	_ = binary.Write(buf, binary.LittleEndian, uint32(frame.Width()))
	_ = binary.Write(buf, binary.LittleEndian, uint32(frame.Height()))
	_ = binary.Write(buf, binary.LittleEndian, frame.Timestamp())
	buf.WriteByte(byte(len(planes)))
	for _, p := range planes {
		_ = binary.Write(buf, binary.LittleEndian, uint32(p.RowStride))
		_ = binary.Write(buf, binary.LittleEndian, uint32(p.PixelStride))
		_ = binary.Write(buf, binary.LittleEndian, uint32(len(p.Data)))
		buf.Write(p.Data)
	}
	return buf.Bytes(), nil
}

// DecodeFrame 解码帧；平面数据直接引用 payload，不做拷贝
func DecodeFrame(payload []byte) (*RawFrame, error) {
	if len(payload) < frameHeaderSize {
		return nil, fmt.Errorf("%w: short header (%d bytes)", ErrMalformedFrame, len(payload))
	}
	if !bytes.Equal(payload[:4], frameMagic[:]) {
		return nil, fmt.Errorf("%w: bad magic", ErrMalformedFrame)
	}

	le := binary.LittleEndian
	format := sampler.PixelFormat(int32(le.Uint32(payload[4:8])))
	width := le.Uint32(payload[8:12])
	height := le.Uint32(payload[12:16])
	timestamp := int64(le.Uint64(payload[16:24]))
	planeCount := int(payload[24])

	if width == 0 || height == 0 || width > maxFrameDimension || height > maxFrameDimension {
		return nil, fmt.Errorf("%w: invalid dimensions %dx%d", ErrMalformedFrame, width, height)
	}
	if planeCount > maxPlanes {
		return nil, fmt.Errorf("%w: too many planes (%d)", ErrMalformedFrame, planeCount)
	}

	planes := make([]sampler.Plane, 0, planeCount)
	offset := frameHeaderSize
	for i := 0; i < planeCount; i++ {
		if len(payload)-offset < planeHeaderSize {
			return nil, fmt.Errorf("%w: truncated plane %d header", ErrMalformedFrame, i)
		}
		rowStride := le.Uint32(payload[offset:])
		pixelStride := le.Uint32(payload[offset+4:])
		length := int(le.Uint32(payload[offset+8:]))
		offset += planeHeaderSize
		if length < 0 || len(payload)-offset < length {
			return nil, fmt.Errorf("%w: truncated plane %d data", ErrMalformedFrame, i)
		}
		planes = append(planes, sampler.Plane{
			Data:        payload[offset : offset+length : offset+length],
			RowStride:   int(rowStride),
			PixelStride: int(pixelStride),
		})
		offset += length
	}

	return NewRawFrame(format, int(width), int(height), timestamp, planes, nil), nil
}
