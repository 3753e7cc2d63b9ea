package camera

import (
	"testing"

	"github.com/mzaki9/Atomus-Lumea/internal/sampler"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeFrame(t *testing.T) {
	luma := []byte{10, 20, 30, 40, 50, 60}
	chroma := []byte{128, 128}
	src := NewRawFrame(sampler.FormatYUV420888, 3, 2, 1700000000123, []sampler.Plane{
		{Data: luma, RowStride: 3, PixelStride: 1},
		{Data: chroma, RowStride: 2, PixelStride: 2},
	}, nil)

	payload, err := EncodeFrame(src)
	require.NoError(t, err)

	got, err := DecodeFrame(payload)
	require.NoError(t, err)
	assert.Equal(t, sampler.FormatYUV420888, got.Format())
	assert.Equal(t, 3, got.Width())
	assert.Equal(t, 2, got.Height())
	assert.Equal(t, int64(1700000000123), got.Timestamp())
	require.Len(t, got.Planes(), 2)
	assert.Equal(t, luma, got.Planes()[0].Data)
	assert.Equal(t, 3, got.Planes()[0].RowStride)
	assert.Equal(t, chroma, got.Planes()[1].Data)
	assert.Equal(t, 2, got.Planes()[1].PixelStride)
}

func TestDecodeFrame_Malformed(t *testing.T) {
	valid, err := EncodeFrame(NewRawFrame(sampler.FormatYUV420888, 2, 2, 1, []sampler.Plane{
		{Data: []byte{1, 2, 3, 4}, RowStride: 2, PixelStride: 1},
	}, nil))
	require.NoError(t, err)

	badMagic := append([]byte{}, valid...)
	badMagic[0] = 'X'

	zeroWidth := append([]byte{}, valid...)
	zeroWidth[8], zeroWidth[9], zeroWidth[10], zeroWidth[11] = 0, 0, 0, 0

	tooManyPlanes := append([]byte{}, valid...)
	tooManyPlanes[24] = 9

	cases := map[string][]byte{
		"empty":           nil,
		"short header":    valid[:10],
		"bad magic":       badMagic,
		"zero width":      zeroWidth,
		"too many planes": tooManyPlanes,
		"truncated data":  valid[:len(valid)-1],
		"truncated plane": valid[:frameHeaderSize+4],
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeFrame(payload)
			assert.ErrorIs(t, err, ErrMalformedFrame)
		})
	}
}

func TestRawFrame_CloseIsIdempotent(t *testing.T) {
	released := 0
	f := NewRawFrame(sampler.FormatYUV420888, 1, 1, 1, nil, func() { released++ })

	require.NoError(t, f.Close())
	require.NoError(t, f.Close())
	assert.Equal(t, 1, released)
	assert.True(t, f.Closed())
}
