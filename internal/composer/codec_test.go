package composer

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image/color"
	"image/png"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/kiesman99/gridstitch/pkg/layout"
)

func encodeWith(t *testing.T, enc func(io.Writer) error) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, enc(&buf))
	return buf.Bytes()
}

func TestDecodeBytes_Formats(t *testing.T) {
	src := solid(6, 3, green)

	payloads := [][]byte{
		encodeWith(t, func(w io.Writer) error { return png.Encode(w, src) }),
		encodeWith(t, func(w io.Writer) error { return bmp.Encode(w, src) }),
		encodeWith(t, func(w io.Writer) error { return tiff.Encode(w, src, nil) }),
		encodeWith(t, func(w io.Writer) error { return Encode(w, src, layout.Params{Format: layout.FormatJPEG}) }),
	}

	images, err := DecodeBytes(payloads)
	require.NoError(t, err)
	require.Len(t, images, len(payloads))

	for i, img := range images {
		assert.Equal(t, 6, img.Bounds().Dx(), "payload %d", i)
		assert.Equal(t, 3, img.Bounds().Dy(), "payload %d", i)
	}
	got := color.NRGBAModel.Convert(images[1].At(2, 1)).(color.NRGBA)
	assert.Equal(t, green, got)
}

func TestDecodeAll_ReportsIndex(t *testing.T) {
	good := encodeWith(t, func(w io.Writer) error { return png.Encode(w, solid(2, 2, red)) })

	images, err := DecodeAll([]io.Reader{
		bytes.NewReader(good),
		strings.NewReader("definitely not an image"),
		bytes.NewReader(good),
	})
	assert.Nil(t, images)
	require.ErrorIs(t, err, ErrDecode)

	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 1, ce.Index)
	assert.Contains(t, err.Error(), "failed to decode image 1")
}

func TestComposeReaders_DecodeFailureIsWhole(t *testing.T) {
	good := encodeWith(t, func(w io.Writer) error { return png.Encode(w, solid(2, 2, red)) })

	result, err := New().ComposeReaders([]io.Reader{
		bytes.NewReader(good),
		bytes.NewReader(good[:10]),
	}, layout.DefaultParams())
	assert.Nil(t, result)
	assert.Equal(t, ReasonDecodeFailure, ReasonOf(err))
}

// pngWithSize rewrites the IHDR of a valid 1x1 PNG to claim w x h.
func pngWithSize(t *testing.T, w, h uint32) []byte {
	t.Helper()
	data := encodeWith(t, func(wr io.Writer) error { return png.Encode(wr, solid(1, 1, red)) })
	// signature(8) length(4) "IHDR"(4) width(4) height(4) ... crc at 29
	binary.BigEndian.PutUint32(data[16:20], w)
	binary.BigEndian.PutUint32(data[20:24], h)
	binary.BigEndian.PutUint32(data[29:33], crc32.ChecksumIEEE(data[12:29]))
	return data
}

func TestDecode_RejectsOversizedHeader(t *testing.T) {
	_, err := Decode(bytes.NewReader(pngWithSize(t, 50000, 50000)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "50000x50000")

	images, err := DecodeBytes([][]byte{
		encodeWith(t, func(w io.Writer) error { return png.Encode(w, solid(2, 2, red)) }),
		pngWithSize(t, 50000, 50000),
	})
	assert.Nil(t, images)
	require.ErrorIs(t, err, ErrDecode)
	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 1, ce.Index)
}

func TestDecode_MaxPixels(t *testing.T) {
	saved := MaxPixels
	t.Cleanup(func() { MaxPixels = saved })

	data := encodeWith(t, func(w io.Writer) error { return png.Encode(w, solid(4, 4, red)) })

	MaxPixels = 16
	_, err := Decode(bytes.NewReader(data))
	require.NoError(t, err)

	MaxPixels = 15
	_, err = Decode(bytes.NewReader(data))
	require.Error(t, err)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestEncode_Failures(t *testing.T) {
	testCases := []struct {
		name   string
		w      io.Writer
		format layout.Format
	}{
		{name: "PNG write error", w: failingWriter{}, format: layout.FormatPNG},
		{name: "JPEG write error", w: failingWriter{}, format: layout.FormatJPEG},
		{name: "Unknown format", w: io.Discard, format: layout.Format(9)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := Encode(tc.w, solid(8, 8, red), layout.Params{Format: tc.format})
			require.ErrorIs(t, err, ErrEncode)
			assert.Equal(t, ReasonEncodeFailure, ReasonOf(err))
			assert.Contains(t, err.Error(), "failed to encode composed image")
		})
	}
}

func TestError_Messages(t *testing.T) {
	assert.Equal(t, "no images to compose", ErrNoImages.Error())
	assert.Equal(t, "DEGENERATE_LAYOUT", ReasonDegenerateLayout.String())
	assert.Equal(t, Reason(0), ReasonOf(io.EOF))
}
