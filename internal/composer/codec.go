package composer

import (
	"bytes"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/kiesman99/gridstitch/pkg/layout"
)

// MaxPixels caps width*height of a single input. Decoders allocate the full
// raster from the header before reading pixel data, so the check runs on the
// header alone.
var MaxPixels int64 = 100_000_000

// Decode reads one raster image. PNG, JPEG and GIF come from the standard
// library; BMP, TIFF and WebP are registered above.
func Decode(r io.Reader) (image.Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("image has empty bounds %dx%d", cfg.Width, cfg.Height)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, fmt.Errorf("image is %dx%d, more than %d pixels", cfg.Width, cfg.Height, MaxPixels)
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if b := img.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("image has empty bounds %v", b)
	}
	return img, nil
}

// DecodeAll decodes every reader in order and fails on the first bad one,
// tagging the error with its index.
func DecodeAll(readers []io.Reader) ([]image.Image, error) {
	images := make([]image.Image, 0, len(readers))
	for i, r := range readers {
		img, err := Decode(r)
		if err != nil {
			return nil, newError(ReasonDecodeFailure, i, err)
		}
		images = append(images, img)
	}
	return images, nil
}

// DecodeBytes is DecodeAll for in-memory payloads.
func DecodeBytes(payloads [][]byte) ([]image.Image, error) {
	readers := make([]io.Reader, len(payloads))
	for i, p := range payloads {
		readers[i] = bytes.NewReader(p)
	}
	return DecodeAll(readers)
}

// Encode writes img in the requested format. Failures carry
// ReasonEncodeFailure.
func Encode(w io.Writer, img image.Image, params layout.Params) error {
	var err error
	switch params.Format {
	case layout.FormatPNG:
		err = imaging.Encode(w, img, imaging.PNG)
	case layout.FormatJPEG:
		quality := params.JPEGQuality
		if quality == 0 {
			quality = layout.DefaultJPEGQuality
		}
		err = imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(quality))
	default:
		err = fmt.Errorf("unsupported output format %v", params.Format)
	}
	if err != nil {
		return newError(ReasonEncodeFailure, -1, err)
	}
	return nil
}

// toRGB drops the alpha channel, keeping the stored color values.
func toRGB(img image.Image) *image.NRGBA {
	dst := imaging.Clone(img)
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xff
	}
	return dst
}
