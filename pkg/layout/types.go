package layout

import (
	"fmt"
	"strings"
)

// Format is the encoding of the composed image.
type Format int

// Output format constants
const (
	FormatPNG Format = iota
	FormatJPEG
)

// Defaults mirror the choices offered by the upload form.
const (
	DefaultSize        = 1024
	DefaultPadding     = 10
	DefaultSpacing     = 10
	DefaultJPEGQuality = 75
)

// SupportedSizes lists the output sizes front ends accept.
var SupportedSizes = []int{1024, 2048, 4096}

// String returns the canonical upper-case name of the format.
func (f Format) String() string {
	switch f {
	case FormatPNG:
		return "PNG"
	case FormatJPEG:
		return "JPEG"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// Extension returns the file extension, including the dot.
func (f Format) Extension() string {
	return "." + strings.ToLower(f.String())
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatJPEG {
		return "image/jpeg"
	}
	return "image/png"
}

// ParseFormat accepts "png", "jpeg" or "jpg" in any case.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "png":
		return FormatPNG, nil
	case "jpeg", "jpg":
		return FormatJPEG, nil
	default:
		return 0, fmt.Errorf("unknown format: %q", s)
	}
}

// IsSupportedSize reports whether size is one of SupportedSizes.
func IsSupportedSize(size int) bool {
	for _, s := range SupportedSizes {
		if s == size {
			return true
		}
	}
	return false
}

// Params holds the layout parameters of one composition
type Params struct {
	Format      Format
	Size        int // side of the square output, in pixels
	Padding     int // outer border
	Spacing     int // gap between cells
	JPEGQuality int
}

// DefaultParams returns the parameters used when the caller sets nothing.
func DefaultParams() Params {
	return Params{
		Format:      FormatPNG,
		Size:        DefaultSize,
		Padding:     DefaultPadding,
		Spacing:     DefaultSpacing,
		JPEGQuality: DefaultJPEGQuality,
	}
}

// Validate checks the ranges that do not depend on the image count.
func (p Params) Validate() error {
	if p.Format != FormatPNG && p.Format != FormatJPEG {
		return fmt.Errorf("unsupported format %v", p.Format)
	}
	if p.Size <= 0 {
		return fmt.Errorf("size must be positive, got %d", p.Size)
	}
	if p.Padding < 0 {
		return fmt.Errorf("padding must not be negative, got %d", p.Padding)
	}
	if p.Spacing < 0 {
		return fmt.Errorf("spacing must not be negative, got %d", p.Spacing)
	}
	if p.Format == FormatJPEG && (p.JPEGQuality < 1 || p.JPEGQuality > 100) {
		return fmt.Errorf("jpeg quality must be between 1 and 100, got %d", p.JPEGQuality)
	}
	return nil
}

// Grid is the rows x cols arrangement derived from the image count.
type Grid struct {
	Rows, Cols int
}

// Cells returns the number of slots in the grid.
func (g Grid) Cells() int {
	return g.Rows * g.Cols
}

// Cell is the maximum footprint available to one image.
type Cell struct {
	Width, Height int
}

// Placement records where one input landed on the pre-resize canvas.
type Placement struct {
	Index         int
	Row, Col      int
	X, Y          int // cell origin
	Width, Height int // fitted image size inside the cell
}
