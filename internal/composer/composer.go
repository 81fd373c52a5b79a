package composer

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/disintegration/imaging"
	xdraw "golang.org/x/image/draw"

	"github.com/kiesman99/gridstitch/pkg/layout"
)

// Background fills unused canvas and cell space.
var Background color.Color = color.White

// Result contains the composition result
type Result struct {
	Image      *image.NRGBA // Size x Size, opaque
	Data       []byte       // Image encoded in Format
	Format     layout.Format
	Grid       layout.Grid
	Cell       layout.Cell
	Placements []layout.Placement
}

// Composer lays images out on a square grid. It holds no per-call state and
// is safe to share.
type Composer struct {
	background color.Color
}

// New creates a new composer filling empty space with Background.
func New() *Composer {
	return &Composer{background: Background}
}

// Compose arranges images on the grid implied by their count and returns the
// size x size result. It is all-or-nothing: on error no partial result is
// returned. An empty input yields ErrNoImages.
func (c *Composer) Compose(images []image.Image, params layout.Params) (*Result, error) {
	if len(images) == 0 {
		return nil, ErrNoImages
	}
	if err := params.Validate(); err != nil {
		return nil, newError(ReasonInvalidParams, -1, err)
	}

	grid, err := layout.NewGrid(len(images))
	if err != nil {
		return nil, newError(ReasonInvalidParams, -1, err)
	}

	cell := layout.CellSize(grid, params.Size, params.Padding, params.Spacing)
	if !cell.Valid() {
		return nil, newError(ReasonDegenerateLayout, -1, fmt.Errorf(
			"cell would be %dx%d for a %dx%d grid at size %d with padding %d and spacing %d",
			cell.Width, cell.Height, grid.Rows, grid.Cols, params.Size, params.Padding, params.Spacing))
	}

	cells := make([]*image.NRGBA, len(images))
	placements := make([]layout.Placement, len(images))
	for i, img := range images {
		if img == nil {
			return nil, newError(ReasonDecodeFailure, i, fmt.Errorf("image is nil"))
		}
		b := img.Bounds()
		if b.Dx() <= 0 || b.Dy() <= 0 {
			return nil, newError(ReasonDecodeFailure, i, fmt.Errorf("image has empty bounds %v", b))
		}

		cells[i] = FitToCell(toRGB(img), cell, c.background)

		w, h := layout.FitSize(b.Dx(), b.Dy(), cell)
		row, col, x, y := layout.CellOrigin(i, grid, cell, params.Padding, params.Spacing)
		placements[i] = layout.Placement{
			Index: i, Row: row, Col: col,
			X: x, Y: y,
			Width: w, Height: h,
		}
	}

	canvas := Place(cells, grid, cell, params.Padding, params.Spacing, c.background)
	out := imaging.Resize(canvas, params.Size, params.Size, imaging.Lanczos)

	var buf bytes.Buffer
	if err := Encode(&buf, out, params); err != nil {
		return nil, err
	}

	return &Result{
		Image:      out,
		Data:       buf.Bytes(),
		Format:     params.Format,
		Grid:       grid,
		Cell:       cell,
		Placements: placements,
	}, nil
}

// ComposeReaders decodes every reader, in order, then composes them.
func (c *Composer) ComposeReaders(readers []io.Reader, params layout.Params) (*Result, error) {
	if len(readers) == 0 {
		return nil, ErrNoImages
	}
	images, err := DecodeAll(readers)
	if err != nil {
		return nil, err
	}
	return c.Compose(images, params)
}

// FitToCell resizes img to fit the cell with its aspect ratio intact and
// centers it on a cell-sized canvas filled with bg.
func FitToCell(img image.Image, cell layout.Cell, bg color.Color) *image.NRGBA {
	b := img.Bounds()
	w, h := layout.FitSize(b.Dx(), b.Dy(), cell)
	resized := imaging.Resize(img, w, h, imaging.Lanczos)

	x, y := layout.CenterOffset(w, h, cell)
	return imaging.Paste(imaging.New(cell.Width, cell.Height, bg), resized, image.Pt(x, y))
}

// Place pastes cell images onto a bg canvas in row-major order. Slots past
// len(cells) stay background.
func Place(cells []*image.NRGBA, grid layout.Grid, cell layout.Cell, padding, spacing int, bg color.Color) *image.NRGBA {
	width, height := layout.CanvasSize(grid, cell, padding, spacing)
	canvas := imaging.New(width, height, bg)

	for i, ci := range cells {
		_, _, x, y := layout.CellOrigin(i, grid, cell, padding, spacing)
		xdraw.Copy(canvas, image.Pt(x, y), ci, ci.Bounds(), xdraw.Src, nil)
	}

	return canvas
}
