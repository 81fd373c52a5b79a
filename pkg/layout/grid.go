package layout

import (
	"fmt"
	"math"
)

// NewGrid computes the grid for n images: cols = ceil(sqrt(n)), rows = ceil(n/cols).
func NewGrid(n int) (Grid, error) {
	if n <= 0 {
		return Grid{}, fmt.Errorf("image count must be positive, got %d", n)
	}

	cols := int(math.Ceil(math.Sqrt(float64(n))))
	// sqrt of a perfect square can land a hair above the integer
	for cols > 1 && (cols-1)*(cols-1) >= n {
		cols--
	}
	rows := (n + cols - 1) / cols

	return Grid{Rows: rows, Cols: cols}, nil
}

// Gutter is the total non-image pixels along one axis holding count cells.
func Gutter(count, padding, spacing int) int {
	return 2*padding + (count-1)*spacing
}

// CellSize returns the uniform cell footprint for a grid on a size x size
// output. When padding and spacing leave no room the affected side is 0;
// see Cell.Valid.
func CellSize(g Grid, size, padding, spacing int) Cell {
	return Cell{
		Width:  cellSpan(g.Cols, size, padding, spacing),
		Height: cellSpan(g.Rows, size, padding, spacing),
	}
}

// cellSpan is (size - Gutter(count, padding, spacing)) / count, computed
// without letting the gutter overflow.
func cellSpan(count, size, padding, spacing int) int {
	if count <= 0 || padding < 0 || spacing < 0 || padding > size/2 {
		return 0
	}
	avail := size - 2*padding
	if count > 1 && spacing > avail/(count-1) {
		return 0
	}
	return (avail - (count-1)*spacing) / count
}

// Valid reports whether the cell can hold at least one pixel.
func (c Cell) Valid() bool {
	return c.Width > 0 && c.Height > 0
}

// FitSize scales a w x h image into the cell, preserving aspect ratio.
// One side always matches the cell; the other never exceeds it.
func FitSize(w, h int, c Cell) (int, int) {
	imageRatio := float64(w) / float64(h)
	cellRatio := float64(c.Width) / float64(c.Height)

	var newW, newH int
	if imageRatio > cellRatio {
		newW = c.Width
		newH = int(math.Round(float64(c.Width) / imageRatio))
	} else {
		newH = c.Height
		newW = int(math.Round(float64(c.Height) * imageRatio))
	}

	return clamp(newW, 1, c.Width), clamp(newH, 1, c.Height)
}

// CenterOffset returns where a w x h image sits inside the cell. Odd
// remainders bias toward the top-left.
func CenterOffset(w, h int, c Cell) (int, int) {
	return (c.Width - w) / 2, (c.Height - h) / 2
}

// CellOrigin returns the top-left corner of cell index on the canvas, in
// row-major order.
func CellOrigin(index int, g Grid, c Cell, padding, spacing int) (row, col, x, y int) {
	row = index / g.Cols
	col = index % g.Cols
	x = padding + col*(c.Width+spacing)
	y = padding + row*(c.Height+spacing)
	return row, col, x, y
}

// CanvasSize is the size of the canvas holding every cell before the
// final resize to the output size.
func CanvasSize(g Grid, c Cell, padding, spacing int) (int, int) {
	width := g.Cols*c.Width + Gutter(g.Cols, padding, spacing)
	height := g.Rows*c.Height + Gutter(g.Rows, padding, spacing)
	return width, height
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
