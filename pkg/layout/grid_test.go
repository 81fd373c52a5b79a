package layout

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGrid(t *testing.T) {
	testCases := []struct {
		n    int
		want Grid
	}{
		{n: 1, want: Grid{Rows: 1, Cols: 1}},
		{n: 2, want: Grid{Rows: 1, Cols: 2}},
		{n: 3, want: Grid{Rows: 2, Cols: 2}},
		{n: 4, want: Grid{Rows: 2, Cols: 2}},
		{n: 5, want: Grid{Rows: 2, Cols: 3}},
		{n: 7, want: Grid{Rows: 3, Cols: 3}},
		{n: 9, want: Grid{Rows: 3, Cols: 3}},
		{n: 10, want: Grid{Rows: 3, Cols: 4}},
		{n: 16, want: Grid{Rows: 4, Cols: 4}},
		{n: 17, want: Grid{Rows: 4, Cols: 5}},
	}

	for _, tc := range testCases {
		got, err := NewGrid(tc.n)
		require.NoError(t, err)
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Errorf("NewGrid(%d) mismatch (-want +got):\n%s", tc.n, diff)
		}
	}
}

func TestNewGrid_CoversCountExactly(t *testing.T) {
	for n := 1; n <= 500; n++ {
		g, err := NewGrid(n)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, g.Cells(), n, "n=%d", n)
		assert.Greater(t, n, (g.Rows-1)*g.Cols, "n=%d has an empty row", n)
		assert.GreaterOrEqual(t, g.Cols, g.Rows, "n=%d", n)
	}
}

func TestNewGrid_RejectsNonPositive(t *testing.T) {
	_, err := NewGrid(0)
	require.Error(t, err)
	_, err = NewGrid(-3)
	require.Error(t, err)
}

func TestCellSize(t *testing.T) {
	// single image: the cell is the output minus both paddings
	c := CellSize(Grid{Rows: 1, Cols: 1}, 1024, 10, 10)
	assert.Equal(t, Cell{Width: 1004, Height: 1004}, c)

	// 2x3 grid: widths use cols, heights use rows
	c = CellSize(Grid{Rows: 2, Cols: 3}, 1024, 10, 10)
	assert.Equal(t, Cell{Width: (1024 - 20 - 20) / 3, Height: (1024 - 20 - 10) / 2}, c)
	assert.True(t, c.Valid())
}

func TestCellSize_Degenerate(t *testing.T) {
	c := CellSize(Grid{Rows: 1, Cols: 1}, 1024, 600, 0)
	assert.False(t, c.Valid())
	assert.Zero(t, c.Width)

	// spacing alone can exhaust the width
	c = CellSize(Grid{Rows: 2, Cols: 3}, 100, 0, 60)
	assert.False(t, c.Valid())
}

func TestCellSize_HugeGutterDoesNotWrap(t *testing.T) {
	huge := math.MaxInt64/2 + math.MaxInt64/4

	testCases := []struct {
		name             string
		g                Grid
		padding, spacing int
	}{
		{name: "padding", g: Grid{Rows: 1, Cols: 1}, padding: huge},
		{name: "spacing", g: Grid{Rows: 2, Cols: 3}, spacing: huge},
		{name: "both", g: Grid{Rows: 3, Cols: 3}, padding: huge, spacing: huge},
		{name: "max spacing", g: Grid{Rows: 4, Cols: 4}, spacing: math.MaxInt64},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := CellSize(tc.g, 1024, tc.padding, tc.spacing)
			assert.False(t, c.Valid(), "got %+v", c)
			assert.LessOrEqual(t, c.Width, 1024)
			assert.LessOrEqual(t, c.Height, 1024)
		})
	}
}

func TestCellSize_MatchesGutter(t *testing.T) {
	for cols := 1; cols <= 6; cols++ {
		for _, pad := range []int{0, 3, 10, 100} {
			for _, sp := range []int{0, 1, 10, 50} {
				g := Grid{Rows: cols, Cols: cols}
				want := (1024 - Gutter(cols, pad, sp)) / cols
				if want < 0 {
					want = 0
				}
				assert.Equal(t, want, CellSize(g, 1024, pad, sp).Width, "cols=%d pad=%d sp=%d", cols, pad, sp)
			}
		}
	}
}

func TestFitSize(t *testing.T) {
	cell := Cell{Width: 200, Height: 100}

	testCases := []struct {
		name         string
		w, h         int
		wantW, wantH int
	}{
		{name: "wider than cell", w: 400, h: 100, wantW: 200, wantH: 50},
		{name: "taller than cell", w: 100, h: 400, wantW: 25, wantH: 100},
		{name: "same ratio", w: 20, h: 10, wantW: 200, wantH: 100},
		{name: "square", w: 50, h: 50, wantW: 100, wantH: 100},
		{name: "rounds to nearest", w: 3, h: 1, wantW: 200, wantH: 67},
		{name: "extreme panorama keeps a pixel", w: 10000, h: 1, wantW: 200, wantH: 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w, h := FitSize(tc.w, tc.h, cell)
			assert.Equal(t, tc.wantW, w)
			assert.Equal(t, tc.wantH, h)
		})
	}
}

func TestFitSize_NeverOverflows(t *testing.T) {
	cells := []Cell{{1, 1}, {7, 3}, {3, 7}, {100, 100}, {331, 497}}
	for _, c := range cells {
		for w := 1; w <= 40; w += 3 {
			for h := 1; h <= 40; h += 5 {
				fw, fh := FitSize(w, h, c)
				assert.LessOrEqual(t, fw, c.Width)
				assert.LessOrEqual(t, fh, c.Height)
				assert.True(t, fw == c.Width || fh == c.Height, "%dx%d in %+v gave %dx%d", w, h, c, fw, fh)
			}
		}
	}
}

func TestCenterOffset_BiasesTopLeft(t *testing.T) {
	x, y := CenterOffset(4, 5, Cell{Width: 9, Height: 10})
	assert.Equal(t, 2, x)
	assert.Equal(t, 2, y)
}

func TestCellOrigin(t *testing.T) {
	g := Grid{Rows: 2, Cols: 3}
	c := Cell{Width: 100, Height: 80}

	row, col, x, y := CellOrigin(4, g, c, 10, 5)
	assert.Equal(t, 1, row)
	assert.Equal(t, 1, col)
	assert.Equal(t, 10+105, x)
	assert.Equal(t, 10+85, y)
}

func TestCanvasSize(t *testing.T) {
	w, h := CanvasSize(Grid{Rows: 2, Cols: 3}, Cell{Width: 100, Height: 80}, 10, 5)
	assert.Equal(t, 3*100+2*5+20, w)
	assert.Equal(t, 2*80+5+20, h)
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"png": FormatPNG, "PNG": FormatPNG, "jpeg": FormatJPEG, "JPG": FormatJPEG} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseFormat("geotiff")
	require.Error(t, err)

	assert.Equal(t, ".png", FormatPNG.Extension())
	assert.Equal(t, ".jpeg", FormatJPEG.Extension())
	assert.Equal(t, "image/jpeg", FormatJPEG.ContentType())
}

func TestParams_Validate(t *testing.T) {
	require.NoError(t, DefaultParams().Validate())

	p := DefaultParams()
	p.Padding = -1
	require.Error(t, p.Validate())

	p = DefaultParams()
	p.Size = 0
	require.Error(t, p.Validate())

	p = DefaultParams()
	p.Format = FormatJPEG
	p.JPEGQuality = 0
	require.Error(t, p.Validate())

	assert.True(t, IsSupportedSize(2048))
	assert.False(t, IsSupportedSize(1000))
}
