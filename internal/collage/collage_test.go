package collage

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiesman99/gridstitch/internal/artifact"
	"github.com/kiesman99/gridstitch/internal/composer"
	"github.com/kiesman99/gridstitch/pkg/layout"
)

func writePNG(t *testing.T, fs afero.Fs, path string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0x80
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, afero.WriteFile(fs, path, buf.Bytes(), 0o644))
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func smallParams() layout.Params {
	p := layout.DefaultParams()
	p.Size = 64
	p.Padding = 2
	p.Spacing = 2
	return p
}

func TestCollageFiles_WritesOutput(t *testing.T) {
	fs := afero.NewMemMapFs()
	writePNG(t, fs, "/in/a.png", 10, 20)
	writePNG(t, fs, "/in/b.png", 20, 10)
	writePNG(t, fs, "/in/c.png", 5, 5)

	c := NewCollagerFs(fs, &Options{Output: "/out/sheet.png", Params: smallParams()}, quietLogger())

	outcome, err := c.CollageFiles([]string{"/in/a.png", "/in/b.png", "/in/c.png"})
	require.NoError(t, err)
	require.NotNil(t, outcome)
	assert.Equal(t, layout.Grid{Rows: 2, Cols: 2}, outcome.Result.Grid)
	assert.Nil(t, outcome.Artifact)

	data, err := afero.ReadFile(fs, "/out/sheet.png")
	require.NoError(t, err)
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.Width)
	assert.Equal(t, 64, cfg.Height)
}

func TestCollageFiles_Stdout(t *testing.T) {
	fs := afero.NewMemMapFs()
	writePNG(t, fs, "/a.png", 4, 4)

	var out bytes.Buffer
	c := NewCollagerFs(fs, &Options{Params: smallParams()}, quietLogger())
	c.Stdout = &out

	_, err := c.CollageFiles([]string{"/a.png"})
	require.NoError(t, err)

	img, err := png.Decode(&out)
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xff}, color.RGBAModel.Convert(img.At(32, 32)))
}

func TestCollageFiles_NoInputsIsNoop(t *testing.T) {
	fs := afero.NewMemMapFs()
	c := NewCollagerFs(fs, &Options{Output: "/out.png", Params: smallParams()}, quietLogger())

	outcome, err := c.CollageFiles(nil)
	require.NoError(t, err)
	assert.Nil(t, outcome)

	exists, err := afero.Exists(fs, "/out.png")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCollageFiles_DecodeFailureNamesFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	writePNG(t, fs, "/ok.png", 4, 4)
	require.NoError(t, afero.WriteFile(fs, "/bad.png", []byte("nope"), 0o644))

	c := NewCollagerFs(fs, &Options{Output: "/out.png", Params: smallParams()}, quietLogger())

	_, err := c.CollageFiles([]string{"/ok.png", "/bad.png"})
	require.ErrorIs(t, err, composer.ErrDecode)
	assert.Contains(t, err.Error(), "/bad.png")

	exists, _ := afero.Exists(fs, "/out.png")
	assert.False(t, exists, "no partial output")
}

func TestCollageFiles_Degenerate(t *testing.T) {
	fs := afero.NewMemMapFs()
	writePNG(t, fs, "/a.png", 4, 4)

	p := smallParams()
	p.Padding = 40
	c := NewCollagerFs(fs, &Options{Output: "/out.png", Params: p}, quietLogger())

	_, err := c.CollageFiles([]string{"/a.png"})
	require.ErrorIs(t, err, composer.ErrDegenerateLayout)
}

func TestCollageFiles_MissingFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	c := NewCollagerFs(fs, &Options{Output: "/out.png", Params: smallParams()}, quietLogger())

	_, err := c.CollageFiles([]string{"/missing.png"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/missing.png")
}

func TestCollageFiles_KeepArtifact(t *testing.T) {
	fs := afero.NewMemMapFs()
	writePNG(t, fs, "/a.png", 4, 4)
	store, err := artifact.NewStore(fs, "/artifacts")
	require.NoError(t, err)

	p := smallParams()
	p.Format = layout.FormatJPEG
	c := NewCollagerFs(fs, &Options{Output: "/out.jpeg", Params: p, KeepArtifact: true, Store: store}, quietLogger())

	outcome, err := c.CollageFiles([]string{"/a.png"})
	require.NoError(t, err)
	require.NotNil(t, outcome.Artifact)
	assert.Equal(t, layout.FormatJPEG, outcome.Artifact.Format)

	stored, err := afero.ReadFile(fs, "/artifacts/"+outcome.Artifact.Name)
	require.NoError(t, err)
	written, err := afero.ReadFile(fs, "/out.jpeg")
	require.NoError(t, err)
	assert.Equal(t, written, stored)
}
