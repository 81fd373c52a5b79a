package collage

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/afero"

	"github.com/kiesman99/gridstitch/internal/artifact"
	"github.com/kiesman99/gridstitch/internal/composer"
	"github.com/kiesman99/gridstitch/pkg/layout"
)

// Options contains everything the command line can set.
type Options struct {
	Output string // file path; empty means Stdout
	Params layout.Params

	// KeepArtifact also saves the result into Store.
	KeepArtifact bool
	Store        *artifact.Store
}

// Collager composes image files into one output file.
type Collager struct {
	composer *composer.Composer
	options  *Options
	fs       afero.Fs
	logger   *slog.Logger

	// Stdout receives the image when Output is empty.
	Stdout io.Writer
}

// NewCollager creates a collager reading and writing the real filesystem.
func NewCollager(opts *Options, logger *slog.Logger) *Collager {
	return NewCollagerFs(afero.NewOsFs(), opts, logger)
}

// NewCollagerFs creates a collager over fs.
func NewCollagerFs(fs afero.Fs, opts *Options, logger *slog.Logger) *Collager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collager{
		composer: composer.New(),
		options:  opts,
		fs:       fs,
		logger:   logger,
		Stdout:   os.Stdout,
	}
}

// Outcome is what a successful run produced.
type Outcome struct {
	Result   *composer.Result
	Output   string // "" when written to Stdout
	Artifact *artifact.Artifact
}

// CollageFiles composes paths in order. With no paths it does nothing and
// returns a nil Outcome and no error.
func (c *Collager) CollageFiles(paths []string) (*Outcome, error) {
	if len(paths) == 0 {
		c.logger.Debug("no input images, nothing to compose")
		return nil, nil
	}

	if c.options.Output == "" && c.Stdout == io.Writer(os.Stdout) {
		if stat, err := os.Stdout.Stat(); err == nil && (stat.Mode()&os.ModeCharDevice) != 0 {
			return nil, fmt.Errorf("didn't specify output file and standard output is a terminal")
		}
	}

	readers := make([]io.Reader, 0, len(paths))
	for _, p := range paths {
		f, err := c.fs.Open(p)
		if err != nil {
			closeAll(readers)
			return nil, fmt.Errorf("failed to open %s: %w", p, err)
		}
		readers = append(readers, f)
	}
	defer closeAll(readers)

	c.logger.Info("composing", "images", len(paths), "format", c.options.Params.Format,
		"size", c.options.Params.Size, "padding", c.options.Params.Padding, "spacing", c.options.Params.Spacing)

	result, err := c.composer.ComposeReaders(readers, c.options.Params)
	if err != nil {
		if errors.Is(err, composer.ErrNoImages) {
			return nil, nil
		}
		var ce *composer.Error
		if errors.As(err, &ce) && ce.Index >= 0 && ce.Index < len(paths) {
			return nil, fmt.Errorf("%s: %w", paths[ce.Index], err)
		}
		return nil, err
	}

	c.logger.Info("layout", "rows", result.Grid.Rows, "cols", result.Grid.Cols,
		"cell_width", result.Cell.Width, "cell_height", result.Cell.Height)

	outcome := &Outcome{Result: result, Output: c.options.Output}
	if err := c.write(result.Data); err != nil {
		return nil, err
	}

	if c.options.KeepArtifact && c.options.Store != nil {
		a, err := c.options.Store.Save(result.Data, result.Format)
		if err != nil {
			return nil, err
		}
		c.logger.Info("artifact saved", "name", a.Name, "dir", c.options.Store.Dir())
		outcome.Artifact = &a
	}

	return outcome, nil
}

func (c *Collager) write(data []byte) error {
	if c.options.Output == "" {
		c.logger.Info("writing output", "format", c.options.Params.Format, "to", "stdout")
		_, err := c.Stdout.Write(data)
		return err
	}

	c.logger.Info("writing output", "format", c.options.Params.Format, "to", c.options.Output)
	if err := afero.WriteFile(c.fs, c.options.Output, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", c.options.Output, err)
	}
	return nil
}

func closeAll(readers []io.Reader) {
	for _, r := range readers {
		if c, ok := r.(io.Closer); ok {
			c.Close()
		}
	}
}
