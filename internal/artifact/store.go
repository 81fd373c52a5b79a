// Package artifact keeps composed images on disk long enough to be
// downloaded. Artifacts are write-once files named <uuid><ext>.
package artifact

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/kiesman99/gridstitch/pkg/layout"
)

// ErrNotFound is returned for names that are well formed but not stored.
var ErrNotFound = errors.New("artifact not found")

// ErrInvalidName is returned for names that could not have come from Save.
var ErrInvalidName = errors.New("invalid artifact name")

// Artifact describes one stored file.
type Artifact struct {
	Name     string
	Format   layout.Format
	Size     int64
	Modified time.Time
}

// ContentType returns the MIME type matching the artifact's extension.
func (a Artifact) ContentType() string {
	return a.Format.ContentType()
}

// Store writes artifacts under a single directory of fs.
type Store struct {
	fs  afero.Fs
	dir string
	now func() time.Time
}

// NewStore creates the directory if needed.
func NewStore(fs afero.Fs, dir string) (*Store, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}
	return &Store{fs: fs, dir: dir, now: time.Now}, nil
}

// NewOSStore is NewStore on the real filesystem.
func NewOSStore(dir string) (*Store, error) {
	return NewStore(afero.NewOsFs(), dir)
}

// DefaultDir is where artifacts go when nothing is configured.
func DefaultDir() string {
	return filepath.Join(os.TempDir(), "gridstitch")
}

// Dir returns the directory the store writes to.
func (s *Store) Dir() string {
	return s.dir
}

// Save writes data under a fresh name with the extension of format.
func (s *Store) Save(data []byte, format layout.Format) (Artifact, error) {
	name := uuid.NewString() + format.Extension()
	path := filepath.Join(s.dir, name)

	if err := afero.WriteReader(s.fs, path, bytes.NewReader(data)); err != nil {
		return Artifact{}, fmt.Errorf("failed to write artifact: %w", err)
	}

	return Artifact{
		Name:     name,
		Format:   format,
		Size:     int64(len(data)),
		Modified: s.now(),
	}, nil
}

// Open returns a reader for name. The caller closes it.
func (s *Store) Open(name string) (afero.File, Artifact, error) {
	format, err := ParseName(name)
	if err != nil {
		return nil, Artifact{}, err
	}

	f, err := s.fs.Open(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, Artifact{}, ErrNotFound
		}
		return nil, Artifact{}, fmt.Errorf("failed to open artifact: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, Artifact{}, fmt.Errorf("failed to stat artifact: %w", err)
	}

	return f, Artifact{
		Name:     name,
		Format:   format,
		Size:     info.Size(),
		Modified: info.ModTime(),
	}, nil
}

// Remove deletes name. Removing a missing artifact is not an error.
func (s *Store) Remove(name string) error {
	if _, err := ParseName(name); err != nil {
		return err
	}
	err := s.fs.Remove(filepath.Join(s.dir, name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove artifact: %w", err)
	}
	return nil
}

// Prune removes artifacts last modified more than maxAge ago and returns how
// many it removed. Files that are not artifacts are left alone.
func (s *Store) Prune(maxAge time.Duration) (int, error) {
	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to list artifacts: %w", err)
	}

	cutoff := s.now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, err := ParseName(e.Name()); err != nil {
			continue
		}
		if e.ModTime().After(cutoff) {
			continue
		}
		if err := s.fs.Remove(filepath.Join(s.dir, e.Name())); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("failed to prune %s: %w", e.Name(), err)
		}
		removed++
	}
	return removed, nil
}

// ParseName validates an artifact name and returns its format.
func ParseName(name string) (layout.Format, error) {
	ext := filepath.Ext(name)
	id := strings.TrimSuffix(name, ext)
	if _, err := uuid.Parse(id); err != nil || len(id) != 36 {
		return 0, ErrInvalidName
	}

	switch ext {
	case layout.FormatPNG.Extension():
		return layout.FormatPNG, nil
	case layout.FormatJPEG.Extension():
		return layout.FormatJPEG, nil
	default:
		return 0, ErrInvalidName
	}
}
