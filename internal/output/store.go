package output

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmylchreest/airlinebench/internal/logger"
)

// TimestampLayout is used in artifact names.
const TimestampLayout = "2006-01-02_15-04-05"

const maxCollisions = 100

// Store persists artifacts under a directory. Every Save creates a new file;
// existing files are never overwritten.
type Store struct {
	Dir    string
	Format Format

	// Now defaults to time.Now.
	Now func() time.Time
}

// NewStore creates a store writing format files into dir.
func NewStore(dir string, format Format) *Store {
	return &Store{Dir: dir, Format: format, Now: time.Now}
}

// SaveTable writes recs to <base>_<timestamp>.<ext> and returns the path.
func (s *Store) SaveTable(base string, recs []Record) (string, error) {
	return s.create(base, s.Format.Ext(), func(w io.Writer) error {
		return WriteTable(w, s.Format, recs)
	})
}

// SaveText writes text to <base>_<timestamp>.txt and returns the path.
func (s *Store) SaveText(base, text string) (string, error) {
	return s.create(base, "txt", func(w io.Writer) error {
		_, err := io.WriteString(w, text)
		return err
	})
}

func (s *Store) create(base, ext string, fill func(io.Writer) error) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	stamp := now().Format(TimestampLayout)

	for n := 0; n < maxCollisions; n++ {
		name := fmt.Sprintf("%s_%s.%s", base, stamp, ext)
		if n > 0 {
			name = fmt.Sprintf("%s_%s_%d.%s", base, stamp, n, ext)
		}
		path := filepath.Join(s.Dir, name)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644) //#nosec G304 -- name is generated
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create %s: %w", path, err)
		}
		if err := fill(f); err != nil {
			_ = f.Close()
			return "", fmt.Errorf("write %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return "", err
		}
		logger.Info("artifact saved", "path", path)
		return path, nil
	}
	return "", fmt.Errorf("could not find a free name for %s_%s.%s", base, stamp, ext)
}

// Latest returns the most recent artifact named <base>_<timestamp>.* in the
// store directory. Timestamped names sort chronologically.
func (s *Store) Latest(base string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(s.Dir, base+"_*"))
	if err != nil {
		return "", err
	}
	var latest string
	for _, m := range matches {
		if strings.HasSuffix(m, ".txt") {
			continue
		}
		if m > latest {
			latest = m
		}
	}
	if latest == "" {
		return "", fmt.Errorf("no %s artifact in %s: %w", base, s.Dir, fs.ErrNotExist)
	}
	return latest, nil
}
