package export

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	dirPermissions  = 0o750
	filePermissions = 0o640
)

// DirSink saves exports into a directory.
type DirSink struct {
	dir string
}

// NewDirSink creates dir if needed and returns a sink writing into it.
func NewDirSink(dir string) (*DirSink, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return nil, fmt.Errorf("creating export directory: %w", err)
	}
	return &DirSink{dir: dir}, nil
}

// Dir returns the output directory.
func (s *DirSink) Dir() string {
	return s.dir
}

// Path returns where Save places a file called name.
func (s *DirSink) Path(name string) string {
	return filepath.Join(s.dir, filepath.Base(name))
}

// Save writes data to a temporary file and renames it into place, so the
// target either holds the full payload or does not exist.
func (s *DirSink) Save(name string, data []byte) error {
	target := s.Path(name)

	tmp, err := os.CreateTemp(s.dir, ".export-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("writing %s: %w", target, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("syncing %s: %w", target, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("closing %s: %w", target, err)
	}
	if err := os.Chmod(tmpName, filePermissions); err != nil {
		cleanup()
		return fmt.Errorf("setting permissions on %s: %w", target, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		cleanup()
		return fmt.Errorf("moving export into place: %w", err)
	}
	return nil
}
