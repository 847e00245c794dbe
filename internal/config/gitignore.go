package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ignoredArtifacts are the generated files a project-local .finboard/
// directory accumulates. config.yaml stays tracked.
var ignoredArtifacts = []string{
	"exports/",
	"cache/",
	"*.xlsx",
	"*.log",
	"*.prom",
}

// GitignoreContent renders the .gitignore written into a project-local
// .finboard/ directory.
func GitignoreContent() string {
	var b strings.Builder
	b.WriteString("# finboard project-local data (auto-generated)\n")
	b.WriteString("# Config is tracked; exports, cache and logs are not.\n")
	for _, pattern := range ignoredArtifacts {
		b.WriteString(pattern)
		b.WriteByte('\n')
	}
	return b.String()
}

// EnsureGitignore writes GitignoreContent to dir/.gitignore, creating dir if
// needed. It reports whether a file was written; a .gitignore that already
// exists is left alone.
func EnsureGitignore(dir string) (bool, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return false, fmt.Errorf("creating directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, ".gitignore")
	//nolint:gosec // .gitignore is meant to be world-readable.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("creating %s: %w", path, err)
	}

	_, writeErr := f.WriteString(GitignoreContent())
	if closeErr := f.Close(); writeErr == nil {
		writeErr = closeErr
	}
	if writeErr != nil {
		_ = os.Remove(path)
		return false, fmt.Errorf("writing %s: %w", path, writeErr)
	}
	return true, nil
}
