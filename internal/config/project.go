package config

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rshade/finboard/internal/logging"
)

const projectDirName = ".finboard"

// ResolveProjectDir picks the project-local .finboard directory for this
// invocation. The --project-dir flag wins, then FINBOARD_PROJECT_DIR, then
// the closest .finboard found walking up from startDir. The result is
// absolute, or "" when no project applies. Nothing is created.
func ResolveProjectDir(ctx context.Context, flagValue, startDir string) string {
	for _, explicit := range []string{flagValue, os.Getenv("FINBOARD_PROJECT_DIR")} {
		if explicit != "" {
			return projectDirUnder(ctx, explicit)
		}
	}
	if root := nearestProject(startDir); root != "" {
		return projectDirUnder(ctx, root)
	}
	return ""
}

// nearestProject returns the closest ancestor of dir (dir included) that
// holds a .finboard directory. The home directory never counts: its
// .finboard is the user configuration.
func nearestProject(dir string) string {
	cur, err := filepath.Abs(dir)
	if err != nil {
		return ""
	}
	home, _ := os.UserHomeDir()

	for {
		if cur != home && isDir(filepath.Join(cur, projectDirName)) {
			return cur
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return ""
		}
		cur = parent
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// projectDirUnder makes dir absolute and points it at its .finboard
// subdirectory, unless dir already is one.
func projectDirUnder(ctx context.Context, dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		logging.FromContext(ctx).Warn().
			Str("component", "config").
			Str("dir", dir).
			Err(err).
			Msg("cannot make project directory absolute, using it as given")
		abs = dir
	}
	if filepath.Base(abs) != projectDirName {
		abs = filepath.Join(abs, projectDirName)
	}
	return abs
}

// NewWithProjectDir loads the user configuration and overlays
// projectDir/config.yaml on it section by section. Environment variables are
// applied last. A missing or unreadable overlay leaves the user
// configuration in force.
func NewWithProjectDir(ctx context.Context, projectDir string) *Config {
	if projectDir == "" {
		return New()
	}

	overlay := filepath.Join(projectDir, configFileName)
	if _, err := os.Stat(overlay); errors.Is(err, fs.ErrNotExist) {
		return New()
	}

	cfg := New()
	if err := ShallowMergeYAML(cfg, overlay); err != nil {
		logging.FromContext(ctx).Warn().
			Str("component", "config").
			Str("overlay_path", overlay).
			Err(err).
			Msg("ignoring project config")
		return New()
	}
	cfg.ApplyEnv()
	return cfg
}
