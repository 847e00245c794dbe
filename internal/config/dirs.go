package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetConfigDir is the user configuration directory: $FINBOARD_HOME when
// set, ~/.finboard otherwise.
func GetConfigDir() (string, error) {
	if home := os.Getenv("FINBOARD_HOME"); home != "" {
		return home, nil
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locating home directory: %w", err)
	}
	return filepath.Join(userHome, projectDirName), nil
}

// EnsureLogDir creates the parent of the configured log file. It is a no-op
// when logging goes to the console.
func EnsureLogDir() error {
	file := GetGlobalConfig().Logging.File
	if file == "" {
		return nil
	}
	return mkdir(filepath.Dir(file), "log")
}

// EnsureSubDirs lays out the user directory: the config directory itself,
// the response cache and the log directory.
func EnsureSubDirs() error {
	dir, err := GetConfigDir()
	if err != nil {
		return err
	}
	if err := mkdir(dir, "config"); err != nil {
		return err
	}

	cacheDir, err := GetGlobalConfig().Cache.CacheDir()
	if err != nil {
		return fmt.Errorf("resolving cache directory: %w", err)
	}
	if err := mkdir(cacheDir, "cache"); err != nil {
		return err
	}
	return EnsureLogDir()
}

func mkdir(dir, what string) error {
	if err := os.MkdirAll(dir, configDirPerms); err != nil {
		return fmt.Errorf("creating %s directory %q: %w", what, dir, err)
	}
	return nil
}
