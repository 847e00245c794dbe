package config

import "sync"

// process holds the configuration one CLI invocation runs with. The root
// command fills it once in PersistentPreRunE; everything else only reads.
//
//nolint:gochecknoglobals // one configuration per process
var process struct {
	mu         sync.RWMutex
	cfg        *Config
	projectDir string
}

// GetGlobalConfig returns the process configuration, loading it with New on
// first use.
func GetGlobalConfig() *Config {
	process.mu.RLock()
	cfg := process.cfg
	process.mu.RUnlock()
	if cfg != nil {
		return cfg
	}

	process.mu.Lock()
	defer process.mu.Unlock()
	if process.cfg == nil {
		process.cfg = New()
	}
	return process.cfg
}

// SetGlobalConfig installs cfg as the process configuration. A nil cfg
// makes the next GetGlobalConfig load from disk again.
func SetGlobalConfig(cfg *Config) {
	process.mu.Lock()
	process.cfg = cfg
	process.mu.Unlock()
}

// ResetGlobalConfigForTest forgets the process configuration and the
// resolved project directory.
func ResetGlobalConfigForTest() {
	process.mu.Lock()
	process.cfg = nil
	process.projectDir = ""
	process.mu.Unlock()
}

// SetResolvedProjectDir records the project .finboard directory chosen for
// this invocation ("" when there is none).
func SetResolvedProjectDir(dir string) {
	process.mu.Lock()
	process.projectDir = dir
	process.mu.Unlock()
}

// GetResolvedProjectDir returns the value given to SetResolvedProjectDir.
func GetResolvedProjectDir() string {
	process.mu.RLock()
	defer process.mu.RUnlock()
	return process.projectDir
}
