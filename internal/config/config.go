// Package config loads, validates and persists finboard settings.
//
// Settings are layered: built-in defaults, the user config file
// (~/.finboard/config.yaml or $FINBOARD_CONFIG), an optional project-local
// overlay, FINBOARD_* environment variables and finally CLI flags applied by
// the caller.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rshade/finboard/internal/engine/batch"
	"github.com/rshade/finboard/internal/engine/bulk"
	"github.com/rshade/finboard/internal/engine/cache"
	"github.com/rshade/finboard/internal/export"
	"github.com/rshade/finboard/internal/logging"
	"github.com/rshade/finboard/internal/session"
)

const (
	configFileName  = "config.yaml"
	configFilePerms = 0o600
	configDirPerms  = 0o700
)

// Config is the full finboard configuration.
type Config struct {
	API     APIConfig     `yaml:"api"`
	Bulk    BulkConfig    `yaml:"bulk"`
	Export  ExportConfig  `yaml:"export"`
	Session SessionConfig `yaml:"session"`
	Cache   CacheConfig   `yaml:"cache"`
	Logging LoggingConfig `yaml:"logging"`
}

// APIConfig describes the dashboard backend.
type APIConfig struct {
	BaseURL          string          `yaml:"base_url"                     validate:"required,url"`
	Token            string          `yaml:"token,omitempty"`
	Timeout          time.Duration   `yaml:"timeout"                      validate:"gte=0"`
	MinServerVersion string          `yaml:"min_server_version,omitempty" validate:"omitempty,semver_constraint"`
	Endpoints        EndpointsConfig `yaml:"endpoints"`
}

// EndpointsConfig overrides backend paths. Empty fields keep the defaults.
type EndpointsConfig struct {
	Valuation  string `yaml:"valuation,omitempty"   validate:"omitempty,startswith=/"`
	Evaluation string `yaml:"evaluation,omitempty"  validate:"omitempty,startswith=/"`
	SessionTTL string `yaml:"session_ttl,omitempty" validate:"omitempty,startswith=/"`
	Login      string `yaml:"login,omitempty"       validate:"omitempty,startswith=/"`
	Refresh    string `yaml:"refresh,omitempty"     validate:"omitempty,startswith=/"`
	Version    string `yaml:"version,omitempty"     validate:"omitempty,startswith=/"`
}

// BulkConfig controls batching and classification of bulk queries.
type BulkConfig struct {
	BatchSize       int               `yaml:"batch_size"             validate:"min=1,max=1000"`
	InterBatchDelay time.Duration     `yaml:"inter_batch_delay"      validate:"gte=0"`
	PerItemDelay    time.Duration     `yaml:"per_item_delay"         validate:"gte=0"`
	TierMapping     map[string]string `yaml:"tier_mapping,omitempty" validate:"dive,keys,grade,endkeys,tier"`
}

// ExportConfig controls workbook output.
type ExportConfig struct {
	Dir       string     `yaml:"dir"`
	SheetName string     `yaml:"sheet_name" validate:"required,max=31"`
	Colors    TierColors `yaml:"colors"`
}

// TierColors are the row fills of the display tiers.
type TierColors struct {
	Tier1 string `yaml:"tier1" validate:"rgbhex"`
	Tier2 string `yaml:"tier2" validate:"rgbhex"`
	Tier3 string `yaml:"tier3" validate:"rgbhex"`
}

// SessionConfig controls the keepalive loop of `session watch`.
type SessionConfig struct {
	Username     string        `yaml:"username,omitempty"`
	SyncInterval time.Duration `yaml:"sync_interval" validate:"gte=1s"`
	SyncJitter   time.Duration `yaml:"sync_jitter"   validate:"gte=0,ltefield=SyncInterval"`
}

// CacheConfig controls the valuation response cache.
type CacheConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Dir        string `yaml:"dir,omitempty"`
	TTLSeconds int    `yaml:"ttl_seconds" validate:"min=60,max=86400"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"          validate:"oneof=trace debug info warn error"`
	Format string `yaml:"format"         validate:"oneof=json console text"`
	File   string `yaml:"file,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	colors := export.DefaultTierColors()
	return &Config{
		API: APIConfig{
			BaseURL: "http://localhost:8080",
			Timeout: 20 * time.Second,
		},
		Bulk: BulkConfig{
			BatchSize:       batch.DefaultBatchSize,
			InterBatchDelay: batch.DefaultInterBatchDelay,
		},
		Export: ExportConfig{
			Dir:       ".",
			SheetName: export.DefaultSheetName,
			Colors: TierColors{
				Tier1: colors[bulk.Tier1],
				Tier2: colors[bulk.Tier2],
				Tier3: colors[bulk.Tier3],
			},
		},
		Session: SessionConfig{
			SyncInterval: session.DefaultSyncInterval,
			SyncJitter:   session.DefaultSyncJitter,
		},
		Cache: CacheConfig{
			TTLSeconds: cache.DefaultTTLSeconds,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// New returns the effective configuration: defaults, the user config file
// if present, then environment overrides. A broken config file is logged
// and ignored.
func New() *Config {
	cfg := Default()

	if path, err := ConfigPath(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			if mergeErr := mergeFile(cfg, path); mergeErr != nil {
				logger := logging.FromContext(context.Background())
				logger.Warn().
					Str("component", "config").
					Err(mergeErr).
					Str("path", path).
					Msg("ignoring unreadable config file")
				cfg = Default()
			}
		}
	}

	cfg.ApplyEnv()
	return cfg
}

// Load reads path on top of the defaults and applies environment overrides.
// Unlike New, errors in the file are returned.
func Load(path string) (*Config, error) {
	cfg := Default()
	if err := mergeFile(cfg, path); err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// Save writes the configuration to path, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), configDirPerms); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, data, configFilePerms); err != nil {
		return fmt.Errorf("writing config %s: %w", path, err)
	}
	return nil
}

// ConfigPath returns the user config file path.
func ConfigPath() (string, error) {
	if p := os.Getenv("FINBOARD_CONFIG"); p != "" {
		return p, nil
	}
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// ApplyEnv overrides fields from FINBOARD_* environment variables. Values
// that fail to parse are ignored.
func (c *Config) ApplyEnv() {
	setString(&c.API.BaseURL, "FINBOARD_API_URL")
	setString(&c.API.Token, "FINBOARD_API_TOKEN")
	setDuration(&c.API.Timeout, "FINBOARD_API_TIMEOUT")
	setString(&c.API.MinServerVersion, "FINBOARD_MIN_SERVER_VERSION")

	if v, ok := envInt("FINBOARD_BATCH_SIZE"); ok {
		c.Bulk.BatchSize = v
	}
	setDuration(&c.Bulk.InterBatchDelay, "FINBOARD_INTER_BATCH_DELAY")
	setDuration(&c.Bulk.PerItemDelay, "FINBOARD_PER_ITEM_DELAY")

	setString(&c.Export.Dir, "FINBOARD_EXPORT_DIR")
	setString(&c.Session.Username, "FINBOARD_USERNAME")

	cs := cache.Settings{
		Enabled:    c.Cache.Enabled,
		TTLSeconds: c.Cache.TTLSeconds,
		Dir:        c.Cache.Dir,
	}.WithEnv()
	c.Cache.Enabled, c.Cache.TTLSeconds, c.Cache.Dir = cs.Enabled, cs.TTLSeconds, cs.Dir

	setString(&c.Logging.Level, "FINBOARD_LOG_LEVEL")
	setString(&c.Logging.Format, "FINBOARD_LOG_FORMAT")
	setString(&c.Logging.File, "FINBOARD_LOG_FILE")
}

// ErrInvalidTierMapping is returned for tier mappings that name unknown
// grades or tiers.
var ErrInvalidTierMapping = errors.New("invalid tier mapping")

// Mapping converts the configured tier mapping. An empty mapping yields the
// default.
func (b BulkConfig) Mapping() (bulk.TierMapping, error) {
	if len(b.TierMapping) == 0 {
		return bulk.DefaultTierMapping(), nil
	}
	m := make(bulk.TierMapping, len(b.TierMapping))
	for g, t := range b.TierMapping {
		grade := bulk.ParseGrade(g)
		if grade == bulk.GradeNone {
			return nil, fmt.Errorf("%w: unknown grade %q", ErrInvalidTierMapping, g)
		}
		tier, ok := bulk.ParseTier(t)
		if !ok {
			return nil, fmt.Errorf("%w: unknown tier %q for grade %s", ErrInvalidTierMapping, t, g)
		}
		m[grade] = tier
	}
	return m, nil
}

// Map returns the colors keyed by tier.
func (t TierColors) Map() map[bulk.Tier]string {
	return map[bulk.Tier]string{
		bulk.Tier1: t.Tier1,
		bulk.Tier2: t.Tier2,
		bulk.Tier3: t.Tier3,
	}
}

// CacheDir returns the configured cache directory or ~/.finboard/cache.
func (c CacheConfig) CacheDir() (string, error) {
	if c.Dir != "" {
		return c.Dir, nil
	}
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "cache"), nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	if d, err := time.ParseDuration(v); err == nil {
		*dst = d
		return
	}
	// bare integers are milliseconds
	if ms, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(ms) * time.Millisecond
	}
}

func envInt(key string) (int, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
