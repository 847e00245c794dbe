package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/finboard/internal/config"
	"github.com/rshade/finboard/internal/engine/bulk"
)

func TestDefault(t *testing.T) {
	cfg := config.Default()

	assert.Equal(t, 30, cfg.Bulk.BatchSize)
	assert.Equal(t, 1500*time.Millisecond, cfg.Bulk.InterBatchDelay)
	assert.Zero(t, cfg.Bulk.PerItemDelay)
	assert.Equal(t, "bulk", cfg.Export.SheetName)
	assert.Equal(t, "#FFEB9C", cfg.Export.Colors.Tier2)
	assert.Equal(t, 30*time.Second, cfg.Session.SyncInterval)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, 900, cfg.Cache.TTLSeconds)
	require.NoError(t, cfg.Validate())
}

func TestLoad_MergesFieldsOntoDefaults(t *testing.T) {
	isolateHome(t)
	path := writeOverlay(t, `
api:
  base_url: https://dash.example
bulk:
  batch_size: 10
  per_item_delay: 200ms
cache:
  enabled: true
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://dash.example", cfg.API.BaseURL)
	assert.Equal(t, 20*time.Second, cfg.API.Timeout, "unset field keeps its default")
	assert.Equal(t, 10, cfg.Bulk.BatchSize)
	assert.Equal(t, 1500*time.Millisecond, cfg.Bulk.InterBatchDelay)
	assert.Equal(t, 200*time.Millisecond, cfg.Bulk.PerItemDelay)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 900, cfg.Cache.TTLSeconds)
}

func TestLoad_RejectsUnknownFields(t *testing.T) {
	isolateHome(t)
	path := writeOverlay(t, "bulk:\n  batchsize: 10\n")

	_, err := config.Load(path)
	require.Error(t, err)
}

func TestLoad_EmptyFile(t *testing.T) {
	isolateHome(t)
	cfg, err := config.Load(writeOverlay(t, ""))
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestNew_ReadsUserConfigFile(t *testing.T) {
	home := isolateHome(t)
	dir := filepath.Join(home, ".finboard")
	require.NoError(t, os.MkdirAll(dir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("bulk:\n  batch_size: 11\n"), 0o600))

	cfg := config.New()
	assert.Equal(t, 11, cfg.Bulk.BatchSize)
}

func TestNew_ConfigEnvOverridesPath(t *testing.T) {
	isolateHome(t)
	path := writeOverlay(t, "logging:\n  level: warn\n")
	t.Setenv("FINBOARD_CONFIG", path)

	got, err := config.ConfigPath()
	require.NoError(t, err)
	assert.Equal(t, path, got)
	assert.Equal(t, "warn", config.New().Logging.Level)
}

func TestNew_BrokenFileFallsBackToDefaults(t *testing.T) {
	isolateHome(t)
	t.Setenv("FINBOARD_CONFIG", writeOverlay(t, "bulk: [1, 2"))

	assert.Equal(t, config.Default(), config.New())
}

func TestApplyEnv(t *testing.T) {
	isolateHome(t)
	t.Setenv("FINBOARD_API_URL", "https://env.example")
	t.Setenv("FINBOARD_API_TOKEN", "secret")
	t.Setenv("FINBOARD_BATCH_SIZE", "15")
	t.Setenv("FINBOARD_INTER_BATCH_DELAY", "2s")
	t.Setenv("FINBOARD_PER_ITEM_DELAY", "250")
	t.Setenv("FINBOARD_EXPORT_DIR", "/tmp/exports")
	t.Setenv("FINBOARD_LOG_LEVEL", "debug")
	t.Setenv("FINBOARD_CACHE_ENABLED", "true")
	t.Setenv("FINBOARD_CACHE_TTL_SECONDS", "120")

	cfg := config.Default()
	cfg.ApplyEnv()

	assert.Equal(t, "https://env.example", cfg.API.BaseURL)
	assert.Equal(t, "secret", cfg.API.Token)
	assert.Equal(t, 15, cfg.Bulk.BatchSize)
	assert.Equal(t, 2*time.Second, cfg.Bulk.InterBatchDelay)
	assert.Equal(t, 250*time.Millisecond, cfg.Bulk.PerItemDelay)
	assert.Equal(t, "/tmp/exports", cfg.Export.Dir)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 120, cfg.Cache.TTLSeconds)
}

func TestApplyEnv_IgnoresGarbage(t *testing.T) {
	isolateHome(t)
	t.Setenv("FINBOARD_BATCH_SIZE", "many")
	t.Setenv("FINBOARD_INTER_BATCH_DELAY", "soon")

	cfg := config.Default()
	cfg.ApplyEnv()

	assert.Equal(t, 30, cfg.Bulk.BatchSize)
	assert.Equal(t, 1500*time.Millisecond, cfg.Bulk.InterBatchDelay)
}

func TestSave_RoundTrip(t *testing.T) {
	isolateHome(t)
	cfg := config.Default()
	cfg.API.BaseURL = "https://saved.example"
	cfg.Bulk.PerItemDelay = 300 * time.Millisecond
	cfg.Bulk.TierMapping = map[string]string{"S": "tier1", "A": "tier2"}

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, cfg.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantMsg string
	}{
		{"missing url", func(c *config.Config) { c.API.BaseURL = "" }, "api.base_url: is required"},
		{"relative url", func(c *config.Config) { c.API.BaseURL = "dash/api" }, "api.base_url: must be an absolute URL"},
		{"batch too large", func(c *config.Config) { c.Bulk.BatchSize = 5000 }, "bulk.batch_size: must be at most 1000"},
		{"batch zero", func(c *config.Config) { c.Bulk.BatchSize = 0 }, "bulk.batch_size: must be at least 1"},
		{"negative delay", func(c *config.Config) { c.Bulk.InterBatchDelay = -time.Second }, "bulk.inter_batch_delay"},
		{"bad color", func(c *config.Config) { c.Export.Colors.Tier3 = "red" }, `export.colors.tier3: "red" is not a #RRGGBB color`},
		{"bad level", func(c *config.Config) { c.Logging.Level = "loud" }, "logging.level: must be one of"},
		{"bad grade", func(c *config.Config) { c.Bulk.TierMapping = map[string]string{"Z": "tier1"} }, "unknown grade Z"},
		{"bad tier", func(c *config.Config) { c.Bulk.TierMapping = map[string]string{"S": "gold"} }, "unknown tier gold"},
		{"bad constraint", func(c *config.Config) { c.API.MinServerVersion = "newest" }, "api.min_server_version"},
		{"sync too fast", func(c *config.Config) { c.Session.SyncInterval = time.Millisecond }, "session.sync_interval"},
		{"jitter above interval", func(c *config.Config) { c.Session.SyncJitter = time.Minute }, "session.sync_jitter"},
		{"endpoint path", func(c *config.Config) { c.API.Endpoints.Valuation = "api/v" }, "api.endpoints.valuation"},
		{"cache ttl", func(c *config.Config) { c.Cache.TTLSeconds = 5 }, "cache.ttl_seconds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.ErrorIs(t, err, config.ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestValidate_ReportsAllViolations(t *testing.T) {
	cfg := config.Default()
	cfg.API.BaseURL = ""
	cfg.Bulk.BatchSize = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api.base_url")
	assert.Contains(t, err.Error(), "bulk.batch_size")
}

func TestValidate_AcceptsGoodOptionalValues(t *testing.T) {
	cfg := config.Default()
	cfg.API.MinServerVersion = ">= 2.1, < 3"
	cfg.API.Endpoints.Valuation = "/v2/valuation"
	cfg.Bulk.TierMapping = map[string]string{"s": "tier1", "B": "none"}
	require.NoError(t, cfg.Validate())
}

func TestBulkConfig_Mapping(t *testing.T) {
	m, err := config.Default().Bulk.Mapping()
	require.NoError(t, err)
	assert.Equal(t, bulk.DefaultTierMapping(), m)

	custom := config.BulkConfig{TierMapping: map[string]string{"S": "tier2", "c": "1"}}
	m, err = custom.Mapping()
	require.NoError(t, err)
	assert.Equal(t, bulk.TierMapping{bulk.GradeS: bulk.Tier2, bulk.GradeC: bulk.Tier1}, m)

	_, err = config.BulkConfig{TierMapping: map[string]string{"X": "tier1"}}.Mapping()
	require.ErrorIs(t, err, config.ErrInvalidTierMapping)
}

func TestTierColors_Map(t *testing.T) {
	colors := config.Default().Export.Colors.Map()
	assert.Equal(t, "#C6EFCE", colors[bulk.Tier1])
	assert.Len(t, colors, 3)
}

func TestLoggingConfig_ToLoggingConfig(t *testing.T) {
	lc := config.LoggingConfig{Level: "debug", Format: "text"}
	got := lc.ToLoggingConfig()
	assert.Equal(t, "stderr", got.Output)
	assert.Equal(t, "console", got.Format)

	lc.File = "/var/log/finboard.log"
	got = lc.ToLoggingConfig()
	assert.Equal(t, "file", got.Output)
	assert.Equal(t, "/var/log/finboard.log", got.File)
}
