package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/finboard/internal/config"
)

// newDefaultTarget returns a Config with known non-default values so tests can
// verify that absent overlay keys leave the original values intact.
func newDefaultTarget() *config.Config {
	cfg := config.Default()
	cfg.API.BaseURL = "https://api.example"
	cfg.API.Token = "tok"
	cfg.Bulk.BatchSize = 12
	cfg.Export.Dir = "/exports"
	cfg.Session.Username = "alice"
	cfg.Cache.Enabled = true
	cfg.Logging.Level = "debug"
	return cfg
}

func writeOverlay(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestShallowMergeYAML_SingleKeyOverride(t *testing.T) {
	target := newDefaultTarget()
	path := writeOverlay(t, "logging:\n  level: warn\n  format: json\n")

	require.NoError(t, config.ShallowMergeYAML(target, path))

	assert.Equal(t, "warn", target.Logging.Level)
	assert.Equal(t, "json", target.Logging.Format)
	assert.Equal(t, 12, target.Bulk.BatchSize, "absent section untouched")
	assert.Equal(t, "https://api.example", target.API.BaseURL)
}

func TestShallowMergeYAML_MultipleKeyOverride(t *testing.T) {
	target := newDefaultTarget()
	path := writeOverlay(t, `
api:
  base_url: https://other.example
export:
  dir: ./out
  sheet_name: results
`)

	require.NoError(t, config.ShallowMergeYAML(target, path))

	assert.Equal(t, "https://other.example", target.API.BaseURL)
	assert.Empty(t, target.API.Token, "section replaced as a whole")
	assert.Equal(t, "./out", target.Export.Dir)
	assert.Equal(t, "results", target.Export.SheetName)
	assert.Equal(t, "#C6EFCE", target.Export.Colors.Tier1, "omitted fields revert to defaults")
	assert.Equal(t, "alice", target.Session.Username)
}

func TestShallowMergeYAML_SectionFieldsFallBackToDefaults(t *testing.T) {
	target := newDefaultTarget()
	path := writeOverlay(t, "bulk:\n  per_item_delay: 250ms\n")

	require.NoError(t, config.ShallowMergeYAML(target, path))

	assert.Equal(t, 250*time.Millisecond, target.Bulk.PerItemDelay)
	assert.Equal(t, 30, target.Bulk.BatchSize)
	assert.Equal(t, 1500*time.Millisecond, target.Bulk.InterBatchDelay)
}

func TestShallowMergeYAML_TierMappingReplaced(t *testing.T) {
	target := newDefaultTarget()
	target.Bulk.TierMapping = map[string]string{"S": "tier1", "C": "tier3"}
	path := writeOverlay(t, "bulk:\n  tier_mapping:\n    B: tier1\n")

	require.NoError(t, config.ShallowMergeYAML(target, path))

	assert.Equal(t, map[string]string{"B": "tier1"}, target.Bulk.TierMapping)
}

func TestShallowMergeYAML_EmptyOverlayFile(t *testing.T) {
	target := newDefaultTarget()
	before := *target
	path := writeOverlay(t, "")

	require.NoError(t, config.ShallowMergeYAML(target, path))
	assert.Equal(t, before, *target)
}

func TestShallowMergeYAML_CommentOnlyFile(t *testing.T) {
	target := newDefaultTarget()
	before := *target
	path := writeOverlay(t, "# nothing here\n# still nothing\n")

	require.NoError(t, config.ShallowMergeYAML(target, path))
	assert.Equal(t, before, *target)
}

func TestShallowMergeYAML_CorruptedYAMLReturnsError(t *testing.T) {
	path := writeOverlay(t, "{{{not yaml")
	require.Error(t, config.ShallowMergeYAML(newDefaultTarget(), path))
}

func TestShallowMergeYAML_MissingFileReturnsError(t *testing.T) {
	err := config.ShallowMergeYAML(newDefaultTarget(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestShallowMergeYAML_NilTarget(t *testing.T) {
	path := writeOverlay(t, "logging:\n  level: warn\n")
	require.Error(t, config.ShallowMergeYAML(nil, path))
}

func TestShallowMergeYAML_UnknownKeysIgnored(t *testing.T) {
	target := newDefaultTarget()
	path := writeOverlay(t, "plugins:\n  x: 1\nlogging:\n  level: error\n")

	require.NoError(t, config.ShallowMergeYAML(target, path))
	assert.Equal(t, "error", target.Logging.Level)
}

func TestShallowMergeYAML_TypeMismatch(t *testing.T) {
	path := writeOverlay(t, "bulk:\n  batch_size: lots\n")
	err := config.ShallowMergeYAML(newDefaultTarget(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"bulk"`)
}

func TestShallowMergeYAML_TopLevelMustBeMapping(t *testing.T) {
	path := writeOverlay(t, "- api\n- bulk\n")
	err := config.ShallowMergeYAML(newDefaultTarget(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mapping")
}
