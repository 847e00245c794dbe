package cli_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rshade/finboard/internal/cli"
	"github.com/rshade/finboard/internal/config"
)

// setupCLITest isolates config, project and log settings from the real
// environment and returns the isolated home directory.
func setupCLITest(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("FINBOARD_HOME", home)
	t.Setenv("FINBOARD_CONFIG", "")
	t.Setenv("FINBOARD_PROJECT_DIR", t.TempDir())
	t.Setenv("FINBOARD_API_TOKEN", "")
	t.Setenv("FINBOARD_LOG_LEVEL", "error")
	t.Setenv("FINBOARD_LOG_FILE", "")
	t.Setenv("FINBOARD_CACHE_ENABLED", "")
	t.Cleanup(func() {
		config.ResetGlobalConfigForTest()
		config.SetResolvedProjectDir("")
	})
	return home
}

// execute runs the root command with args and returns combined output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd := cli.NewRootCmd("test")
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func mustExecute(t *testing.T, args ...string) string {
	t.Helper()
	out, err := execute(t, args...)
	require.NoError(t, err, out)
	return out
}
