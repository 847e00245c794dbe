package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/rshade/finboard/internal/config"
	"github.com/rshade/finboard/internal/logging"
)

// isTerminal checks if the given file is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// logger is the package-level logger for CLI operations.
var logger zerolog.Logger //nolint:gochecknoglobals // Required for zerolog context integration

// NewRootCmd creates the root Cobra command for the finboard CLI.
// It resolves configuration, wires up logging and registers the bulk,
// session, config and version subcommands.
func NewRootCmd(ver string) *cobra.Command {
	var logResult *logging.LogPathResult

	cmd := &cobra.Command{
		Use:           "finboard",
		Short:         "Bulk valuation queries against the dashboard backend",
		Long:          "finboard: run rate-limited bulk valuation queries and export graded results to a workbook",
		Version:       ver,
		Example:       rootCmdExample,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadConfig(cmd); err != nil {
				return err
			}
			result := setupLogging(cmd)
			logResult = &result
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return cleanupLogging(cmd, logResult)
		},
	}

	cmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	cmd.PersistentFlags().String("config", "", "config file (default $FINBOARD_CONFIG or ~/.finboard/config.yaml)")
	cmd.PersistentFlags().String("project-dir", "", "project directory holding a .finboard overlay")
	cmd.AddCommand(NewBulkCmd(), newSessionCmd(), newConfigCmd(), NewVersionCmd(ver))

	return cmd
}

// loadConfig resolves the effective configuration and installs it as the
// global config. An explicit --config file must load cleanly.
func loadConfig(cmd *cobra.Command) error {
	ctx := cmd.Context()

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config %s: %w", path, err)
		}
		config.SetGlobalConfig(cfg)
		return nil
	}

	flagDir, _ := cmd.Flags().GetString("project-dir")
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	projectDir := config.ResolveProjectDir(ctx, flagDir, cwd)
	config.SetResolvedProjectDir(projectDir)
	config.SetGlobalConfig(config.NewWithProjectDir(ctx, projectDir))
	return nil
}

const rootCmdExample = `  # Query a few symbols and export the graded results
  finboard bulk AAPL MSFT NVDA

  # Query symbols from a file, 50 per batch with a 2s pause between batches
  finboard bulk --file symbols.txt --batch-size 50 --delay 2s

  # Pace every lookup by 300ms and write metrics for node_exporter
  finboard bulk --file symbols.txt --per-item-delay 300ms --metrics-textfile bulk.prom

  # Log in and watch the session countdown
  finboard session watch --username alice

  # Initialize configuration
  finboard config init

  # Check the backend version against the configured constraint
  finboard version --server`

// newConfigCmd creates the config command group with configuration subcommands.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Configuration management commands"}
	cmd.AddCommand(NewConfigInitCmd(), NewConfigShowCmd(), NewConfigValidateCmd())
	return cmd
}

// newSessionCmd creates the session command group.
func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "session", Short: "Session commands"}
	cmd.AddCommand(NewSessionWatchCmd())
	return cmd
}
