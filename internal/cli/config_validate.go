package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/rshade/finboard/internal/config"
)

// NewConfigValidateCmd checks the effective configuration, including the
// tier mapping, without contacting the backend.
func NewConfigValidateCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the effective configuration",
		Long: `Checks the merged configuration (defaults, user file, project overlay
and environment): backend URL, server version constraint, batch size and
delays, the grade to tier mapping and the workbook fill colors.`,
		Example: `  finboard config validate
  finboard config validate --verbose`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.GetGlobalConfig()
			if err := checkConfig(cfg); err != nil {
				return fmt.Errorf("configuration validation failed: %w", err)
			}
			cmd.Println("Configuration is valid")
			if verbose {
				cmd.Println()
				cmd.Println("Configuration details:")
				for _, d := range configDetails(cfg) {
					cmd.Printf("  %s: %s\n", d[0], d[1])
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "list the settings that were checked")
	return cmd
}

func checkConfig(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	_, err := cfg.Bulk.Mapping()
	return err
}

// configDetails lists label/value pairs for --verbose. Optional settings
// appear only when set.
func configDetails(cfg *config.Config) [][2]string {
	details := [][2]string{{"Backend", cfg.API.BaseURL}}
	add := func(label, value string) {
		if value != "" {
			details = append(details, [2]string{label, value})
		}
	}

	add("Server version", cfg.API.MinServerVersion)
	add("Batch size", strconv.Itoa(cfg.Bulk.BatchSize))
	add("Inter-batch delay", cfg.Bulk.InterBatchDelay.String())
	if cfg.Bulk.PerItemDelay > 0 {
		add("Per-item delay", cfg.Bulk.PerItemDelay.String())
	}
	add("Export directory", cfg.Export.Dir)
	add("Cache enabled", strconv.FormatBool(cfg.Cache.Enabled))
	add("Logging level", cfg.Logging.Level)
	add("Log file", cfg.Logging.File)
	add("Project overlay", config.GetResolvedProjectDir())
	return details
}
