package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rshade/finboard/internal/config"
	"github.com/rshade/finboard/internal/logging"
)

// effectiveLogging resolves the logging section after --debug. Debug runs
// always log to the console so a half-configured file sink cannot hide them.
func effectiveLogging(cmd *cobra.Command) config.LoggingConfig {
	cfg := config.GetLoggingConfig()
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.Level = "debug"
		cfg.Format = "console"
		cfg.File = ""
	}
	return cfg
}

// setupLogging builds the command logger and attaches it, together with a
// per-invocation trace id, to the command context.
func setupLogging(cmd *cobra.Command) logging.LogPathResult {
	cfg := effectiveLogging(cmd)
	stderr := cmd.ErrOrStderr()

	if cfg.File != "" {
		if err := config.EnsureLogDir(); err != nil {
			_, _ = fmt.Fprintf(stderr, "Warning: could not create log directory: %v\n", err)
		}
	}

	result := logging.NewLoggerWithPath(cfg.ToLoggingConfig())
	logger = logging.ComponentLogger(result.Logger, "cli")
	announceLogSink(stderr, result)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = logging.ContextWithTraceID(ctx, logging.GetOrGenerateTraceID(ctx))
	ctx = logger.WithContext(ctx)
	cmd.SetContext(ctx)

	logger.Debug().Ctx(ctx).
		Str("command", cmd.CommandPath()).
		Str("level", cfg.Level).
		Msg("command started")
	return result
}

func announceLogSink(w io.Writer, result logging.LogPathResult) {
	switch {
	case result.UsingFile:
		logging.PrintLogPathMessage(w, result.FilePath)
	case result.FallbackUsed:
		logging.PrintFallbackWarning(w, result.FallbackReason)
	}
}

// cleanupLogging releases the log file, if one was opened.
func cleanupLogging(_ *cobra.Command, result *logging.LogPathResult) error {
	if result == nil {
		return nil
	}
	return result.Close()
}
