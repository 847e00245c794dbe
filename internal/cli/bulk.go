package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/rshade/finboard/internal/config"
	"github.com/rshade/finboard/internal/engine/batch"
	"github.com/rshade/finboard/internal/engine/bulk"
	"github.com/rshade/finboard/internal/export"
	"github.com/rshade/finboard/internal/logging"
	"github.com/rshade/finboard/internal/metrics"
	"github.com/rshade/finboard/internal/session"
	"github.com/rshade/finboard/internal/tui"
)

// stopSignals end a bulk run early but still export the rows collected so far.
var stopSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

// BulkFlags holds the flags of the bulk command.
type BulkFlags struct {
	File            string
	BatchSize       int
	Delay           time.Duration
	PerItemDelay    time.Duration
	OutDir          string
	Plain           bool
	MetricsTextfile string
	NoCache         bool
}

// NewBulkCmd creates the bulk command.
func NewBulkCmd() *cobra.Command {
	var flags BulkFlags

	cmd := &cobra.Command{
		Use:   "bulk [symbols...]",
		Short: "Query valuations and grades for many symbols and export a workbook",
		Long: `Queries valuations and grades for a list of symbols in fixed-size batches,
pausing between batches, and writes the graded results to a timestamped
workbook.

Symbols are taken from arguments and from --file (one per line or comma
separated, "-" reads stdin). Press c or esc to stop after the current batch;
rows gathered so far are still exported.`,
		Example: `  # Query three symbols
  finboard bulk AAPL MSFT NVDA

  # Read symbols from a file and export into ./exports
  finboard bulk --file symbols.txt --out-dir exports

  # Plain progress output, suitable for CI logs
  finboard bulk --file symbols.txt --plain`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBulk(cmd, args, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.File, "file", "f", "", `read symbols from a file ("-" for stdin)`)
	cmd.Flags().IntVar(&flags.BatchSize, "batch-size", 0, "symbols per batch (default from config)")
	cmd.Flags().DurationVar(&flags.Delay, "delay", 0, "pause between batches (default from config)")
	cmd.Flags().DurationVar(&flags.PerItemDelay, "per-item-delay", 0, "pause between lookups inside a batch")
	cmd.Flags().StringVarP(&flags.OutDir, "out-dir", "o", "", "directory for the workbook (default from config)")
	cmd.Flags().BoolVar(&flags.Plain, "plain", false, "print progress lines instead of the interactive view")
	cmd.Flags().StringVar(&flags.MetricsTextfile, "metrics-textfile", "", "write run metrics in Prometheus text format")
	cmd.Flags().BoolVar(&flags.NoCache, "no-cache", false, "bypass the valuation response cache")

	return cmd
}

// applyBulkFlags overrides cfg with explicitly set flags.
func applyBulkFlags(cmd *cobra.Command, cfg *config.Config, flags BulkFlags) {
	if cmd.Flags().Changed("batch-size") {
		cfg.Bulk.BatchSize = flags.BatchSize
	}
	if cmd.Flags().Changed("delay") {
		cfg.Bulk.InterBatchDelay = flags.Delay
	}
	if cmd.Flags().Changed("per-item-delay") {
		cfg.Bulk.PerItemDelay = flags.PerItemDelay
	}
	if cmd.Flags().Changed("out-dir") {
		cfg.Export.Dir = flags.OutDir
	}
}

// readIdentifiers merges identifiers from args and the --file source.
func readIdentifiers(in io.Reader, args []string, file string) ([]string, error) {
	inputs := append([]string(nil), args...)
	if file != "" {
		var (
			data []byte
			err  error
		)
		if file == "-" {
			data, err = io.ReadAll(in)
		} else {
			data, err = os.ReadFile(file)
		}
		if err != nil {
			return nil, fmt.Errorf("reading symbols: %w", err)
		}
		inputs = append(inputs, string(data))
	}
	return bulk.ParseIdentifiers(inputs...), nil
}

func runBulk(cmd *cobra.Command, args []string, flags BulkFlags) error {
	ctx := cmd.Context()

	ids, err := readIdentifiers(cmd.InOrStdin(), args, flags.File)
	if err != nil {
		return err
	}

	cfg := *config.GetGlobalConfig()
	applyBulkFlags(cmd, &cfg, flags)
	if err := cfg.Validate(); err != nil {
		return err
	}
	if len(ids) == 0 {
		return bulk.ErrNoInput
	}

	runner, err := newBulkRunner(ctx, &cfg, flags.NoCache)
	if err != nil {
		return err
	}

	// SIGINT and SIGTERM request a cooperative stop; in-flight calls keep the command context.
	sigCtx, stop := signal.NotifyContext(ctx, stopSignals...)
	defer stop()
	token := batch.NewToken(sigCtx)
	defer token.RequestCancel()

	run := func(cb bulk.Callbacks) (bulk.Outcome, error) {
		return runner.orchestrator.Run(ctx, token, ids, cb)
	}

	var outcome bulk.Outcome
	if !flags.Plain && isTerminal(os.Stdout) && isTerminal(os.Stdin) {
		outcome, err = runBulkInteractive(token, len(ids), run)
	} else {
		outcome, err = run(newPlainReporter(cmd.ErrOrStderr()).callbacks())
	}

	logMetricsSummary(ctx, runner.metrics)
	if flags.MetricsTextfile != "" {
		if writeErr := runner.metrics.WriteTextfile(flags.MetricsTextfile); writeErr != nil {
			logger.Warn().Ctx(ctx).Err(writeErr).Str("path", flags.MetricsTextfile).Msg("could not write metrics")
		}
	}
	if err != nil {
		return err
	}

	printOutcome(cmd.OutOrStdout(), outcome, runner.sink)
	return nil
}

func logMetricsSummary(ctx context.Context, rec *metrics.Recorder) {
	summary, err := rec.Summary()
	if err != nil {
		logger.Debug().Ctx(ctx).Err(err).Msg("metrics summary unavailable")
		return
	}
	event := logger.Debug().Ctx(ctx)
	for name, value := range summary {
		event = event.Str(name, value)
	}
	event.Msg("bulk metrics")
}

// bulkRunner bundles the collaborators of a bulk run.
type bulkRunner struct {
	orchestrator *bulk.Orchestrator
	sink         *export.DirSink
	metrics      *metrics.Recorder
}

func newBulkRunner(ctx context.Context, cfg *config.Config, noCache bool) (*bulkRunner, error) {
	bus := session.NewBus(logging.ComponentLogger(logger, "session"))
	api, err := newAPIClient(cfg, bus, !noCache)
	if err != nil {
		return nil, err
	}
	if err := checkServer(ctx, api, cfg.API.MinServerVersion); err != nil {
		return nil, err
	}

	exporter, err := export.New(
		export.WithSheetName(cfg.Export.SheetName),
		export.WithTierColors(cfg.Export.Colors.Map()),
	)
	if err != nil {
		return nil, err
	}
	sink, err := export.NewDirSink(cfg.Export.Dir)
	if err != nil {
		return nil, err
	}
	mapping, err := cfg.Bulk.Mapping()
	if err != nil {
		return nil, err
	}

	rec := metrics.NewRecorder()
	orch, err := bulk.NewOrchestrator(bulk.Options{
		BatchSize:       cfg.Bulk.BatchSize,
		InterBatchDelay: cfg.Bulk.InterBatchDelay,
		PerItemDelay:    cfg.Bulk.PerItemDelay,
		TierMapping:     mapping,
		Valuation:       api,
		Evaluation:      api,
		Exporter:        exporter,
		Sink:            sink,
		Metrics:         rec,
		Logger:          logging.ComponentLogger(logger, "bulk"),
	})
	if err != nil {
		return nil, err
	}

	return &bulkRunner{orchestrator: orch, sink: sink, metrics: rec}, nil
}

func runBulkInteractive(token *batch.Token, total int, run tui.RunFunc) (bulk.Outcome, error) {
	model := tui.NewBulkModel(token, total, run)
	final, err := tea.NewProgram(model).Run()
	if err != nil {
		// The run keeps going without a view; stop it and wait for the export.
		token.RequestCancel()
		return model.Wait()
	}
	m, ok := final.(tui.BulkModel)
	if !ok {
		return model.Wait()
	}
	return m.Wait()
}

func printOutcome(w io.Writer, o bulk.Outcome, sink *export.DirSink) {
	p := message.NewPrinter(language.English)
	_, _ = p.Fprintf(w, "%s\n", o.Message())
	if o.Failed > 0 {
		_, _ = p.Fprintf(w, "%d of %d identifiers failed\n", o.Failed, len(o.Rows))
	}
	if o.File != "" {
		_, _ = fmt.Fprintf(w, "Saved: %s\n", sink.Path(o.File))
	}
	_, _ = fmt.Fprintf(w, "Elapsed: %s\n", o.Elapsed.Round(time.Millisecond))
}

// plainReporter prints progress lines for non-interactive runs.
type plainReporter struct {
	w io.Writer
	p *message.Printer
}

func newPlainReporter(w io.Writer) *plainReporter {
	return &plainReporter{w: w, p: message.NewPrinter(language.English)}
}

func (r *plainReporter) callbacks() bulk.Callbacks {
	return bulk.Callbacks{
		OnProgress: func(processed, total int, label string) {
			_, _ = r.p.Fprintf(r.w, "[%d/%d] %s\n", processed, total, label)
		},
		OnComplete: func(rows int, cancelled bool) {
			state := "completed"
			if cancelled {
				state = "cancelled"
			}
			_, _ = r.p.Fprintf(r.w, "run %s with %d rows\n", state, rows)
		},
		OnError: func(msg string) {
			_, _ = fmt.Fprintf(r.w, "error: %s\n", strings.TrimSpace(msg))
		},
	}
}
