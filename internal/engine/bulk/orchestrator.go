package bulk

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rshade/finboard/internal/engine/batch"
	"github.com/rshade/finboard/internal/logging"
)

// Run outcomes reported to the metrics recorder.
const (
	OutcomeCompleted = "completed"
	OutcomeCancelled = "cancelled"
	OutcomeFailed    = "failed"
	OutcomeRejected  = "rejected"
)

// Exporter renders rows into a file payload.
type Exporter interface {
	Render(rows []ResultRow) ([]byte, error)
	Filename(now time.Time) string
}

// Sink persists a rendered export.
type Sink interface {
	Save(name string, data []byte) error
}

// Recorder receives run metrics.
type Recorder interface {
	BatchProcessed()
	RowsRecorded(ok, failed int)
	RunFinished(outcome string)
}

// Options configures an Orchestrator.
type Options struct {
	BatchSize       int
	InterBatchDelay time.Duration
	PerItemDelay    time.Duration
	TierMapping     TierMapping

	Valuation  ValuationLookup
	Evaluation EvaluationLookup
	Exporter   Exporter
	Sink       Sink
	Metrics    Recorder

	Clock  func() time.Time
	Logger zerolog.Logger
}

// Orchestrator runs bulk queries one at a time.
type Orchestrator struct {
	opts Options
	busy atomic.Bool

	mu    sync.RWMutex
	state RunState
}

// NewOrchestrator validates opts and returns an orchestrator.
func NewOrchestrator(opts Options) (*Orchestrator, error) {
	if opts.Valuation == nil {
		return nil, ErrNoValuation
	}
	if opts.BatchSize == 0 {
		opts.BatchSize = batch.DefaultBatchSize
	}
	if opts.TierMapping == nil {
		opts.TierMapping = DefaultTierMapping()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	// Validate pacing up front so Run only fails on input.
	if _, err := newProcessor(opts); err != nil {
		return nil, err
	}

	return &Orchestrator{opts: opts}, nil
}

// Busy reports whether a run is in flight.
func (o *Orchestrator) Busy() bool {
	return o.busy.Load()
}

// State returns a snapshot of the current or last run.
func (o *Orchestrator) State() RunState {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// Run queries every identifier in items and exports the collected rows.
//
// Items are parsed with ParseIdentifiers. The run stops at the next batch
// boundary once token is cancelled and exports what it has. Only empty
// input, export failures and a concurrent run are reported as errors.
func (o *Orchestrator) Run(ctx context.Context, token *batch.Token, items []string, cb Callbacks) (Outcome, error) {
	if !o.busy.CompareAndSwap(false, true) {
		return Outcome{}, ErrRunInProgress
	}
	defer o.busy.Store(false)

	ids := ParseIdentifiers(items...)
	if len(ids) == 0 {
		notifier{cb: cb, logger: o.opts.Logger}.error(ErrNoInput.Error())
		o.recordRun(OutcomeRejected)
		return Outcome{}, ErrNoInput
	}
	if token == nil {
		token = batch.NewToken(ctx)
	}

	runID := logging.NewID()
	logger := o.opts.Logger.With().
		Str("component", "bulk").
		Str("run_id", runID).
		Logger()
	ctx = logger.WithContext(ctx)
	notify := notifier{cb: cb, logger: logger}

	o.setState(RunState{RunID: runID, Total: len(ids), Running: true})
	defer o.updateState(func(s *RunState) { s.Running = false })

	processor, err := newProcessor(o.opts)
	if err != nil {
		return Outcome{}, err
	}
	processor = processor.
		WithLogger(logger).
		WithStartCallback(func(p batch.ProgressSnapshot) {
			o.updateState(func(s *RunState) { s.Label = p.Label })
			notify.progress(p.ProcessedItems, p.TotalItems, p.Label)
		}).
		WithProgressCallback(func(p batch.ProgressSnapshot) {
			o.updateState(func(s *RunState) {
				s.Processed = p.ProcessedItems
				s.Label = p.Label
			})
			notify.progress(p.ProcessedItems, p.TotalItems, p.Label)
		})

	logger.Info().Int("items", len(ids)).Int("batch_size", o.opts.BatchSize).Msg("bulk run started")

	rows := make([]ResultRow, 0, len(ids))
	failed := 0
	result, err := processor.Process(ctx, token, ids, func(ctx context.Context, chunk []string, index int) error {
		batchRows, batchErr := o.queryBatch(ctx, processor, chunk)
		rows = append(rows, batchRows...)

		batchFailed := 0
		for _, r := range batchRows {
			if r.Failed() {
				batchFailed++
			}
		}
		failed += batchFailed
		o.recordBatch(len(batchRows)-batchFailed, batchFailed)

		logger.Debug().
			Int("batch", index+1).
			Int("rows", len(batchRows)).
			Int("failed", batchFailed).
			Msg("batch aggregated")
		return batchErr
	})
	if err != nil {
		notify.error(err.Error())
		o.recordRun(OutcomeFailed)
		return Outcome{}, err
	}

	if result.Cancelled {
		o.updateState(func(s *RunState) { s.Cancelled = true })
	}

	outcome := Outcome{
		RunID:     runID,
		Rows:      rows,
		Total:     len(ids),
		Failed:    failed,
		Cancelled: result.Cancelled,
		Elapsed:   result.Elapsed,
	}

	file, err := o.export(rows)
	if err != nil {
		logger.Error().Err(err).Msg("bulk export failed")
		notify.error(err.Error())
		o.recordRun(OutcomeFailed)
		return outcome, err
	}
	outcome.File = file

	logger.Info().
		Int("rows", len(rows)).
		Int("failed", failed).
		Bool("cancelled", outcome.Cancelled).
		Str("file", file).
		Dur("elapsed", outcome.Elapsed).
		Msg("bulk run finished")

	if outcome.Cancelled {
		o.recordRun(OutcomeCancelled)
	} else {
		o.recordRun(OutcomeCompleted)
	}
	notify.complete(len(rows), outcome.Cancelled)
	return outcome, nil
}

// queryBatch runs both lookups for one batch. The returned error is the
// valuation failure, if any, and is only recorded by the processor.
func (o *Orchestrator) queryBatch(ctx context.Context, p *batch.Processor[string], ids []string) ([]ResultRow, error) {
	if p.PerItemDelay() <= 0 {
		res := Lookup(ctx, ids, o.opts.Valuation, o.opts.Evaluation)
		return Aggregate(ids, res, o.opts.TierMapping), res.QuotesErr
	}

	// Paced mode: one valuation call per identifier, grades still in bulk.
	perItem := make([]LookupResult, len(ids))
	var grades map[string]string
	var gradesErr error

	var g errgroup.Group
	g.Go(func() error {
		for i, id := range ids {
			if i > 0 {
				if err := p.PaceItem(ctx); err != nil {
					for j := i; j < len(ids); j++ {
						perItem[j].QuotesErr = err
					}
					return nil
				}
			}
			perItem[i].Quotes, perItem[i].QuotesErr = o.opts.Valuation.LookupValuations(ctx, []string{id})
		}
		return nil
	})
	if o.opts.Evaluation != nil {
		g.Go(func() error {
			grades, gradesErr = o.opts.Evaluation.LookupGrades(ctx, ids)
			return nil
		})
	}
	_ = g.Wait()

	rows := make([]ResultRow, 0, len(ids))
	var firstErr error
	for i, id := range ids {
		res := perItem[i]
		res.Grades, res.GradesErr = grades, gradesErr
		if res.QuotesErr != nil && firstErr == nil {
			firstErr = res.QuotesErr
		}
		rows = append(rows, Aggregate([]string{id}, res, o.opts.TierMapping)...)
	}
	return rows, firstErr
}

func (o *Orchestrator) export(rows []ResultRow) (string, error) {
	if o.opts.Exporter == nil {
		return "", nil
	}
	data, err := o.opts.Exporter.Render(rows)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrExport, err)
	}
	name := o.opts.Exporter.Filename(o.opts.Clock())
	if o.opts.Sink == nil {
		return "", nil
	}
	if err := o.opts.Sink.Save(name, data); err != nil {
		return "", fmt.Errorf("%w: saving %s: %w", ErrExport, name, err)
	}
	return name, nil
}

func (o *Orchestrator) setState(s RunState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = s
}

func (o *Orchestrator) updateState(fn func(*RunState)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fn(&o.state)
}

func (o *Orchestrator) recordBatch(ok, failed int) {
	if o.opts.Metrics == nil {
		return
	}
	o.opts.Metrics.BatchProcessed()
	o.opts.Metrics.RowsRecorded(ok, failed)
}

func (o *Orchestrator) recordRun(outcome string) {
	if o.opts.Metrics != nil {
		o.opts.Metrics.RunFinished(outcome)
	}
}

func newProcessor(opts Options) (*batch.Processor[string], error) {
	p, err := batch.NewProcessor[string](opts.BatchSize)
	if err != nil {
		return nil, err
	}
	if p, err = p.WithInterBatchDelay(opts.InterBatchDelay); err != nil {
		return nil, err
	}
	return p.WithPerItemDelay(opts.PerItemDelay)
}

// notifier delivers Callbacks for one run. A panicking callback is logged
// with the run's logger and otherwise ignored.
type notifier struct {
	cb     Callbacks
	logger zerolog.Logger
}

func (n notifier) progress(processed, total int, label string) {
	if n.cb.OnProgress == nil {
		return
	}
	defer n.recoverPanic("progress")
	n.cb.OnProgress(processed, total, label)
}

func (n notifier) complete(rows int, cancelled bool) {
	if n.cb.OnComplete == nil {
		return
	}
	defer n.recoverPanic("complete")
	n.cb.OnComplete(rows, cancelled)
}

func (n notifier) error(message string) {
	if n.cb.OnError == nil {
		return
	}
	defer n.recoverPanic("error")
	n.cb.OnError(message)
}

func (n notifier) recoverPanic(name string) {
	if r := recover(); r != nil {
		n.logger.Warn().
			Str("callback", name).
			Interface("panic", r).
			Msg("run callback panicked (ignored)")
	}
}
