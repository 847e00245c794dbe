package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Default batch processing configuration.
const (
	// DefaultBatchSize is the default number of items per batch.
	DefaultBatchSize = 30

	// MinBatchSize is the minimum allowed batch size.
	MinBatchSize = 1

	// MaxBatchSize is the maximum allowed batch size.
	MaxBatchSize = 1000

	// DefaultInterBatchDelay is the default pause between two batches.
	DefaultInterBatchDelay = 1500 * time.Millisecond
)

// Common batch processing errors.
var (
	ErrInvalidBatchSize = errors.New("batch size must be between 1 and 1000")
	ErrNegativeDelay    = errors.New("delay cannot be negative")
	ErrNilCallback      = errors.New("batch callback cannot be nil")
)

// BatchCallback is a function that processes a single batch of items.
// It receives the batch items and the batch index (0-based). A returned error
// is recorded against the batch; it does not stop the run.
//
//nolint:revive // BatchCallback is the canonical name for this exported type.
type BatchCallback[T any] func(ctx context.Context, batch []T, batchIndex int) error

// ProgressCallback is invoked after each batch completes, and before each
// batch starts when registered as a start callback.
type ProgressCallback func(progress ProgressSnapshot)

// BatchError records the failure of one batch.
//
//nolint:revive // BatchError is the canonical name for this exported type.
type BatchError struct {
	Index int
	Err   error
}

func (e BatchError) Error() string {
	return fmt.Sprintf("batch %d failed: %v", e.Index, e.Err)
}

func (e BatchError) Unwrap() error {
	return e.Err
}

// Result summarizes one Process call.
type Result struct {
	TotalBatches     int
	ProcessedBatches int
	ProcessedItems   int
	Cancelled        bool
	Errors           []BatchError
	Elapsed          time.Duration
}

// Processor splits work items into fixed-size batches and processes them
// strictly one after another, pausing between batches.
type Processor[T any] struct {
	// batchSize is the number of items per batch.
	batchSize int

	// interBatchDelay is the pause between two consecutive batches.
	interBatchDelay time.Duration

	// perItemDelay is the pacing a batch callback may apply between items.
	perItemDelay time.Duration

	// onProgress is invoked after every batch.
	onProgress ProgressCallback

	// onStart is invoked before every batch.
	onStart ProgressCallback

	logger zerolog.Logger
}

// NewProcessor creates a new batch processor with the given batch size.
func NewProcessor[T any](batchSize int) (*Processor[T], error) {
	if batchSize < MinBatchSize || batchSize > MaxBatchSize {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBatchSize, batchSize)
	}

	return &Processor[T]{
		batchSize:       batchSize,
		interBatchDelay: DefaultInterBatchDelay,
		logger:          zerolog.Nop(),
	}, nil
}

// WithInterBatchDelay sets the pause between batches.
func (p *Processor[T]) WithInterBatchDelay(d time.Duration) (*Processor[T], error) {
	if d < 0 {
		return nil, fmt.Errorf("%w: inter-batch delay %s", ErrNegativeDelay, d)
	}
	p.interBatchDelay = d
	return p, nil
}

// WithPerItemDelay sets the pacing returned by PerItemDelay and applied by
// PaceItem.
func (p *Processor[T]) WithPerItemDelay(d time.Duration) (*Processor[T], error) {
	if d < 0 {
		return nil, fmt.Errorf("%w: per-item delay %s", ErrNegativeDelay, d)
	}
	p.perItemDelay = d
	return p, nil
}

// WithProgressCallback sets a callback invoked after every batch.
func (p *Processor[T]) WithProgressCallback(callback ProgressCallback) *Processor[T] {
	p.onProgress = callback
	return p
}

// WithStartCallback sets a callback invoked before every batch starts.
func (p *Processor[T]) WithStartCallback(callback ProgressCallback) *Processor[T] {
	p.onStart = callback
	return p
}

// WithLogger sets the logger used for batch failures and recovered
// callback panics.
func (p *Processor[T]) WithLogger(logger zerolog.Logger) *Processor[T] {
	p.logger = logger
	return p
}

// Process runs callback for each batch of items in order.
//
// The token is checked before every batch and after every inter-batch delay.
// Once it is cancelled no further batch starts; the batch in flight always
// finishes. ctx is handed to the callback unchanged so that requests of the
// running batch are not aborted by a cancel request.
//
// An empty item list completes immediately with a zero Result.
func (p *Processor[T]) Process(
	ctx context.Context,
	token *Token,
	items []T,
	callback BatchCallback[T],
) (Result, error) {
	if callback == nil {
		return Result{}, ErrNilCallback
	}
	if token == nil {
		token = NewToken(ctx)
	}

	totalBatches := p.calculateTotalBatches(len(items))
	result := Result{TotalBatches: totalBatches}
	if totalBatches == 0 {
		return result, nil
	}

	progress := NewProgress(len(items), totalBatches, p.batchSize)

	for batchIndex, bounds := range p.CalculateBatches(len(items)) {
		if token.Cancelled() {
			result.Cancelled = true
			break
		}

		batch := items[bounds[0]:bounds[1]]
		progress.SetLabel(StartLabel(batchIndex, totalBatches))
		p.notify(p.onStart, progress)

		if err := callback(ctx, batch, batchIndex); err != nil {
			batchErr := BatchError{Index: batchIndex, Err: err}
			result.Errors = append(result.Errors, batchErr)
			p.logger.Warn().
				Err(err).
				Int("batch", batchIndex+1).
				Int("batches", totalBatches).
				Msg("batch failed, continuing with next batch")
		}

		progress.AddProcessed(len(batch), BatchLabel(batchIndex, totalBatches, len(batch)))
		result.ProcessedBatches++
		result.ProcessedItems += len(batch)
		p.notify(p.onProgress, progress)

		if batchIndex == totalBatches-1 {
			break
		}
		if !p.wait(token, p.interBatchDelay) {
			result.Cancelled = true
			break
		}
	}

	result.Elapsed = progress.ElapsedTime()
	return result, nil
}

// PerItemDelay returns the configured per-item pacing.
func (p *Processor[T]) PerItemDelay() time.Duration {
	return p.perItemDelay
}

// PaceItem sleeps for the per-item delay. It returns early with ctx.Err()
// when ctx is done. A cancelled token does not shorten the pause because the
// batch in flight is allowed to finish at its normal pace.
func (p *Processor[T]) PaceItem(ctx context.Context) error {
	if p.perItemDelay <= 0 {
		return nil
	}
	timer := time.NewTimer(p.perItemDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// GetBatchSize returns the configured batch size.
func (p *Processor[T]) GetBatchSize() int {
	return p.batchSize
}

// CalculateBatches returns the batch boundaries for the given items.
// Returns a slice of [start, end) index pairs.
func (p *Processor[T]) CalculateBatches(totalItems int) [][2]int {
	totalBatches := p.calculateTotalBatches(totalItems)
	batches := make([][2]int, totalBatches)

	for i := range totalBatches {
		start := i * p.batchSize
		end := start + p.batchSize
		if end > totalItems {
			end = totalItems
		}
		batches[i] = [2]int{start, end}
	}

	return batches
}

// Partition splits items into consecutive batches of size. The last batch
// may be shorter. Concatenating the result reproduces items.
func Partition[T any](items []T, size int) ([][]T, error) {
	p, err := NewProcessor[T](size)
	if err != nil {
		return nil, err
	}
	bounds := p.CalculateBatches(len(items))
	batches := make([][]T, len(bounds))
	for i, b := range bounds {
		batches[i] = items[b[0]:b[1]]
	}
	return batches, nil
}

// StartLabel is the progress label announced before a batch starts.
func StartLabel(batchIndex, totalBatches int) string {
	return fmt.Sprintf("starting batch %d/%d", batchIndex+1, totalBatches)
}

// BatchLabel is the progress label reported after a batch completes.
func BatchLabel(batchIndex, totalBatches, size int) string {
	return fmt.Sprintf("batch %d/%d (%d items)", batchIndex+1, totalBatches, size)
}

// calculateTotalBatches calculates the number of batches needed for the given item count.
func (p *Processor[T]) calculateTotalBatches(totalItems int) int {
	batches := totalItems / p.batchSize
	if totalItems%p.batchSize > 0 {
		batches++
	}
	return batches
}

// wait pauses for d. It returns false when the token is cancelled before or
// during the pause.
func (p *Processor[T]) wait(token *Token, d time.Duration) bool {
	if token.Cancelled() {
		return false
	}
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-token.Done():
		return false
	case <-timer.C:
		return !token.Cancelled()
	}
}

// notify invokes cb with a snapshot of progress. A panicking callback is
// logged and swallowed: observers must never abort a run.
func (p *Processor[T]) notify(cb ProgressCallback, progress *Progress) {
	if cb == nil {
		return
	}
	snap := progress.Snapshot()
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().
				Interface("panic", r).
				Str("label", snap.Label).
				Msg("progress callback panicked")
		}
	}()
	cb(snap)
}
