package batch

import (
	"sync"
	"time"
)

// ProgressSnapshot is an immutable view of a run's progress handed to
// callbacks. It is safe to retain after the callback returns.
type ProgressSnapshot struct {
	TotalItems       int
	ProcessedItems   int
	TotalBatches     int
	ProcessedBatches int
	BatchSize        int
	Label            string
	Elapsed          time.Duration
}

// Percent reports completion in the range [0, 100].
func (s ProgressSnapshot) Percent() float64 {
	if s.TotalItems <= 0 {
		return 0
	}
	return float64(s.ProcessedItems) / float64(s.TotalItems) * 100
}

// Done is true once every item has been accounted for.
func (s ProgressSnapshot) Done() bool {
	return s.TotalItems > 0 && s.ProcessedItems >= s.TotalItems
}

// Progress tracks a single run. The processor owns it; observers only ever
// see snapshots.
type Progress struct {
	mu      sync.Mutex
	state   ProgressSnapshot
	started time.Time
}

// NewProgress starts the clock for a run of totalItems split into
// totalBatches of at most batchSize.
func NewProgress(totalItems, totalBatches, batchSize int) *Progress {
	return &Progress{
		state: ProgressSnapshot{
			TotalItems:   totalItems,
			TotalBatches: totalBatches,
			BatchSize:    batchSize,
		},
		started: time.Now(),
	}
}

// SetLabel replaces the status line without counting anything.
func (p *Progress) SetLabel(label string) {
	p.mu.Lock()
	p.state.Label = label
	p.mu.Unlock()
}

// AddProcessed records one finished batch of n items. The item count never
// exceeds the total, so a miscounted final batch cannot push past 100%.
func (p *Progress) AddProcessed(n int, label string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.state.ProcessedItems = min(p.state.ProcessedItems+n, p.state.TotalItems)
	if p.state.ProcessedBatches < p.state.TotalBatches {
		p.state.ProcessedBatches++
	}
	p.state.Label = label
}

// ElapsedTime is the wall time since NewProgress.
func (p *Progress) ElapsedTime() time.Duration {
	return time.Since(p.started)
}

// Snapshot copies the current state.
func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.Lock()
	snap := p.state
	p.mu.Unlock()
	snap.Elapsed = time.Since(p.started)
	return snap
}
