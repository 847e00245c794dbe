// Package batch provides rate-limited, cancellable processing of work items
// in fixed-size batches.
//
// Key features:
//   - Configurable batch size (default 30 items per batch)
//   - Strictly sequential batches with an inter-batch delay to respect
//     remote rate limits
//   - Cooperative cancellation through an explicit Token, checked at batch
//     boundaries and when a delay wakes up
//   - Progress callbacks after every batch for UI updates
//
// A failing batch never aborts the run: its error is recorded and the next
// batch is processed.
package batch
