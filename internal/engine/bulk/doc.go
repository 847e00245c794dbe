// Package bulk runs bulk valuation queries.
//
// An identifier list is split into batches by the batch processor. For each
// batch the valuation and evaluation lookups run concurrently, their results
// are merged into one ResultRow per identifier and classified into a display
// tier by grade. When the run completes or is cancelled, the accumulated rows
// are rendered by an Exporter and handed to a Sink.
//
// Failures of individual lookups never abort a run. They surface as rows with
// a FailureReason (valuation) or without a grade (evaluation).
package bulk
