// Package metrics counts bulk query activity with Prometheus collectors.
//
// finboard is a short-lived CLI, so nothing is served over HTTP. The
// collected values can be dumped in the text exposition format for the node
// exporter textfile collector.
package metrics

import (
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "finboard"
	subsystem = "bulk"

	// Labels
	rowStatusLabel  = "status"
	runOutcomeLabel = "outcome"

	// Row statuses
	rowStatusOK     = "ok"
	rowStatusFailed = "failed"
)

// Recorder holds the bulk collectors on a private registry.
type Recorder struct {
	registry *prometheus.Registry

	batches prometheus.Counter
	rows    *prometheus.CounterVec
	runs    *prometheus.CounterVec
}

// NewRecorder creates and registers the collectors.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "batches_total",
			Help:      "number of processed batches",
		}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "rows_total",
			Help:      "number of result rows by status",
		}, []string{rowStatusLabel}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "runs_total",
			Help:      "number of finished bulk runs by outcome",
		}, []string{runOutcomeLabel}),
	}
	r.registry.MustRegister(r.batches, r.rows, r.runs)
	return r
}

// BatchProcessed counts one processed batch.
func (r *Recorder) BatchProcessed() {
	r.batches.Inc()
}

// RowsRecorded counts rows by status.
func (r *Recorder) RowsRecorded(ok, failed int) {
	r.rows.With(prometheus.Labels{rowStatusLabel: rowStatusOK}).Add(float64(ok))
	r.rows.With(prometheus.Labels{rowStatusLabel: rowStatusFailed}).Add(float64(failed))
}

// RunFinished counts a finished run.
func (r *Recorder) RunFinished(outcome string) {
	r.runs.With(prometheus.Labels{runOutcomeLabel: outcome}).Inc()
}

// WriteTextfile writes all collected metrics to path in the text exposition
// format. The file is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}

// Summary returns the counters as label → value pairs, for logging.
func (r *Recorder) Summary() (map[string]string, error) {
	families, err := r.registry.Gather()
	if err != nil {
		return nil, fmt.Errorf("gathering metrics: %w", err)
	}
	out := make(map[string]string)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			key := mf.GetName()
			for _, lp := range m.GetLabel() {
				key += "{" + lp.GetName() + "=" + lp.GetValue() + "}"
			}
			out[key] = strconv.FormatFloat(m.GetCounter().GetValue(), 'f', -1, 64)
		}
	}
	return out, nil
}
