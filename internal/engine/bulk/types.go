package bulk

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Run errors.
var (
	ErrNoInput       = errors.New("no identifiers to query")
	ErrExport        = errors.New("export failed")
	ErrRunInProgress = errors.New("a bulk query is already running")
	ErrNoValuation   = errors.New("valuation lookup is required")
)

// FailureNoData is the failure reason of an identifier the valuation lookup
// returned nothing for.
const FailureNoData = "no data returned"

// ResultRow is the merged outcome for one submitted identifier.
type ResultRow struct {
	Identifier      string
	DisplayName     string
	CurrentValue    *decimal.Decimal
	EstimatedValue  *decimal.Decimal
	SecondaryMetric *decimal.Decimal
	Grade           Grade
	Tier            Tier
	RawPayload      json.RawMessage

	// FailureReason is set only when the valuation lookup failed.
	FailureReason string
}

// Failed reports whether the valuation lookup failed for this row.
func (r ResultRow) Failed() bool {
	return r.FailureReason != ""
}

// RunState is a read-only snapshot of an in-flight run.
type RunState struct {
	RunID     string
	Processed int
	Total     int
	Label     string
	Cancelled bool
	Running   bool
}

// Callbacks receive run notifications. All fields are optional; panics are
// recovered so a callback can never abort a run.
type Callbacks struct {
	OnProgress func(processed, total int, label string)
	OnComplete func(rows int, cancelled bool)
	OnError    func(message string)
}

// Outcome summarizes a finished run.
type Outcome struct {
	RunID     string
	Rows      []ResultRow
	Total     int
	Failed    int
	Cancelled bool
	File      string
	Elapsed   time.Duration
}

// Message returns the user-facing completion text.
func (o Outcome) Message() string {
	if o.Cancelled {
		return fmt.Sprintf("%d rows exported after cancellation", len(o.Rows))
	}
	return fmt.Sprintf("%d rows exported on completion", len(o.Rows))
}

// ParseIdentifiers splits raw input on newlines and commas, trims every
// entry and drops blanks. Duplicates and order are preserved.
func ParseIdentifiers(inputs ...string) []string {
	var ids []string
	for _, input := range inputs {
		fields := strings.FieldsFunc(input, func(r rune) bool {
			return r == '\n' || r == '\r' || r == ','
		})
		for _, f := range fields {
			if id := strings.TrimSpace(f); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids
}
