package bulk

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/rshade/finboard/internal/valuation"
)

// ValuationLookup fetches valuation data for a batch of identifiers.
type ValuationLookup interface {
	LookupValuations(ctx context.Context, ids []string) ([]valuation.Quote, error)
}

// EvaluationLookup fetches grades for a batch of identifiers. The returned
// map is keyed by normalized identifier and may be partial.
type EvaluationLookup interface {
	LookupGrades(ctx context.Context, ids []string) (map[string]string, error)
}

// LookupResult holds the outcome of both lookups for one batch.
type LookupResult struct {
	Quotes    []valuation.Quote
	QuotesErr error
	Grades    map[string]string
	GradesErr error
}

// Lookup runs the valuation and evaluation lookups for ids concurrently.
// Each failure is recorded in the result; neither cancels the other. A nil
// evaluation lookup leaves every grade empty.
func Lookup(ctx context.Context, ids []string, val ValuationLookup, eval EvaluationLookup) LookupResult {
	var res LookupResult
	var g errgroup.Group

	g.Go(func() error {
		res.Quotes, res.QuotesErr = val.LookupValuations(ctx, ids)
		return nil
	})
	if eval != nil {
		g.Go(func() error {
			res.Grades, res.GradesErr = eval.LookupGrades(ctx, ids)
			return nil
		})
	}
	_ = g.Wait()

	return res
}

// Aggregate merges the lookups of one batch into exactly one row per
// requested identifier, in request order.
//
// Quotes are matched to identifiers by their echoed symbol, compared
// case-insensitively. Quotes without a usable symbol fall back to the
// identifier at the same position. Identifiers left without a quote, or
// whose quote carries neither a name nor a value, fail with FailureNoData; a
// per-identifier backend error becomes the failure reason. A valuation error fails every row of the batch; grades
// are attached regardless.
func Aggregate(ids []string, res LookupResult, mapping TierMapping) []ResultRow {
	rows := make([]ResultRow, len(ids))

	grades := res.Grades
	if res.GradesErr != nil {
		grades = nil
	}

	var matched []*valuation.Quote
	if res.QuotesErr == nil {
		matched = matchQuotes(ids, res.Quotes)
	}

	for i, id := range ids {
		row := ResultRow{Identifier: id}

		switch {
		case res.QuotesErr != nil:
			row.FailureReason = res.QuotesErr.Error()
		case matched[i] == nil:
			row.FailureReason = FailureNoData
		default:
			q := matched[i]
			if q.Symbol != "" {
				row.Identifier = q.Symbol
			}
			row.DisplayName = q.Name
			row.CurrentValue = q.CurrentPrice
			row.EstimatedValue = q.EstimatedPrice
			row.SecondaryMetric = q.PEG
			row.RawPayload = q.Raw
			switch {
			case q.Err != "":
				row = ResultRow{Identifier: row.Identifier, FailureReason: q.Err}
			case !q.Resolved():
				row = ResultRow{Identifier: row.Identifier, FailureReason: FailureNoData}
			}
		}

		row.Grade = gradeFor(grades, id, row.Identifier)
		row.Tier = Classify(row.Grade, mapping)
		rows[i] = row
	}

	return rows
}

func matchQuotes(ids []string, quotes []valuation.Quote) []*valuation.Quote {
	matched := make([]*valuation.Quote, len(ids))

	requested := make(map[string]bool, len(ids))
	for _, id := range ids {
		requested[valuation.NormalizeSymbol(id)] = true
	}

	byKey := make(map[string]*valuation.Quote, len(quotes))
	for i := range quotes {
		key := quotes[i].Key()
		if !requested[key] {
			continue
		}
		if _, dup := byKey[key]; !dup {
			byKey[key] = &quotes[i]
		}
	}

	for i, id := range ids {
		if q, ok := byKey[valuation.NormalizeSymbol(id)]; ok {
			matched[i] = q
		}
	}

	// Positional fallback for quotes whose symbol is missing or unknown.
	for i := range matched {
		if matched[i] != nil || i >= len(quotes) {
			continue
		}
		if !requested[quotes[i].Key()] {
			matched[i] = &quotes[i]
		}
	}

	return matched
}

func gradeFor(grades map[string]string, keys ...string) Grade {
	for _, k := range keys {
		if raw, ok := grades[valuation.NormalizeSymbol(k)]; ok {
			if g := ParseGrade(raw); g != GradeNone {
				return g
			}
		}
	}
	return GradeNone
}
