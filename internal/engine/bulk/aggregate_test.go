package bulk_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/finboard/internal/engine/bulk"
	"github.com/rshade/finboard/internal/valuation"
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func quote(symbol, name, price string) valuation.Quote {
	return valuation.Quote{
		Symbol:       symbol,
		Name:         name,
		CurrentPrice: dec(price),
		Raw:          json.RawMessage(`{"symbol":"` + symbol + `"}`),
	}
}

func TestAggregate_MatchesBySymbolInRequestOrder(t *testing.T) {
	ids := []string{"aaa", "BBB", "CCC"}
	res := bulk.LookupResult{
		// reordered and with different casing
		Quotes: []valuation.Quote{quote("CCC", "Gamma", "3"), quote("AAA", "Alpha", "1"), quote("BBB", "Beta", "2")},
		Grades: map[string]string{"AAA": "S", "BBB": "b"},
	}

	rows := bulk.Aggregate(ids, res, nil)
	require.Len(t, rows, 3)

	assert.Equal(t, "AAA", rows[0].Identifier, "echoed identifier preferred")
	assert.Equal(t, "Alpha", rows[0].DisplayName)
	assert.Equal(t, bulk.GradeS, rows[0].Grade)
	assert.Equal(t, bulk.Tier1, rows[0].Tier)

	assert.Equal(t, "Beta", rows[1].DisplayName)
	assert.Equal(t, bulk.Tier2, rows[1].Tier)

	assert.Equal(t, "Gamma", rows[2].DisplayName)
	assert.Equal(t, bulk.GradeNone, rows[2].Grade)
	assert.Equal(t, bulk.TierNone, rows[2].Tier)
	assert.True(t, rows[2].CurrentValue.Equal(decimal.NewFromInt(3)))
}

func TestAggregate_PositionalFallback(t *testing.T) {
	ids := []string{"AAA", "BBB"}
	res := bulk.LookupResult{
		Quotes: []valuation.Quote{quote("", "Alpha", "1"), quote("BBB", "Beta", "2")},
	}

	rows := bulk.Aggregate(ids, res, nil)
	require.Len(t, rows, 2)
	assert.Equal(t, "AAA", rows[0].Identifier, "submitted identifier used when none echoed")
	assert.Equal(t, "Alpha", rows[0].DisplayName)
	assert.False(t, rows[0].Failed())
	assert.Equal(t, "Beta", rows[1].DisplayName)
}

func TestAggregate_MissingQuoteFails(t *testing.T) {
	ids := []string{"AAA", "ZZZ"}
	res := bulk.LookupResult{
		Quotes: []valuation.Quote{quote("AAA", "Alpha", "1")},
		Grades: map[string]string{"ZZZ": "C"},
	}

	rows := bulk.Aggregate(ids, res, nil)
	require.Len(t, rows, 2)
	assert.False(t, rows[0].Failed())
	assert.Equal(t, bulk.FailureNoData, rows[1].FailureReason)
	assert.Nil(t, rows[1].CurrentValue)
	assert.Equal(t, bulk.GradeC, rows[1].Grade, "grade attached to failed row")
}

func TestAggregate_DuplicateIdentifiers(t *testing.T) {
	ids := []string{"AAA", "AAA"}
	res := bulk.LookupResult{Quotes: []valuation.Quote{quote("AAA", "Alpha", "1")}}

	rows := bulk.Aggregate(ids, res, nil)
	require.Len(t, rows, 2)
	assert.Equal(t, "Alpha", rows[0].DisplayName)
	assert.Equal(t, "Alpha", rows[1].DisplayName)
}

func TestAggregate_ValuationFailureKeepsGrades(t *testing.T) {
	ids := []string{"AAA", "BBB"}
	res := bulk.LookupResult{
		QuotesErr: errors.New("backend unavailable"),
		Grades:    map[string]string{"AAA": "A"},
	}

	rows := bulk.Aggregate(ids, res, nil)
	require.Len(t, rows, 2)
	for _, r := range rows {
		assert.Equal(t, "backend unavailable", r.FailureReason)
		assert.Empty(t, r.DisplayName)
		assert.Nil(t, r.CurrentValue)
		assert.Nil(t, r.EstimatedValue)
		assert.Nil(t, r.SecondaryMetric)
		assert.Nil(t, r.RawPayload)
	}
	assert.Equal(t, bulk.GradeA, rows[0].Grade)
	assert.Equal(t, bulk.GradeNone, rows[1].Grade)
}

func TestAggregate_GradeIndependence(t *testing.T) {
	ids := []string{"AAA", "BBB"}
	res := bulk.LookupResult{
		Quotes:    []valuation.Quote{quote("AAA", "Alpha", "1"), quote("BBB", "Beta", "2")},
		Grades:    map[string]string{"AAA": "S"},
		GradesErr: errors.New("evaluation down"),
	}

	rows := bulk.Aggregate(ids, res, nil)
	require.Len(t, rows, 2)
	for _, r := range rows {
		assert.False(t, r.Failed())
		assert.NotNil(t, r.CurrentValue)
		assert.Equal(t, bulk.GradeNone, r.Grade)
		assert.Equal(t, bulk.TierNone, r.Tier)
	}
}

func TestAggregate_PerIdentifierErrors(t *testing.T) {
	body := json.RawMessage(`[
		{"symbol":"AAPL","name":"Apple","current_price":187.2},
		{"symbol":"ZZZZ","error":"symbol not found"},
		{"symbol":"QQQQ"}
	]`)
	quotes, err := valuation.NormalizeQuotes(body)
	require.NoError(t, err)

	rows := bulk.Aggregate([]string{"AAPL", "ZZZZ", "QQQQ"}, bulk.LookupResult{
		Quotes: quotes,
		Grades: map[string]string{"ZZZZ": "A"},
	}, nil)
	require.Len(t, rows, 3)

	assert.False(t, rows[0].Failed())
	assert.Equal(t, "Apple", rows[0].DisplayName)

	assert.True(t, rows[1].Failed())
	assert.Equal(t, "symbol not found", rows[1].FailureReason)
	assert.Equal(t, "ZZZZ", rows[1].Identifier)
	assert.Nil(t, rows[1].CurrentValue)
	assert.Equal(t, bulk.GradeA, rows[1].Grade, "grades are attached to failed rows")

	assert.True(t, rows[2].Failed(), "an echo with no name and no values is not a result")
	assert.Equal(t, bulk.FailureNoData, rows[2].FailureReason)
}
