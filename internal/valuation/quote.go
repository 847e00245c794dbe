package valuation

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Quote is the canonical valuation result for one identifier.
type Quote struct {
	Symbol         string
	Name           string
	CurrentPrice   *decimal.Decimal
	EstimatedPrice *decimal.Decimal
	PEG            *decimal.Decimal

	// Err is the per-identifier error reported by the backend, if any.
	Err string

	// Raw is the untouched valuation object as returned by the backend.
	Raw json.RawMessage
}

// HasValues reports whether at least one numeric field was resolved.
func (q Quote) HasValues() bool {
	return q.CurrentPrice != nil || q.EstimatedPrice != nil || q.PEG != nil
}

// Resolved reports whether the quote describes the identifier at all: no
// backend error and either a name or a value.
func (q Quote) Resolved() bool {
	return q.Err == "" && (q.Name != "" || q.HasValues())
}

// Key returns the normalized lookup key of the quote symbol.
func (q Quote) Key() string {
	return NormalizeSymbol(q.Symbol)
}

// NormalizeSymbol returns the canonical form of an identifier used to match
// requested identifiers with returned ones.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Field-name variants observed across backend versions.
//
//nolint:gochecknoglobals // Lookup tables.
var (
	symbolKeys    = []string{"symbol", "ticker", "code", "stock_code", "stockCode", "identifier"}
	nameKeys      = []string{"name", "company_name", "companyName", "stock_name", "stockName", "corp_name"}
	currentKeys   = []string{"current_price", "currentPrice", "price", "close", "last_price"}
	estimatedKeys = []string{"estimated_price", "estimatedPrice", "fair_value", "fairValue", "intrinsic_value", "target_price"}
	pegKeys       = []string{"peg", "PEG", "peg_ratio", "pegRatio"}
	gradeKeys     = []string{"grade", "rating", "evaluation", "rank"}
	envelopeKeys  = []string{"data", "results", "items", "result"}
	detailKeys    = []string{"detail", "details", "metrics"}
)
