package valuation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrUnexpectedShape is returned when a response is neither an object nor an
// array of objects.
var ErrUnexpectedShape = errors.New("unexpected response shape")

// NormalizeQuotes converts a valuation response into quotes. It accepts a
// single object, an array of objects, or either of those wrapped in a data
// envelope. A null or empty body yields no quotes.
func NormalizeQuotes(raw json.RawMessage) ([]Quote, error) {
	objects, err := splitObjects(raw)
	if err != nil {
		return nil, err
	}

	quotes := make([]Quote, 0, len(objects))
	for _, obj := range objects {
		q, qErr := quoteFromObject(obj)
		if qErr != nil {
			return nil, qErr
		}
		quotes = append(quotes, q)
	}
	return quotes, nil
}

// NormalizeGrades converts an evaluation response into a map from
// normalized identifier to grade string. Entries without an identifier or
// with an empty grade are skipped.
func NormalizeGrades(raw json.RawMessage) (map[string]string, error) {
	objects, err := splitObjects(raw)
	if err != nil {
		return nil, err
	}

	grades := make(map[string]string, len(objects))
	for _, obj := range objects {
		fields, fErr := decodeFields(obj)
		if fErr != nil {
			return nil, fErr
		}
		symbol := stringField(fields, symbolKeys)
		grade := strings.TrimSpace(stringField(fields, gradeKeys))
		if symbol == "" || grade == "" {
			continue
		}
		grades[NormalizeSymbol(symbol)] = grade
	}
	return grades, nil
}

// splitObjects unwraps envelopes and returns the raw JSON objects of the
// response.
func splitObjects(raw json.RawMessage) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	switch trimmed[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("decoding response array: %w", err)
		}
		objects := make([]json.RawMessage, 0, len(items))
		for _, item := range items {
			item = bytes.TrimSpace(item)
			if len(item) == 0 || bytes.Equal(item, []byte("null")) {
				continue
			}
			if item[0] != '{' {
				return nil, fmt.Errorf("%w: array element is not an object", ErrUnexpectedShape)
			}
			objects = append(objects, item)
		}
		return objects, nil
	case '{':
		fields, err := decodeFields(trimmed)
		if err != nil {
			return nil, err
		}
		if stringField(fields, symbolKeys) == "" {
			for _, key := range envelopeKeys {
				if inner, ok := fields[key]; ok && isContainer(inner) {
					return splitObjects(inner)
				}
			}
		}
		return []json.RawMessage{trimmed}, nil
	default:
		return nil, fmt.Errorf("%w: %.20s", ErrUnexpectedShape, string(trimmed))
	}
}

func isContainer(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && (trimmed[0] == '[' || trimmed[0] == '{')
}

func decodeFields(obj json.RawMessage) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(obj, &fields); err != nil {
		return nil, fmt.Errorf("decoding response object: %w", err)
	}
	return fields, nil
}

func quoteFromObject(obj json.RawMessage) (Quote, error) {
	fields, err := decodeFields(obj)
	if err != nil {
		return Quote{}, err
	}

	detail := map[string]json.RawMessage{}
	for _, key := range detailKeys {
		if raw, ok := fields[key]; ok && isContainer(raw) && bytes.TrimSpace(raw)[0] == '{' {
			if d, dErr := decodeFields(raw); dErr == nil {
				detail = d
				break
			}
		}
	}

	q := Quote{
		Symbol: stringField(fields, symbolKeys),
		Name:   stringField(fields, nameKeys),
		Raw:    append(json.RawMessage(nil), obj...),
	}
	if q.Symbol == "" {
		q.Symbol = stringField(detail, symbolKeys)
	}
	if q.Name == "" {
		q.Name = stringField(detail, nameKeys)
	}

	q.CurrentPrice = firstDecimal(fields, detail, currentKeys)
	q.EstimatedPrice = firstDecimal(fields, detail, estimatedKeys)
	q.PEG = firstDecimal(fields, detail, pegKeys)
	q.Err = errorText(fields)
	// A bare "message" only means failure when nothing else came back.
	if q.Err == "" && !q.HasValues() && q.Name == "" {
		q.Err = stringField(fields, []string{"message"})
	}
	return q, nil
}

// errorText reads a per-item error given as a string, as an object with a
// message, or as a bare true flag. Empty strings, false and null mean none.
func errorText(fields map[string]json.RawMessage) string {
	for _, key := range errorKeys {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
			continue
		}
		if inner, err := decodeFields(raw); err == nil {
			if s := stringField(inner, []string{"message", "detail", "reason"}); s != "" {
				return s
			}
			return "lookup failed"
		}
		var flag bool
		if err := json.Unmarshal(raw, &flag); err == nil && flag {
			return "lookup failed"
		}
	}
	return ""
}

func stringField(fields map[string]json.RawMessage, keys []string) string {
	for _, key := range keys {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
			continue
		}
		var n json.Number
		if err := json.Unmarshal(raw, &n); err == nil {
			return n.String()
		}
	}
	return ""
}

func firstDecimal(fields, detail map[string]json.RawMessage, keys []string) *decimal.Decimal {
	if d := decimalField(fields, keys); d != nil {
		return d
	}
	return decimalField(detail, keys)
}

// decimalField parses a JSON number or numeric string. Thousands separators
// and surrounding whitespace in strings are tolerated; anything else is
// treated as absent.
func decimalField(fields map[string]json.RawMessage, keys []string) *decimal.Decimal {
	for _, key := range keys {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		if d, ok := parseDecimal(raw); ok {
			return &d
		}
	}
	return nil
}

func parseDecimal(raw json.RawMessage) (decimal.Decimal, bool) {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		d, parseErr := decimal.NewFromString(n.String())
		return d, parseErr == nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return decimal.Decimal{}, false
	}
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(s)
	return d, err == nil
}
