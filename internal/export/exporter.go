package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/rshade/finboard/internal/engine/bulk"
)

// DefaultSheetName is the name of the single result sheet.
const DefaultSheetName = "bulk"

// numFmtTwoDecimals is the built-in "0.00" number format.
const numFmtTwoDecimals = 2

// Column layout.
//
//nolint:gochecknoglobals // Fixed layout tables.
var (
	headers      = []string{"No", "Name", "Symbol", "Current Price", "Estimated Price", "PEG", "Raw"}
	columnWidths = []float64{6, 28, 12, 14, 16, 10, 80}
)

// ErrInvalidColor is returned for fill colors that are not #RRGGBB.
var ErrInvalidColor = errors.New("invalid fill color")

var hexColor = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`) //nolint:gochecknoglobals // Compiled once.

// DefaultTierColors returns the fills of the three display tiers.
func DefaultTierColors() map[bulk.Tier]string {
	return map[bulk.Tier]string{
		bulk.Tier1: "#C6EFCE",
		bulk.Tier2: "#FFEB9C",
		bulk.Tier3: "#FFC7CE",
	}
}

// Exporter renders result rows into an XLSX workbook.
type Exporter struct {
	sheet  string
	colors map[bulk.Tier]string
}

// Option customizes an Exporter.
type Option func(*Exporter)

// WithSheetName overrides the sheet name.
func WithSheetName(name string) Option {
	return func(e *Exporter) {
		if name != "" {
			e.sheet = name
		}
	}
}

// WithTierColors overrides tier fills. Tiers missing from colors keep their
// default; TierNone is never filled.
func WithTierColors(colors map[bulk.Tier]string) Option {
	return func(e *Exporter) {
		for tier, c := range colors {
			if tier != bulk.TierNone {
				e.colors[tier] = c
			}
		}
	}
}

// New creates an exporter.
func New(opts ...Option) (*Exporter, error) {
	e := &Exporter{
		sheet:  DefaultSheetName,
		colors: DefaultTierColors(),
	}
	for _, opt := range opts {
		opt(e)
	}
	for tier, c := range e.colors {
		if !hexColor.MatchString(c) {
			return nil, fmt.Errorf("%w: %s = %q", ErrInvalidColor, tier, c)
		}
	}
	return e, nil
}

// ValidColor reports whether c is a #RRGGBB color.
func ValidColor(c string) bool {
	return hexColor.MatchString(c)
}

// Filename returns the timestamped name of an export created at now.
func (e *Exporter) Filename(now time.Time) string {
	return Filename(now)
}

// Filename returns bulk_<YYYY-MM-DD>T<HHMMSS>.xlsx for now.
func Filename(now time.Time) string {
	return "bulk_" + now.Format("2006-01-02T150405") + ".xlsx"
}

type rowStyles struct {
	text   int
	number int
}

// Render builds the workbook for rows and returns its bytes. Any failure,
// including a raw payload that is not valid JSON, returns an error and no
// data.
func (e *Exporter) Render(rows []bulk.ResultRow) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", e.sheet); err != nil {
		return nil, fmt.Errorf("naming sheet: %w", err)
	}

	if err := e.writeHeader(f); err != nil {
		return nil, err
	}

	styles, err := e.rowStyles(f)
	if err != nil {
		return nil, err
	}

	for i, row := range rows {
		if err := e.writeRow(f, i, row, styles[row.Tier]); err != nil {
			return nil, fmt.Errorf("row %d (%s): %w", i+1, row.Identifier, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serializing workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *Exporter) writeHeader(f *excelize.File) error {
	style, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}

	for col, h := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(e.sheet, cell, h); err != nil {
			return fmt.Errorf("writing header %s: %w", h, err)
		}

		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(e.sheet, name, name, columnWidths[col]); err != nil {
			return fmt.Errorf("setting width of %s: %w", name, err)
		}
	}

	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(e.sheet, "A1", last, style); err != nil {
		return fmt.Errorf("styling header: %w", err)
	}
	return nil
}

func (e *Exporter) rowStyles(f *excelize.File) (map[bulk.Tier]rowStyles, error) {
	styles := make(map[bulk.Tier]rowStyles, len(e.colors)+1)

	number, err := f.NewStyle(&excelize.Style{NumFmt: numFmtTwoDecimals})
	if err != nil {
		return nil, fmt.Errorf("creating number style: %w", err)
	}
	styles[bulk.TierNone] = rowStyles{number: number}

	for tier, color := range e.colors {
		fill := excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{color}}

		text, err := f.NewStyle(&excelize.Style{Fill: fill})
		if err != nil {
			return nil, fmt.Errorf("creating %s style: %w", tier, err)
		}
		num, err := f.NewStyle(&excelize.Style{Fill: fill, NumFmt: numFmtTwoDecimals})
		if err != nil {
			return nil, fmt.Errorf("creating %s number style: %w", tier, err)
		}
		styles[tier] = rowStyles{text: text, number: num}
	}
	return styles, nil
}

func (e *Exporter) writeRow(f *excelize.File, index int, row bulk.ResultRow, styles rowStyles) error {
	raw, err := rawCell(row)
	if err != nil {
		return err
	}

	values := []any{
		index + 1,
		row.DisplayName,
		row.Identifier,
		number(row.CurrentValue),
		number(row.EstimatedValue),
		number(row.SecondaryMetric),
		raw,
	}

	excelRow := index + 2
	for col, v := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, excelRow)
		if err != nil {
			return err
		}
		if v != nil {
			if err := f.SetCellValue(e.sheet, cell, v); err != nil {
				return err
			}
		}

		style := styles.text
		if col >= 3 && col <= 5 {
			style = styles.number
		}
		if style != 0 {
			if err := f.SetCellStyle(e.sheet, cell, cell, style); err != nil {
				return err
			}
		}
	}
	return nil
}

// rawCell returns the compact JSON payload of row. Failed rows carry their
// failure reason instead.
func rawCell(row bulk.ResultRow) (any, error) {
	if row.Failed() {
		return "error: " + row.FailureReason, nil
	}
	if len(bytes.TrimSpace(row.RawPayload)) == 0 {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, row.RawPayload); err != nil {
		return nil, fmt.Errorf("serializing raw payload: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func number(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.InexactFloat64()
}
