// Package report renders report tables and receipts as PDF and XLSX.  The
// JSON form of every report is the Table itself.
package report

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Table is a titled grid.  Cells hold strings, ints, decimals or times.
type Table struct {
	Title    string   `json:"title"`
	Subtitle string   `json:"subtitle,omitempty"`
	Headers  []string `json:"headers"`
	Rows     [][]any  `json:"rows"`
}

// AddRow appends one row.
func (t *Table) AddRow(cells ...any) { t.Rows = append(t.Rows, cells) }

// text formats a cell for PDF output.
func text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case decimal.Decimal:
		return x.StringFixed(2)
	case time.Time:
		return x.Format("02 Jan 15:04")
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}

// value converts a cell for a spreadsheet, keeping numbers numeric.
func value(v any) any {
	switch x := v.(type) {
	case decimal.Decimal:
		return x.InexactFloat64()
	case time.Time:
		return x.UTC()
	}
	return v
}
