package report

import (
	"bytes"

	"github.com/go-pdf/fpdf"

	"github.com/iliyamo/festival-boxoffice/internal/model"
)

const (
	pageWidth = 190.0 // A4 portrait less margins, mm
	rowHeight = 7.0
)

type document struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

func newDocument(orientation string) *document {
	pdf := fpdf.New(orientation, "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 10)
	pdf.AddPage()
	// Core fonts are cp1252; translate so "£" survives.
	return &document{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
}

func (d *document) heading(title, subtitle string) {
	d.pdf.SetFont("Helvetica", "B", 16)
	d.pdf.CellFormat(0, 10, d.tr(title), "", 1, "L", false, 0, "")
	if subtitle != "" {
		d.pdf.SetFont("Helvetica", "", 11)
		d.pdf.CellFormat(0, 7, d.tr(subtitle), "", 1, "L", false, 0, "")
	}
	d.pdf.Ln(3)
}

func (d *document) table(headers []string, rows [][]any, width float64) {
	if len(headers) == 0 {
		return
	}
	w := width / float64(len(headers))
	d.pdf.SetFont("Helvetica", "B", 10)
	d.pdf.SetFillColor(230, 230, 230)
	for _, h := range headers {
		d.pdf.CellFormat(w, rowHeight, d.tr(h), "1", 0, "C", true, 0, "")
	}
	d.pdf.Ln(-1)
	d.pdf.SetFont("Helvetica", "", 10)
	for _, row := range rows {
		for i := range headers {
			var cell any
			if i < len(row) {
				cell = row[i]
			}
			align := "L"
			if _, ok := cell.(string); !ok {
				align = "R"
			}
			d.pdf.CellFormat(w, rowHeight, d.tr(text(cell)), "1", 0, align, false, 0, "")
		}
		d.pdf.Ln(-1)
	}
}

func (d *document) bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// TablePDF renders one or more tables, each under its own heading.
func TablePDF(tables ...Table) ([]byte, error) {
	d := newDocument("L")
	for i, t := range tables {
		if i > 0 {
			d.pdf.Ln(6)
		}
		d.heading(t.Title, t.Subtitle)
		d.table(t.Headers, t.Rows, 277)
	}
	return d.bytes()
}

// ReceiptPDF renders a sale or refund receipt.
func ReceiptPDF(r model.Receipt) ([]byte, error) {
	d := newDocument("P")
	d.heading(r.Festival+" "+r.Kind+" receipt", r.Date.Format("02 Jan 2006 15:04")+"  "+r.Reference)
	if r.Customer != "" {
		d.pdf.SetFont("Helvetica", "", 11)
		d.pdf.CellFormat(0, 7, d.tr("Customer: "+r.Customer), "", 1, "L", false, 0, "")
		d.pdf.Ln(2)
	}
	rows := make([][]any, 0, len(r.Lines)+1)
	for _, l := range r.Lines {
		rows = append(rows, []any{l.Description, l.Quantity, "£" + l.Amount.StringFixed(2)})
	}
	rows = append(rows, []any{"Total", "", "£" + r.Total.StringFixed(2)})
	d.table([]string{"Item", "Quantity", "Amount"}, rows, pageWidth)
	if r.Method != "" {
		d.pdf.Ln(4)
		d.pdf.SetFont("Helvetica", "I", 10)
		d.pdf.CellFormat(0, 6, d.tr("Paid by "+r.Method), "", 1, "L", false, 0, "")
	}
	return d.bytes()
}
