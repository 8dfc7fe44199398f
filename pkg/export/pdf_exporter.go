package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// Landscape A4 printable width with the margins below.
const pdfTableWidth = 277.0

// PDFExporter renders a Dataset into a tabular PDF, landscape so wide
// history rows stay on one line.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render produces a PDF with an optional title row above the table.
func (e *PDFExporter) Render(data Dataset, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}

	doc := gofpdf.New("L", "mm", "A4", "")
	doc.SetMargins(10, 15, 10)
	doc.AddPage()

	if title != "" {
		doc.SetFont("Arial", "B", 14)
		doc.CellFormat(0, 10, strings.ToUpper(title), "", 1, "C", false, 0, "")
		doc.Ln(5)
	}

	colWidth := pdfTableWidth / float64(len(data.Headers))

	doc.SetFont("Arial", "B", 10)
	for _, h := range data.Headers {
		doc.CellFormat(colWidth, 8, h, "1", 0, "C", false, 0, "")
	}
	doc.Ln(-1)

	doc.SetFont("Arial", "", 9)
	for _, row := range data.Rows {
		for _, h := range data.Headers {
			doc.CellFormat(colWidth, 7, row[h], "1", 0, "", false, 0, "")
		}
		doc.Ln(-1)
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
