package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// Dataset defines tabular export content. Rows map header name to cell
// value; missing keys render as empty cells so sparse rows stay aligned.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

// CSVExporter renders a Dataset into CSV bytes.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render encodes the dataset as CSV, header row first.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("csv requires at least one header")
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	records := make([][]string, 0, len(data.Rows)+1)
	records = append(records, data.Headers)
	for _, row := range data.Rows {
		cells := make([]string, len(data.Headers))
		for i, h := range data.Headers {
			cells[i] = row[h]
		}
		records = append(records, cells)
	}

	if err := w.WriteAll(records); err != nil {
		return nil, fmt.Errorf("encode csv: %w", err)
	}
	return buf.Bytes(), nil
}
