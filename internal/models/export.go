package models

import "time"

// ExportFormat selects the rendered output for a history export.
type ExportFormat string

// Supported export formats.
const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// Valid reports whether the format is supported.
func (f ExportFormat) Valid() bool {
	return f == ExportFormatCSV || f == ExportFormatPDF
}

// ExportStatus tracks the lifecycle of a background export job.
type ExportStatus string

// Export job states.
const (
	ExportStatusQueued    ExportStatus = "QUEUED"
	ExportStatusRunning   ExportStatus = "RUNNING"
	ExportStatusCompleted ExportStatus = "COMPLETED"
	ExportStatusFailed    ExportStatus = "FAILED"
)

// ExportJob describes a requested history export and its outcome.
type ExportJob struct {
	ID           string        `json:"id"`
	CompanyID    string        `json:"company_id"`
	RequestedBy  string        `json:"requested_by"`
	Format       ExportFormat  `json:"format"`
	Filter       HistoryFilter `json:"filter"`
	Status       ExportStatus  `json:"status"`
	Error        string        `json:"error,omitempty"`
	RelativePath string        `json:"-"`
	DownloadURL  string        `json:"download_url,omitempty"`
	ExpiresAt    *time.Time    `json:"expires_at,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	CompletedAt  *time.Time    `json:"completed_at,omitempty"`
}
