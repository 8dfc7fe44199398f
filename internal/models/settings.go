package models

import "time"

// AutoInspectionSettings is the per-company singleton controlling whether
// workers are automatically required to inspect. Mutable only by roles
// with management capability.
type AutoInspectionSettings struct {
	CompanyID   string    `db:"company_id" json:"company_id"`
	Enabled     bool      `db:"enabled" json:"enabled"`
	UpdatedBy   string    `db:"updated_by" json:"updated_by"`
	UpdatedByID string    `db:"updated_by_id" json:"updated_by_id"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// CheckNeededResult answers whether a worker must inspect now, along with
// any manual requests pending for them.
type CheckNeededResult struct {
	Needed          bool                      `json:"needed"`
	PendingRequests []ManualInspectionRequest `json:"pending_requests"`
}
