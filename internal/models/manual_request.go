package models

import "time"

// ManualInspectionRequest is a reminder dispatched to one worker to
// perform an inspection. The server keeps at most one active
// (non-fulfilled) request per worker.
type ManualInspectionRequest struct {
	ID            string     `db:"id" json:"request_id"`
	TargetUserID  string     `db:"target_user_id" json:"target_user_id"`
	RequestedBy   string     `db:"requested_by" json:"requested_by"`
	RequestedByID string     `db:"requested_by_id" json:"requested_by_id"`
	CompanyID     string     `db:"company_id" json:"company_id"`
	Message       string     `db:"message" json:"message,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	FulfilledAt   *time.Time `db:"fulfilled_at" json:"fulfilled_at,omitempty"`
}

// Active reports whether the request still awaits an inspection.
func (r *ManualInspectionRequest) Active() bool {
	return r.FulfilledAt == nil
}

// DispatchResult summarises a batch dispatch. Skipped counts users who
// already had an active request; callers must treat both numbers as
// informational, never as a dedup prediction.
type DispatchResult struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}
