package models

import (
	"strings"
	"time"
)

// VehicleKind identifies the vehicle a direct order targets.
type VehicleKind string

const (
	VehicleTractora     VehicleKind = "TRACTORA"
	VehicleSemiremolque VehicleKind = "SEMIREMOLQUE"
)

// IsValid reports whether the vehicle kind is recognized.
func (k VehicleKind) IsValid() bool {
	switch k {
	case VehicleTractora, VehicleSemiremolque:
		return true
	}
	return false
}

// OrderModule is one work item inside a direct order.
type OrderModule struct {
	ID       string `db:"id" json:"id"`
	OrderID  string `db:"order_id" json:"-"`
	Title    string `db:"title" json:"title"`
	Notes    string `db:"notes" json:"notes,omitempty"`
	Position int    `db:"position" json:"-"`
}

// Empty reports whether the module carries neither a title nor notes.
func (m OrderModule) Empty() bool {
	return strings.TrimSpace(m.Title) == "" && strings.TrimSpace(m.Notes) == ""
}

// DirectOrderRecord is a workshop-issued inspection task that bypasses the
// worker self-report flow. Immutable after creation except for the review
// fields.
type DirectOrderRecord struct {
	ID          string        `db:"id" json:"id"`
	TruckPlate  string        `db:"truck_plate" json:"truck_plate"`
	VehicleKind VehicleKind   `db:"vehicle_kind" json:"vehicle_kind"`
	CreatedBy   string        `db:"created_by" json:"created_by"`
	CreatedByID string        `db:"created_by_id" json:"created_by_id"`
	CompanyID   string        `db:"company_id" json:"company_id"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
	Modules     []OrderModule `db:"-" json:"modules"`
	ReviewState
}

// Resolved reports whether the order has been signed off. Unlike
// inspections there is no auto-archived state: only Reviewed resolves.
func (r *DirectOrderRecord) Resolved() bool {
	return r.Status == ReviewReviewed
}

// DirectOrderFilter captures list criteria for direct orders.
type DirectOrderFilter struct {
	CompanyID   string
	Plate       string
	OnlyPending bool
	DateFrom    *time.Time
	DateTo      *time.Time
	Limit       int
	Offset      int
}
