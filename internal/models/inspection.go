package models

import (
	"strings"
	"time"
)

// ComponentKind identifies one inspected truck subsystem.
type ComponentKind string

const (
	ComponentTires         ComponentKind = "TIRES"
	ComponentBrakes        ComponentKind = "BRAKES"
	ComponentLights        ComponentKind = "LIGHTS"
	ComponentFluids        ComponentKind = "FLUIDS"
	ComponentDocumentation ComponentKind = "DOCUMENTATION"
	ComponentBody          ComponentKind = "BODY"
)

// ComponentKinds returns the fixed inspection checklist in display order.
func ComponentKinds() []ComponentKind {
	return []ComponentKind{
		ComponentTires,
		ComponentBrakes,
		ComponentLights,
		ComponentFluids,
		ComponentDocumentation,
		ComponentBody,
	}
}

// ComponentCount is the fixed number of per-truck component checks.
const ComponentCount = 6

// IsValid reports whether the kind is part of the checklist.
func (k ComponentKind) IsValid() bool {
	for _, kind := range ComponentKinds() {
		if k == kind {
			return true
		}
	}
	return false
}

// ComponentStatus is the tri-state result of a single component check.
type ComponentStatus string

const (
	ComponentUnset   ComponentStatus = "UNSET"
	ComponentOK      ComponentStatus = "OK"
	ComponentProblem ComponentStatus = "PROBLEM"
)

// IsValid reports whether the status is a recognized value.
func (s ComponentStatus) IsValid() bool {
	switch s {
	case ComponentUnset, ComponentOK, ComponentProblem:
		return true
	}
	return false
}

// ComponentCheck is one inspected subsystem within an inspection record.
// At most one image may be attached per component.
type ComponentCheck struct {
	ID           string          `db:"id" json:"id"`
	InspectionID string          `db:"inspection_id" json:"-"`
	Kind         ComponentKind   `db:"kind" json:"kind"`
	Status       ComponentStatus `db:"status" json:"status"`
	Notes        string          `db:"notes" json:"notes,omitempty"`
	ImagePath    *string         `db:"image_path" json:"-"`
	ImageURL     string          `db:"-" json:"image_url,omitempty"`
	Position     int             `db:"position" json:"-"`
}

// InspectionRecord is a worker self-reported truck inspection. Immutable
// after creation except for the review fields.
type InspectionRecord struct {
	ID            string           `db:"id" json:"id"`
	TruckPlate    string           `db:"truck_plate" json:"truck_plate"`
	InspectorID   string           `db:"inspector_id" json:"inspector_id"`
	InspectorName string           `db:"inspector_name" json:"inspector_name"`
	CompanyID     string           `db:"company_id" json:"company_id"`
	GeneralNotes  string           `db:"general_notes" json:"general_notes,omitempty"`
	HasIssues     bool             `db:"has_issues" json:"has_issues"`
	CreatedAt     time.Time        `db:"created_at" json:"created_at"`
	Components    []ComponentCheck `db:"-" json:"components"`
	ReviewState
}

// ComputeHasIssues derives the issue flag: true iff any component reported
// a problem.
func ComputeHasIssues(components []ComponentCheck) bool {
	for _, c := range components {
		if c.Status == ComponentProblem {
			return true
		}
	}
	return false
}

// ConsideredResolved reports whether the inspection needs no further
// supervisor action. NotApplicable and Reviewed both count as resolved.
func (r *InspectionRecord) ConsideredResolved() bool {
	return r.Status != ReviewPending
}

// NormalizePlate upper-cases and trims a truck plate.
func NormalizePlate(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// MinPlateLength is the minimum accepted normalized plate length.
const MinPlateLength = 3

// ValidPlate reports whether the raw plate satisfies the minimum length
// after normalization.
func ValidPlate(raw string) bool {
	return len(NormalizePlate(raw)) >= MinPlateLength
}

// InspectionFilter captures list criteria for inspections.
type InspectionFilter struct {
	CompanyID   string
	InspectorID string
	Plate       string
	DateFrom    *time.Time
	DateTo      *time.Time
	OnlyIssues  bool
	Limit       int
	Offset      int
}
