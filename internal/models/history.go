package models

import "time"

// HistoryKind tags the two record kinds merged into the history view.
type HistoryKind string

const (
	HistoryInspection  HistoryKind = "inspection"
	HistoryDirectOrder HistoryKind = "direct_order"
)

// HistoryItem is the closed tagged union produced by reconciliation.
// Exactly one of Inspection or DirectOrder is set, matching Kind. Never
// persisted.
type HistoryItem struct {
	Kind        HistoryKind        `json:"kind"`
	Inspection  *InspectionRecord  `json:"inspection,omitempty"`
	DirectOrder *DirectOrderRecord `json:"direct_order,omitempty"`
}

// NewInspectionItem wraps an inspection record.
func NewInspectionItem(r *InspectionRecord) HistoryItem {
	return HistoryItem{Kind: HistoryInspection, Inspection: r}
}

// NewDirectOrderItem wraps a direct order record.
func NewDirectOrderItem(r *DirectOrderRecord) HistoryItem {
	return HistoryItem{Kind: HistoryDirectOrder, DirectOrder: r}
}

// ID returns the identity of the underlying record.
func (h HistoryItem) ID() string {
	switch h.Kind {
	case HistoryInspection:
		return h.Inspection.ID
	case HistoryDirectOrder:
		return h.DirectOrder.ID
	}
	return ""
}

// Timestamp returns the natural ordering timestamp of the item: the
// inspection date for inspections, the creation time for direct orders.
func (h HistoryItem) Timestamp() time.Time {
	switch h.Kind {
	case HistoryInspection:
		return h.Inspection.CreatedAt
	case HistoryDirectOrder:
		return h.DirectOrder.CreatedAt
	}
	return time.Time{}
}

// Plate returns the truck plate of the underlying record.
func (h HistoryItem) Plate() string {
	switch h.Kind {
	case HistoryInspection:
		return h.Inspection.TruckPlate
	case HistoryDirectOrder:
		return h.DirectOrder.TruckPlate
	}
	return ""
}

// ActorName returns the inspector name for inspections and the creator
// name for direct orders; conductor filtering matches against it.
func (h HistoryItem) ActorName() string {
	switch h.Kind {
	case HistoryInspection:
		return h.Inspection.InspectorName
	case HistoryDirectOrder:
		return h.DirectOrder.CreatedBy
	}
	return ""
}

// Review returns the review state of the underlying record.
func (h HistoryItem) Review() ReviewState {
	switch h.Kind {
	case HistoryInspection:
		return h.Inspection.ReviewState
	case HistoryDirectOrder:
		return h.DirectOrder.ReviewState
	}
	return ReviewState{}
}

// HistoryFilter holds the conjunctive criteria applied to the merged view.
// Empty criteria pass every item.
type HistoryFilter struct {
	DateFrom  *time.Time `json:"date_from,omitempty"`
	DateTo    *time.Time `json:"date_to,omitempty"`
	Conductor string     `json:"conductor,omitempty"`
	Plate     string     `json:"plate,omitempty"`
}

// HistoryPage identifies the requested slice of the reconciled view.
type HistoryPage struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}
