package store

import (
	"sync"

	"github.com/ruta-norte/fleet-compliance-api/internal/models"
)

// RecordStore is the in-memory client-side cache of both record kinds.
// Refreshes replace its contents wholesale; review transitions patch it
// optimistically. A refresh that raced an optimistic patch never rolls
// the patch back: on conflict the further-along review state wins.
type RecordStore struct {
	mu          sync.RWMutex
	inspections map[string]models.InspectionRecord
	orders      map[string]models.DirectOrderRecord
}

// New returns an empty store.
func New() *RecordStore {
	return &RecordStore{
		inspections: make(map[string]models.InspectionRecord),
		orders:      make(map[string]models.DirectOrderRecord),
	}
}

// ReplaceInspections installs a freshly fetched inspection set. Fetched
// data is authoritative for membership; per record, a local review state
// further along than the fetched one is kept.
func (s *RecordStore) ReplaceInspections(records []models.InspectionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make(map[string]models.InspectionRecord, len(records))
	for _, record := range records {
		if existing, ok := s.inspections[record.ID]; ok &&
			existing.ReviewState.Status.MoreAdvancedThan(record.ReviewState.Status) {
			record.ReviewState = existing.ReviewState
		}
		next[record.ID] = record
	}
	s.inspections = next
}

// ReplaceOrders installs a freshly fetched direct-order set, with the
// same conflict rule as ReplaceInspections.
func (s *RecordStore) ReplaceOrders(records []models.DirectOrderRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make(map[string]models.DirectOrderRecord, len(records))
	for _, record := range records {
		if existing, ok := s.orders[record.ID]; ok &&
			existing.ReviewState.Status.MoreAdvancedThan(record.ReviewState.Status) {
			record.ReviewState = existing.ReviewState
		}
		next[record.ID] = record
	}
	s.orders = next
}

// UpsertInspection adds or overwrites one inspection, e.g. after the
// wizard submits.
func (s *RecordStore) UpsertInspection(record models.InspectionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inspections[record.ID] = record
}

// UpsertOrder adds or overwrites one direct order.
func (s *RecordStore) UpsertOrder(record models.DirectOrderRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[record.ID] = record
}

// PatchInspectionReviewed applies an optimistic review transition. Only a
// pending record transitions; anything else reports false and stays put.
func (s *RecordStore) PatchInspectionReviewed(id string, state models.ReviewState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.inspections[id]
	if !ok || record.ReviewState.Status != models.ReviewPending {
		return false
	}
	record.ReviewState = state
	s.inspections[id] = record
	return true
}

// PatchOrderReviewed applies an optimistic review transition to a pending
// direct order.
func (s *RecordStore) PatchOrderReviewed(id string, state models.ReviewState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.orders[id]
	if !ok || record.ReviewState.Status != models.ReviewPending {
		return false
	}
	record.ReviewState = state
	s.orders[id] = record
	return true
}

// Inspection returns one inspection by id.
func (s *RecordStore) Inspection(id string) (models.InspectionRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.inspections[id]
	return record, ok
}

// Order returns one direct order by id.
func (s *RecordStore) Order(id string) (models.DirectOrderRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.orders[id]
	return record, ok
}

// Inspections returns a copy of all cached inspections.
func (s *RecordStore) Inspections() []models.InspectionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.InspectionRecord, 0, len(s.inspections))
	for _, record := range s.inspections {
		out = append(out, record)
	}
	return out
}

// Orders returns a copy of all cached direct orders.
func (s *RecordStore) Orders() []models.DirectOrderRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.DirectOrderRecord, 0, len(s.orders))
	for _, record := range s.orders {
		out = append(out, record)
	}
	return out
}
