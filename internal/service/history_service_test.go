package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ruta-norte/fleet-compliance-api/internal/models"
)

type mockHistoryInspectionRepo struct {
	records    []models.InspectionRecord
	total      int
	err        error
	calls      int
	lastFilter models.InspectionFilter
}

func (m *mockHistoryInspectionRepo) List(_ context.Context, filter models.InspectionFilter) ([]models.InspectionRecord, int, error) {
	m.calls++
	m.lastFilter = filter
	if m.err != nil {
		return nil, 0, m.err
	}
	total := m.total
	if total == 0 {
		total = len(m.records)
	}
	return m.records, total, nil
}

type mockHistoryOrderRepo struct {
	records []models.DirectOrderRecord
	err     error
	calls   int
}

func (m *mockHistoryOrderRepo) List(_ context.Context, filter models.DirectOrderFilter) ([]models.DirectOrderRecord, int, error) {
	m.calls++
	if m.err != nil {
		return nil, 0, m.err
	}
	return m.records, len(m.records), nil
}

func historyDate(day int, hour int) time.Time {
	return time.Date(2025, time.March, day, hour, 0, 0, 0, time.UTC)
}

func inspectionAt(id, plate, inspector string, at time.Time) models.InspectionRecord {
	return models.InspectionRecord{
		ID:            id,
		TruckPlate:    plate,
		InspectorName: inspector,
		CreatedAt:     at,
		ReviewState:   models.ReviewState{Status: models.ReviewPending},
	}
}

func orderAt(id, plate, creator string, at time.Time) models.DirectOrderRecord {
	return models.DirectOrderRecord{
		ID:          id,
		TruckPlate:  plate,
		CreatedBy:   creator,
		CreatedAt:   at,
		ReviewState: models.ReviewState{Status: models.ReviewPending},
	}
}

func TestMergeHistoryTagsBothKinds(t *testing.T) {
	inspections := []models.InspectionRecord{inspectionAt("i1", "ABC123", "Ana", historyDate(1, 9))}
	orders := []models.DirectOrderRecord{orderAt("o1", "XYZ987", "Luis", historyDate(2, 9))}

	items := MergeHistory(inspections, orders)
	require.Len(t, items, 2)
	assert.Equal(t, models.HistoryInspection, items[0].Kind)
	assert.Equal(t, "i1", items[0].ID())
	assert.Equal(t, models.HistoryDirectOrder, items[1].Kind)
	assert.Equal(t, "o1", items[1].ID())
}

func TestSortHistoryDescendingWithIDTieBreak(t *testing.T) {
	same := historyDate(5, 12)
	items := MergeHistory(
		[]models.InspectionRecord{
			inspectionAt("a", "P1", "Ana", historyDate(1, 8)),
			inspectionAt("b", "P2", "Ana", same),
		},
		[]models.DirectOrderRecord{
			orderAt("c", "P3", "Luis", same),
			orderAt("d", "P4", "Luis", historyDate(9, 8)),
		},
	)
	SortHistory(items)

	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID())
	}
	assert.Equal(t, []string{"d", "c", "b", "a"}, ids)

	for i := 1; i < len(items); i++ {
		prev, cur := items[i-1], items[i]
		assert.False(t, cur.Timestamp().After(prev.Timestamp()))
		if cur.Timestamp().Equal(prev.Timestamp()) {
			assert.Greater(t, prev.ID(), cur.ID())
		}
	}
}

func TestFilterHistoryPlateSubstringCaseInsensitive(t *testing.T) {
	items := MergeHistory(
		[]models.InspectionRecord{
			inspectionAt("i1", "ABC123", "Ana", historyDate(1, 8)),
			inspectionAt("i2", "DEF456", "Ana", historyDate(2, 8)),
		},
		[]models.DirectOrderRecord{
			orderAt("o1", "GHABCX", "Luis", historyDate(3, 8)),
		},
	)

	got := FilterHistory(items, models.HistoryFilter{Plate: "abc"})
	require.Len(t, got, 2)
	for _, item := range got {
		assert.Contains(t, item.Plate(), "ABC")
	}
}

func TestFilterHistoryConductorMatchesActorName(t *testing.T) {
	items := MergeHistory(
		[]models.InspectionRecord{inspectionAt("i1", "P1", "Ana Torres", historyDate(1, 8))},
		[]models.DirectOrderRecord{orderAt("o1", "P2", "Luis Vega", historyDate(2, 8))},
	)

	got := FilterHistory(items, models.HistoryFilter{Conductor: "torres"})
	require.Len(t, got, 1)
	assert.Equal(t, "i1", got[0].ID())
}

func TestFilterHistoryDateToInclusiveThroughEndOfDay(t *testing.T) {
	lastDay := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)
	items := MergeHistory(
		[]models.InspectionRecord{
			inspectionAt("same-day-evening", "P1", "Ana", time.Date(2025, time.March, 10, 23, 30, 0, 0, time.UTC)),
			inspectionAt("next-day", "P2", "Ana", time.Date(2025, time.March, 11, 0, 5, 0, 0, time.UTC)),
		},
		nil,
	)

	got := FilterHistory(items, models.HistoryFilter{DateTo: &lastDay})
	require.Len(t, got, 1)
	assert.Equal(t, "same-day-evening", got[0].ID())
}

func TestFilterHistoryEmptyFilterPassesEverything(t *testing.T) {
	items := MergeHistory(
		[]models.InspectionRecord{inspectionAt("i1", "P1", "Ana", historyDate(1, 8))},
		[]models.DirectOrderRecord{orderAt("o1", "P2", "Luis", historyDate(2, 8))},
	)
	got := FilterHistory(items, models.HistoryFilter{})
	assert.Len(t, got, len(items))
}

func TestPaginateHistoryConcatenationCoversSequence(t *testing.T) {
	items := MergeHistory(
		[]models.InspectionRecord{
			inspectionAt("a", "P", "Ana", historyDate(5, 8)),
			inspectionAt("b", "P", "Ana", historyDate(4, 8)),
			inspectionAt("c", "P", "Ana", historyDate(3, 8)),
			inspectionAt("d", "P", "Ana", historyDate(2, 8)),
			inspectionAt("e", "P", "Ana", historyDate(1, 8)),
		},
		nil,
	)

	var all []string
	for page := 1; ; page++ {
		slice, effective := PaginateHistory(items, page, 2)
		if effective != page {
			break
		}
		for _, item := range slice {
			all = append(all, item.ID())
		}
		if len(slice) < 2 {
			break
		}
	}
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, all)
}

func TestPaginateHistoryOutOfRangeResetsToFirstPage(t *testing.T) {
	items := MergeHistory(
		[]models.InspectionRecord{inspectionAt("a", "P", "Ana", historyDate(1, 8))},
		nil,
	)
	slice, effective := PaginateHistory(items, 7, 20)
	assert.Equal(t, 1, effective)
	require.Len(t, slice, 1)
	assert.Equal(t, "a", slice[0].ID())
}

func TestPaginateHistoryDefaultsPageSize(t *testing.T) {
	records := make([]models.InspectionRecord, DefaultHistoryPageSize+3)
	for i := range records {
		records[i] = inspectionAt(string(rune('a'+i)), "P", "Ana", historyDate(1, 8))
	}
	slice, effective := PaginateHistory(MergeHistory(records, nil), 1, 0)
	assert.Equal(t, 1, effective)
	assert.Len(t, slice, DefaultHistoryPageSize)
}

func TestReconcilePipelineFiltersSortsAndPaginates(t *testing.T) {
	inspections := &mockHistoryInspectionRepo{records: []models.InspectionRecord{
		inspectionAt("i1", "ABC123", "Ana", historyDate(3, 9)),
		inspectionAt("i2", "ZZZ999", "Bea", historyDate(4, 9)),
	}}
	orders := &mockHistoryOrderRepo{records: []models.DirectOrderRecord{
		orderAt("o1", "ABC777", "Luis", historyDate(5, 9)),
	}}
	svc := NewHistoryService(inspections, orders, zap.NewNop())

	items, pagination, err := svc.Reconcile(context.Background(), "company-1", models.HistoryFilter{Plate: "ABC"}, models.HistoryPage{Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.NotNil(t, pagination)
	assert.Equal(t, 1, inspections.calls)
	assert.Equal(t, 1, orders.calls)
	assert.Equal(t, "company-1", inspections.lastFilter.CompanyID)

	require.Len(t, items, 2)
	assert.Equal(t, "o1", items[0].ID())
	assert.Equal(t, "i1", items[1].ID())
	assert.Equal(t, 2, pagination.TotalCount)
	assert.Equal(t, 1, pagination.Page)
}

func TestReconcileInspectionRepoErrorPropagates(t *testing.T) {
	inspections := &mockHistoryInspectionRepo{err: errors.New("db down")}
	orders := &mockHistoryOrderRepo{}
	svc := NewHistoryService(inspections, orders, zap.NewNop())

	_, _, err := svc.Reconcile(context.Background(), "company-1", models.HistoryFilter{}, models.HistoryPage{Page: 1, PageSize: 10})
	require.Error(t, err)
	assert.Equal(t, 0, orders.calls)
}

func TestReconcileSourceSlicesUntouched(t *testing.T) {
	source := []models.InspectionRecord{
		inspectionAt("b", "P", "Ana", historyDate(1, 8)),
		inspectionAt("a", "P", "Ana", historyDate(2, 8)),
	}
	inspections := &mockHistoryInspectionRepo{records: source}
	svc := NewHistoryService(inspections, &mockHistoryOrderRepo{}, zap.NewNop())

	_, _, err := svc.Reconcile(context.Background(), "c", models.HistoryFilter{}, models.HistoryPage{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, "b", source[0].ID)
	assert.Equal(t, "a", source[1].ID)
}

func TestPendingIssuesUsesIssueFilter(t *testing.T) {
	inspections := &mockHistoryInspectionRepo{records: []models.InspectionRecord{
		inspectionAt("i1", "P", "Ana", historyDate(1, 8)),
	}, total: 14}
	svc := NewHistoryService(inspections, &mockHistoryOrderRepo{}, zap.NewNop())

	records, total, err := svc.PendingIssues(context.Background(), "company-1", 5, 10)
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, 14, total)
	assert.True(t, inspections.lastFilter.OnlyIssues)
	assert.Equal(t, 5, inspections.lastFilter.Limit)
	assert.Equal(t, 10, inspections.lastFilter.Offset)
}
