package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ruta-norte/fleet-compliance-api/internal/models"
	appErrors "github.com/ruta-norte/fleet-compliance-api/pkg/errors"
)

type historyInspectionRepository interface {
	List(ctx context.Context, filter models.InspectionFilter) ([]models.InspectionRecord, int, error)
}

type historyOrderRepository interface {
	List(ctx context.Context, filter models.DirectOrderFilter) ([]models.DirectOrderRecord, int, error)
}

// HistoryService reconciles the two record kinds into one chronological,
// filterable, paginated view. The projection itself is a pure function of
// its inputs; the service only adds repository access.
type HistoryService struct {
	inspections historyInspectionRepository
	orders      historyOrderRepository
	logger      *zap.Logger
}

// NewHistoryService constructs the service.
func NewHistoryService(inspections historyInspectionRepository, orders historyOrderRepository, logger *zap.Logger) *HistoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryService{inspections: inspections, orders: orders, logger: logger}
}

// bulkFetchLimit bounds the raw collections pulled for reconciliation.
const bulkFetchLimit = 500

// DefaultHistoryPageSize applies when the caller sends no page size.
const DefaultHistoryPageSize = 20

// MergeHistory tags both collections into one unordered sequence.
func MergeHistory(inspections []models.InspectionRecord, orders []models.DirectOrderRecord) []models.HistoryItem {
	items := make([]models.HistoryItem, 0, len(inspections)+len(orders))
	for i := range inspections {
		items = append(items, models.NewInspectionItem(&inspections[i]))
	}
	for i := range orders {
		items = append(items, models.NewDirectOrderItem(&orders[i]))
	}
	return items
}

// FilterHistory applies every non-empty criterion conjunctively. Empty
// criteria pass everything; dateTo is inclusive through end of day.
func FilterHistory(items []models.HistoryItem, filter models.HistoryFilter) []models.HistoryItem {
	conductor := strings.ToLower(strings.TrimSpace(filter.Conductor))
	plate := strings.ToLower(strings.TrimSpace(filter.Plate))
	var until time.Time
	if filter.DateTo != nil {
		until = endOfDay(*filter.DateTo)
	}

	result := make([]models.HistoryItem, 0, len(items))
	for _, item := range items {
		ts := item.Timestamp()
		if filter.DateFrom != nil && ts.Before(*filter.DateFrom) {
			continue
		}
		if filter.DateTo != nil && ts.After(until) {
			continue
		}
		if conductor != "" && !strings.Contains(strings.ToLower(item.ActorName()), conductor) {
			continue
		}
		if plate != "" && !strings.Contains(strings.ToLower(item.Plate()), plate) {
			continue
		}
		result = append(result, item)
	}
	return result
}

// SortHistory orders items strictly descending by their natural
// timestamp; identical timestamps fall back to descending id so the
// output is fully deterministic.
func SortHistory(items []models.HistoryItem) {
	sort.SliceStable(items, func(i, j int) bool {
		ti, tj := items[i].Timestamp(), items[j].Timestamp()
		if ti.Equal(tj) {
			return items[i].ID() > items[j].ID()
		}
		return ti.After(tj)
	})
}

// PaginateHistory slices the 1-indexed page out of the sequence. A page
// beyond the available range resets to page 1; the effective page is
// returned so callers can observe the reset.
func PaginateHistory(items []models.HistoryItem, page, pageSize int) ([]models.HistoryItem, int) {
	if pageSize <= 0 {
		pageSize = DefaultHistoryPageSize
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * pageSize
	if start >= len(items) && page > 1 {
		page = 1
		start = 0
	}
	end := start + pageSize
	if start > len(items) {
		start = len(items)
	}
	if end > len(items) {
		end = len(items)
	}
	return items[start:end], page
}

// Reconcile produces the merged, filtered, sorted, paginated history view.
func (s *HistoryService) Reconcile(ctx context.Context, companyID string, filter models.HistoryFilter, page models.HistoryPage) ([]models.HistoryItem, *models.Pagination, error) {
	inspections, _, err := s.inspections.List(ctx, models.InspectionFilter{
		CompanyID: companyID,
		DateFrom:  filter.DateFrom,
		Limit:     bulkFetchLimit,
	})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load inspections")
	}
	orders, _, err := s.orders.List(ctx, models.DirectOrderFilter{
		CompanyID: companyID,
		DateFrom:  filter.DateFrom,
		Limit:     bulkFetchLimit,
	})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load direct orders")
	}

	items := MergeHistory(inspections, orders)
	items = FilterHistory(items, filter)
	SortHistory(items)
	pageItems, effectivePage := PaginateHistory(items, page.Page, page.PageSize)

	size := page.PageSize
	if size <= 0 {
		size = DefaultHistoryPageSize
	}
	pagination := &models.Pagination{Page: effectivePage, PageSize: size, TotalCount: len(items)}
	return pageItems, pagination, nil
}

// PendingIssues lists inspections with issues regardless of review state,
// offset/limit paginated. This is the supervisor work queue.
func (s *HistoryService) PendingIssues(ctx context.Context, companyID string, limit, offset int) ([]models.InspectionRecord, int, error) {
	records, total, err := s.inspections.List(ctx, models.InspectionFilter{
		CompanyID:  companyID,
		OnlyIssues: true,
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load pending issues")
	}
	return records, total, nil
}

// PendingOrders lists unreviewed direct orders with a fixed page size.
func (s *HistoryService) PendingOrders(ctx context.Context, companyID string, pageSize int) ([]models.DirectOrderRecord, int, error) {
	if pageSize <= 0 {
		pageSize = DefaultHistoryPageSize
	}
	records, total, err := s.orders.List(ctx, models.DirectOrderFilter{
		CompanyID:   companyID,
		OnlyPending: true,
		Limit:       pageSize,
	})
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load pending direct orders")
	}
	return records, total, nil
}

func endOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}
