package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ruta-norte/fleet-compliance-api/internal/models"
)

// DirectOrderRepository manages persistence for workshop-issued orders.
type DirectOrderRepository struct {
	db *sqlx.DB
}

// NewDirectOrderRepository constructs a new repository.
func NewDirectOrderRepository(db *sqlx.DB) *DirectOrderRepository {
	return &DirectOrderRepository{db: db}
}

const directOrderColumns = `id, truck_plate, vehicle_kind, created_by, created_by_id, company_id, created_at, review_status, reviewer_id, reviewer_name, reviewed_at, review_notes`

// Create inserts an order and its modules in one transaction.
func (r *DirectOrderRepository) Create(ctx context.Context, record *models.DirectOrderRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create direct order: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const insertOrder = `INSERT INTO direct_orders (id, truck_plate, vehicle_kind, created_by, created_by_id, company_id, created_at, review_status, reviewer_id, reviewer_name, reviewed_at, review_notes)
VALUES (:id, :truck_plate, :vehicle_kind, :created_by, :created_by_id, :company_id, :created_at, :review_status, :reviewer_id, :reviewer_name, :reviewed_at, :review_notes)`
	if _, err := tx.NamedExecContext(ctx, insertOrder, record); err != nil {
		return fmt.Errorf("create direct order: %w", err)
	}

	const insertModule = `INSERT INTO direct_order_modules (id, order_id, title, notes, position)
VALUES (:id, :order_id, :title, :notes, :position)`
	for i := range record.Modules {
		module := &record.Modules[i]
		if module.ID == "" {
			module.ID = uuid.NewString()
		}
		module.OrderID = record.ID
		module.Position = i
		if _, err := tx.NamedExecContext(ctx, insertModule, module); err != nil {
			return fmt.Errorf("create direct order module: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create direct order: %w", err)
	}
	return nil
}

// FindByID loads one direct order with its modules.
func (r *DirectOrderRepository) FindByID(ctx context.Context, id string) (*models.DirectOrderRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM direct_orders WHERE id = $1 LIMIT 1`, directOrderColumns)
	var record models.DirectOrderRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find direct order: %w", err)
	}
	if err := r.attachModules(ctx, []*models.DirectOrderRecord{&record}); err != nil {
		return nil, err
	}
	return &record, nil
}

// List returns direct orders matching the filter along with the total count.
func (r *DirectOrderRepository) List(ctx context.Context, filter models.DirectOrderFilter) ([]models.DirectOrderRecord, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.CompanyID != "" {
		where = append(where, fmt.Sprintf("company_id = $%d", len(args)+1))
		args = append(args, filter.CompanyID)
	}
	if filter.Plate != "" {
		where = append(where, fmt.Sprintf("truck_plate ILIKE $%d", len(args)+1))
		args = append(args, "%"+models.NormalizePlate(filter.Plate)+"%")
	}
	if filter.DateFrom != nil {
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		where = append(where, fmt.Sprintf("created_at <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}
	if filter.OnlyPending {
		where = append(where, fmt.Sprintf("review_status = $%d", len(args)+1))
		args = append(args, string(models.ReviewPending))
	}
	whereClause := strings.Join(where, " AND ")

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM direct_orders WHERE %s ORDER BY created_at DESC, id DESC LIMIT %d OFFSET %d`,
		directOrderColumns, whereClause, limit, offset)
	var records []models.DirectOrderRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list direct orders: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM direct_orders WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count direct orders: %w", err)
	}

	refs := make([]*models.DirectOrderRecord, len(records))
	for i := range records {
		refs[i] = &records[i]
	}
	if err := r.attachModules(ctx, refs); err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// MarkReviewed transitions a pending order to reviewed. Same contract as
// InspectionRepository.MarkReviewed.
func (r *DirectOrderRepository) MarkReviewed(ctx context.Context, id string, state models.ReviewState) (bool, error) {
	const query = `UPDATE direct_orders
SET review_status = $2, reviewer_id = $3, reviewer_name = $4, reviewed_at = $5, review_notes = $6
WHERE id = $1 AND review_status = $7`
	res, err := r.db.ExecContext(ctx, query, id, string(state.Status), state.ReviewerID, state.ReviewerName, state.ReviewedAt, state.Notes, string(models.ReviewPending))
	if err != nil {
		return false, fmt.Errorf("mark direct order reviewed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark direct order reviewed result: %w", err)
	}
	if affected > 0 {
		return true, nil
	}

	var exists bool
	if err := r.db.GetContext(ctx, &exists, "SELECT EXISTS(SELECT 1 FROM direct_orders WHERE id = $1)", id); err != nil {
		return false, fmt.Errorf("check direct order exists: %w", err)
	}
	if !exists {
		return false, sql.ErrNoRows
	}
	return false, nil
}

func (r *DirectOrderRepository) attachModules(ctx context.Context, records []*models.DirectOrderRecord) error {
	if len(records) == 0 {
		return nil
	}
	ids := make([]string, len(records))
	byID := make(map[string]*models.DirectOrderRecord, len(records))
	for i, record := range records {
		ids[i] = record.ID
		byID[record.ID] = record
	}

	const query = `SELECT id, order_id, title, notes, position
FROM direct_order_modules WHERE order_id = ANY($1) ORDER BY order_id, position`
	var modules []models.OrderModule
	if err := r.db.SelectContext(ctx, &modules, query, pq.Array(ids)); err != nil {
		return fmt.Errorf("load direct order modules: %w", err)
	}
	for _, module := range modules {
		if record, ok := byID[module.OrderID]; ok {
			record.Modules = append(record.Modules, module)
		}
	}
	return nil
}
