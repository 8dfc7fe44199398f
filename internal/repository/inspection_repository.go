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

// InspectionRepository manages persistence for inspection records and
// their component checks.
type InspectionRepository struct {
	db *sqlx.DB
}

// NewInspectionRepository constructs a new repository.
func NewInspectionRepository(db *sqlx.DB) *InspectionRepository {
	return &InspectionRepository{db: db}
}

const inspectionColumns = `id, truck_plate, inspector_id, inspector_name, company_id, general_notes, has_issues, created_at, review_status, reviewer_id, reviewer_name, reviewed_at, review_notes`

// Create inserts an inspection together with its component checks in one
// transaction. The record is atomic: either everything lands or nothing.
func (r *InspectionRepository) Create(ctx context.Context, record *models.InspectionRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create inspection: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const insertRecord = `INSERT INTO inspections (id, truck_plate, inspector_id, inspector_name, company_id, general_notes, has_issues, created_at, review_status, reviewer_id, reviewer_name, reviewed_at, review_notes)
VALUES (:id, :truck_plate, :inspector_id, :inspector_name, :company_id, :general_notes, :has_issues, :created_at, :review_status, :reviewer_id, :reviewer_name, :reviewed_at, :review_notes)`
	if _, err := tx.NamedExecContext(ctx, insertRecord, record); err != nil {
		return fmt.Errorf("create inspection: %w", err)
	}

	const insertComponent = `INSERT INTO inspection_components (id, inspection_id, kind, status, notes, image_path, position)
VALUES (:id, :inspection_id, :kind, :status, :notes, :image_path, :position)`
	for i := range record.Components {
		component := &record.Components[i]
		if component.ID == "" {
			component.ID = uuid.NewString()
		}
		component.InspectionID = record.ID
		component.Position = i
		if _, err := tx.NamedExecContext(ctx, insertComponent, component); err != nil {
			return fmt.Errorf("create inspection component: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create inspection: %w", err)
	}
	return nil
}

// FindByID loads one inspection with its components.
func (r *InspectionRepository) FindByID(ctx context.Context, id string) (*models.InspectionRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM inspections WHERE id = $1 LIMIT 1`, inspectionColumns)
	var record models.InspectionRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find inspection: %w", err)
	}
	if err := r.attachComponents(ctx, []*models.InspectionRecord{&record}); err != nil {
		return nil, err
	}
	return &record, nil
}

// List returns inspections matching the filter along with the total count.
func (r *InspectionRepository) List(ctx context.Context, filter models.InspectionFilter) ([]models.InspectionRecord, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.CompanyID != "" {
		where = append(where, fmt.Sprintf("company_id = $%d", len(args)+1))
		args = append(args, filter.CompanyID)
	}
	if filter.InspectorID != "" {
		where = append(where, fmt.Sprintf("inspector_id = $%d", len(args)+1))
		args = append(args, filter.InspectorID)
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
	if filter.OnlyIssues {
		where = append(where, "has_issues")
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

	query := fmt.Sprintf(`SELECT %s FROM inspections WHERE %s ORDER BY created_at DESC, id DESC LIMIT %d OFFSET %d`,
		inspectionColumns, whereClause, limit, offset)
	var records []models.InspectionRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list inspections: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM inspections WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count inspections: %w", err)
	}

	refs := make([]*models.InspectionRecord, len(records))
	for i := range records {
		refs[i] = &records[i]
	}
	if err := r.attachComponents(ctx, refs); err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// MarkReviewed transitions a pending inspection to reviewed. Returns
// sql.ErrNoRows when the record does not exist and false when it exists
// but is not pending (already reviewed or auto-archived).
func (r *InspectionRepository) MarkReviewed(ctx context.Context, id string, state models.ReviewState) (bool, error) {
	const query = `UPDATE inspections
SET review_status = $2, reviewer_id = $3, reviewer_name = $4, reviewed_at = $5, review_notes = $6
WHERE id = $1 AND review_status = $7`
	res, err := r.db.ExecContext(ctx, query, id, string(state.Status), state.ReviewerID, state.ReviewerName, state.ReviewedAt, state.Notes, string(models.ReviewPending))
	if err != nil {
		return false, fmt.Errorf("mark inspection reviewed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark inspection reviewed result: %w", err)
	}
	if affected > 0 {
		return true, nil
	}

	var exists bool
	if err := r.db.GetContext(ctx, &exists, "SELECT EXISTS(SELECT 1 FROM inspections WHERE id = $1)", id); err != nil {
		return false, fmt.Errorf("check inspection exists: %w", err)
	}
	if !exists {
		return false, sql.ErrNoRows
	}
	return false, nil
}

// AttachImage binds a stored image path to one component of an existing
// inspection, identified by record id and component kind.
func (r *InspectionRepository) AttachImage(ctx context.Context, inspectionID string, kind models.ComponentKind, imagePath string) error {
	const query = `UPDATE inspection_components SET image_path = $3 WHERE inspection_id = $1 AND kind = $2`
	res, err := r.db.ExecContext(ctx, query, inspectionID, string(kind), imagePath)
	if err != nil {
		return fmt.Errorf("attach component image: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("attach component image result: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *InspectionRepository) attachComponents(ctx context.Context, records []*models.InspectionRecord) error {
	if len(records) == 0 {
		return nil
	}
	ids := make([]string, len(records))
	byID := make(map[string]*models.InspectionRecord, len(records))
	for i, record := range records {
		ids[i] = record.ID
		byID[record.ID] = record
	}

	const query = `SELECT id, inspection_id, kind, status, notes, image_path, position
FROM inspection_components WHERE inspection_id = ANY($1) ORDER BY inspection_id, position`
	var components []models.ComponentCheck
	if err := r.db.SelectContext(ctx, &components, query, pq.Array(ids)); err != nil {
		return fmt.Errorf("load inspection components: %w", err)
	}
	for _, component := range components {
		if record, ok := byID[component.InspectionID]; ok {
			record.Components = append(record.Components, component)
		}
	}
	return nil
}
