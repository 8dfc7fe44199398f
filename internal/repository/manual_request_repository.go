package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ruta-norte/fleet-compliance-api/internal/models"
)

// ManualRequestRepository persists manual inspection requests. The
// database is the deduplication authority: at most one active request per
// worker, enforced by a guarded insert, never by caller-side checks.
type ManualRequestRepository struct {
	db *sqlx.DB
}

// NewManualRequestRepository constructs a new repository.
func NewManualRequestRepository(db *sqlx.DB) *ManualRequestRepository {
	return &ManualRequestRepository{db: db}
}

// CreateUnlessActive inserts a request for the target worker unless one
// is already active. Returns true when a row was created.
func (r *ManualRequestRepository) CreateUnlessActive(ctx context.Context, request *models.ManualInspectionRequest) (bool, error) {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	if request.CreatedAt.IsZero() {
		request.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO manual_inspection_requests (id, target_user_id, requested_by, requested_by_id, company_id, message, created_at)
SELECT $1, $2, $3, $4, $5, $6, $7
WHERE NOT EXISTS (
    SELECT 1 FROM manual_inspection_requests
    WHERE target_user_id = $2 AND fulfilled_at IS NULL
)`
	res, err := r.db.ExecContext(ctx, query,
		request.ID, request.TargetUserID, request.RequestedBy, request.RequestedByID,
		request.CompanyID, request.Message, request.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("create manual request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("create manual request result: %w", err)
	}
	return affected > 0, nil
}

// ListActiveForUser returns the open requests targeting one worker.
func (r *ManualRequestRepository) ListActiveForUser(ctx context.Context, userID string) ([]models.ManualInspectionRequest, error) {
	const query = `SELECT id, target_user_id, requested_by, requested_by_id, company_id, message, created_at, fulfilled_at
FROM manual_inspection_requests
WHERE target_user_id = $1 AND fulfilled_at IS NULL
ORDER BY created_at DESC`
	var requests []models.ManualInspectionRequest
	if err := r.db.SelectContext(ctx, &requests, query, userID); err != nil {
		return nil, fmt.Errorf("list active manual requests: %w", err)
	}
	return requests, nil
}

// FulfillForUser closes every active request for a worker, typically when
// they submit an inspection.
func (r *ManualRequestRepository) FulfillForUser(ctx context.Context, userID string, at time.Time) error {
	const query = `UPDATE manual_inspection_requests SET fulfilled_at = $2 WHERE target_user_id = $1 AND fulfilled_at IS NULL`
	if _, err := r.db.ExecContext(ctx, query, userID, at); err != nil {
		return fmt.Errorf("fulfill manual requests: %w", err)
	}
	return nil
}
