package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ruta-norte/fleet-compliance-api/internal/models"
)

// SettingsRepository persists the per-company auto-inspection singleton.
type SettingsRepository struct {
	db *sqlx.DB
}

// NewSettingsRepository constructs a new repository.
func NewSettingsRepository(db *sqlx.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get loads the settings row for a company.
func (r *SettingsRepository) Get(ctx context.Context, companyID string) (*models.AutoInspectionSettings, error) {
	const query = `SELECT company_id, enabled, updated_by, updated_by_id, updated_at
FROM auto_inspection_settings WHERE company_id = $1 LIMIT 1`
	var settings models.AutoInspectionSettings
	if err := r.db.GetContext(ctx, &settings, query, companyID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get auto-inspection settings: %w", err)
	}
	return &settings, nil
}

// Upsert writes the singleton for a company.
func (r *SettingsRepository) Upsert(ctx context.Context, settings *models.AutoInspectionSettings) error {
	const query = `INSERT INTO auto_inspection_settings (company_id, enabled, updated_by, updated_by_id, updated_at)
VALUES (:company_id, :enabled, :updated_by, :updated_by_id, :updated_at)
ON CONFLICT (company_id) DO UPDATE SET enabled = EXCLUDED.enabled, updated_by = EXCLUDED.updated_by, updated_by_id = EXCLUDED.updated_by_id, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, settings); err != nil {
		return fmt.Errorf("upsert auto-inspection settings: %w", err)
	}
	return nil
}
