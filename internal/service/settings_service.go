package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ruta-norte/fleet-compliance-api/internal/models"
	appErrors "github.com/ruta-norte/fleet-compliance-api/pkg/errors"
)

type settingsRepository interface {
	Get(ctx context.Context, companyID string) (*models.AutoInspectionSettings, error)
	Upsert(ctx context.Context, settings *models.AutoInspectionSettings) error
}

// SettingsService manages the per-company auto-inspection singleton.
type SettingsService struct {
	settings settingsRepository
	users    reviewerLookup
	cache    pendingCache
	audit    auditRecorder
	logger   *zap.Logger
}

// NewSettingsService constructs the service.
func NewSettingsService(settings settingsRepository, users reviewerLookup, cache pendingCache, audit auditRecorder, logger *zap.Logger) *SettingsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingsService{
		settings: settings,
		users:    users,
		cache:    cache,
		audit:    audit,
		logger:   logger,
	}
}

// Get returns the settings for the caller's company. A company that has
// never toggled the feature gets the disabled default, not an error.
func (s *SettingsService) Get(ctx context.Context, claims *models.JWTClaims) (*models.AutoInspectionSettings, error) {
	settings, err := s.settings.Get(ctx, claims.CompanyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.AutoInspectionSettings{CompanyID: claims.CompanyID, Enabled: false}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load settings")
	}
	return settings, nil
}

// Update toggles auto-inspection for the caller's company and records who
// changed it. Only management roles reach this path; the router enforces that.
func (s *SettingsService) Update(ctx context.Context, enabled bool, claims *models.JWTClaims) (*models.AutoInspectionSettings, error) {
	updatedBy := claims.FullName
	if user, err := s.users.FindByID(ctx, claims.UserID); err == nil {
		updatedBy = user.DisplayName()
	}

	settings := &models.AutoInspectionSettings{
		CompanyID:   claims.CompanyID,
		Enabled:     enabled,
		UpdatedBy:   updatedBy,
		UpdatedByID: claims.UserID,
		UpdatedAt:   time.Now().UTC(),
	}
	if err := s.settings.Upsert(ctx, settings); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save settings")
	}

	// The toggle changes every worker's check-needed answer.
	if err := s.cache.DeleteByPattern(ctx, fmt.Sprintf("pending:check:%s:*", claims.CompanyID)); err != nil {
		s.logger.Warn("failed to invalidate pending cache", zap.Error(err))
	}

	if s.audit != nil {
		if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
			UserID:    &claims.UserID,
			Action:    models.AuditActionSettingsUpdate,
			Resource:  "auto_inspection_settings",
			NewValues: []byte(fmt.Sprintf(`{"enabled":%t}`, enabled)),
		}); err != nil {
			s.logger.Warn("failed to record settings audit log", zap.Error(err))
		}
	}

	s.logger.Info("auto-inspection settings updated",
		zap.String("company_id", claims.CompanyID),
		zap.Bool("enabled", enabled),
		zap.String("updated_by", updatedBy))

	return settings, nil
}
