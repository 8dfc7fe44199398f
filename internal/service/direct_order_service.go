package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ruta-norte/fleet-compliance-api/internal/models"
	appErrors "github.com/ruta-norte/fleet-compliance-api/pkg/errors"
)

type directOrderRepository interface {
	Create(ctx context.Context, record *models.DirectOrderRecord) error
	FindByID(ctx context.Context, id string) (*models.DirectOrderRecord, error)
	List(ctx context.Context, filter models.DirectOrderFilter) ([]models.DirectOrderRecord, int, error)
	MarkReviewed(ctx context.Context, id string, state models.ReviewState) (bool, error)
}

// DirectOrderService owns the lifecycle of workshop-issued orders.
type DirectOrderService struct {
	repo      directOrderRepository
	users     reviewerLookup
	cache     pendingCache
	audit     auditRecorder
	metrics   domainMetrics
	validator *validator.Validate
	logger    *zap.Logger
}

// NewDirectOrderService constructs the service.
func NewDirectOrderService(repo directOrderRepository, users reviewerLookup, cache pendingCache, audit auditRecorder, metrics domainMetrics, validate *validator.Validate, logger *zap.Logger) *DirectOrderService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirectOrderService{repo: repo, users: users, cache: cache, audit: audit, metrics: metrics, validator: validate, logger: logger}
}

// OrderModuleInput is one work item in a create request.
type OrderModuleInput struct {
	Title string `json:"title"`
	Notes string `json:"notes"`
}

// CreateDirectOrderRequest is the workshop create payload.
type CreateDirectOrderRequest struct {
	TruckPlate  string             `json:"truck_plate"`
	VehicleKind models.VehicleKind `json:"vehicle_kind"`
	Modules     []OrderModuleInput `json:"modules"`
}

// ListDirectOrdersRequest captures list query parameters.
type ListDirectOrdersRequest struct {
	Plate       string
	OnlyPending bool
	DateFrom    *time.Time
	DateTo      *time.Time
	Limit       int
	Offset      int
}

// Create validates and persists an order in one shot. At least one module
// with a non-empty title or notes is required; fully empty modules are
// dropped rather than stored.
func (s *DirectOrderService) Create(ctx context.Context, req CreateDirectOrderRequest, claims *models.JWTClaims) (*models.DirectOrderRecord, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !models.ValidPlate(req.TruckPlate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "truck plate must have at least 3 characters")
	}
	if !req.VehicleKind.IsValid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown vehicle kind %q", req.VehicleKind))
	}

	modules := make([]models.OrderModule, 0, len(req.Modules))
	for _, input := range req.Modules {
		module := models.OrderModule{
			Title: strings.TrimSpace(input.Title),
			Notes: strings.TrimSpace(input.Notes),
		}
		if module.Empty() {
			continue
		}
		module.Position = len(modules)
		modules = append(modules, module)
	}
	if len(modules) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one module with a title or notes is required")
	}

	record := &models.DirectOrderRecord{
		TruckPlate:  models.NormalizePlate(req.TruckPlate),
		VehicleKind: req.VehicleKind,
		CreatedBy:   claims.FullName,
		CreatedByID: claims.UserID,
		CompanyID:   claims.CompanyID,
		Modules:     modules,
		ReviewState: models.ReviewState{Status: models.ReviewPending},
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create direct order")
	}

	s.invalidatePending(ctx, claims.CompanyID)
	s.recordAudit(ctx, claims, models.AuditActionDirectOrderCreate, record.ID)
	return record, nil
}

// Get loads one order.
func (s *DirectOrderService) Get(ctx context.Context, id string) (*models.DirectOrderRecord, error) {
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "direct order not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load direct order")
	}
	return record, nil
}

// List returns orders for the caller's company.
func (s *DirectOrderService) List(ctx context.Context, req ListDirectOrdersRequest, claims *models.JWTClaims) ([]models.DirectOrderRecord, *models.Pagination, error) {
	if claims == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	records, total, err := s.repo.List(ctx, models.DirectOrderFilter{
		CompanyID:   claims.CompanyID,
		Plate:       req.Plate,
		OnlyPending: req.OnlyPending,
		DateFrom:    req.DateFrom,
		DateTo:      req.DateTo,
		Limit:       limit,
		Offset:      req.Offset,
	})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list direct orders")
	}
	page := req.Offset/limit + 1
	return records, &models.Pagination{Page: page, PageSize: limit, TotalCount: total}, nil
}

// MarkReviewed transitions a pending order to reviewed. The note is stored
// structurally, the same shape inspections use.
func (s *DirectOrderService) MarkReviewed(ctx context.Context, id, note string, claims *models.JWTClaims) (*models.DirectOrderRecord, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}

	reviewerName := claims.FullName
	if user, err := s.users.FindByID(ctx, claims.UserID); err == nil {
		reviewerName = user.DisplayName()
	} else if !errors.Is(err, sql.ErrNoRows) {
		s.logger.Warn("failed to resolve reviewer", zap.String("user_id", claims.UserID), zap.Error(err))
	}

	state := models.Reviewed(claims.UserID, reviewerName, strings.TrimSpace(note), time.Now().UTC())
	ok, err := s.repo.MarkReviewed(ctx, id, state)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "direct order not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark direct order reviewed")
	}
	if !ok {
		return nil, appErrors.ErrAlreadyReviewed
	}

	s.invalidatePending(ctx, claims.CompanyID)
	if s.metrics != nil {
		s.metrics.IncReviewTransition("direct_order")
	}
	s.recordAudit(ctx, claims, models.AuditActionDirectOrderReview, id)

	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload direct order")
	}
	return record, nil
}

func (s *DirectOrderService) invalidatePending(ctx context.Context, companyID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, fmt.Sprintf("pending:*:%s:*", companyID)); err != nil {
		s.logger.Warn("failed to invalidate pending cache", zap.Error(err))
	}
}

func (s *DirectOrderService) recordAudit(ctx context.Context, claims *models.JWTClaims, action, resourceID string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &claims.UserID,
		Action:     action,
		Resource:   "direct_order",
		ResourceID: &resourceID,
	}); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}
