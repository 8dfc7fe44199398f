package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ruta-norte/fleet-compliance-api/internal/models"
	appErrors "github.com/ruta-norte/fleet-compliance-api/pkg/errors"
)

type inspectionRepository interface {
	Create(ctx context.Context, record *models.InspectionRecord) error
	FindByID(ctx context.Context, id string) (*models.InspectionRecord, error)
	List(ctx context.Context, filter models.InspectionFilter) ([]models.InspectionRecord, int, error)
	MarkReviewed(ctx context.Context, id string, state models.ReviewState) (bool, error)
	AttachImage(ctx context.Context, inspectionID string, kind models.ComponentKind, imagePath string) error
}

type reviewerLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type manualRequestFulfiller interface {
	ListActiveForUser(ctx context.Context, userID string) ([]models.ManualInspectionRequest, error)
	FulfillForUser(ctx context.Context, userID string, at time.Time) error
}

type settingsReader interface {
	Get(ctx context.Context, companyID string) (*models.AutoInspectionSettings, error)
}

type pendingCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type imageStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
}

type urlSigner interface {
	Generate(resourceID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (resourceID, relPath string, expiresAt time.Time, err error)
}

type auditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type domainMetrics interface {
	IncInspectionCreated(hasIssues bool)
	IncReviewTransition(kind string)
}

// InspectionConfig tunes upload validation and cache behaviour.
type InspectionConfig struct {
	MaxImageBytes   int64
	AllowedMIMEs    []string
	CheckNeededTTL  time.Duration
	ImageURLEnabled bool
}

// InspectionService owns the inspection lifecycle: creation from wizard
// submissions, image attachment, listing, review transitions and the
// check-needed answer polled by workers.
type InspectionService struct {
	repo      inspectionRepository
	users     reviewerLookup
	requests  manualRequestFulfiller
	settings  settingsReader
	cache     pendingCache
	storage   imageStorage
	signer    urlSigner
	audit     auditRecorder
	metrics   domainMetrics
	validator *validator.Validate
	logger    *zap.Logger
	cfg       InspectionConfig
}

// NewInspectionService constructs the service.
func NewInspectionService(repo inspectionRepository, users reviewerLookup, requests manualRequestFulfiller, settings settingsReader, cache pendingCache, storage imageStorage, signer urlSigner, audit auditRecorder, metrics domainMetrics, validate *validator.Validate, logger *zap.Logger, cfg InspectionConfig) *InspectionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxImageBytes <= 0 {
		cfg.MaxImageBytes = 8 * 1024 * 1024
	}
	if cfg.CheckNeededTTL <= 0 {
		cfg.CheckNeededTTL = 15 * time.Second
	}
	return &InspectionService{
		repo:      repo,
		users:     users,
		requests:  requests,
		settings:  settings,
		cache:     cache,
		storage:   storage,
		signer:    signer,
		audit:     audit,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// ComponentInput is one component check in a create request.
type ComponentInput struct {
	Kind   models.ComponentKind   `json:"kind" validate:"required"`
	Status models.ComponentStatus `json:"status" validate:"required"`
	Notes  string                 `json:"notes"`
}

// CreateInspectionRequest is the wizard submission payload. Images are
// attached in a separate follow-up phase, never here.
type CreateInspectionRequest struct {
	TruckPlate   string           `json:"truck_plate"`
	GeneralNotes string           `json:"general_notes"`
	Components   []ComponentInput `json:"components"`
}

// ListInspectionsRequest captures list query parameters.
type ListInspectionsRequest struct {
	Plate    string
	DateFrom *time.Time
	DateTo   *time.Time
	Limit    int
	Offset   int
}

// Create validates and persists one inspection atomically. Validation
// order matches the wizard contract: plate first, then the first
// incomplete component step.
func (s *InspectionService) Create(ctx context.Context, req CreateInspectionRequest, claims *models.JWTClaims) (*models.InspectionRecord, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !models.ValidPlate(req.TruckPlate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "truck plate must have at least 3 characters")
	}
	if len(req.Components) != models.ComponentCount {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("exactly %d component checks are required", models.ComponentCount))
	}
	components := make([]models.ComponentCheck, len(req.Components))
	seen := make(map[models.ComponentKind]struct{}, len(req.Components))
	for i, input := range req.Components {
		if !input.Kind.IsValid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown component kind %q", input.Kind))
		}
		if _, dup := seen[input.Kind]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("duplicate component kind %q", input.Kind))
		}
		seen[input.Kind] = struct{}{}
		if input.Status == models.ComponentUnset || !input.Status.IsValid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("component %s has no result", input.Kind))
		}
		components[i] = models.ComponentCheck{
			Kind:     input.Kind,
			Status:   input.Status,
			Notes:    strings.TrimSpace(input.Notes),
			Position: i,
		}
	}

	hasIssues := models.ComputeHasIssues(components)
	record := &models.InspectionRecord{
		TruckPlate:    models.NormalizePlate(req.TruckPlate),
		InspectorID:   claims.UserID,
		InspectorName: claims.FullName,
		CompanyID:     claims.CompanyID,
		GeneralNotes:  strings.TrimSpace(req.GeneralNotes),
		HasIssues:     hasIssues,
		Components:    components,
		ReviewState:   models.InitialReviewState(hasIssues),
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrSubmission.Code, appErrors.ErrSubmission.Status, "failed to create inspection")
	}

	now := time.Now().UTC()
	if err := s.requests.FulfillForUser(ctx, claims.UserID, now); err != nil {
		s.logger.Warn("failed to fulfil manual requests", zap.String("user_id", claims.UserID), zap.Error(err))
	}
	s.invalidatePending(ctx, claims.CompanyID, claims.UserID)
	if s.metrics != nil {
		s.metrics.IncInspectionCreated(hasIssues)
	}
	s.recordAudit(ctx, claims, models.AuditActionInspectionCreate, "inspection", record.ID)

	return record, nil
}

// AttachImage stores one component image for an existing inspection.
// Each upload is independent: a failure here never affects the record.
func (s *InspectionService) AttachImage(ctx context.Context, inspectionID string, kind models.ComponentKind, filename, mimeType string, data []byte) error {
	if !kind.IsValid() {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown component kind %q", kind))
	}
	if int64(len(data)) > s.cfg.MaxImageBytes {
		return appErrors.Clone(appErrors.ErrValidation, "image exceeds the maximum allowed size")
	}
	if len(s.cfg.AllowedMIMEs) > 0 && !contains(s.cfg.AllowedMIMEs, mimeType) {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported image type %q", mimeType))
	}

	ext := path.Ext(filename)
	if ext == "" {
		ext = ".jpg"
	}
	relPath := fmt.Sprintf("images/%s/%s%s", inspectionID, kind, ext)
	if _, err := s.storage.Save(relPath, data); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store image")
	}
	if err := s.repo.AttachImage(ctx, inspectionID, kind, relPath); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "inspection or component not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to attach image")
	}
	return nil
}

// Get loads one inspection with signed image links.
func (s *InspectionService) Get(ctx context.Context, id string) (*models.InspectionRecord, error) {
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "inspection not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load inspection")
	}
	s.signImageURLs(record)
	return record, nil
}

// List returns inspections for the caller's company.
func (s *InspectionService) List(ctx context.Context, req ListInspectionsRequest, claims *models.JWTClaims) ([]models.InspectionRecord, *models.Pagination, error) {
	if claims == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	records, total, err := s.repo.List(ctx, models.InspectionFilter{
		CompanyID: claims.CompanyID,
		Plate:     req.Plate,
		DateFrom:  req.DateFrom,
		DateTo:    req.DateTo,
		Limit:     limit,
		Offset:    req.Offset,
	})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list inspections")
	}
	for i := range records {
		s.signImageURLs(&records[i])
	}
	page := req.Offset/limit + 1
	return records, &models.Pagination{Page: page, PageSize: limit, TotalCount: total}, nil
}

// ListPendingIssues returns problem-flagged inspections regardless of
// review state, for the supervisor dashboard.
func (s *InspectionService) ListPendingIssues(ctx context.Context, req ListInspectionsRequest, claims *models.JWTClaims) ([]models.InspectionRecord, *models.Pagination, error) {
	if claims == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	records, total, err := s.repo.List(ctx, models.InspectionFilter{
		CompanyID:  claims.CompanyID,
		OnlyIssues: true,
		Limit:      limit,
		Offset:     req.Offset,
	})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending issues")
	}
	for i := range records {
		s.signImageURLs(&records[i])
	}
	page := req.Offset/limit + 1
	return records, &models.Pagination{Page: page, PageSize: limit, TotalCount: total}, nil
}

// MarkReviewed performs the only legal manual review transition,
// Pending to Reviewed. The note is stored structurally together with the
// resolved reviewer attribution; double transitions are rejected.
func (s *InspectionService) MarkReviewed(ctx context.Context, id, note string, claims *models.JWTClaims) (*models.InspectionRecord, error) {
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
			return nil, appErrors.Clone(appErrors.ErrNotFound, "inspection not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark inspection reviewed")
	}
	if !ok {
		record, loadErr := s.repo.FindByID(ctx, id)
		if loadErr == nil && record.Status == models.ReviewNotApplicable {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "inspection has no issues to review")
		}
		return nil, appErrors.ErrAlreadyReviewed
	}

	s.invalidatePending(ctx, claims.CompanyID, "")
	if s.metrics != nil {
		s.metrics.IncReviewTransition("inspection")
	}
	s.recordAudit(ctx, claims, models.AuditActionInspectionReview, "inspection", id)

	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload inspection")
	}
	s.signImageURLs(record)
	return record, nil
}

// CheckNeeded answers whether a worker must inspect now: either automatic
// inspections are enabled and they have not inspected today, or a manual
// request targets them. Cached briefly because workers poll this often.
func (s *InspectionService) CheckNeeded(ctx context.Context, claims *models.JWTClaims) (*models.CheckNeededResult, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	cacheKey := fmt.Sprintf("pending:check:%s:%s", claims.CompanyID, claims.UserID)
	var cached models.CheckNeededResult
	if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
		return &cached, nil
	}

	result := &models.CheckNeededResult{PendingRequests: []models.ManualInspectionRequest{}}

	requests, err := s.requests.ListActiveForUser(ctx, claims.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load manual requests")
	}
	if len(requests) > 0 {
		result.PendingRequests = requests
		result.Needed = true
	}

	if !result.Needed {
		auto, err := s.settings.Get(ctx, claims.CompanyID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load auto-inspection settings")
		}
		if auto != nil && auto.Enabled {
			startOfToday := startOfDay(time.Now().UTC())
			records, _, err := s.repo.List(ctx, models.InspectionFilter{
				CompanyID:   claims.CompanyID,
				InspectorID: claims.UserID,
				DateFrom:    &startOfToday,
				Limit:       1,
			})
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check today's inspections")
			}
			result.Needed = len(records) == 0
		}
	}

	if err := s.cache.Set(ctx, cacheKey, result, s.cfg.CheckNeededTTL); err != nil {
		s.logger.Warn("failed to cache check-needed result", zap.Error(err))
	}
	return result, nil
}

// OpenImage resolves a signed image token to the stored file. The caller
// owns the returned handle and must close it when the preview is done.
func (s *InspectionService) OpenImage(token string) (*os.File, error) {
	if s.signer == nil || s.storage == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "image serving is not configured")
	}
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid image token")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "image not found")
	}
	return file, nil
}

func (s *InspectionService) signImageURLs(record *models.InspectionRecord) {
	if s.signer == nil {
		return
	}
	for i := range record.Components {
		component := &record.Components[i]
		if component.ImagePath == nil || *component.ImagePath == "" {
			continue
		}
		token, _, err := s.signer.Generate(record.ID, *component.ImagePath)
		if err != nil {
			s.logger.Warn("failed to sign image url", zap.String("inspection_id", record.ID), zap.Error(err))
			continue
		}
		component.ImageURL = "/api/v1/inspections/images/" + token
	}
}

func (s *InspectionService) invalidatePending(ctx context.Context, companyID, userID string) {
	pattern := fmt.Sprintf("pending:*:%s:*", companyID)
	if userID != "" {
		pattern = fmt.Sprintf("pending:*:%s:%s", companyID, userID)
	}
	if err := s.cache.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("failed to invalidate pending cache", zap.Error(err))
	}
}

func (s *InspectionService) recordAudit(ctx context.Context, claims *models.JWTClaims, action, resource, resourceID string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &claims.UserID,
		Action:     action,
		Resource:   resource,
		ResourceID: &resourceID,
	}); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if strings.EqualFold(item, value) {
			return true
		}
	}
	return false
}

func startOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}
