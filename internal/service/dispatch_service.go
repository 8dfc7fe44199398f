package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ruta-norte/fleet-compliance-api/internal/models"
	appErrors "github.com/ruta-norte/fleet-compliance-api/pkg/errors"
)

type manualRequestRepository interface {
	CreateUnlessActive(ctx context.Context, request *models.ManualInspectionRequest) (bool, error)
}

type workerLister interface {
	ListActiveWorkerIDs(ctx context.Context, companyID string) ([]string, error)
}

type dispatchMetrics interface {
	AddManualRequests(created, skipped int)
}

// DispatchService builds and submits manual inspection request batches.
// Deduplication happens in the database, one guarded insert per target;
// the created/skipped counts returned are informational only.
type DispatchService struct {
	requests manualRequestRepository
	users    workerLister
	cache    pendingCache
	audit    auditRecorder
	metrics  dispatchMetrics
	logger   *zap.Logger
}

// NewDispatchService constructs the service.
func NewDispatchService(requests manualRequestRepository, users workerLister, cache pendingCache, audit auditRecorder, metrics dispatchMetrics, logger *zap.Logger) *DispatchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DispatchService{requests: requests, users: users, cache: cache, audit: audit, metrics: metrics, logger: logger}
}

// DispatchRequest is the broadcast/targeted reminder payload.
type DispatchRequest struct {
	SendToAll     bool     `json:"send_to_all"`
	TargetUserIDs []string `json:"target_user_ids"`
	Message       string   `json:"message"`
}

// Dispatch validates the payload, expands broadcast targets and issues
// one deduplicated insert per worker. A targeted dispatch with no targets
// fails before any repository work happens.
func (s *DispatchService) Dispatch(ctx context.Context, req DispatchRequest, claims *models.JWTClaims) (*models.DispatchResult, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !req.SendToAll && len(req.TargetUserIDs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "target user list cannot be empty unless sending to all")
	}

	targets := req.TargetUserIDs
	if req.SendToAll {
		all, err := s.users.ListActiveWorkerIDs(ctx, claims.CompanyID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to expand broadcast targets")
		}
		targets = all
	}

	message := strings.TrimSpace(req.Message)
	result := &models.DispatchResult{}
	for _, userID := range targets {
		created, err := s.requests.CreateUnlessActive(ctx, &models.ManualInspectionRequest{
			TargetUserID:  userID,
			RequestedBy:   claims.FullName,
			RequestedByID: claims.UserID,
			CompanyID:     claims.CompanyID,
			Message:       message,
		})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to dispatch manual request")
		}
		if created {
			result.Created++
		} else {
			result.Skipped++
		}
	}

	if s.cache != nil {
		if err := s.cache.DeleteByPattern(ctx, fmt.Sprintf("pending:check:%s:*", claims.CompanyID)); err != nil {
			s.logger.Warn("failed to invalidate check-needed cache", zap.Error(err))
		}
	}
	if s.metrics != nil {
		s.metrics.AddManualRequests(result.Created, result.Skipped)
	}
	if s.audit != nil {
		values, _ := json.Marshal(map[string]int{
			"targets": len(targets),
			"created": result.Created,
			"skipped": result.Skipped,
		})
		if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
			UserID:    &claims.UserID,
			Action:    models.AuditActionManualDispatch,
			Resource:  "manual_request",
			NewValues: values,
		}); err != nil {
			s.logger.Warn("failed to record dispatch audit log", zap.Error(err))
		}
	}

	return result, nil
}
