package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ruta-norte/fleet-compliance-api/internal/models"
	appErrors "github.com/ruta-norte/fleet-compliance-api/pkg/errors"
)

type mockManualRequestRepo struct {
	requests   []*models.ManualInspectionRequest
	activeFor  map[string]bool
	createErr  error
	createdFor []string
}

func (m *mockManualRequestRepo) CreateUnlessActive(_ context.Context, request *models.ManualInspectionRequest) (bool, error) {
	if m.createErr != nil {
		return false, m.createErr
	}
	m.requests = append(m.requests, request)
	if m.activeFor[request.TargetUserID] {
		return false, nil
	}
	m.createdFor = append(m.createdFor, request.TargetUserID)
	return true, nil
}

type mockWorkerLister struct {
	ids   []string
	err   error
	calls int
}

func (m *mockWorkerLister) ListActiveWorkerIDs(_ context.Context, companyID string) ([]string, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.ids, nil
}

func supervisorClaims() *models.JWTClaims {
	return &models.JWTClaims{
		UserID:    "sup-1",
		FullName:  "Luis Vega",
		CompanyID: "company-1",
		Role:      models.RoleSupervisor,
	}
}

func TestDispatchTargetedCreatesOnePerWorker(t *testing.T) {
	repo := &mockManualRequestRepo{}
	cache := &mockPendingCache{}
	audit := &mockAuditRecorder{}
	metrics := &mockDomainMetrics{}
	svc := NewDispatchService(repo, &mockWorkerLister{}, cache, audit, metrics, zap.NewNop())

	result, err := svc.Dispatch(context.Background(), DispatchRequest{
		TargetUserIDs: []string{"w1", "w2"},
		Message:       "  check your truck  ",
	}, supervisorClaims())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 0, result.Skipped)
	require.Len(t, repo.requests, 2)
	assert.Equal(t, "check your truck", repo.requests[0].Message)
	assert.Equal(t, "Luis Vega", repo.requests[0].RequestedBy)
	assert.Equal(t, "company-1", repo.requests[0].CompanyID)
	assert.Equal(t, []string{"pending:check:company-1:*"}, cache.deletedPatterns)
	assert.Equal(t, 2, metrics.requests.created)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionManualDispatch, audit.logs[0].Action)
	assert.JSONEq(t, `{"targets":2,"created":2,"skipped":0}`, string(audit.logs[0].NewValues))
}

func TestDispatchSkipsWorkersWithActiveRequest(t *testing.T) {
	repo := &mockManualRequestRepo{activeFor: map[string]bool{"w2": true}}
	svc := NewDispatchService(repo, &mockWorkerLister{}, &mockPendingCache{}, nil, nil, zap.NewNop())

	result, err := svc.Dispatch(context.Background(), DispatchRequest{
		TargetUserIDs: []string{"w1", "w2", "w3"},
	}, supervisorClaims())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, []string{"w1", "w3"}, repo.createdFor)
}

func TestDispatchBroadcastExpandsActiveWorkers(t *testing.T) {
	repo := &mockManualRequestRepo{}
	lister := &mockWorkerLister{ids: []string{"w1", "w2", "w3"}}
	svc := NewDispatchService(repo, lister, &mockPendingCache{}, nil, nil, zap.NewNop())

	result, err := svc.Dispatch(context.Background(), DispatchRequest{SendToAll: true}, supervisorClaims())
	require.NoError(t, err)

	assert.Equal(t, 1, lister.calls)
	assert.Equal(t, 3, result.Created)
}

func TestDispatchEmptyTargetsRejectedBeforeRepo(t *testing.T) {
	repo := &mockManualRequestRepo{}
	lister := &mockWorkerLister{}
	svc := NewDispatchService(repo, lister, &mockPendingCache{}, nil, nil, zap.NewNop())

	_, err := svc.Dispatch(context.Background(), DispatchRequest{}, supervisorClaims())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Empty(t, repo.requests)
	assert.Equal(t, 0, lister.calls)
}

func TestDispatchRepoFailureAborts(t *testing.T) {
	repo := &mockManualRequestRepo{createErr: errors.New("insert failed")}
	cache := &mockPendingCache{}
	svc := NewDispatchService(repo, &mockWorkerLister{}, cache, nil, nil, zap.NewNop())

	_, err := svc.Dispatch(context.Background(), DispatchRequest{TargetUserIDs: []string{"w1"}}, supervisorClaims())
	require.Error(t, err)
	assert.Empty(t, cache.deletedPatterns)
}
