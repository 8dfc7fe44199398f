package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ruta-norte/fleet-compliance-api/internal/models"
	appErrors "github.com/ruta-norte/fleet-compliance-api/pkg/errors"
)

type mockInspectionRepo struct {
	created      []*models.InspectionRecord
	record       *models.InspectionRecord
	listRecords  []models.InspectionRecord
	listTotal    int
	listCalls    int
	lastFilter   models.InspectionFilter
	createErr    error
	findErr      error
	listErr      error
	markOK       bool
	markErr      error
	markedStates []models.ReviewState
	attachCalls  int
	attachErr    error
}

func (m *mockInspectionRepo) Create(_ context.Context, record *models.InspectionRecord) error {
	if m.createErr != nil {
		return m.createErr
	}
	record.ID = "insp-1"
	m.created = append(m.created, record)
	return nil
}

func (m *mockInspectionRepo) FindByID(_ context.Context, id string) (*models.InspectionRecord, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	if m.record == nil {
		return nil, sql.ErrNoRows
	}
	return m.record, nil
}

func (m *mockInspectionRepo) List(_ context.Context, filter models.InspectionFilter) ([]models.InspectionRecord, int, error) {
	m.listCalls++
	m.lastFilter = filter
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	return m.listRecords, m.listTotal, nil
}

func (m *mockInspectionRepo) MarkReviewed(_ context.Context, id string, state models.ReviewState) (bool, error) {
	if m.markErr != nil {
		return false, m.markErr
	}
	m.markedStates = append(m.markedStates, state)
	return m.markOK, nil
}

func (m *mockInspectionRepo) AttachImage(_ context.Context, inspectionID string, kind models.ComponentKind, imagePath string) error {
	m.attachCalls++
	return m.attachErr
}

type mockReviewerLookup struct {
	user *models.User
	err  error
}

func (m *mockReviewerLookup) FindByID(_ context.Context, id string) (*models.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.user == nil {
		return nil, sql.ErrNoRows
	}
	return m.user, nil
}

type mockRequestFulfiller struct {
	active       []models.ManualInspectionRequest
	activeErr    error
	fulfilCalls  int
	fulfilUserID string
	fulfilErr    error
}

func (m *mockRequestFulfiller) ListActiveForUser(_ context.Context, userID string) ([]models.ManualInspectionRequest, error) {
	if m.activeErr != nil {
		return nil, m.activeErr
	}
	return m.active, nil
}

func (m *mockRequestFulfiller) FulfillForUser(_ context.Context, userID string, _ time.Time) error {
	m.fulfilCalls++
	m.fulfilUserID = userID
	return m.fulfilErr
}

type mockSettingsReader struct {
	settings *models.AutoInspectionSettings
	err      error
}

func (m *mockSettingsReader) Get(_ context.Context, companyID string) (*models.AutoInspectionSettings, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.settings == nil {
		return nil, sql.ErrNoRows
	}
	return m.settings, nil
}

type mockPendingCache struct {
	store           map[string][]byte
	deletedPatterns []string
}

func (m *mockPendingCache) Get(_ context.Context, key string, dest interface{}) error {
	payload, ok := m.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(payload, dest)
}

func (m *mockPendingCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	if m.store == nil {
		m.store = make(map[string][]byte)
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.store[key] = payload
	return nil
}

func (m *mockPendingCache) DeleteByPattern(_ context.Context, pattern string) error {
	m.deletedPatterns = append(m.deletedPatterns, pattern)
	return nil
}

type mockImageStorage struct {
	saved    map[string][]byte
	saveErr  error
	openErr  error
	openFile *os.File
}

func (m *mockImageStorage) Save(filename string, data []byte) (string, error) {
	if m.saveErr != nil {
		return "", m.saveErr
	}
	if m.saved == nil {
		m.saved = make(map[string][]byte)
	}
	m.saved[filename] = data
	return filename, nil
}

func (m *mockImageStorage) Open(filename string) (*os.File, error) {
	if m.openErr != nil {
		return nil, m.openErr
	}
	return m.openFile, nil
}

type mockURLSigner struct {
	parseErr error
	relPath  string
}

func (m *mockURLSigner) Generate(resourceID, relPath string) (string, time.Time, error) {
	return "tok-" + resourceID, time.Now().Add(time.Hour), nil
}

func (m *mockURLSigner) Parse(token string, _ bool) (string, string, time.Time, error) {
	if m.parseErr != nil {
		return "", "", time.Time{}, m.parseErr
	}
	return "res", m.relPath, time.Now().Add(time.Hour), nil
}

type mockAuditRecorder struct {
	logs []*models.AuditLog
}

func (m *mockAuditRecorder) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	m.logs = append(m.logs, log)
	return nil
}

type mockDomainMetrics struct {
	created     int
	createdBad  int
	transitions map[string]int
	requests    struct{ created, skipped int }
}

func (m *mockDomainMetrics) IncInspectionCreated(hasIssues bool) {
	m.created++
	if hasIssues {
		m.createdBad++
	}
}

func (m *mockDomainMetrics) IncReviewTransition(kind string) {
	if m.transitions == nil {
		m.transitions = make(map[string]int)
	}
	m.transitions[kind]++
}

func (m *mockDomainMetrics) AddManualRequests(created, skipped int) {
	m.requests.created += created
	m.requests.skipped += skipped
}

type inspectionFixture struct {
	repo     *mockInspectionRepo
	users    *mockReviewerLookup
	requests *mockRequestFulfiller
	settings *mockSettingsReader
	cache    *mockPendingCache
	storage  *mockImageStorage
	signer   *mockURLSigner
	audit    *mockAuditRecorder
	metrics  *mockDomainMetrics
	svc      *InspectionService
}

func newInspectionFixture() *inspectionFixture {
	f := &inspectionFixture{
		repo:     &mockInspectionRepo{},
		users:    &mockReviewerLookup{},
		requests: &mockRequestFulfiller{},
		settings: &mockSettingsReader{},
		cache:    &mockPendingCache{},
		storage:  &mockImageStorage{},
		signer:   &mockURLSigner{},
		audit:    &mockAuditRecorder{},
		metrics:  &mockDomainMetrics{},
	}
	f.svc = NewInspectionService(f.repo, f.users, f.requests, f.settings, f.cache, f.storage, f.signer, f.audit, f.metrics, nil, zap.NewNop(), InspectionConfig{})
	return f
}

func workerClaims() *models.JWTClaims {
	return &models.JWTClaims{
		UserID:    "user-1",
		FullName:  "Ana Torres",
		CompanyID: "company-1",
		Role:      models.RoleWorker,
	}
}

func completeComponents(statuses ...models.ComponentStatus) []ComponentInput {
	kinds := models.ComponentKinds()
	inputs := make([]ComponentInput, len(kinds))
	for i, kind := range kinds {
		status := models.ComponentOK
		if i < len(statuses) {
			status = statuses[i]
		}
		inputs[i] = ComponentInput{Kind: kind, Status: status}
	}
	return inputs
}

func TestCreateInspectionCleanChecklistAutoArchives(t *testing.T) {
	f := newInspectionFixture()

	record, err := f.svc.Create(context.Background(), CreateInspectionRequest{
		TruckPlate: " abc123 ",
		Components: completeComponents(),
	}, workerClaims())
	require.NoError(t, err)

	assert.Equal(t, "ABC123", record.TruckPlate)
	assert.False(t, record.HasIssues)
	assert.Equal(t, models.ReviewNotApplicable, record.Status)
	assert.Equal(t, "user-1", record.InspectorID)
	require.Len(t, f.repo.created, 1)
	assert.Equal(t, 1, f.requests.fulfilCalls)
	assert.Equal(t, "user-1", f.requests.fulfilUserID)
	assert.Equal(t, 1, f.metrics.created)
	assert.Equal(t, 0, f.metrics.createdBad)
	require.Len(t, f.audit.logs, 1)
	assert.Equal(t, models.AuditActionInspectionCreate, f.audit.logs[0].Action)
}

func TestCreateInspectionProblemComponentGoesPending(t *testing.T) {
	f := newInspectionFixture()

	record, err := f.svc.Create(context.Background(), CreateInspectionRequest{
		TruckPlate: "ABC123",
		Components: completeComponents(models.ComponentProblem),
	}, workerClaims())
	require.NoError(t, err)

	assert.True(t, record.HasIssues)
	assert.Equal(t, models.ReviewPending, record.Status)
	assert.Equal(t, 1, f.metrics.createdBad)
}

func TestCreateInspectionValidationNeverTouchesRepo(t *testing.T) {
	f := newInspectionFixture()
	claims := workerClaims()

	cases := []struct {
		name string
		req  CreateInspectionRequest
	}{
		{"short plate", CreateInspectionRequest{TruckPlate: "AB", Components: completeComponents()}},
		{"missing components", CreateInspectionRequest{TruckPlate: "ABC123", Components: completeComponents()[:4]}},
		{"unset component", CreateInspectionRequest{TruckPlate: "ABC123", Components: completeComponents(models.ComponentUnset)}},
		{"unknown kind", CreateInspectionRequest{TruckPlate: "ABC123", Components: func() []ComponentInput {
			inputs := completeComponents()
			inputs[2].Kind = "WINGS"
			return inputs
		}()}},
		{"duplicate kind", CreateInspectionRequest{TruckPlate: "ABC123", Components: func() []ComponentInput {
			inputs := completeComponents()
			inputs[1].Kind = inputs[0].Kind
			return inputs
		}()}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Create(context.Background(), tc.req, claims)
			require.Error(t, err)
			appErr := appErrors.FromError(err)
			assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
		})
	}
	assert.Empty(t, f.repo.created)
	assert.Equal(t, 0, f.requests.fulfilCalls)
	assert.Empty(t, f.audit.logs)
}

func TestCreateInspectionRepoFailureMapsToSubmissionError(t *testing.T) {
	f := newInspectionFixture()
	f.repo.createErr = errors.New("insert failed")

	_, err := f.svc.Create(context.Background(), CreateInspectionRequest{
		TruckPlate: "ABC123",
		Components: completeComponents(),
	}, workerClaims())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrSubmission.Code, appErr.Code)
	assert.Equal(t, 0, f.requests.fulfilCalls)
}

func TestCreateInspectionInvalidatesWorkerPendingCache(t *testing.T) {
	f := newInspectionFixture()

	_, err := f.svc.Create(context.Background(), CreateInspectionRequest{
		TruckPlate: "ABC123",
		Components: completeComponents(),
	}, workerClaims())
	require.NoError(t, err)

	require.Len(t, f.cache.deletedPatterns, 1)
	assert.Equal(t, "pending:*:company-1:user-1", f.cache.deletedPatterns[0])
}

func TestAttachImageRejectsOversizedUpload(t *testing.T) {
	f := newInspectionFixture()
	f.svc.cfg.MaxImageBytes = 4

	err := f.svc.AttachImage(context.Background(), "insp-1", models.ComponentTires, "tire.jpg", "image/jpeg", []byte("too big"))
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Empty(t, f.storage.saved)
	assert.Equal(t, 0, f.repo.attachCalls)
}

func TestAttachImageStoresUnderInspectionPath(t *testing.T) {
	f := newInspectionFixture()

	err := f.svc.AttachImage(context.Background(), "insp-1", models.ComponentBrakes, "brake.png", "image/png", []byte{1, 2, 3})
	require.NoError(t, err)
	assert.Contains(t, f.storage.saved, "images/insp-1/BRAKES.png")
	assert.Equal(t, 1, f.repo.attachCalls)
}

func TestAttachImageUnknownInspectionIsNotFound(t *testing.T) {
	f := newInspectionFixture()
	f.repo.attachErr = sql.ErrNoRows

	err := f.svc.AttachImage(context.Background(), "missing", models.ComponentBody, "a.jpg", "image/jpeg", []byte{1})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestMarkReviewedStoresStructuredAttribution(t *testing.T) {
	f := newInspectionFixture()
	f.repo.markOK = true
	f.users.user = &models.User{ID: "sup-1", FirstName: "Luis", LastName: "Vega"}
	reviewedAt := time.Date(2025, time.June, 2, 15, 4, 0, 0, time.UTC)
	note := "replaced front-left tire"
	f.repo.record = &models.InspectionRecord{
		ID:         "insp-1",
		HasIssues:  true,
		TruckPlate: "ABC123",
		ReviewState: models.ReviewState{
			Status:       models.ReviewReviewed,
			ReviewerName: strPtr("Luis Vega"),
			ReviewedAt:   &reviewedAt,
			Notes:        &note,
		},
	}
	claims := workerClaims()
	claims.Role = models.RoleSupervisor
	claims.UserID = "sup-1"

	record, err := f.svc.MarkReviewed(context.Background(), "insp-1", "  replaced front-left tire  ", claims)
	require.NoError(t, err)

	require.Len(t, f.repo.markedStates, 1)
	state := f.repo.markedStates[0]
	assert.Equal(t, models.ReviewReviewed, state.Status)
	assert.Equal(t, "Luis Vega", *state.ReviewerName)
	assert.Equal(t, "replaced front-left tire", *state.Notes)
	assert.NotNil(t, state.ReviewedAt)

	assert.Equal(t, "replaced front-left tire\n\nRevisado por Luis Vega el 02/06/2025 15:04", record.DisplayNote())
	assert.Equal(t, 1, f.metrics.transitions["inspection"])
	require.Len(t, f.audit.logs, 1)
	assert.Equal(t, models.AuditActionInspectionReview, f.audit.logs[0].Action)
}

func TestMarkReviewedTwiceIsConflict(t *testing.T) {
	f := newInspectionFixture()
	f.repo.markOK = false
	f.repo.record = &models.InspectionRecord{
		ID:          "insp-1",
		ReviewState: models.ReviewState{Status: models.ReviewReviewed},
	}

	_, err := f.svc.MarkReviewed(context.Background(), "insp-1", "", workerClaims())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrAlreadyReviewed.Code, appErr.Code)
}

func TestMarkReviewedWithoutIssuesFailsPrecondition(t *testing.T) {
	f := newInspectionFixture()
	f.repo.markOK = false
	f.repo.record = &models.InspectionRecord{
		ID:          "insp-1",
		ReviewState: models.ReviewState{Status: models.ReviewNotApplicable},
	}

	_, err := f.svc.MarkReviewed(context.Background(), "insp-1", "", workerClaims())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErr.Code)
}

func TestMarkReviewedUnknownInspectionIsNotFound(t *testing.T) {
	f := newInspectionFixture()
	f.repo.markErr = sql.ErrNoRows

	_, err := f.svc.MarkReviewed(context.Background(), "missing", "", workerClaims())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestCheckNeededManualRequestWins(t *testing.T) {
	f := newInspectionFixture()
	f.requests.active = []models.ManualInspectionRequest{{ID: "req-1", TargetUserID: "user-1", Message: "inspect now"}}
	f.settings.settings = &models.AutoInspectionSettings{Enabled: false}

	result, err := f.svc.CheckNeeded(context.Background(), workerClaims())
	require.NoError(t, err)
	assert.True(t, result.Needed)
	require.Len(t, result.PendingRequests, 1)
	assert.Equal(t, "req-1", result.PendingRequests[0].ID)
	assert.Equal(t, 0, f.repo.listCalls)
}

func TestCheckNeededAutoEnabledWithoutTodayInspection(t *testing.T) {
	f := newInspectionFixture()
	f.settings.settings = &models.AutoInspectionSettings{Enabled: true}
	f.repo.listRecords = nil

	result, err := f.svc.CheckNeeded(context.Background(), workerClaims())
	require.NoError(t, err)
	assert.True(t, result.Needed)
	assert.Equal(t, 1, f.repo.listCalls)
	assert.Equal(t, "user-1", f.repo.lastFilter.InspectorID)
	require.NotNil(t, f.repo.lastFilter.DateFrom)
}

func TestCheckNeededSatisfiedByTodayInspection(t *testing.T) {
	f := newInspectionFixture()
	f.settings.settings = &models.AutoInspectionSettings{Enabled: true}
	f.repo.listRecords = []models.InspectionRecord{{ID: "insp-1"}}
	f.repo.listTotal = 1

	result, err := f.svc.CheckNeeded(context.Background(), workerClaims())
	require.NoError(t, err)
	assert.False(t, result.Needed)
	assert.Empty(t, result.PendingRequests)
}

func TestCheckNeededMissingSettingsMeansDisabled(t *testing.T) {
	f := newInspectionFixture()

	result, err := f.svc.CheckNeeded(context.Background(), workerClaims())
	require.NoError(t, err)
	assert.False(t, result.Needed)
	assert.Equal(t, 0, f.repo.listCalls)
}

func TestCheckNeededSecondCallServedFromCache(t *testing.T) {
	f := newInspectionFixture()
	f.settings.settings = &models.AutoInspectionSettings{Enabled: true}

	first, err := f.svc.CheckNeeded(context.Background(), workerClaims())
	require.NoError(t, err)
	assert.Equal(t, 1, f.repo.listCalls)

	second, err := f.svc.CheckNeeded(context.Background(), workerClaims())
	require.NoError(t, err)
	assert.Equal(t, 1, f.repo.listCalls)
	assert.Equal(t, first.Needed, second.Needed)
}

func TestGetSignsComponentImageURLs(t *testing.T) {
	f := newInspectionFixture()
	imagePath := "images/insp-1/TIRES.jpg"
	f.repo.record = &models.InspectionRecord{
		ID: "insp-1",
		Components: []models.ComponentCheck{
			{Kind: models.ComponentTires, Status: models.ComponentProblem, ImagePath: &imagePath},
			{Kind: models.ComponentBrakes, Status: models.ComponentOK},
		},
	}

	record, err := f.svc.Get(context.Background(), "insp-1")
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/inspections/images/tok-insp-1", record.Components[0].ImageURL)
	assert.Empty(t, record.Components[1].ImageURL)
}

func TestOpenImageRejectsBadToken(t *testing.T) {
	f := newInspectionFixture()
	f.signer.parseErr = errors.New("signature mismatch")

	_, err := f.svc.OpenImage("bad-token")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
}

func TestOpenImageMissingFileIsNotFound(t *testing.T) {
	f := newInspectionFixture()
	f.signer.relPath = "images/insp-1/TIRES.jpg"
	f.storage.openErr = os.ErrNotExist

	_, err := f.svc.OpenImage("tok")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func strPtr(s string) *string { return &s }
