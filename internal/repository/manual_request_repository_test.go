package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruta-norte/fleet-compliance-api/internal/models"
)

func TestManualRequestCreateUnlessActiveGuardedInsert(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewManualRequestRepository(db)

	mock.ExpectExec("INSERT INTO manual_inspection_requests").
		WithArgs(sqlmock.AnyArg(), "w1", "Luis Vega", "sup-1", "company-1", "inspect now", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	created, err := repo.CreateUnlessActive(context.Background(), &models.ManualInspectionRequest{
		TargetUserID:  "w1",
		RequestedBy:   "Luis Vega",
		RequestedByID: "sup-1",
		CompanyID:     "company-1",
		Message:       "inspect now",
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestManualRequestCreateUnlessActiveSkipsWhenActiveExists(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewManualRequestRepository(db)

	mock.ExpectExec("INSERT INTO manual_inspection_requests").
		WillReturnResult(sqlmock.NewResult(0, 0))

	created, err := repo.CreateUnlessActive(context.Background(), &models.ManualInspectionRequest{TargetUserID: "w1"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestManualRequestListActiveForUser(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewManualRequestRepository(db)

	rows := sqlmock.NewRows([]string{"id", "target_user_id", "requested_by", "requested_by_id", "company_id", "message", "created_at", "fulfilled_at"}).
		AddRow("req-1", "w1", "Luis", "sup-1", "company-1", "inspect", time.Now().UTC(), nil)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE target_user_id = $1 AND fulfilled_at IS NULL")).
		WithArgs("w1").
		WillReturnRows(rows)

	requests, err := repo.ListActiveForUser(context.Background(), "w1")
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.True(t, requests[0].Active())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestManualRequestFulfillForUserClosesAllActive(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewManualRequestRepository(db)

	at := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE manual_inspection_requests SET fulfilled_at = $2")).
		WithArgs("w1", at).
		WillReturnResult(sqlmock.NewResult(0, 3))

	require.NoError(t, repo.FulfillForUser(context.Background(), "w1", at))
	assert.NoError(t, mock.ExpectationsWereMet())
}
