package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruta-norte/fleet-compliance-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func inspectionRows(records ...models.InspectionRecord) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "truck_plate", "inspector_id", "inspector_name", "company_id",
		"general_notes", "has_issues", "created_at",
		"review_status", "reviewer_id", "reviewer_name", "reviewed_at", "review_notes",
	})
	for _, r := range records {
		rows.AddRow(r.ID, r.TruckPlate, r.InspectorID, r.InspectorName, r.CompanyID,
			r.GeneralNotes, r.HasIssues, r.CreatedAt,
			string(r.Status), r.ReviewerID, r.ReviewerName, r.ReviewedAt, r.Notes)
	}
	return rows
}

func componentRows(components ...models.ComponentCheck) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "inspection_id", "kind", "status", "notes", "image_path", "position"})
	for _, c := range components {
		rows.AddRow(c.ID, c.InspectionID, string(c.Kind), string(c.Status), c.Notes, c.ImagePath, c.Position)
	}
	return rows
}

func TestInspectionRepositoryCreateInsertsRecordAndComponents(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewInspectionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO inspections").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO inspection_components").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO inspection_components").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	record := &models.InspectionRecord{
		TruckPlate:    "ABC123",
		InspectorID:   "user-1",
		InspectorName: "Ana Torres",
		CompanyID:     "company-1",
		HasIssues:     true,
		Components: []models.ComponentCheck{
			{Kind: models.ComponentTires, Status: models.ComponentProblem},
			{Kind: models.ComponentBrakes, Status: models.ComponentOK},
		},
		ReviewState: models.ReviewState{Status: models.ReviewPending},
	}
	require.NoError(t, repo.Create(context.Background(), record))

	assert.NotEmpty(t, record.ID)
	assert.False(t, record.CreatedAt.IsZero())
	assert.Equal(t, record.ID, record.Components[0].InspectionID)
	assert.Equal(t, 1, record.Components[1].Position)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInspectionRepositoryCreateRollsBackOnComponentFailure(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewInspectionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO inspections").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO inspection_components").
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	record := &models.InspectionRecord{
		TruckPlate: "ABC123",
		Components: []models.ComponentCheck{{Kind: models.ComponentTires, Status: models.ComponentOK}},
	}
	require.Error(t, repo.Create(context.Background(), record))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInspectionRepositoryFindByIDLoadsComponents(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewInspectionRepository(db)

	created := time.Now().UTC()
	mock.ExpectQuery("SELECT id, truck_plate, .+ FROM inspections WHERE id = \\$1").
		WithArgs("insp-1").
		WillReturnRows(inspectionRows(models.InspectionRecord{
			ID: "insp-1", TruckPlate: "ABC123", InspectorID: "user-1", InspectorName: "Ana",
			CompanyID: "company-1", HasIssues: true, CreatedAt: created,
			ReviewState: models.ReviewState{Status: models.ReviewPending},
		}))
	mock.ExpectQuery("SELECT id, inspection_id, kind, status, notes, image_path, position").
		WillReturnRows(componentRows(
			models.ComponentCheck{ID: "c1", InspectionID: "insp-1", Kind: models.ComponentTires, Status: models.ComponentProblem, Position: 0},
			models.ComponentCheck{ID: "c2", InspectionID: "insp-1", Kind: models.ComponentBrakes, Status: models.ComponentOK, Position: 1},
		))

	record, err := repo.FindByID(context.Background(), "insp-1")
	require.NoError(t, err)
	assert.Equal(t, "ABC123", record.TruckPlate)
	require.Len(t, record.Components, 2)
	assert.Equal(t, models.ComponentTires, record.Components[0].Kind)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInspectionRepositoryFindByIDMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewInspectionRepository(db)

	mock.ExpectQuery("SELECT id, truck_plate, .+ FROM inspections WHERE id = \\$1").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInspectionRepositoryListAppliesFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewInspectionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE 1=1 AND company_id = $1 AND truck_plate ILIKE $2 AND has_issues ORDER BY created_at DESC, id DESC LIMIT 20 OFFSET 0")).
		WithArgs("company-1", "%ABC%").
		WillReturnRows(inspectionRows(models.InspectionRecord{
			ID: "insp-1", TruckPlate: "ABC123", CompanyID: "company-1", HasIssues: true, CreatedAt: time.Now().UTC(),
			ReviewState: models.ReviewState{Status: models.ReviewPending},
		}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM inspections WHERE 1=1 AND company_id = $1 AND truck_plate ILIKE $2 AND has_issues")).
		WithArgs("company-1", "%ABC%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))
	mock.ExpectQuery("SELECT id, inspection_id, kind, status, notes, image_path, position").
		WillReturnRows(componentRows())

	records, total, err := repo.List(context.Background(), models.InspectionFilter{
		CompanyID:  "company-1",
		Plate:      "abc",
		OnlyIssues: true,
		Limit:      20,
	})
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, 7, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInspectionRepositoryMarkReviewedOnlyTouchesPending(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewInspectionRepository(db)

	state := models.Reviewed("sup-1", "Luis Vega", "fixed", time.Now().UTC())
	mock.ExpectExec("UPDATE inspections").
		WithArgs("insp-1", string(models.ReviewReviewed), state.ReviewerID, state.ReviewerName, state.ReviewedAt, state.Notes, string(models.ReviewPending)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.MarkReviewed(context.Background(), "insp-1", state)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInspectionRepositoryMarkReviewedDistinguishesMissingFromConflict(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewInspectionRepository(db)
	state := models.Reviewed("sup-1", "Luis", "", time.Now().UTC())

	mock.ExpectExec("UPDATE inspections").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM inspections WHERE id = $1)")).
		WithArgs("already").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := repo.MarkReviewed(context.Background(), "already", state)
	require.NoError(t, err)
	assert.False(t, ok)

	mock.ExpectExec("UPDATE inspections").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM inspections WHERE id = $1)")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	_, err = repo.MarkReviewed(context.Background(), "missing", state)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInspectionRepositoryAttachImageMissingComponent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewInspectionRepository(db)

	mock.ExpectExec("UPDATE inspection_components SET image_path").
		WithArgs("insp-1", string(models.ComponentTires), "images/insp-1/TIRES.jpg").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.AttachImage(context.Background(), "insp-1", models.ComponentTires, "images/insp-1/TIRES.jpg")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
