package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruta-norte/fleet-compliance-api/internal/models"
)

func userRows(users ...models.User) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "email", "password_hash", "first_name", "last_name", "full_name",
		"role", "company_id", "active", "last_login", "created_at", "updated_at",
	})
	for _, u := range users {
		rows.AddRow(u.ID, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.FullName,
			string(u.Role), u.CompanyID, u.Active, u.LastLogin, u.CreatedAt, u.UpdatedAt)
	}
	return rows
}

func TestUserRepositoryFindByEmail(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery("SELECT id, email, .+ FROM users WHERE email = \\$1").
		WithArgs("ana@example.com").
		WillReturnRows(userRows(models.User{
			ID: "user-1", Email: "ana@example.com", FirstName: "Ana", LastName: "Torres",
			Role: models.RoleWorker, CompanyID: "company-1", Active: true,
			CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
		}))

	user, err := repo.FindByEmail(context.Background(), "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Ana Torres", user.DisplayName())
	assert.Equal(t, "company-1", user.CompanyID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryFindByIDMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery("SELECT id, email, .+ FROM users WHERE id = \\$1").
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "ghost")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryListActiveWorkerIDs(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	rows := sqlmock.NewRows([]string{"id"}).AddRow("w1").AddRow("w2")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM users WHERE company_id = $1 AND role = $2 AND active")).
		WithArgs("company-1", string(models.RoleWorker)).
		WillReturnRows(rows)

	ids, err := repo.ListActiveWorkerIDs(context.Background(), "company-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"w1", "w2"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryRefreshTokenRoundTrip(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO refresh_tokens").
		WillReturnResult(sqlmock.NewResult(0, 1))

	token := &models.RefreshToken{
		ID:        "rt-1",
		UserID:    "user-1",
		Token:     "opaque-token",
		ExpiresAt: time.Now().UTC().Add(24 * time.Hour),
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.CreateRefreshToken(context.Background(), token))

	mock.ExpectQuery(regexp.QuoteMeta("FROM refresh_tokens WHERE token = $1")).
		WithArgs("opaque-token").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "token", "expires_at", "created_at", "revoked", "revoked_at", "ip_address", "user_agent"}).
			AddRow("rt-1", "user-1", "opaque-token", token.ExpiresAt, token.CreatedAt, false, nil, "", ""))

	stored, err := repo.FindRefreshToken(context.Background(), "opaque-token")
	require.NoError(t, err)
	assert.Equal(t, "rt-1", stored.ID)
	assert.False(t, stored.Revoked)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE id = $1")).
		WithArgs("rt-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.RevokeRefreshToken(context.Background(), "rt-1", time.Now().UTC()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryCreateAuditLogFillsDefaults(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO audit_logs").
		WillReturnResult(sqlmock.NewResult(0, 1))

	log := &models.AuditLog{Action: "INSPECTION_CREATE", Resource: "inspection"}
	require.NoError(t, repo.CreateAuditLog(context.Background(), log))
	assert.NotEmpty(t, log.ID)
	assert.False(t, log.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}
