// AngelaMos | 2026
// repository_test.go

package user

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/saas-metrics/internal/access"
	"github.com/carterperez-dev/saas-metrics/internal/core"
	"github.com/carterperez-dev/saas-metrics/internal/promotion"
)

func setupMockDB(t *testing.T) (Repository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})

	return NewRepository(sqlx.NewDb(db, "sqlmock")), mock
}

var userRowColumns = []string{
	"id", "tenant_id", "name", "email", "password_hash",
	"temp_password_hash", "temp_password_expires_at", "role",
	"metrics_created", "metrics_created_valuable", "can_be_analyst",
	"created_at", "updated_at",
}

func TestRepository_ListExcludesCaller(t *testing.T) {
	repo, mock := setupMockDB(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT COUNT(*) FROM users WHERE TRUE AND role = $1 AND tenant_id = $2 AND id <> $3")).
		WithArgs("viewer", tenantA, "caller").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	mock.ExpectQuery(regexp.QuoteMeta("LIMIT $4 OFFSET $5")).
		WithArgs("viewer", tenantA, "caller", 20, 0).
		WillReturnRows(sqlmock.NewRows(userRowColumns).AddRow(
			"u2", tenantA, "Bo", "bo@acme.test", "hash",
			nil, nil, "viewer",
			3, 1, true,
			now, now,
		))

	users, total, err := repo.List(context.Background(),
		access.TenantScope(tenantA).Excluding("caller"),
		ListUsersParams{Role: "viewer"})
	require.NoError(t, err)

	assert.Equal(t, 1, total)
	require.Len(t, users, 1)
	assert.Equal(t, access.RoleViewer, users[0].Role)
	assert.Equal(t, 3, users[0].MetricsCreated)
	assert.Nil(t, users[0].TempPasswordHash)
}

func TestRepository_ClearTemporaryCredentialIsConditional(t *testing.T) {
	repo, mock := setupMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND temp_password_hash = $2")).
		WithArgs("u1", "hash-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND temp_password_hash = $2")).
		WithArgs("u1", "hash-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.ClearTemporaryCredential(context.Background(), "u1", "hash-1"))

	err := repo.ClearTemporaryCredential(context.Background(), "u1", "hash-1")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestRepository_UpdateStanding(t *testing.T) {
	repo, mock := setupMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta("SET role = $2, can_be_analyst = $3")).
		WithArgs("u1", "analyst", false, 7, 5).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateStanding(context.Background(), "u1", promotion.Standing{
		Role:                   access.RoleAnalyst,
		MetricsCreated:         7,
		MetricsCreatedValuable: 5,
	})
	require.NoError(t, err)
}

func TestRepository_DeleteReturnsRemovedRow(t *testing.T) {
	repo, mock := setupMockDB(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM users")).
		WithArgs("u1", tenantA).
		WillReturnRows(sqlmock.NewRows(userRowColumns).AddRow(
			"u1", tenantA, "Ada", "ada@acme.test", "hash",
			nil, nil, "admin",
			0, 0, false,
			now, now,
		))

	u, err := repo.Delete(context.Background(), access.TenantScope(tenantA), "u1")
	require.NoError(t, err)

	require.NotNil(t, u.TenantID)
	assert.Equal(t, tenantA, *u.TenantID)
}

func TestRepository_GetByEmailMissing(t *testing.T) {
	repo, mock := setupMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE email = $1")).
		WithArgs("Ada@Acme.test").
		WillReturnRows(sqlmock.NewRows(userRowColumns))

	_, err := repo.GetByEmail(context.Background(), "Ada@Acme.test")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestRepository_UpdateLeavesDerivedFields(t *testing.T) {
	repo, mock := setupMockDB(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(
		"SET name = $2, email = $3, tenant_id = $4, updated_at = NOW() WHERE id = $1 AND tenant_id = $5")).
		WithArgs("u1", "Ada L", "ada@acme.test", tenantA, tenantA).
		WillReturnRows(sqlmock.NewRows(userRowColumns).AddRow(
			"u1", tenantA, "Ada L", "ada@acme.test", "hash",
			nil, nil, "analyst",
			5, 5, false,
			now, now,
		))

	tenantID := tenantA
	u := &User{
		ID:           "u1",
		TenantID:     &tenantID,
		Name:         "Ada L",
		Email:        "ada@acme.test",
		Role:         access.RoleViewer,
		CanBeAnalyst: true,
	}
	require.NoError(t, repo.Update(context.Background(), access.TenantScope(tenantA), u))

	assert.Equal(t, access.RoleAnalyst, u.Role)
	assert.False(t, u.CanBeAnalyst)
	assert.Equal(t, 5, u.MetricsCreatedValuable)
}

func TestRepository_AssignRole(t *testing.T) {
	repo, mock := setupMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta(
		"SET role = $2, can_be_analyst = $3, updated_at = NOW() WHERE id = $1 AND tenant_id = $4 AND id <> $5")).
		WithArgs("u2", "admin", false, tenantA, "caller").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.AssignRole(context.Background(),
		access.TenantScope(tenantA).Excluding("caller"), "u2",
		promotion.Standing{Role: access.RoleAdmin})
	require.NoError(t, err)
}
