// AngelaMos | 2026
// repository_test.go

package metric

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/saas-metrics/internal/access"
	"github.com/carterperez-dev/saas-metrics/internal/core"
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

var metricRowColumns = []string{"id", "tenant_id", "name", "value", "date", "created_at", "updated_at"}

func TestRepository_GetByIDScoped(t *testing.T) {
	repo, mock := setupMockDB(t)
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1 AND tenant_id = $2")).
		WithArgs("m1", tenantA).
		WillReturnRows(sqlmock.NewRows(metricRowColumns).
			AddRow("m1", tenantA, "revenue", 42.5, now, now, now))

	m, err := repo.GetByID(context.Background(), access.TenantScope(tenantA), "m1")
	require.NoError(t, err)

	assert.Equal(t, "revenue", m.Name)
	assert.Equal(t, 42.5, m.Value)
	require.NotNil(t, m.TenantID)
	assert.Equal(t, tenantA, *m.TenantID)
}

func TestRepository_GetByIDMissing(t *testing.T) {
	repo, mock := setupMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM metrics")).
		WithArgs("m1").
		WillReturnRows(sqlmock.NewRows(metricRowColumns))

	_, err := repo.GetByID(context.Background(), access.Unrestricted(), "m1")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestRepository_ListFiltersAndPages(t *testing.T) {
	repo, mock := setupMockDB(t)
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT COUNT(*) FROM metrics WHERE TRUE AND name ILIKE $1 AND tenant_id = $2")).
		WithArgs("%50\\%%", tenantA).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	mock.ExpectQuery(regexp.QuoteMeta("LIMIT $3 OFFSET $4")).
		WithArgs("%50\\%%", tenantA, 10, 10).
		WillReturnRows(sqlmock.NewRows(metricRowColumns).
			AddRow("m1", tenantA, "50% margin", 1.0, now, now, now))

	metrics, total, err := repo.List(context.Background(), access.TenantScope(tenantA), ListMetricsParams{
		Page:     2,
		PageSize: 10,
		Search:   "50%",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, total)
	require.Len(t, metrics, 1)
	assert.Equal(t, "50% margin", metrics[0].Name)
}

func TestRepository_DeleteNotFound(t *testing.T) {
	repo, mock := setupMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM metrics WHERE id = $1 AND tenant_id = $2")).
		WithArgs("m1", tenantB).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), access.TenantScope(tenantB), "m1")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestRepository_DeleteByTenant(t *testing.T) {
	repo, mock := setupMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM metrics WHERE tenant_id = $1")).
		WithArgs(tenantA).
		WillReturnResult(sqlmock.NewResult(0, 7))

	n, err := repo.DeleteByTenant(context.Background(), tenantA)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
}

func TestRepository_ValuesByTenant(t *testing.T) {
	repo, mock := setupMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT value FROM metrics WHERE tenant_id = $1")).
		WithArgs(tenantA).
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(10.0).AddRow(55.5))

	values, err := repo.ValuesByTenant(context.Background(), tenantA)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 55.5}, values)
}

func TestRepository_StoreFailure(t *testing.T) {
	repo, mock := setupMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT value FROM metrics")).
		WithArgs(tenantA).
		WillReturnError(errors.New("connection reset by peer"))

	_, err := repo.ValuesByTenant(context.Background(), tenantA)
	assert.ErrorIs(t, err, core.ErrStoreUnavailable)
}
