// AngelaMos | 2026
// repository.go

package metric

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/carterperez-dev/saas-metrics/internal/access"
	"github.com/carterperez-dev/saas-metrics/internal/core"
)

// exportLimit caps a single spreadsheet export.
const exportLimit = 10000

type Repository interface {
	Create(ctx context.Context, m *Metric) error
	GetByID(ctx context.Context, scope access.Scope, id string) (*Metric, error)
	List(ctx context.Context, scope access.Scope, params ListMetricsParams) ([]Metric, int, error)
	ListForExport(ctx context.Context, scope access.Scope) ([]Metric, error)
	Update(ctx context.Context, scope access.Scope, m *Metric) error
	Delete(ctx context.Context, scope access.Scope, id string) error
	DeleteByTenant(ctx context.Context, tenantID string) (int64, error)
	ValuesByTenant(ctx context.Context, tenantID string) ([]float64, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const metricColumns = `id, tenant_id, name, value, date, created_at, updated_at`

func (r *repository) Create(ctx context.Context, m *Metric) error {
	query := `
		INSERT INTO metrics (id, tenant_id, name, value, date)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`

	err := r.db.GetContext(ctx, m, query,
		m.ID,
		m.TenantID,
		m.Name,
		m.Value,
		m.Date,
	)
	if err != nil {
		return fmt.Errorf("create metric: %w", core.StoreError(err))
	}

	return nil
}

func (r *repository) GetByID(
	ctx context.Context,
	scope access.Scope,
	id string,
) (*Metric, error) {
	conditions, args := scope.Where("tenant_id", "", []string{"id = $1"}, []any{id})

	query := fmt.Sprintf(`
		SELECT %s
		FROM metrics
		WHERE %s`, metricColumns, strings.Join(conditions, " AND "))

	var m Metric
	err := r.db.GetContext(ctx, &m, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get metric: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get metric: %w", core.StoreError(err))
	}

	return &m, nil
}

func (r *repository) List(
	ctx context.Context,
	scope access.Scope,
	params ListMetricsParams,
) ([]Metric, int, error) {
	params.Normalize()

	conditions, args := filterConditions(params)
	conditions, args = scope.Where("tenant_id", "", conditions, args)
	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM metrics WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count metrics: %w", core.StoreError(err))
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM metrics
		WHERE %s
		ORDER BY date DESC, created_at DESC
		LIMIT $%d OFFSET $%d`,
		metricColumns, whereClause, len(args)+1, len(args)+2)

	args = append(args, params.PageSize, params.Offset())

	var metrics []Metric
	if err := r.db.SelectContext(ctx, &metrics, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list metrics: %w", core.StoreError(err))
	}

	return metrics, total, nil
}

func (r *repository) ListForExport(
	ctx context.Context,
	scope access.Scope,
) ([]Metric, error) {
	conditions, args := scope.Where("tenant_id", "", []string{"TRUE"}, nil)

	query := fmt.Sprintf(`
		SELECT %s
		FROM metrics
		WHERE %s
		ORDER BY date DESC
		LIMIT %d`, metricColumns, strings.Join(conditions, " AND "), exportLimit)

	var metrics []Metric
	if err := r.db.SelectContext(ctx, &metrics, query, args...); err != nil {
		return nil, fmt.Errorf("export metrics: %w", core.StoreError(err))
	}

	return metrics, nil
}

func (r *repository) Update(
	ctx context.Context,
	scope access.Scope,
	m *Metric,
) error {
	conditions, args := scope.Where(
		"tenant_id", "",
		[]string{"id = $1"},
		[]any{m.ID, m.Name, m.Value, m.Date},
	)

	query := fmt.Sprintf(`
		UPDATE metrics
		SET name = $2, value = $3, date = $4, updated_at = NOW()
		WHERE %s
		RETURNING updated_at`, strings.Join(conditions, " AND "))

	err := r.db.GetContext(ctx, &m.UpdatedAt, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update metric: %w", core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update metric: %w", core.StoreError(err))
	}

	return nil
}

func (r *repository) Delete(
	ctx context.Context,
	scope access.Scope,
	id string,
) error {
	conditions, args := scope.Where("tenant_id", "", []string{"id = $1"}, []any{id})

	query := fmt.Sprintf(
		"DELETE FROM metrics WHERE %s",
		strings.Join(conditions, " AND "),
	)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete metric: %w", core.StoreError(err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete metric: %w", core.StoreError(err))
	}

	if rows == 0 {
		return fmt.Errorf("delete metric: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) DeleteByTenant(
	ctx context.Context,
	tenantID string,
) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM metrics WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return 0, fmt.Errorf("delete tenant metrics: %w", core.StoreError(err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete tenant metrics: %w", core.StoreError(err))
	}

	return rows, nil
}

func (r *repository) ValuesByTenant(
	ctx context.Context,
	tenantID string,
) ([]float64, error) {
	var values []float64
	err := r.db.SelectContext(ctx, &values,
		`SELECT value FROM metrics WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("tenant metric values: %w", core.StoreError(err))
	}

	return values, nil
}

func filterConditions(params ListMetricsParams) ([]string, []any) {
	conditions := []string{"TRUE"}
	var args []any

	if params.Search != "" {
		args = append(args, "%"+core.EscapeLike(params.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("name ILIKE $%d", len(args)))
	}

	if params.From != nil {
		args = append(args, *params.From)
		conditions = append(conditions, fmt.Sprintf("date >= $%d", len(args)))
	}

	if params.To != nil {
		args = append(args, *params.To)
		conditions = append(conditions, fmt.Sprintf("date <= $%d", len(args)))
	}

	return conditions, args
}
