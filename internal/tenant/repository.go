// AngelaMos | 2026
// repository.go

package tenant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/carterperez-dev/saas-metrics/internal/access"
	"github.com/carterperez-dev/saas-metrics/internal/core"
)

type Repository interface {
	Create(ctx context.Context, t *Tenant) error
	GetByID(ctx context.Context, scope access.Scope, id string) (*Tenant, error)
	List(ctx context.Context, scope access.Scope, params ListTenantsParams) ([]Tenant, int, error)
	Update(ctx context.Context, scope access.Scope, t *Tenant) error
	Delete(ctx context.Context, scope access.Scope, id string) error
	ExistsByName(ctx context.Context, name, excludeID string) (bool, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, t *Tenant) error {
	query := `
		INSERT INTO tenants (id, name, plan)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at`

	err := r.db.GetContext(ctx, t, query, t.ID, t.Name, t.Plan)
	if err != nil {
		if core.IsDuplicateKeyError(err) {
			return fmt.Errorf("create tenant: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create tenant: %w", core.StoreError(err))
	}

	return nil
}

func (r *repository) GetByID(
	ctx context.Context,
	scope access.Scope,
	id string,
) (*Tenant, error) {
	conditions, args := scope.Where("id", "", []string{"id = $1"}, []any{id})

	query := fmt.Sprintf(`
		SELECT id, name, plan, created_at, updated_at
		FROM tenants
		WHERE %s`, strings.Join(conditions, " AND "))

	var t Tenant
	err := r.db.GetContext(ctx, &t, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get tenant: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get tenant: %w", core.StoreError(err))
	}

	return &t, nil
}

func (r *repository) List(
	ctx context.Context,
	scope access.Scope,
	params ListTenantsParams,
) ([]Tenant, int, error) {
	params.Normalize()

	conditions := []string{"TRUE"}
	var args []any

	if params.Search != "" {
		args = append(args, "%"+core.EscapeLike(params.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("name ILIKE $%d", len(args)))
	}

	conditions, args = scope.Where("id", "", conditions, args)
	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM tenants WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count tenants: %w", core.StoreError(err))
	}

	query := fmt.Sprintf(`
		SELECT id, name, plan, created_at, updated_at
		FROM tenants
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		whereClause, len(args)+1, len(args)+2)

	args = append(args, params.PageSize, params.Offset())

	var tenants []Tenant
	if err := r.db.SelectContext(ctx, &tenants, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list tenants: %w", core.StoreError(err))
	}

	return tenants, total, nil
}

func (r *repository) Update(
	ctx context.Context,
	scope access.Scope,
	t *Tenant,
) error {
	conditions, args := scope.Where(
		"id", "",
		[]string{"id = $1"},
		[]any{t.ID, t.Name, t.Plan},
	)

	query := fmt.Sprintf(`
		UPDATE tenants
		SET name = $2, plan = $3, updated_at = NOW()
		WHERE %s
		RETURNING updated_at`, strings.Join(conditions, " AND "))

	err := r.db.GetContext(ctx, &t.UpdatedAt, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update tenant: %w", core.ErrNotFound)
	}
	if core.IsDuplicateKeyError(err) {
		return fmt.Errorf("update tenant: %w", core.ErrDuplicateKey)
	}
	if err != nil {
		return fmt.Errorf("update tenant: %w", core.StoreError(err))
	}

	return nil
}

func (r *repository) Delete(
	ctx context.Context,
	scope access.Scope,
	id string,
) error {
	conditions, args := scope.Where("id", "", []string{"id = $1"}, []any{id})

	query := fmt.Sprintf(
		"DELETE FROM tenants WHERE %s",
		strings.Join(conditions, " AND "),
	)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete tenant: %w", core.StoreError(err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete tenant: %w", core.StoreError(err))
	}

	if rows == 0 {
		return fmt.Errorf("delete tenant: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) ExistsByName(
	ctx context.Context,
	name, excludeID string,
) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM tenants WHERE name = $1 AND id::text <> $2)`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, name, excludeID); err != nil {
		return false, fmt.Errorf("check tenant name: %w", core.StoreError(err))
	}

	return exists, nil
}
