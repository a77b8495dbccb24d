// AngelaMos | 2026
// repository.go

package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/carterperez-dev/saas-metrics/internal/access"
	"github.com/carterperez-dev/saas-metrics/internal/core"
	"github.com/carterperez-dev/saas-metrics/internal/promotion"
)

type Repository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, scope access.Scope, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, scope access.Scope, params ListUsersParams) ([]User, int, error)
	ListByTenant(ctx context.Context, tenantID string) ([]User, error)
	Update(ctx context.Context, scope access.Scope, user *User) error
	AssignRole(ctx context.Context, scope access.Scope, id string, s promotion.Standing) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	SetTemporaryCredential(ctx context.Context, id, hash string, expiresAt time.Time) error
	ClearTemporaryCredential(ctx context.Context, id, hash string) error
	UpdateStanding(ctx context.Context, id string, s promotion.Standing) error
	Delete(ctx context.Context, scope access.Scope, id string) (*User, error)
	DeleteByTenant(ctx context.Context, tenantID string) (int64, error)
	ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const userColumns = `id, tenant_id, name, email, password_hash,
		       temp_password_hash, temp_password_expires_at, role,
		       metrics_created, metrics_created_valuable, can_be_analyst,
		       created_at, updated_at`

func (r *repository) Create(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (id, tenant_id, name, email, password_hash, role,
		                   metrics_created, metrics_created_valuable, can_be_analyst)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`

	err := r.db.GetContext(ctx, user, query,
		user.ID,
		user.TenantID,
		user.Name,
		user.Email,
		user.PasswordHash,
		string(user.Role),
		user.MetricsCreated,
		user.MetricsCreatedValuable,
		user.CanBeAnalyst,
	)
	if err != nil {
		if core.IsDuplicateKeyError(err) {
			return fmt.Errorf("create user: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create user: %w", core.StoreError(err))
	}

	return nil
}

func (r *repository) GetByID(
	ctx context.Context,
	scope access.Scope,
	id string,
) (*User, error) {
	conditions, args := scope.Where(
		"tenant_id", "id",
		[]string{"id = $1"},
		[]any{id},
	)

	query := fmt.Sprintf(`
		SELECT %s
		FROM users
		WHERE %s`, userColumns, strings.Join(conditions, " AND "))

	var user User
	err := r.db.GetContext(ctx, &user, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get user: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", core.StoreError(err))
	}

	return &user, nil
}

func (r *repository) GetByEmail(
	ctx context.Context,
	email string,
) (*User, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM users
		WHERE email = $1`, userColumns)

	var user User
	err := r.db.GetContext(ctx, &user, query, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get user by email: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", core.StoreError(err))
	}

	return &user, nil
}

func (r *repository) List(
	ctx context.Context,
	scope access.Scope,
	params ListUsersParams,
) ([]User, int, error) {
	params.Normalize()

	conditions := []string{"TRUE"}
	var args []any

	if params.Search != "" {
		args = append(args, "%"+core.EscapeLike(params.Search)+"%")
		conditions = append(conditions, fmt.Sprintf(
			"(email ILIKE $%d OR name ILIKE $%d)", len(args), len(args)))
	}

	if params.Role != "" {
		args = append(args, params.Role)
		conditions = append(conditions, fmt.Sprintf("role = $%d", len(args)))
	}

	conditions, args = scope.Where("tenant_id", "id", conditions, args)
	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM users WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", core.StoreError(err))
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM users
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		userColumns, whereClause, len(args)+1, len(args)+2)

	args = append(args, params.PageSize, params.Offset())

	var users []User
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", core.StoreError(err))
	}

	return users, total, nil
}

func (r *repository) ListByTenant(
	ctx context.Context,
	tenantID string,
) ([]User, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM users
		WHERE tenant_id = $1
		ORDER BY created_at ASC`, userColumns)

	var users []User
	if err := r.db.SelectContext(ctx, &users, query, tenantID); err != nil {
		return nil, fmt.Errorf("list tenant users: %w", core.StoreError(err))
	}

	return users, nil
}

// Update writes the identity fields and the tenant. Role, flag and counters
// are derived state and only change through AssignRole and UpdateStanding;
// the row is read back so the caller sees their current values.
func (r *repository) Update(
	ctx context.Context,
	scope access.Scope,
	user *User,
) error {
	conditions, args := scope.Where(
		"tenant_id", "id",
		[]string{"id = $1"},
		[]any{user.ID, user.Name, user.Email, user.TenantID},
	)

	query := fmt.Sprintf(`
		UPDATE users
		SET name = $2, email = $3, tenant_id = $4, updated_at = NOW()
		WHERE %s
		RETURNING %s`, strings.Join(conditions, " AND "), userColumns)

	err := r.db.GetContext(ctx, user, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update user: %w", core.ErrNotFound)
	}
	if err != nil {
		if core.IsDuplicateKeyError(err) {
			return fmt.Errorf("update user: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("update user: %w", core.StoreError(err))
	}

	return nil
}

func (r *repository) AssignRole(
	ctx context.Context,
	scope access.Scope,
	id string,
	s promotion.Standing,
) error {
	conditions, args := scope.Where(
		"tenant_id", "id",
		[]string{"id = $1"},
		[]any{id, string(s.Role), s.CanBeAnalyst},
	)

	query := fmt.Sprintf(`
		UPDATE users
		SET role = $2, can_be_analyst = $3, updated_at = NOW()
		WHERE %s`, strings.Join(conditions, " AND "))

	return r.execOne(ctx, "assign role", query, args...)
}

func (r *repository) UpdatePassword(
	ctx context.Context,
	id, passwordHash string,
) error {
	query := `
		UPDATE users
		SET password_hash = $2, updated_at = NOW()
		WHERE id = $1`

	return r.execOne(ctx, "update password", query, id, passwordHash)
}

func (r *repository) SetTemporaryCredential(
	ctx context.Context,
	id, hash string,
	expiresAt time.Time,
) error {
	query := `
		UPDATE users
		SET temp_password_hash = $2, temp_password_expires_at = $3,
		    updated_at = NOW()
		WHERE id = $1`

	return r.execOne(ctx, "set temporary credential", query, id, hash, expiresAt)
}

// ClearTemporaryCredential only clears the credential it was given, so two
// logins racing on the same secret cannot both consume it.
func (r *repository) ClearTemporaryCredential(
	ctx context.Context,
	id, hash string,
) error {
	query := `
		UPDATE users
		SET temp_password_hash = NULL, temp_password_expires_at = NULL,
		    updated_at = NOW()
		WHERE id = $1 AND temp_password_hash = $2`

	return r.execOne(ctx, "clear temporary credential", query, id, hash)
}

func (r *repository) UpdateStanding(
	ctx context.Context,
	id string,
	s promotion.Standing,
) error {
	query := `
		UPDATE users
		SET role = $2, can_be_analyst = $3, metrics_created = $4,
		    metrics_created_valuable = $5, updated_at = NOW()
		WHERE id = $1`

	return r.execOne(ctx, "update standing", query,
		id,
		string(s.Role),
		s.CanBeAnalyst,
		s.MetricsCreated,
		s.MetricsCreatedValuable,
	)
}

func (r *repository) Delete(
	ctx context.Context,
	scope access.Scope,
	id string,
) (*User, error) {
	conditions, args := scope.Where(
		"tenant_id", "id",
		[]string{"id = $1"},
		[]any{id},
	)

	query := fmt.Sprintf(`
		DELETE FROM users
		WHERE %s
		RETURNING %s`, strings.Join(conditions, " AND "), userColumns)

	var user User
	err := r.db.GetContext(ctx, &user, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("delete user: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("delete user: %w", core.StoreError(err))
	}

	return &user, nil
}

func (r *repository) DeleteByTenant(
	ctx context.Context,
	tenantID string,
) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return 0, fmt.Errorf("delete tenant users: %w", core.StoreError(err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete tenant users: %w", core.StoreError(err))
	}

	return rows, nil
}

func (r *repository) ExistsByEmail(
	ctx context.Context,
	email, excludeID string,
) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1 AND id::text <> $2)`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, email, excludeID); err != nil {
		return false, fmt.Errorf("check email exists: %w", core.StoreError(err))
	}

	return exists, nil
}

func (r *repository) execOne(
	ctx context.Context,
	op, query string,
	args ...any,
) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, core.StoreError(err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, core.StoreError(err))
	}

	if rows == 0 {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}

	return nil
}
