// AngelaMos | 2026
// coordinator.go

package integrity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/saas-metrics/internal/access"
	"github.com/carterperez-dev/saas-metrics/internal/core"
	"github.com/carterperez-dev/saas-metrics/internal/promotion"
	"github.com/carterperez-dev/saas-metrics/internal/user"
)

type TenantStore interface {
	Delete(ctx context.Context, scope access.Scope, id string) error
}

type UserStore interface {
	GetByID(ctx context.Context, scope access.Scope, id string) (*user.User, error)
	ListByTenant(ctx context.Context, tenantID string) ([]user.User, error)
	UpdateStanding(ctx context.Context, id string, s promotion.Standing) error
	Delete(ctx context.Context, scope access.Scope, id string) (*user.User, error)
	DeleteByTenant(ctx context.Context, tenantID string) (int64, error)
}

type MetricStore interface {
	ValuesByTenant(ctx context.Context, tenantID string) ([]float64, error)
	DeleteByTenant(ctx context.Context, tenantID string) (int64, error)
}

type Locker interface {
	Lock(ctx context.Context, name string) (func(), error)
}

type Config struct {
	Tenants   TenantStore
	Users     UserStore
	Metrics   MetricStore
	Locker    Locker
	Events    EventPublisher
	Logger    *slog.Logger
	Serialize bool
}

// Coordinator keeps tenants, users and metrics consistent across the
// deletes and recalculations that touch more than one of them. Steps run
// in a fixed order without a surrounding transaction; every step is safe
// to repeat.
type Coordinator struct {
	tenants   TenantStore
	users     UserStore
	metrics   MetricStore
	locker    Locker
	events    EventPublisher
	logger    *slog.Logger
	serialize bool
	now       func() time.Time
}

func NewCoordinator(cfg Config) *Coordinator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Coordinator{
		tenants:   cfg.Tenants,
		users:     cfg.Users,
		metrics:   cfg.Metrics,
		locker:    cfg.Locker,
		events:    cfg.Events,
		logger:    logger,
		serialize: cfg.Serialize && cfg.Locker != nil,
		now:       time.Now,
	}
}

// DeleteTenant removes the tenant record, then its users, then its
// metrics. When the record is already gone the sweep still runs so a
// retry after a partial failure finishes the job.
func (c *Coordinator) DeleteTenant(
	ctx context.Context,
	scope access.Scope,
	id string,
) error {
	ctx, span := core.StartSpan(ctx, "integrity.DeleteTenant",
		core.TenantIDKey.String(id))
	defer span.End()

	if !scope.Admits(&id) {
		return fmt.Errorf("delete tenant: %w", core.ErrNotFound)
	}

	recordFound := true
	if err := c.tenants.Delete(ctx, scope, id); err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			core.SetSpanError(ctx, err)
			return err
		}
		recordFound = false
	}

	users, err := c.users.DeleteByTenant(ctx, id)
	if err != nil {
		core.SetSpanError(ctx, err)
		return fmt.Errorf("delete tenant users: %w", err)
	}

	metrics, err := c.metrics.DeleteByTenant(ctx, id)
	if err != nil {
		core.SetSpanError(ctx, err)
		return fmt.Errorf("delete tenant metrics: %w", err)
	}

	if !recordFound && users == 0 && metrics == 0 {
		return fmt.Errorf("delete tenant: %w", core.ErrNotFound)
	}

	if recordFound {
		cascadeDeletions.WithLabelValues("tenant").Inc()
	}
	cascadeDeletions.WithLabelValues("user").Add(float64(users))
	cascadeDeletions.WithLabelValues("metric").Add(float64(metrics))

	c.logger.InfoContext(ctx, "tenant deleted",
		"tenant_id", id,
		"record_found", recordFound,
		"users_removed", users,
		"metrics_removed", metrics,
	)

	return nil
}

// DeleteUser purges every metric of the user's tenant and then removes the
// user, both under the tenant lock. The remaining members are recalculated
// against the empty set so their counters and roles do not go stale. A
// failed purge leaves the user in place, so calling again finishes the job.
func (c *Coordinator) DeleteUser(
	ctx context.Context,
	scope access.Scope,
	id string,
) error {
	ctx, span := core.StartSpan(ctx, "integrity.DeleteUser",
		core.UserIDKey.String(id))
	defer span.End()

	u, err := c.users.GetByID(ctx, scope, id)
	if err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			core.SetSpanError(ctx, err)
		}
		return err
	}

	if u.TenantID == nil {
		if _, err := c.users.Delete(ctx, scope, id); err != nil {
			core.SetSpanError(ctx, err)
			return err
		}
		cascadeDeletions.WithLabelValues("user").Inc()
		c.logger.InfoContext(ctx, "user deleted", "user_id", id)
		return nil
	}

	tenantID := *u.TenantID
	var purged int64

	report, err := c.MutateTenantMetrics(ctx, u.TenantID, func(ctx context.Context) error {
		n, err := c.metrics.DeleteByTenant(ctx, tenantID)
		if err != nil {
			return fmt.Errorf("purge tenant metrics: %w", err)
		}
		purged = n

		if _, err := c.users.Delete(ctx, scope, id); err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		return nil
	})
	if purged > 0 {
		cascadeDeletions.WithLabelValues("metric").Add(float64(purged))
	}
	if err != nil {
		core.SetSpanError(ctx, err)
		c.logger.ErrorContext(ctx, "user delete incomplete",
			"user_id", id,
			"tenant_id", tenantID,
			"metrics_purged", purged,
			"error", err,
		)
		return err
	}
	cascadeDeletions.WithLabelValues("user").Inc()

	c.logger.InfoContext(ctx, "user deleted",
		"user_id", id,
		"tenant_id", tenantID,
		"metrics_purged", purged,
		"members_recalculated", report.Recalculated(),
		"members_failed", report.Failed(),
	)

	return nil
}

// MutateTenantMetrics runs mutate while holding the tenant's lock and
// recalculates the tenant before releasing it. Metrics without a tenant
// are written directly.
func (c *Coordinator) MutateTenantMetrics(
	ctx context.Context,
	tenantID *string,
	mutate func(ctx context.Context) error,
) (Report, error) {
	if tenantID == nil {
		return Report{}, mutate(ctx)
	}

	unlock, err := c.lockTenant(ctx, *tenantID)
	if err != nil {
		return Report{}, err
	}
	defer unlock()

	if err := mutate(ctx); err != nil {
		return Report{}, err
	}

	return c.RecalculateTenant(ctx, *tenantID), nil
}

// WithTenantLock runs fn under the same lock as metric writes, without a
// recalculation. Writes to derived user fields go through here so they
// cannot interleave with a fan-out.
func (c *Coordinator) WithTenantLock(
	ctx context.Context,
	tenantID *string,
	fn func(ctx context.Context) error,
) error {
	if tenantID == nil {
		return fn(ctx)
	}

	unlock, err := c.lockTenant(ctx, *tenantID)
	if err != nil {
		return err
	}
	defer unlock()

	return fn(ctx)
}

func (c *Coordinator) lockTenant(ctx context.Context, tenantID string) (func(), error) {
	if !c.serialize {
		return func() {}, nil
	}

	unlock, err := c.locker.Lock(ctx, "tenant-metrics:"+tenantID)
	if err != nil {
		return nil, fmt.Errorf("tenant %s busy: %w", tenantID, err)
	}
	return unlock, nil
}

// RefreshTenant recalculates a tenant under its lock without writing any
// metric.
func (c *Coordinator) RefreshTenant(ctx context.Context, tenantID string) error {
	report, err := c.MutateTenantMetrics(ctx, &tenantID, func(context.Context) error {
		return nil
	})
	if err != nil {
		return err
	}
	return report.Err
}

// RecalculateTenant recomputes every member of the tenant in turn. A
// member that cannot be saved is logged and reported; the loop carries on.
func (c *Coordinator) RecalculateTenant(ctx context.Context, tenantID string) Report {
	ctx, span := core.StartSpan(ctx, "integrity.RecalculateTenant",
		core.TenantIDKey.String(tenantID))
	defer span.End()

	report := Report{TenantID: tenantID}

	values, err := c.metrics.ValuesByTenant(ctx, tenantID)
	if err != nil {
		return c.abort(ctx, report, err)
	}

	members, err := c.users.ListByTenant(ctx, tenantID)
	if err != nil {
		return c.abort(ctx, report, err)
	}

	for i := range members {
		report.Outcomes = append(report.Outcomes,
			c.recalculateMember(ctx, tenantID, &members[i], values))
	}

	span.SetAttributes(
		attribute.Int("members", len(members)),
		attribute.Int("metrics", len(values)),
		attribute.Int("failed", report.Failed()),
	)

	return report
}

func (c *Coordinator) recalculateMember(
	ctx context.Context,
	tenantID string,
	u *user.User,
	values []float64,
) Outcome {
	prev := u.Standing()
	next := promotion.Recompute(prev, values)

	out := Outcome{UserID: u.ID, From: prev.Role, To: next.Role}

	if next == prev {
		recalculations.WithLabelValues("unchanged").Inc()
		return out
	}

	if err := c.users.UpdateStanding(ctx, u.ID, next); err != nil {
		out.Err = err
		recalculations.WithLabelValues("failed").Inc()
		c.logger.WarnContext(ctx, "member recalculation failed",
			"tenant_id", tenantID,
			"user_id", u.ID,
			"error", err,
		)
		return out
	}

	recalculations.WithLabelValues("updated").Inc()

	if next.RoleChanged(prev) {
		roleTransitions.WithLabelValues(string(prev.Role), string(next.Role)).Inc()
		c.publish(ctx, RoleTransition{
			TenantID:   tenantID,
			UserID:     u.ID,
			From:       prev.Role,
			To:         next.Role,
			OccurredAt: c.now(),
		})
	}

	return out
}

func (c *Coordinator) publish(ctx context.Context, ev RoleTransition) {
	if c.events == nil {
		return
	}

	if err := c.events.PublishRoleTransition(ctx, ev); err != nil {
		c.logger.WarnContext(ctx, "role transition event not published",
			"tenant_id", ev.TenantID,
			"user_id", ev.UserID,
			"error", err,
		)
	}
}

func (c *Coordinator) abort(ctx context.Context, report Report, err error) Report {
	core.SetSpanError(ctx, err)
	c.logger.ErrorContext(ctx, "tenant recalculation aborted",
		"tenant_id", report.TenantID,
		"error", err,
	)
	recalculations.WithLabelValues("aborted").Inc()

	report.Err = err
	return report
}
