// AngelaMos | 2026
// entity.go

package user

import (
	"time"

	"github.com/carterperez-dev/saas-metrics/internal/access"
	"github.com/carterperez-dev/saas-metrics/internal/promotion"
)

type User struct {
	ID                     string      `db:"id"`
	TenantID               *string     `db:"tenant_id"`
	Name                   string      `db:"name"`
	Email                  string      `db:"email"`
	PasswordHash           string      `db:"password_hash"`
	TempPasswordHash       *string     `db:"temp_password_hash"`
	TempPasswordExpiresAt  *time.Time  `db:"temp_password_expires_at"`
	Role                   access.Role `db:"role"`
	MetricsCreated         int         `db:"metrics_created"`
	MetricsCreatedValuable int         `db:"metrics_created_valuable"`
	CanBeAnalyst           bool        `db:"can_be_analyst"`
	CreatedAt              time.Time   `db:"created_at"`
	UpdatedAt              time.Time   `db:"updated_at"`
}

func (u *User) Standing() promotion.Standing {
	return promotion.Standing{
		Role:                   u.Role,
		CanBeAnalyst:           u.CanBeAnalyst,
		MetricsCreated:         u.MetricsCreated,
		MetricsCreatedValuable: u.MetricsCreatedValuable,
	}
}

func (u *User) ApplyStanding(s promotion.Standing) {
	u.Role = s.Role
	u.CanBeAnalyst = s.CanBeAnalyst
	u.MetricsCreated = s.MetricsCreated
	u.MetricsCreatedValuable = s.MetricsCreatedValuable
}

func (u *User) IsGlobalAdmin(domain string) bool {
	return access.IsGlobalAdminEmail(u.Email, u.TenantID, domain)
}

func (u *User) InTenant(tenantID string) bool {
	return u.TenantID != nil && *u.TenantID == tenantID
}
