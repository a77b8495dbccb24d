// AngelaMos | 2026
// entity.go

package metric

import (
	"time"
)

type Metric struct {
	ID        string    `db:"id"`
	TenantID  *string   `db:"tenant_id"`
	Name      string    `db:"name"`
	Value     float64   `db:"value"`
	Date      time.Time `db:"date"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
