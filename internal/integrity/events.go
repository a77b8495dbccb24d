// AngelaMos | 2026
// events.go

package integrity

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/carterperez-dev/saas-metrics/internal/access"
	"github.com/carterperez-dev/saas-metrics/internal/core"
)

type RoleTransition struct {
	TenantID   string
	UserID     string
	From       access.Role
	To         access.Role
	OccurredAt time.Time
}

type EventPublisher interface {
	PublishRoleTransition(ctx context.Context, ev RoleTransition) error
}

// StreamPublisher appends role transitions to a capped Redis stream.
type StreamPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewStreamPublisher(client *redis.Client, stream string, maxLen int64) *StreamPublisher {
	return &StreamPublisher{
		client: client,
		stream: stream,
		maxLen: maxLen,
	}
}

func (p *StreamPublisher) PublishRoleTransition(ctx context.Context, ev RoleTransition) error {
	err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{
			"tenant_id":   ev.TenantID,
			"user_id":     ev.UserID,
			"from":        string(ev.From),
			"to":          string(ev.To),
			"occurred_at": ev.OccurredAt.UTC().Format(time.RFC3339Nano),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("publish role transition: %w", core.StoreError(err))
	}

	return nil
}
