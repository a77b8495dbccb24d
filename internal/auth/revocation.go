// AngelaMos | 2026
// revocation.go

package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/carterperez-dev/saas-metrics/internal/core"
)

// Revocations remembers logged-out token ids until they would have expired.
type Revocations interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type redisRevocations struct {
	client *redis.Client
}

func NewRedisRevocations(client *redis.Client) Revocations {
	return &redisRevocations{client: client}
}

func (r *redisRevocations) Revoke(
	ctx context.Context,
	jti string,
	expiresAt time.Time,
) error {
	ttl := time.Until(expiresAt)
	if jti == "" || ttl <= 0 {
		return nil
	}

	if err := r.client.Set(ctx, blacklistKey(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("blacklist token: %w", core.StoreError(err))
	}

	return nil
}

func (r *redisRevocations) IsRevoked(
	ctx context.Context,
	jti string,
) (bool, error) {
	if jti == "" {
		return false, nil
	}

	exists, err := r.client.Exists(ctx, blacklistKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("check blacklist: %w", core.StoreError(err))
	}

	return exists > 0, nil
}

func blacklistKey(jti string) string {
	return "blacklist:" + jti
}
