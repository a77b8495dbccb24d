// AngelaMos | 2026
// lock.go

package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrLockTimeout = errors.New("lock wait exceeded")

const lockRetryInterval = 50 * time.Millisecond

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker is a Redis mutex keyed by name. A holder that dies releases the
// lock when the TTL lapses.
type Locker struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
}

func NewLocker(client *redis.Client, ttl, wait time.Duration) *Locker {
	return &Locker{
		client: client,
		ttl:    ttl,
		wait:   wait,
	}
}

func (l *Locker) Lock(ctx context.Context, name string) (func(), error) {
	key := "lock:" + name

	token, err := RandomToken(16)
	if err != nil {
		return nil, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	ticker := time.NewTicker(lockRetryInterval)
	defer ticker.Stop()

	for {
		acquired, err := l.client.SetNX(waitCtx, key, token, l.ttl).Result()
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("acquire %s: %w", key, StoreError(err))
		}
		if acquired {
			return l.releaser(key, token), nil
		}

		select {
		case <-waitCtx.Done():
			return nil, fmt.Errorf(
				"acquire %s: %w: %w",
				key,
				ErrStoreUnavailable,
				ErrLockTimeout,
			)
		case <-ticker.C:
		}
	}
}

func (l *Locker) releaser(key, token string) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		//nolint:errcheck // the TTL reclaims the key if release fails
		_ = releaseScript.Run(ctx, l.client, []string{key}, token).Err()
	}
}
