// Package lock serializes per-key critical sections across processes using redis.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

var (
	ErrBusy         = errors.New("lock_busy")
	ErrInvalidKey   = errors.New("lock_key_empty")
	ErrInvalidTTL   = errors.New("lock_ttl_not_positive")
	ErrNotConnected = errors.New("lock_client_not_configured")
)

// Locker acquires a short-lived named lock. The returned release func is
// always safe to call.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

type RedisLocker struct {
	client *redis.Client
	script *redis.Script
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{
		client: client,
		script: redis.NewScript(releaseScript),
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if l == nil || l.client == nil {
		return noop, ErrNotConnected
	}
	if key == "" {
		return noop, ErrInvalidKey
	}
	if ttl <= 0 {
		return noop, ErrInvalidTTL
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return noop, err
	}
	if !ok {
		return noop, ErrBusy
	}

	return func() {
		// The caller's context may already be cancelled; the key expires on its own otherwise.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = l.script.Run(releaseCtx, l.client, []string{key}, token).Err()
	}, nil
}

// NoopLocker always succeeds. Used when redis is not configured.
type NoopLocker struct{}

func (NoopLocker) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	if key == "" {
		return noop, ErrInvalidKey
	}
	if ttl <= 0 {
		return noop, ErrInvalidTTL
	}
	return noop, nil
}

func noop() {}
