package locking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock key only if this holder still owns it, so a
// holder that outlived its TTL cannot release a successor's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker on a shared redis instance using SET NX PX
// with a per-holder token.
type RedisLocker struct {
	client *redis.Client
	prefix string
}

// NewRedisLocker builds a locker. Keys are namespaced under prefix.
func NewRedisLocker(client *redis.Client, prefix string) *RedisLocker {
	if prefix == "" {
		prefix = "lock"
	}
	return &RedisLocker{client: client, prefix: prefix}
}

func (l *RedisLocker) key(name string) string {
	return l.prefix + ":" + name
}

func (l *RedisLocker) Acquire(ctx context.Context, name string, wait, ttl time.Duration) (Lock, error) {
	token := uuid.NewString()
	deadline := time.Now().Add(wait)

	for {
		ok, err := l.client.SetNX(ctx, l.key(name), token, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("lock backend: %w", err)
		}
		if ok {
			return &redisLock{locker: l, name: name, token: token}, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryInterval):
		}
	}
}

type redisLock struct {
	locker *RedisLocker
	name   string
	token  string
}

func (l *redisLock) Name() string { return l.name }

func (l *redisLock) Release(ctx context.Context) error {
	return releaseScript.Run(ctx, l.locker.client, []string{l.locker.key(l.name)}, l.token).Err()
}
