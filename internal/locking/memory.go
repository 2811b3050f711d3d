package locking

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryEntry struct {
	token   string
	expires time.Time
}

// MemoryLocker is an in-process Locker for single-node deployments and
// tests. Semantics match the redis implementation, including TTL expiry.
type MemoryLocker struct {
	mu    sync.Mutex
	held  map[string]memoryEntry
	clock func() time.Time
}

// NewMemoryLocker builds an in-process locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		held:  make(map[string]memoryEntry),
		clock: time.Now,
	}
}

func (l *MemoryLocker) tryAcquire(name string, ttl time.Duration) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock()
	if entry, ok := l.held[name]; ok && now.Before(entry.expires) {
		return "", false
	}
	token := uuid.NewString()
	l.held[name] = memoryEntry{token: token, expires: now.Add(ttl)}
	return token, true
}

func (l *MemoryLocker) Acquire(ctx context.Context, name string, wait, ttl time.Duration) (Lock, error) {
	deadline := l.clock().Add(wait)
	for {
		if token, ok := l.tryAcquire(name, ttl); ok {
			return &memoryLock{locker: l, name: name, token: token}, nil
		}
		if l.clock().After(deadline) {
			return nil, ErrTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryInterval / 10):
		}
	}
}

func (l *MemoryLocker) release(name, token string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if entry, ok := l.held[name]; ok && entry.token == token {
		delete(l.held, name)
	}
}

type memoryLock struct {
	locker *MemoryLocker
	name   string
	token  string
}

func (l *memoryLock) Name() string { return l.name }

func (l *memoryLock) Release(ctx context.Context) error {
	l.locker.release(l.name, l.token)
	return nil
}
