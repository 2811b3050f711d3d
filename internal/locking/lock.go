package locking

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned when the wait budget for acquiring a lock runs out.
// It signals contention, not an invalid request: a later retry may succeed.
var ErrTimeout = errors.New("lock: acquisition timed out")

// Lock is a held named lock. Release is safe to call once; a lock also
// expires on its own after its TTL so a crashed holder cannot wedge the
// system.
type Lock interface {
	Name() string
	Release(ctx context.Context) error
}

// Locker hands out cluster-wide named locks. Acquire blocks up to wait; the
// lock self-expires after ttl regardless of Release.
type Locker interface {
	Acquire(ctx context.Context, name string, wait, ttl time.Duration) (Lock, error)
}

// retryInterval paces acquisition attempts while waiting for a held lock.
const retryInterval = 100 * time.Millisecond
