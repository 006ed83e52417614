// Package lock serializes work on a key across goroutines and processes.
package lock

import (
	"context"
	"errors"
	"time"
)

// ErrNotHeld is returned when releasing a lease that expired or was taken over.
var ErrNotHeld = errors.New("lock not held")

// Locker hands out exclusive leases on string keys.
type Locker interface {
	// Acquire blocks until the key is free or ctx ends. ttl bounds how long a
	// crashed holder can keep the key.
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}

type Lease interface {
	Release(ctx context.Context) error
}
