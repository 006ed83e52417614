package lock

import (
	"context"
	"sync"
	"time"
)

// MemoryLocker is a single-process Locker. The ttl is ignored: a holder in
// the same process cannot crash without taking the lock table with it.
type MemoryLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{slots: make(map[string]chan struct{})}
}

func (l *MemoryLocker) Acquire(ctx context.Context, key string, _ time.Duration) (Lease, error) {
	l.mu.Lock()
	slot, ok := l.slots[key]
	if !ok {
		slot = make(chan struct{}, 1)
		l.slots[key] = slot
	}
	l.mu.Unlock()

	select {
	case slot <- struct{}{}:
		return &memoryLease{slot: slot}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type memoryLease struct {
	once sync.Once
	slot chan struct{}
}

func (l *memoryLease) Release(context.Context) error {
	released := false
	l.once.Do(func() {
		<-l.slot
		released = true
	})
	if !released {
		return ErrNotHeld
	}
	return nil
}
