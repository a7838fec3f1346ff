package escrow

import (
	"context"
	"fmt"
	"sync"
)

// Locker guards the check-then-mutate sequence for one transaction.
// Acquire does not wait: a held key fails with a conflict error.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// MemoryLocker serializes operations inside one process.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]struct{})}
}

func (l *MemoryLocker) Acquire(ctx context.Context, key string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[key]; busy {
		return nil, &Error{Kind: KindConflict, Op: "lock", Message: "another escrow operation is in progress for " + key}
	}
	l.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, nil
}

func lockKey(transactionID uint) string {
	return fmt.Sprintf("escrow:tx:%d", transactionID)
}
