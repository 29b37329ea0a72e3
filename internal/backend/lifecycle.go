package backend

import (
	"context"
	"sync"
)

// Lifecycle memoizes a successful setup. Concurrent first calls serialize;
// a failed setup runs again on the next call.
type Lifecycle struct {
	mu    sync.Mutex
	ready bool
}

// Ensure runs fn unless a previous call already succeeded.
func (l *Lifecycle) Ensure(ctx context.Context, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ready {
		return nil
	}
	if err := fn(ctx); err != nil {
		return err
	}
	l.ready = true
	return nil
}

// Ready reports whether setup has completed.
func (l *Lifecycle) Ready() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ready
}

// Reset forces the next Ensure to run setup again.
func (l *Lifecycle) Reset() {
	l.mu.Lock()
	l.ready = false
	l.mu.Unlock()
}
