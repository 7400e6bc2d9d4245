package roster

import (
	"context"
	"sync"
)

// eventLocks hands out one lock per event id. Waiting for a lock respects
// context cancellation.
type eventLocks struct {
	mu    sync.Mutex
	locks map[string]*eventLock
}

type eventLock struct {
	ch   chan struct{}
	refs int
}

func newEventLocks() *eventLocks {
	return &eventLocks{locks: make(map[string]*eventLock)}
}

// acquire blocks until the caller holds the lock for id or ctx is done. The
// returned func releases it.
func (l *eventLocks) acquire(ctx context.Context, id string) (func(), error) {
	l.mu.Lock()
	lk, ok := l.locks[id]
	if !ok {
		lk = &eventLock{ch: make(chan struct{}, 1)}
		l.locks[id] = lk
	}
	lk.refs++
	l.mu.Unlock()

	select {
	case lk.ch <- struct{}{}:
		return func() {
			<-lk.ch
			l.release(id, lk)
		}, nil
	case <-ctx.Done():
		l.release(id, lk)
		return nil, ctx.Err()
	}
}

func (l *eventLocks) release(id string, lk *eventLock) {
	l.mu.Lock()
	lk.refs--
	if lk.refs == 0 {
		delete(l.locks, id)
	}
	l.mu.Unlock()
}

// size reports the number of ids with holders or waiters.
func (l *eventLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
