package usecases

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/core/domain"
	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/pkg/metrics"
)

// busLocks serialises writers per bus id. Each lock is a one-slot channel so
// that waiting can be abandoned when the caller's context ends. Entries are
// reference counted and removed once nobody holds or waits on them.
type busLocks struct {
	mu    sync.Mutex
	locks map[int64]*busLock
}

type busLock struct {
	ch   chan struct{}
	refs int
}

func newBusLocks() *busLocks {
	return &busLocks{locks: make(map[int64]*busLock)}
}

// acquire blocks until the lock for id is held or ctx is done.
func (l *busLocks) acquire(ctx context.Context, id int64) (func(), error) {
	l.mu.Lock()
	lk, ok := l.locks[id]
	if !ok {
		lk = &busLock{ch: make(chan struct{}, 1)}
		l.locks[id] = lk
	}
	lk.refs++
	l.mu.Unlock()

	start := time.Now()
	select {
	case lk.ch <- struct{}{}:
		metrics.LockWait.Observe(time.Since(start).Seconds())
		return func() {
			<-lk.ch
			l.unref(id, lk)
		}, nil
	case <-ctx.Done():
		l.unref(id, lk)
		return nil, fmt.Errorf("%w: waiting for bus %d: %v", domain.ErrTimeout, id, ctx.Err())
	}
}

func (l *busLocks) unref(id int64, lk *busLock) {
	l.mu.Lock()
	lk.refs--
	if lk.refs == 0 {
		delete(l.locks, id)
	}
	l.mu.Unlock()
}

// size reports how many ids currently have a lock entry.
func (l *busLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
