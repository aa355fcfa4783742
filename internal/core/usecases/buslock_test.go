package usecases

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/core/domain"
)

func TestBusLocks_ReleaseRemovesEntry(t *testing.T) {
	l := newBusLocks()
	release, err := l.acquire(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if l.size() != 1 {
		t.Fatalf("expected one entry, got %d", l.size())
	}
	release()
	if l.size() != 0 {
		t.Errorf("expected entry removed, got %d", l.size())
	}
}

func TestBusLocks_WaiterGivesUp(t *testing.T) {
	l := newBusLocks()
	release, err := l.acquire(context.Background(), 7)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := l.acquire(ctx, 7); !errors.Is(err, domain.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}

	// Other ids are independent.
	other, err := l.acquire(context.Background(), 8)
	if err != nil {
		t.Fatal(err)
	}
	other()

	release()
	if l.size() != 0 {
		t.Errorf("expected no entries left, got %d", l.size())
	}
}

func TestBusLocks_HandOff(t *testing.T) {
	l := newBusLocks()
	release, _ := l.acquire(context.Background(), 3)

	got := make(chan struct{})
	go func() {
		r, err := l.acquire(context.Background(), 3)
		if err == nil {
			r()
		}
		close(got)
	}()

	select {
	case <-got:
		t.Fatal("second holder acquired while the lock was held")
	case <-time.After(20 * time.Millisecond):
	}
	release()
	select {
	case <-got:
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired the lock")
	}
}
