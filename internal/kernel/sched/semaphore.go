package sched

import (
	"context"
	"math"

	"golang.org/x/sync/semaphore"
)

// Semaphore is the kernel's blocking signal: a counting semaphore whose value
// starts at zero. Down blocks until a matching Up. An Up that happens before
// the Down is remembered, so wakeups are never lost.
type Semaphore struct {
	w *semaphore.Weighted
}

// NewSemaphore returns a semaphore with value zero.
func NewSemaphore() *Semaphore {
	w := semaphore.NewWeighted(math.MaxInt32)
	// Hold the whole capacity so the visible value is zero.
	if !w.TryAcquire(math.MaxInt32) {
		panic("sched: fresh semaphore not acquirable")
	}
	return &Semaphore{w: w}
}

// Up increments the value and wakes one waiter.
func (s *Semaphore) Up() {
	s.w.Release(1)
}

// Down waits for the value to become positive and decrements it.
// There is no timeout: only an Up releases the caller.
func (s *Semaphore) Down() {
	// Acquire only fails when the context is done; Background never is.
	_ = s.w.Acquire(context.Background(), 1)
}
