package filesys

import (
	"sync"
	"time"
)

// Lock is the global filesystem lock. Every filesystem operation performed
// on behalf of a process, system-wide, happens while it is held.
type Lock struct {
	mu      sync.Mutex
	observe func(wait time.Duration)
}

// NewLock creates the lock. observe, if not nil, receives the time each
// acquisition spent waiting.
func NewLock(observe func(wait time.Duration)) *Lock {
	return &Lock{observe: observe}
}

// Lock acquires the lock.
func (l *Lock) Lock() {
	if l.observe == nil {
		l.mu.Lock()
		return
	}
	start := time.Now()
	l.mu.Lock()
	l.observe(time.Since(start))
}

// Unlock releases the lock.
func (l *Lock) Unlock() {
	l.mu.Unlock()
}
