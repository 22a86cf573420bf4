// Package kmem provides the kernel's object allocator.
//
// Every kernel-owned object the system-call layer hands out (string pages,
// handshakes, exec handshakes) comes from an Arena. Arenas are bounded so
// allocation failure can be exercised, and they keep an exact count of live
// objects so leaks are observable.
package kmem

import (
	"errors"
	"fmt"
	"sync"

	"github.com/GriffinCanCode/AgentOS/kernel/internal/kernel/abi"
)

// ErrExhausted is returned when an arena has no capacity left.
var ErrExhausted = errors.New("kmem: arena exhausted")

// Observer is notified whenever the live count of an arena changes. It also
// receives the arena's limit and the number of allocations ever made.
type Observer interface {
	ObserveArena(arena string, live, limit int, allocated uint64)
}

// Arena allocates objects of one type under a fixed capacity.
// A limit of zero means unbounded.
type Arena[T any] struct {
	name     string
	limit    int
	mu       sync.Mutex
	live     map[*T]struct{}
	total    uint64
	observer Observer
}

// NewArena creates an arena holding at most limit live objects.
func NewArena[T any](name string, limit int) *Arena[T] {
	return &Arena[T]{
		name:  name,
		limit: limit,
		live:  make(map[*T]struct{}),
	}
}

// WithObserver attaches an observer and returns the arena.
func (a *Arena[T]) WithObserver(o Observer) *Arena[T] {
	a.observer = o
	return a
}

// Alloc returns a zeroed object.
func (a *Arena[T]) Alloc() (*T, error) {
	a.mu.Lock()
	if a.limit > 0 && len(a.live) >= a.limit {
		a.mu.Unlock()
		return nil, fmt.Errorf("%s: %w", a.name, ErrExhausted)
	}
	obj := new(T)
	a.live[obj] = struct{}{}
	a.total++
	live, total := len(a.live), a.total
	a.mu.Unlock()

	a.notify(live, total)
	return obj, nil
}

// Free returns obj to the arena. Freeing an object twice, or one that did not
// come from this arena, is a kernel bug and panics.
func (a *Arena[T]) Free(obj *T) {
	a.mu.Lock()
	if _, ok := a.live[obj]; !ok {
		a.mu.Unlock()
		panic(fmt.Sprintf("kmem: %s: free of unallocated object %p", a.name, obj))
	}
	delete(a.live, obj)
	live, total := len(a.live), a.total
	a.mu.Unlock()

	a.notify(live, total)
}

// Live returns the number of allocated, not yet freed objects.
func (a *Arena[T]) Live() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.live)
}

// Name returns the arena name.
func (a *Arena[T]) Name() string { return a.name }

func (a *Arena[T]) notify(live int, total uint64) {
	if a.observer != nil {
		a.observer.ObserveArena(a.name, live, a.limit, total)
	}
}

// Page is one page of kernel memory.
type Page [abi.PageSize]byte

// String returns the NUL-terminated string stored at the start of the page.
func (p *Page) String() string {
	for i, b := range p {
		if b == 0 {
			return string(p[:i])
		}
	}
	return string(p[:])
}

// NewPagePool creates the arena used for page-sized kernel buffers.
func NewPagePool(limit int) *Arena[Page] {
	return NewArena[Page]("pages", limit)
}
