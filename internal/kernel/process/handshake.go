package process

import (
	"sync/atomic"

	"github.com/GriffinCanCode/AgentOS/kernel/internal/kernel/sched"
)

// Handshake is shared by exactly one parent and one child. It carries the
// child's exit code and the signal a waiting parent blocks on.
//
// The reference count starts at two. The child drops one reference when it
// exits; the parent drops the other when it waits, or when it exits without
// having waited. Whichever drop reaches zero frees the handshake.
type Handshake struct {
	tid      sched.Tid
	refs     atomic.Int32
	exitCode int
	dead     *sched.Semaphore
}

// Tid returns the child's thread id.
func (h *Handshake) Tid() sched.Tid { return h.tid }

func (h *Handshake) init(tid sched.Tid) {
	h.tid = tid
	h.refs.Store(2)
	h.dead = sched.NewSemaphore()
}

// execInfo carries a command line to a new thread and its load result back.
// The parent frees it only after loadDone has been raised.
type execInfo struct {
	cmdline  string
	loadDone *sched.Semaphore
	success  bool
	status   *Handshake
}

// release drops one reference and frees the handshake on the last one.
func (m *Manager) release(h *Handshake) {
	switch n := h.refs.Add(-1); {
	case n == 0:
		m.handshakes.Free(h)
	case n < 0:
		panic("process: handshake released more than twice")
	}
}
