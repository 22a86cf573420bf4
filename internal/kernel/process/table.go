package process

import (
	"sync"

	"github.com/GriffinCanCode/AgentOS/kernel/internal/kernel/sched"
)

// table indexes running processes by pid.
type table struct {
	mu    sync.RWMutex
	procs map[sched.Tid]*Process
}

func newTable() *table {
	return &table{procs: make(map[sched.Tid]*Process)}
}

func (t *table) put(p *Process) {
	t.mu.Lock()
	t.procs[p.pid] = p
	t.mu.Unlock()
}

func (t *table) remove(pid sched.Tid) {
	t.mu.Lock()
	delete(t.procs, pid)
	t.mu.Unlock()
}

func (t *table) all() []*Process {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Process, 0, len(t.procs))
	for _, p := range t.procs {
		out = append(out, p)
	}
	return out
}
