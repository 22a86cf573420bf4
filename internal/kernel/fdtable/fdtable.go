// Package fdtable holds a process's open files, keyed by small integer
// handles.
//
// Handles are allocated from a per-process counter that starts above the
// console handles and only ever grows, so a closed handle is never handed out
// again. Lookups scan the table linearly; processes keep few files open.
//
// A Table is not synchronized. The kernel only touches it while holding the
// global filesystem lock.
package fdtable

import (
	"github.com/GriffinCanCode/AgentOS/kernel/internal/kernel/abi"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/kernel/filesys"
)

// FirstHandle is the first handle given to a file. Lower handles are the
// console.
const FirstHandle = abi.StdoutFileno + 1

// Descriptor binds a handle to an open file.
type Descriptor struct {
	Handle int
	File   filesys.File
}

// Table is one process's descriptor table.
type Table struct {
	next    int
	entries []*Descriptor
}

// New creates an empty table.
func New() *Table {
	return &Table{next: FirstHandle}
}

// Insert adds f under a fresh handle and returns the handle.
func (t *Table) Insert(f filesys.File) int {
	d := &Descriptor{Handle: t.next, File: f}
	t.next++
	t.entries = append(t.entries, d)
	return d.Handle
}

// Lookup returns the descriptor for handle, or nil.
func (t *Table) Lookup(handle int) *Descriptor {
	for _, d := range t.entries {
		if d.Handle == handle {
			return d
		}
	}
	return nil
}

// Remove drops handle from the table and returns its descriptor, or nil if
// the handle is unknown. The caller closes the file.
func (t *Table) Remove(handle int) *Descriptor {
	for i, d := range t.entries {
		if d.Handle == handle {
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
			return d
		}
	}
	return nil
}

// Drain empties the table and returns every descriptor it held.
func (t *Table) Drain() []*Descriptor {
	out := t.entries
	t.entries = nil
	return out
}

// Len returns the number of open descriptors.
func (t *Table) Len() int {
	return len(t.entries)
}
