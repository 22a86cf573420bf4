// Package abi defines the contract between user programs and the kernel:
// address-space layout, word size, call numbers and the trap frame.
package abi

import "fmt"

const (
	// PhysBase is the kernel/user split. User addresses are strictly below it.
	PhysBase uint32 = 0xC0000000

	// PageSize is the size of one page of user or kernel memory.
	PageSize = 4096

	// WordSize is the width of one argument slot on the user stack.
	WordSize = 4

	// MaxArgs is the number of argument slots a call may carry.
	MaxArgs = 3
)

// Number identifies a system call.
type Number int32

// System call numbers, as pushed by the user library.
const (
	SysHalt Number = iota
	SysExit
	SysExec
	SysWait
	SysCreate
	SysRemove
	SysOpen
	SysFilesize
	SysRead
	SysWrite
	SysSeek
	SysTell
	SysClose

	NumCalls = int(SysClose) + 1
)

var names = [NumCalls]string{
	"halt", "exit", "exec", "wait", "create", "remove", "open",
	"filesize", "read", "write", "seek", "tell", "close",
}

// Valid reports whether n names a known call.
func (n Number) Valid() bool {
	return n >= 0 && int(n) < NumCalls
}

func (n Number) String() string {
	if !n.Valid() {
		return fmt.Sprintf("sys#%d", int32(n))
	}
	return names[n]
}

// Console handles.
const (
	StdinFileno  = 0
	StdoutFileno = 1
)

// TrapFrame is the register state captured on entry to the kernel.
type TrapFrame struct {
	ESP uint32 // user stack pointer; the call number sits here
	EAX uint32 // return value slot
}

// IsUserAddr reports whether addr lies below the kernel/user split.
func IsUserAddr(addr uint32) bool {
	return addr < PhysBase
}

// PageRoundDown returns the base of the page containing addr.
func PageRoundDown(addr uint32) uint32 {
	return addr &^ (PageSize - 1)
}

// PageOffset returns the offset of addr within its page.
func PageOffset(addr uint32) uint32 {
	return addr & (PageSize - 1)
}
