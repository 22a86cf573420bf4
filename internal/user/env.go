// Package user is the user-mode side of the system-call interface: the
// library a user program links against to reach the kernel.
//
// A call is made the way the trap convention requires: the library writes
// the call number and its argument words onto the program's own stack, in
// simulated user memory, and traps with the stack pointer. Strings and
// buffers are staged in a scratch region of user memory first, so the
// kernel only ever sees user addresses.
package user

import (
	"encoding/binary"
	"fmt"

	"github.com/GriffinCanCode/AgentOS/kernel/internal/kernel/abi"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/kernel/vm"
)

// Layout of the regions the library manages.
const (
	HeapBase    uint32 = 0x08100000
	ScratchBase uint32 = 0x20000000

	// FrameReserve is the stack space below the initial stack pointer that
	// the loader leaves free for call frames.
	FrameReserve = 64
)

// Trap enters the kernel with the given user stack pointer and returns the
// value the kernel left in the return register.
type Trap func(esp uint32) uint32

// Env is a running program's view of its process.
type Env struct {
	space   *vm.AddressSpace
	trap    Trap
	esp     uint32
	brk     uint32
	scratch uint32
}

// NewEnv binds a program to its address space, initial stack pointer and
// kernel entry.
func NewEnv(space *vm.AddressSpace, esp uint32, trap Trap) *Env {
	return &Env{
		space:   space,
		trap:    trap,
		esp:     esp,
		brk:     HeapBase,
		scratch: ScratchBase,
	}
}

// Space returns the program's address space.
func (e *Env) Space() *vm.AddressSpace { return e.space }

// Args returns argv as laid out on the initial stack.
func (e *Env) Args() []string {
	// esp -> fake return, argc, argv
	argc := e.word(e.esp + abi.WordSize)
	argv := e.word(e.esp + 2*abi.WordSize)

	out := make([]string, 0, argc)
	for i := uint32(0); i < argc; i++ {
		out = append(out, e.PeekString(e.word(argv+i*abi.WordSize)))
	}
	return out
}

// Syscall traps into the kernel with call number n and raw argument words.
// Arguments beyond those the call takes are ignored by the kernel.
func (e *Env) Syscall(n abi.Number, args ...uint32) uint32 {
	return e.SyscallAt(e.esp-(abi.MaxArgs+1)*abi.WordSize, n, args...)
}

// SyscallAt is Syscall with an explicit stack pointer. The frame is written
// only where it lands in mapped memory, which lets tests trap with a stack
// pointer that is bogus or straddles the kernel split.
func (e *Env) SyscallAt(esp uint32, n abi.Number, args ...uint32) uint32 {
	defer e.resetScratch()

	words := append([]uint32{uint32(n)}, args...)
	for i, w := range words {
		var buf [abi.WordSize]byte
		binary.LittleEndian.PutUint32(buf[:], w)
		addr := esp + uint32(i)*abi.WordSize
		if abi.IsUserAddr(addr) && e.space.IsMapped(addr) {
			_ = e.space.Write(addr, buf[:])
		}
	}
	return e.trap(esp)
}

// Alloc reserves n bytes of heap and returns the address.
func (e *Env) Alloc(n uint32) uint32 {
	addr := e.brk
	if err := e.space.MapRange(addr, n, true); err != nil {
		panic(fmt.Sprintf("user: heap exhausted: %v", err))
	}
	e.brk += (n + abi.WordSize - 1) &^ (abi.WordSize - 1)
	return addr
}

// PutString copies s and a terminating NUL onto the heap.
func (e *Env) PutString(s string) uint32 {
	addr := e.Alloc(uint32(len(s) + 1))
	e.Poke(addr, append([]byte(s), 0))
	return addr
}

// Poke writes data at addr.
func (e *Env) Poke(addr uint32, data []byte) {
	if err := e.space.Write(addr, data); err != nil {
		panic(fmt.Sprintf("user: poke: %v", err))
	}
}

// Peek reads n bytes at addr.
func (e *Env) Peek(addr, n uint32) []byte {
	buf := make([]byte, n)
	if err := e.space.Read(addr, buf); err != nil {
		panic(fmt.Sprintf("user: peek: %v", err))
	}
	return buf
}

// PeekString reads a NUL-terminated string at addr.
func (e *Env) PeekString(addr uint32) string {
	var out []byte
	for {
		b, ok := e.space.LoadByte(addr)
		if !ok || b == 0 {
			return string(out)
		}
		out = append(out, b)
		addr++
	}
}

func (e *Env) word(addr uint32) uint32 {
	return binary.LittleEndian.Uint32(e.Peek(addr, abi.WordSize))
}

// stage copies data into the scratch region for the duration of one call.
func (e *Env) stage(data []byte) uint32 {
	addr := e.reserve(uint32(len(data)))
	if len(data) > 0 {
		e.Poke(addr, data)
	}
	return addr
}

func (e *Env) stageString(s string) uint32 {
	return e.stage(append([]byte(s), 0))
}

func (e *Env) reserve(n uint32) uint32 {
	addr := e.scratch
	if n == 0 {
		return addr
	}
	if err := e.space.MapRange(addr, n, true); err != nil {
		panic(fmt.Sprintf("user: scratch exhausted: %v", err))
	}
	e.scratch += (n + abi.WordSize - 1) &^ (abi.WordSize - 1)
	return addr
}

func (e *Env) resetScratch() {
	e.scratch = ScratchBase
}
