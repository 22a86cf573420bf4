package user

import (
	"fmt"

	"github.com/GriffinCanCode/AgentOS/kernel/internal/kernel/abi"
)

// Halt powers off the machine. It does not return.
func (e *Env) Halt() {
	e.Syscall(abi.SysHalt)
	panic("user: halt returned")
}

// Exit terminates the process with status. It does not return.
func (e *Env) Exit(status int) {
	e.Syscall(abi.SysExit, uint32(int32(status)))
	panic("user: exit returned")
}

// Exec starts cmdline as a child process and returns its pid, or -1.
func (e *Env) Exec(cmdline string) int {
	return int(int32(e.Syscall(abi.SysExec, e.stageString(cmdline))))
}

// Wait waits for child pid and returns its exit status, or -1.
func (e *Env) Wait(pid int) int {
	return int(int32(e.Syscall(abi.SysWait, uint32(int32(pid)))))
}

// Create makes a file of the given initial size.
func (e *Env) Create(name string, size int) bool {
	return e.Syscall(abi.SysCreate, e.stageString(name), uint32(size)) != 0
}

// Remove deletes a file.
func (e *Env) Remove(name string) bool {
	return e.Syscall(abi.SysRemove, e.stageString(name)) != 0
}

// Open opens a file and returns its handle, or -1.
func (e *Env) Open(name string) int {
	return int(int32(e.Syscall(abi.SysOpen, e.stageString(name))))
}

// Filesize returns the size of an open file.
func (e *Env) Filesize(fd int) int {
	return int(int32(e.Syscall(abi.SysFilesize, uint32(int32(fd)))))
}

// Read reads up to len(p) bytes into p and returns the count, or -1.
func (e *Env) Read(fd int, p []byte) int {
	buf := e.reserve(uint32(len(p)))
	n := int(int32(e.Syscall(abi.SysRead, uint32(int32(fd)), buf, uint32(len(p)))))
	if n > 0 {
		copy(p, e.Peek(buf, uint32(n)))
	}
	return n
}

// Write writes p and returns the number of bytes written.
func (e *Env) Write(fd int, p []byte) int {
	return int(int32(e.Syscall(abi.SysWrite, uint32(int32(fd)), e.stage(p), uint32(len(p)))))
}

// Seek moves the position of an open file.
func (e *Env) Seek(fd int, pos int) {
	e.Syscall(abi.SysSeek, uint32(int32(fd)), uint32(pos))
}

// Tell returns the position of an open file.
func (e *Env) Tell(fd int) int {
	return int(int32(e.Syscall(abi.SysTell, uint32(int32(fd)))))
}

// Close closes an open file.
func (e *Env) Close(fd int) {
	e.Syscall(abi.SysClose, uint32(int32(fd)))
}

// Printf writes formatted output to the console.
func (e *Env) Printf(format string, args ...any) {
	e.Write(abi.StdoutFileno, []byte(fmt.Sprintf(format, args...)))
}
