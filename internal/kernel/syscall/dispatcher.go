// Package syscall is the system-call dispatcher: it decodes a trap frame,
// validates the user stack, and routes the call to its handler.
//
// Handlers report protocol violations (bad pointers, unknown calls) as
// errors; the dispatcher turns every such error into termination of the
// calling process with status -1. Resource failures are not errors: they
// come back to the caller as the call's sentinel value.
package syscall

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/kernel/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/kernel/abi"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/kernel/console"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/kernel/filesys"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/kernel/kmem"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/kernel/process"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/kernel/uaccess"
)

// ErrUnknownCall is the violation reported for a call number outside the table.
var ErrUnknownCall = errors.New("syscall: unknown call number")

// Halter powers off the machine. Halt must mark the process manager powered
// off before it returns; the calling process is then stopped.
type Halter interface {
	Halt()
}

// handlerFunc runs one call with its decoded argument words.
type handlerFunc func(d *Dispatcher, p *process.Process, args []uint32) (uint32, error)

type entry struct {
	name    string
	args    int
	returns bool
	fn      handlerFunc
}

// table is indexed by call number.
var table = [abi.NumCalls]entry{
	abi.SysHalt:     {"halt", 0, false, sysHalt},
	abi.SysExit:     {"exit", 1, false, sysExit},
	abi.SysExec:     {"exec", 1, true, sysExec},
	abi.SysWait:     {"wait", 1, true, sysWait},
	abi.SysCreate:   {"create", 2, true, sysCreate},
	abi.SysRemove:   {"remove", 1, true, sysRemove},
	abi.SysOpen:     {"open", 1, true, sysOpen},
	abi.SysFilesize: {"filesize", 1, true, sysFilesize},
	abi.SysRead:     {"read", 3, true, sysRead},
	abi.SysWrite:    {"write", 3, true, sysWrite},
	abi.SysSeek:     {"seek", 2, false, sysSeek},
	abi.SysTell:     {"tell", 1, true, sysTell},
	abi.SysClose:    {"close", 1, false, sysClose},
}

// Config wires a Dispatcher to the kernel.
type Config struct {
	Processes  *process.Manager
	FileSystem filesys.FileSystem
	FSLock     *filesys.Lock
	Console    *console.Console
	Pages      *kmem.Arena[kmem.Page]
	Halter     Halter
	Metrics    *monitoring.Metrics
	Logger     *zap.Logger
}

// Dispatcher services system calls.
type Dispatcher struct {
	procs   *process.Manager
	fs      filesys.FileSystem
	fsLock  *filesys.Lock
	console *console.Console
	pages   *kmem.Arena[kmem.Page]
	halter  Halter
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

// New creates a dispatcher.
func New(cfg Config) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	pages := cfg.Pages
	if pages == nil {
		pages = kmem.NewPagePool(0)
	}
	fsLock := cfg.FSLock
	if fsLock == nil {
		fsLock = filesys.NewLock(nil)
	}
	return &Dispatcher{
		procs:   cfg.Processes,
		fs:      cfg.FileSystem,
		fsLock:  fsLock,
		console: cfg.Console,
		pages:   pages,
		halter:  cfg.Halter,
		metrics: cfg.Metrics,
		logger:  logger,
	}
}

// Handle services the trap described by f on behalf of p. It has the
// signature of process.TrapHandler. It does not return if the call
// terminates p.
//
// After power-off no trap returns to user code: the caller is stopped on
// entry, or once its call completes.
func (d *Dispatcher) Handle(p *process.Process, f *abi.TrapFrame) {
	if d.procs.PoweredOff() {
		d.procs.Stop(p)
	}
	mem := p.Space()

	if err := uaccess.CheckArgumentWindow(f.ESP, 0); err != nil {
		d.kill(p, err)
	}
	word, err := uaccess.ReadWord(mem, f.ESP)
	if err != nil {
		d.kill(p, err)
	}

	n := abi.Number(int32(word))
	if !n.Valid() {
		d.kill(p, fmt.Errorf("call %d: %w", int32(word), ErrUnknownCall))
	}
	e := &table[n]

	if err := uaccess.CheckArgumentWindow(f.ESP, e.args); err != nil {
		d.kill(p, fmt.Errorf("%s: %w", e.name, err))
	}
	args := make([]uint32, e.args)
	for i := range args {
		args[i], err = uaccess.ReadWord(mem, f.ESP+uint32(i+1)*abi.WordSize)
		if err != nil {
			d.kill(p, fmt.Errorf("%s: argument %d: %w", e.name, i, err))
		}
	}

	if ce := d.logger.Check(zap.DebugLevel, "syscall"); ce != nil {
		ce.Write(
			zap.Int32("pid", int32(p.Pid())),
			zap.String("call", e.name),
			zap.Uint32s("args", args),
		)
	}

	timer := monitoring.NewTimer(d.metrics, e.name)
	ret, err := e.fn(d, p, args)
	timer.Stop()
	if err != nil {
		d.kill(p, fmt.Errorf("%s: %w", e.name, err))
	}
	if d.procs.PoweredOff() {
		d.procs.Stop(p)
	}
	if e.returns {
		f.EAX = ret
	}
}

// kill terminates p for a protocol violation. It does not return.
func (d *Dispatcher) kill(p *process.Process, err error) {
	d.procs.Kill(p, reason(err), err)
}

func reason(err error) string {
	switch {
	case errors.Is(err, ErrUnknownCall):
		return "unknown_call"
	case errors.Is(err, uaccess.ErrKernelAddress):
		return "kernel_address"
	case errors.Is(err, uaccess.ErrReadOnly):
		return "read_only"
	case errors.Is(err, uaccess.ErrNoMemory):
		return "no_memory"
	case errors.Is(err, uaccess.ErrBadAddress):
		return "bad_address"
	default:
		return "violation"
	}
}

// Name returns the name of call n, or the empty string.
func Name(n abi.Number) string {
	if !n.Valid() {
		return ""
	}
	return table[n].name
}

// Arity returns the number of argument words call n takes, or -1.
func Arity(n abi.Number) int {
	if !n.Valid() {
		return -1
	}
	return table[n].args
}
