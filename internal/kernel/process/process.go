// Package process is the process lifecycle coordinator: exec, wait and
// exit, and the bookkeeping that lets a parent reliably learn how each of
// its children ended.
package process

import (
	"fmt"
	"sort"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/kernel/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/kernel/abi"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/kernel/console"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/kernel/fdtable"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/kernel/filesys"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/kernel/kmem"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/kernel/loader"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/kernel/sched"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/kernel/vm"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/user"
)

// NameMax is the longest process name; longer program names are truncated.
const NameMax = 15

// Loader builds process images from command lines.
type Loader interface {
	Load(cmdline string) (*loader.Image, error)
}

// TrapHandler services one system call for p. It may not return if the
// call terminates the process.
type TrapHandler func(p *Process, f *abi.TrapFrame)

// Process is the kernel's record of one user process.
//
// Apart from the descriptor table and the space pointer, which are guarded
// by the filesystem lock, a Process is only touched by its own thread.
type Process struct {
	pid        sched.Tid
	name       string
	exitStatus int
	waitStatus *Handshake
	children   []*Handshake
	files      *fdtable.Table
	space      *vm.AddressSpace
	announced  bool
}

// Pid returns the process id.
func (p *Process) Pid() sched.Tid { return p.pid }

// Name returns the process name used in the termination message.
func (p *Process) Name() string { return p.name }

// ExitStatus returns the status recorded by Exit.
func (p *Process) ExitStatus() int { return p.exitStatus }

// Files returns the descriptor table. Hold the filesystem lock while using it.
func (p *Process) Files() *fdtable.Table { return p.files }

// Space returns the user address space.
func (p *Process) Space() *vm.AddressSpace { return p.space }

// Info is a point-in-time description of a running process.
type Info struct {
	Pid       int    `json:"pid"`
	Name      string `json:"name"`
	OpenFiles int    `json:"open_files"`
	Pages     int    `json:"pages"`
}

// Config wires a Manager to its collaborators.
type Config struct {
	Scheduler *sched.Scheduler
	Loader    Loader
	Console   *console.Console
	FSLock    *filesys.Lock
	Metrics   *monitoring.Metrics
	Logger    *zap.Logger

	// HandshakeLimit and ExecLimit bound the corresponding arenas.
	// Zero means unbounded.
	HandshakeLimit int
	ExecLimit      int
}

// Manager creates, waits for and tears down processes.
type Manager struct {
	sched   *sched.Scheduler
	loader  Loader
	console *console.Console
	fsLock  *filesys.Lock
	metrics *monitoring.Metrics
	logger  *zap.Logger
	trap    TrapHandler

	handshakes *kmem.Arena[Handshake]
	execs      *kmem.Arena[execInfo]

	table *table
	off   atomic.Bool
}

// NewManager creates a manager.
func NewManager(cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	fsLock := cfg.FSLock
	if fsLock == nil {
		fsLock = filesys.NewLock(nil)
	}

	m := &Manager{
		sched:      cfg.Scheduler,
		loader:     cfg.Loader,
		console:    cfg.Console,
		fsLock:     fsLock,
		metrics:    cfg.Metrics,
		logger:     logger,
		handshakes: kmem.NewArena[Handshake]("handshakes", cfg.HandshakeLimit),
		execs:      kmem.NewArena[execInfo]("exec", cfg.ExecLimit),
		table:      newTable(),
	}
	if cfg.Metrics != nil {
		m.handshakes.WithObserver(cfg.Metrics)
		m.execs.WithObserver(cfg.Metrics)
	}
	return m
}

// SetTrapHandler installs the system-call entry used by every process.
func (m *Manager) SetTrapHandler(h TrapHandler) {
	m.trap = h
}

// NewKernelProcess returns a process record for kernel code that execs and
// waits on user processes but never runs user code itself.
func (m *Manager) NewKernelProcess(name string) *Process {
	return &Process{name: name, files: fdtable.New()}
}

// PowerOff marks the machine as off. From then on processes end without a
// termination message, and Stop ends each one at its next kernel entry.
func (m *Manager) PowerOff() { m.off.Store(true) }

// PoweredOff reports whether PowerOff has been called.
func (m *Manager) PoweredOff() bool { return m.off.Load() }

// Stop ends p after power-off: its files are closed and its handshakes
// released, as on Exit. It does not return.
func (m *Manager) Stop(p *Process) {
	m.logger.Debug("process stopped at power-off", zap.Int32("pid", int32(p.pid)))
	m.Exit(p, -1)
}

// LiveHandshakes returns the number of handshakes not yet freed.
func (m *Manager) LiveHandshakes() int { return m.handshakes.Live() }

// LiveExecs returns the number of exec handshakes not yet freed.
func (m *Manager) LiveExecs() int { return m.execs.Live() }

// List describes every running process, ordered by pid.
func (m *Manager) List() []Info {
	procs := m.table.all()
	sort.Slice(procs, func(i, j int) bool { return procs[i].pid < procs[j].pid })

	out := make([]Info, 0, len(procs))
	m.fsLock.Lock()
	for _, p := range procs {
		info := Info{Pid: int(p.pid), Name: p.name, OpenFiles: p.files.Len()}
		if p.space != nil {
			info.Pages = p.space.Pages()
		}
		out = append(out, info)
	}
	m.fsLock.Unlock()
	return out
}

// Exec starts a child of parent running cmdline and waits until the child
// has either loaded or failed to. It returns the child's pid, or TidError.
func (m *Manager) Exec(parent *Process, cmdline string) sched.Tid {
	info, err := m.execs.Alloc()
	if err != nil {
		m.logger.Warn("exec: no memory for exec handshake", zap.Error(err))
		return sched.TidError
	}
	defer m.execs.Free(info)

	info.cmdline = cmdline
	info.loadDone = sched.NewSemaphore()

	tid, err := m.sched.Create(threadName(cmdline), func(t *sched.Thread) {
		m.start(t, info)
	})
	if err != nil {
		m.logger.Warn("exec: thread creation failed", zap.String("cmdline", cmdline), zap.Error(err))
		return sched.TidError
	}

	info.loadDone.Down()
	if !info.success {
		return sched.TidError
	}
	parent.children = append(parent.children, info.status)
	return tid
}

// start runs on the child's own thread.
func (m *Manager) start(t *sched.Thread, info *execInfo) {
	p := &Process{pid: t.Tid(), name: t.Name(), files: fdtable.New()}
	m.table.put(p)
	m.metrics.ProcessStarted()

	img, err := m.loader.Load(info.cmdline)
	if err == nil {
		var hs *Handshake
		hs, err = m.handshakes.Alloc()
		if err != nil {
			img.Space.Destroy()
		} else {
			hs.init(p.pid)
			p.waitStatus = hs
			m.fsLock.Lock()
			p.space = img.Space
			m.fsLock.Unlock()
		}
	}

	if err != nil {
		// Print before the parent resumes so its output follows ours.
		m.announce(p, -1)
	}
	info.success = err == nil
	info.status = p.waitStatus
	info.loadDone.Up()
	// info belongs to the parent again from here on.

	if err != nil {
		m.logger.Info("load failed", zap.Int32("pid", int32(p.pid)), zap.Error(err))
		m.Exit(p, -1)
	}

	m.logger.Info("process started",
		zap.Int32("pid", int32(p.pid)),
		zap.Strings("argv", img.Argv),
	)

	defer func() {
		if r := recover(); r != nil {
			m.Kill(p, "user_fault", fmt.Errorf("%v", r))
		}
	}()

	env := user.NewEnv(img.Space, img.ESP, func(esp uint32) uint32 {
		f := &abi.TrapFrame{ESP: esp}
		m.trap(p, f)
		return f.EAX
	})
	env.Exit(img.Main(env))
}

// Wait blocks until child pid of parent exits and returns its exit status.
// It returns -1 at once if pid is not a child of parent or has already been
// waited for.
func (m *Manager) Wait(parent *Process, pid sched.Tid) int {
	for i, hs := range parent.children {
		if hs.tid != pid {
			continue
		}
		parent.children = append(parent.children[:i], parent.children[i+1:]...)

		hs.dead.Down()
		status := hs.exitCode
		m.release(hs)
		return status
	}
	return -1
}

// Exit terminates p with status. It must be called on p's own thread and
// does not return. Once the machine is off the termination message is
// suppressed.
func (m *Manager) Exit(p *Process, status int) {
	p.exitStatus = status

	m.fsLock.Lock()
	for _, d := range p.files.Drain() {
		_ = d.File.Close()
	}
	m.fsLock.Unlock()

	m.announce(p, status)

	if hs := p.waitStatus; hs != nil {
		hs.exitCode = status
		hs.dead.Up()
		p.waitStatus = nil
		m.release(hs)
	}
	m.ReleaseChildren(p)

	if p.space != nil {
		p.space.Destroy()
	}
	m.table.remove(p.pid)
	m.metrics.ProcessExited(status)
	m.logger.Info("process exited",
		zap.Int32("pid", int32(p.pid)),
		zap.String("name", p.name),
		zap.Int("status", status),
	)

	m.sched.Exit()
}

// announce prints p's termination message once, unless the machine is off.
func (m *Manager) announce(p *Process, status int) {
	if !p.announced && !m.off.Load() {
		m.console.Printf("%s: exit(%d)\n", p.name, status)
	}
	p.announced = true
}

// Kill terminates p with status -1 after a protocol violation. It does not
// return.
func (m *Manager) Kill(p *Process, reason string, err error) {
	m.logger.Warn("killing process",
		zap.Int32("pid", int32(p.pid)),
		zap.String("name", p.name),
		zap.String("reason", reason),
		zap.Error(err),
	)
	m.metrics.RecordKill(reason)
	m.Exit(p, -1)
}

// ReleaseChildren drops p's reference to every child it never waited for.
func (m *Manager) ReleaseChildren(p *Process) {
	for _, hs := range p.children {
		m.release(hs)
	}
	p.children = nil
}

func threadName(cmdline string) string {
	name := loader.ProgramName(cmdline)
	if len(name) > NameMax {
		name = name[:NameMax]
	}
	return name
}
