// Package machine assembles the kernel: it wires the scheduler, memory
// arenas, filesystem, console, loader, process manager and system-call
// dispatcher together, boots the filesystem, runs the initial process and
// powers off.
package machine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/kernel/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/kernel/console"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/kernel/filesys"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/kernel/filesys/image"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/kernel/kmem"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/kernel/loader"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/kernel/process"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/kernel/sched"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/kernel/syscall"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/user/programs"
)

// ErrExecFailed is returned by Run when the initial process cannot start.
var ErrExecFailed = errors.New("machine: initial process failed to start")

// Options configures a Machine. Zero values select defaults.
type Options struct {
	Config  *config.Config
	Logger  *logging.Logger
	Metrics *monitoring.Metrics
	Stdout  io.Writer
	Stdin   io.Reader
}

// Machine is one bootable kernel instance.
type Machine struct {
	cfg     *config.Config
	bootID  id.BootID
	logger  *zap.Logger
	metrics *monitoring.Metrics

	sched    *sched.Scheduler
	fs       *filesys.MemFS
	fsLock   *filesys.Lock
	console  *console.Console
	programs *loader.Registry
	pages    *kmem.Arena[kmem.Page]
	procs    *process.Manager

	halted   chan struct{}
	powerOff sync.Once
	powerErr error
}

// New builds a machine. Nothing runs until Run.
func New(opts Options) *Machine {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = monitoring.NewMetrics()
	}
	bootID := id.NewBootID()
	log := opts.Logger
	if log == nil {
		log = logging.NewNop()
	}
	log = log.WithBoot(bootID.String())

	m := &Machine{
		cfg:      cfg,
		bootID:   bootID,
		logger:   log.Component("machine"),
		metrics:  metrics,
		sched:    sched.New(cfg.Kernel.ThreadLimit, log.Component("sched")),
		fs:       filesys.NewMemFS(),
		fsLock:   filesys.NewLock(metrics.ObserveLockWait),
		console:  console.New(opts.Stdout, opts.Stdin),
		programs: loader.NewRegistry(),
		pages:    kmem.NewPagePool(cfg.Kernel.PageLimit).WithObserver(metrics),
		halted:   make(chan struct{}),
	}
	programs.Register(m.programs)

	m.procs = process.NewManager(process.Config{
		Scheduler:      m.sched,
		Loader:         loader.New(m.programs),
		Console:        m.console,
		FSLock:         m.fsLock,
		Metrics:        metrics,
		Logger:         log.Component("process"),
		HandshakeLimit: cfg.Kernel.HandshakeLimit,
		ExecLimit:      cfg.Kernel.ExecLimit,
	})
	dispatcher := syscall.New(syscall.Config{
		Processes:  m.procs,
		FileSystem: m.fs,
		FSLock:     m.fsLock,
		Console:    m.console,
		Pages:      m.pages,
		Halter:     m,
		Metrics:    metrics,
		Logger:     log.Component("syscall"),
	})
	m.procs.SetTrapHandler(dispatcher.Handle)
	return m
}

// Boot fills the filesystem: first from the snapshot, if one is configured
// and exists, then from the import directory.
func (m *Machine) Boot(ctx context.Context) error {
	fc := m.cfg.Filesys

	if fc.Snapshot != "" {
		snap, err := image.LoadFile(fc.Snapshot, m.fs)
		if err != nil {
			return fmt.Errorf("boot: %w", err)
		}
		if snap != nil {
			m.logger.Info("filesystem restored",
				zap.String("snapshot", fc.Snapshot),
				zap.String("saved_by", snap.BootID),
				zap.Int("files", len(snap.Files)),
			)
		}
	}

	if fc.ImportDir != "" {
		res, err := image.Import(ctx, m.fs, fc.ImportDir, fc.Include)
		if err != nil {
			return fmt.Errorf("boot: %w", err)
		}
		m.logger.Info("host files imported",
			zap.String("dir", fc.ImportDir),
			zap.Int("imported", len(res.Imported)),
			zap.Strings("skipped", res.Skipped),
		)
	}
	return nil
}

// Run starts cmdline as the initial process, waits for it to exit, and
// powers off. It returns the process's exit status. If a process halts the
// machine first, Run returns as soon as the machine is off, with status 0.
func (m *Machine) Run(ctx context.Context, cmdline string) (int, error) {
	m.logger.Info("running", zap.String("cmdline", cmdline))

	root := m.procs.NewKernelProcess("main")
	pid := m.procs.Exec(root, cmdline)
	if pid == sched.TidError {
		err := m.shutdown("exec failed")
		return -1, errors.Join(fmt.Errorf("%w: %q", ErrExecFailed, cmdline), err)
	}

	done := make(chan int, 1)
	go func() {
		done <- m.procs.Wait(root, pid)
	}()

	select {
	case status := <-done:
		select {
		case <-m.halted:
			return 0, m.powerErr
		default:
		}
		return status, m.shutdown("initial process exited")
	case <-m.halted:
		return 0, m.powerErr
	case <-ctx.Done():
		err := m.shutdown("cancelled")
		return -1, errors.Join(ctx.Err(), err)
	}
}

// Halt implements syscall.Halter. It powers the machine off; the dispatcher
// then stops the calling process.
func (m *Machine) Halt() {
	_ = m.shutdown("halt")
}

// shutdown powers off once. Processes are stopped at their next system call
// before the filesystem is saved. Everyone waiting on Halted is released
// last.
func (m *Machine) shutdown(reason string) error {
	m.powerOff.Do(func() {
		m.procs.PowerOff()
		fc := m.cfg.Filesys
		if fc.SaveOnHalt && fc.Snapshot != "" {
			m.fsLock.Lock()
			m.powerErr = image.SaveFile(fc.Snapshot, m.fs, m.bootID.String())
			m.fsLock.Unlock()
			if m.powerErr != nil {
				m.logger.Error("snapshot failed", zap.Error(m.powerErr))
			}
		}
		m.logger.Info("powering off", zap.String("reason", reason))
		close(m.halted)
	})
	return m.powerErr
}

// Halted is closed once the machine has powered off.
func (m *Machine) Halted() <-chan struct{} { return m.halted }

// BootID identifies this run.
func (m *Machine) BootID() id.BootID { return m.bootID }

// FS returns the filesystem.
func (m *Machine) FS() *filesys.MemFS { return m.fs }

// Console returns the console device.
func (m *Machine) Console() *console.Console { return m.console }

// Programs returns the program registry, for installing extra programs
// before Run.
func (m *Machine) Programs() *loader.Registry { return m.programs }

// Metrics returns the machine's metrics.
func (m *Machine) Metrics() *monitoring.Metrics { return m.metrics }

// Processes describes the running processes.
func (m *Machine) Processes() []process.Info { return m.procs.List() }

// LiveHandshakes reports handshakes not yet freed.
func (m *Machine) LiveHandshakes() int { return m.procs.LiveHandshakes() }

// Wait blocks until every kernel thread has finished.
func (m *Machine) Wait() { m.sched.Wait() }
