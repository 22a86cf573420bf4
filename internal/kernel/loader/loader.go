// Package loader turns a command line into a runnable process image: it
// splits the line into a program name and arguments, finds the program,
// builds a fresh address space, and lays argv out on the user stack.
package loader

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/GriffinCanCode/AgentOS/kernel/internal/kernel/abi"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/kernel/vm"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/user"
)

// CodeBase is where a program's (read-only) text page is mapped.
const CodeBase uint32 = 0x08048000

var (
	// ErrEmptyCommand is returned for a command line with no program name.
	ErrEmptyCommand = errors.New("loader: empty command line")

	// ErrNoProgram is returned when the program name is not registered.
	ErrNoProgram = errors.New("loader: no such program")

	// ErrArgsTooLong is returned when argv does not fit on the stack page.
	ErrArgsTooLong = errors.New("loader: arguments do not fit on the stack")
)

// Program is the entry point of a user program. Its return value becomes the
// process's exit status.
type Program func(env *user.Env) int

// Image is a loaded, not yet running, process.
type Image struct {
	Name  string
	Argv  []string
	Space *vm.AddressSpace
	ESP   uint32
	Main  Program
}

// Registry maps program names to entry points.
type Registry struct {
	mu       sync.RWMutex
	programs map[string]Program
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{programs: make(map[string]Program)}
}

// Register adds or replaces a program.
func (r *Registry) Register(name string, p Program) {
	r.mu.Lock()
	r.programs[name] = p
	r.mu.Unlock()
}

// Lookup returns the program registered under name.
func (r *Registry) Lookup(name string) (Program, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.programs[name]
	return p, ok
}

// Names lists registered programs in order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.programs))
	for name := range r.programs {
		out = append(out, name)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Loader loads programs from a registry.
type Loader struct {
	programs *Registry
}

// New creates a loader over programs.
func New(programs *Registry) *Loader {
	return &Loader{programs: programs}
}

// ParseCommandLine splits cmdline on runs of spaces into a program name and
// its argument vector (argv[0] is the name).
func ParseCommandLine(cmdline string) (name string, argv []string, err error) {
	argv = strings.Fields(cmdline)
	if len(argv) == 0 {
		return "", nil, ErrEmptyCommand
	}
	return argv[0], argv, nil
}

// ProgramName returns the first word of cmdline, or the empty string.
func ProgramName(cmdline string) string {
	name, _, _ := ParseCommandLine(cmdline)
	return name
}

// Load parses cmdline and prepares a new process image.
func (l *Loader) Load(cmdline string) (*Image, error) {
	name, argv, err := ParseCommandLine(cmdline)
	if err != nil {
		return nil, err
	}
	entry, ok := l.programs.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("load %q: %w", name, ErrNoProgram)
	}

	space := vm.New()
	if err := space.Map(CodeBase, false); err != nil {
		return nil, fmt.Errorf("load %q: %w", name, err)
	}
	esp, err := SetupStack(space, argv)
	if err != nil {
		space.Destroy()
		return nil, fmt.Errorf("load %q: %w", name, err)
	}

	return &Image{Name: name, Argv: argv, Space: space, ESP: esp, Main: entry}, nil
}

// SetupStack maps the stack page just below PhysBase and pushes argv onto
// it: the strings, padding to a word boundary, a NULL sentinel, the argv
// pointers, argv itself, argc, and a fake return address. It returns the
// resulting stack pointer.
func SetupStack(space *vm.AddressSpace, argv []string) (uint32, error) {
	base := abi.PhysBase - abi.PageSize
	if err := space.Map(base, true); err != nil {
		return 0, err
	}

	need := 0
	for _, a := range argv {
		need += len(a) + 1
	}
	need = (need + abi.WordSize - 1) &^ (abi.WordSize - 1)
	need += (len(argv) + 1 + 3) * abi.WordSize
	if need+user.FrameReserve > abi.PageSize {
		return 0, ErrArgsTooLong
	}

	esp := abi.PhysBase
	ptrs := make([]uint32, len(argv))
	for i := len(argv) - 1; i >= 0; i-- {
		esp -= uint32(len(argv[i]) + 1)
		if err := space.Write(esp, append([]byte(argv[i]), 0)); err != nil {
			return 0, err
		}
		ptrs[i] = esp
	}
	esp &^= abi.WordSize - 1

	push := func(w uint32) error {
		esp -= abi.WordSize
		var buf [abi.WordSize]byte
		binary.LittleEndian.PutUint32(buf[:], w)
		return space.Write(esp, buf[:])
	}

	if err := push(0); err != nil {
		return 0, err
	}
	for i := len(ptrs) - 1; i >= 0; i-- {
		if err := push(ptrs[i]); err != nil {
			return 0, err
		}
	}
	argvAddr := esp
	for _, w := range []uint32{argvAddr, uint32(len(argv)), 0} {
		if err := push(w); err != nil {
			return 0, err
		}
	}
	return esp, nil
}
