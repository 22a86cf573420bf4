// Package programs holds the user programs the machine ships with. Each
// one talks to the kernel only through the system-call library.
package programs

import (
	"strconv"
	"strings"

	"github.com/GriffinCanCode/AgentOS/kernel/internal/kernel/abi"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/kernel/loader"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/user"
)

// chunk is the buffer size used for file copies.
const chunk = 512

// Register adds every program to reg.
func Register(reg *loader.Registry) {
	reg.Register("echo", Echo)
	reg.Register("cat", Cat)
	reg.Register("cp", Copy)
	reg.Register("touch", Touch)
	reg.Register("rm", Remove)
	reg.Register("wc", WordCount)
	reg.Register("spawn", Spawn)
	reg.Register("halt", Halt)
}

// Echo prints its arguments separated by spaces.
func Echo(env *user.Env) int {
	env.Printf("%s\n", strings.Join(env.Args()[1:], " "))
	return 0
}

// Cat copies each named file, or the keyboard when none is named, to the
// console.
func Cat(env *user.Env) int {
	args := env.Args()[1:]
	if len(args) == 0 {
		pump(env, abi.StdinFileno, abi.StdoutFileno)
		return 0
	}

	status := 0
	for _, name := range args {
		fd := env.Open(name)
		if fd < 0 {
			env.Printf("cat: %s: no such file\n", name)
			status = 1
			continue
		}
		pump(env, fd, abi.StdoutFileno)
		env.Close(fd)
	}
	return status
}

// Copy copies one file to a new name.
func Copy(env *user.Env) int {
	args := env.Args()
	if len(args) != 3 {
		env.Printf("usage: cp SRC DST\n")
		return 2
	}

	src := env.Open(args[1])
	if src < 0 {
		env.Printf("cp: %s: no such file\n", args[1])
		return 1
	}
	defer env.Close(src)

	if !env.Create(args[2], 0) {
		env.Printf("cp: %s: cannot create\n", args[2])
		return 1
	}
	dst := env.Open(args[2])
	if dst < 0 {
		return 1
	}
	defer env.Close(dst)

	pump(env, src, dst)
	return 0
}

// Touch creates a file, optionally with an initial size.
func Touch(env *user.Env) int {
	args := env.Args()
	if len(args) < 2 || len(args) > 3 {
		env.Printf("usage: touch NAME [SIZE]\n")
		return 2
	}
	size := 0
	if len(args) == 3 {
		n, err := strconv.Atoi(args[2])
		if err != nil || n < 0 {
			env.Printf("touch: bad size %q\n", args[2])
			return 2
		}
		size = n
	}
	if !env.Create(args[1], size) {
		env.Printf("touch: %s: cannot create\n", args[1])
		return 1
	}
	return 0
}

// Remove deletes each named file.
func Remove(env *user.Env) int {
	status := 0
	for _, name := range env.Args()[1:] {
		if !env.Remove(name) {
			env.Printf("rm: %s: no such file\n", name)
			status = 1
		}
	}
	return status
}

// WordCount prints line, word and byte counts for each named file.
func WordCount(env *user.Env) int {
	status := 0
	for _, name := range env.Args()[1:] {
		fd := env.Open(name)
		if fd < 0 {
			env.Printf("wc: %s: no such file\n", name)
			status = 1
			continue
		}

		var lines, words, size int
		inWord := false
		buf := make([]byte, chunk)
		for {
			n := env.Read(fd, buf)
			if n <= 0 {
				break
			}
			size += n
			for _, b := range buf[:n] {
				switch b {
				case '\n':
					lines++
					inWord = false
				case ' ', '\t', '\r':
					inWord = false
				default:
					if !inWord {
						words++
					}
					inWord = true
				}
			}
		}
		env.Close(fd)
		env.Printf("%d %d %d %s\n", lines, words, size, name)
	}
	return status
}

// Spawn runs the rest of its command line as a child, waits for it, and
// exits with the child's status.
func Spawn(env *user.Env) int {
	args := env.Args()[1:]
	if len(args) == 0 {
		env.Printf("usage: spawn CMD [ARGS...]\n")
		return 2
	}
	cmdline := strings.Join(args, " ")

	pid := env.Exec(cmdline)
	if pid < 0 {
		env.Printf("spawn: %s: exec failed\n", args[0])
		return -1
	}
	return env.Wait(pid)
}

// Halt powers the machine off.
func Halt(env *user.Env) int {
	env.Halt()
	return 0
}

// pump copies from one handle to another until end of input.
func pump(env *user.Env, from, to int) {
	buf := make([]byte, chunk)
	for {
		n := env.Read(from, buf)
		if n <= 0 {
			return
		}
		env.Write(to, buf[:n])
	}
}
