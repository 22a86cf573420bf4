// Package uaccess is the kernel's boundary validator. It reads and copies
// data from addresses supplied by untrusted user code without ever faulting
// the kernel.
//
// Every function here reports problems as errors. An error from this package
// is a protocol violation: the system-call dispatcher terminates the calling
// process when it sees one, and nothing is read past the first failure.
package uaccess

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/GriffinCanCode/AgentOS/kernel/internal/kernel/abi"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/kernel/kmem"
)

var (
	// ErrBadAddress is returned when a probed user address is not mapped.
	ErrBadAddress = errors.New("uaccess: bad user address")

	// ErrKernelAddress is returned when an access reaches kernel space.
	ErrKernelAddress = errors.New("uaccess: access crosses into kernel space")

	// ErrReadOnly is returned when a copy-out targets a read-only page.
	ErrReadOnly = errors.New("uaccess: user page is read-only")

	// ErrNoMemory is returned when no kernel page is available for a copy.
	ErrNoMemory = errors.New("uaccess: out of kernel memory")
)

// Memory is the user address space as seen by the validator.
type Memory interface {
	LoadByte(addr uint32) (byte, bool)
	StoreByte(addr uint32, b byte) bool
	Writable(addr uint32) bool
}

// ProbeByte reads one byte from a possibly invalid user address.
func ProbeByte(mem Memory, addr uint32) (byte, error) {
	if !abi.IsUserAddr(addr) {
		return 0, fmt.Errorf("probe %#x: %w", addr, ErrKernelAddress)
	}
	b, ok := mem.LoadByte(addr)
	if !ok {
		return 0, fmt.Errorf("probe %#x: %w", addr, ErrBadAddress)
	}
	return b, nil
}

// CheckRange verifies that [addr, addr+n) lies entirely below the kernel
// split. It reads nothing.
func CheckRange(addr, n uint32) error {
	if n == 0 {
		return nil
	}
	last := uint64(addr) + uint64(n) - 1
	if last >= uint64(abi.PhysBase) {
		return fmt.Errorf("range %#x+%d: %w", addr, n, ErrKernelAddress)
	}
	return nil
}

// CheckArgumentWindow verifies that the call number at esp and the given
// number of argument slots above it all lie below the kernel split.
func CheckArgumentWindow(esp uint32, slots int) error {
	if slots < 0 || slots > abi.MaxArgs {
		return fmt.Errorf("uaccess: invalid slot count %d", slots)
	}
	return CheckRange(esp, uint32(slots+1)*abi.WordSize)
}

// ReadWord reads one little-endian word from user memory.
func ReadWord(mem Memory, addr uint32) (uint32, error) {
	if err := CheckRange(addr, abi.WordSize); err != nil {
		return 0, err
	}
	var buf [abi.WordSize]byte
	for i := range buf {
		b, err := ProbeByte(mem, addr+uint32(i))
		if err != nil {
			return 0, err
		}
		buf[i] = b
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// CopyInString copies a NUL-terminated user string into a fresh kernel page.
// A string with no terminator within one page is truncated and terminated
// at the last byte of the page. On success the caller owns the returned page
// and must free it to pages; on failure no page remains allocated.
func CopyInString(mem Memory, pages *kmem.Arena[kmem.Page], addr uint32) (*kmem.Page, error) {
	page, err := pages.Alloc()
	if err != nil {
		return nil, fmt.Errorf("copy string: %w: %w", ErrNoMemory, err)
	}

	for n := uint32(0); n < abi.PageSize; n++ {
		b, err := ProbeByte(mem, addr+n)
		if err != nil {
			pages.Free(page)
			return nil, fmt.Errorf("copy string: %w", err)
		}
		page[n] = b
		if b == 0 {
			return page, nil
		}
	}
	page[abi.PageSize-1] = 0
	return page, nil
}

// CheckReadable verifies that every page touched by [addr, addr+n) is
// mapped. It reads one byte per page.
func CheckReadable(mem Memory, addr, n uint32) error {
	if err := CheckRange(addr, n); err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	end := uint64(addr) + uint64(n)
	for a := uint64(addr); a < end; a = uint64(abi.PageRoundDown(uint32(a))) + abi.PageSize {
		if _, err := ProbeByte(mem, uint32(a)); err != nil {
			return err
		}
	}
	return nil
}

// CopyIn copies n bytes of user memory into a new kernel buffer. The whole
// range is checked before anything is allocated.
func CopyIn(mem Memory, addr, n uint32) ([]byte, error) {
	if err := CheckReadable(mem, addr, n); err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	for i := range buf {
		b, err := ProbeByte(mem, addr+uint32(i))
		if err != nil {
			return nil, err
		}
		buf[i] = b
	}
	return buf, nil
}

// CopyInChunks copies [addr, addr+n) through one page-sized kernel buffer,
// calling fn for each chunk in order. The range is checked first, so a bad
// address is reported before fn sees any data. Copying stops at the first
// error from fn, which is returned as is; fn must not retain chunk.
func CopyInChunks(mem Memory, addr, n uint32, fn func(chunk []byte) error) error {
	if err := CheckReadable(mem, addr, n); err != nil {
		return err
	}
	buf := make([]byte, min(n, abi.PageSize))
	for done := uint32(0); done < n; {
		chunk := buf[:min(n-done, abi.PageSize)]
		for i := range chunk {
			b, err := ProbeByte(mem, addr+done+uint32(i))
			if err != nil {
				return err
			}
			chunk[i] = b
		}
		if err := fn(chunk); err != nil {
			return err
		}
		done += uint32(len(chunk))
	}
	return nil
}

// CheckWritable verifies that every page touched by [addr, addr+n) is mapped
// and writable, so a later CopyOut cannot fail part way.
func CheckWritable(mem Memory, addr, n uint32) error {
	if err := CheckRange(addr, n); err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	end := uint64(addr) + uint64(n)
	for a := uint64(addr); a < end; a = uint64(abi.PageRoundDown(uint32(a))) + abi.PageSize {
		if !mem.Writable(uint32(a)) {
			if _, err := ProbeByte(mem, uint32(a)); err != nil {
				return err
			}
			return fmt.Errorf("write %#x: %w", a, ErrReadOnly)
		}
	}
	return nil
}

// CopyOut writes data to user memory at addr.
func CopyOut(mem Memory, addr uint32, data []byte) error {
	if err := CheckWritable(mem, addr, uint32(len(data))); err != nil {
		return err
	}
	for i, b := range data {
		if !mem.StoreByte(addr+uint32(i), b) {
			return fmt.Errorf("write %#x: %w", addr+uint32(i), ErrBadAddress)
		}
	}
	return nil
}
