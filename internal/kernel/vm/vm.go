// Package vm implements the simulated user address space: a sparse page table
// mapping page-aligned user addresses to frames.
//
// Accesses never fault the host. Every read or write reports whether the
// address was mapped (and writable, for writes), which is what the boundary
// validator relies on to probe untrusted pointers.
package vm

import (
	"errors"
	"fmt"
	"sync"

	"github.com/GriffinCanCode/AgentOS/kernel/internal/kernel/abi"
)

var (
	// ErrKernelAddress is returned when a mapping would cover kernel space.
	ErrKernelAddress = errors.New("vm: address is not a user address")

	// ErrAlreadyMapped is returned when a page is mapped twice.
	ErrAlreadyMapped = errors.New("vm: page already mapped")

	// ErrUnmapped is returned by bulk accesses that touch an unmapped page.
	ErrUnmapped = errors.New("vm: page not mapped")

	// ErrDestroyed is returned for any access after Destroy.
	ErrDestroyed = errors.New("vm: address space destroyed")
)

type frame struct {
	data     [abi.PageSize]byte
	writable bool
}

// AddressSpace is one process's user memory.
type AddressSpace struct {
	mu        sync.RWMutex
	pages     map[uint32]*frame
	destroyed bool
}

// New creates an empty address space.
func New() *AddressSpace {
	return &AddressSpace{pages: make(map[uint32]*frame)}
}

// Map installs a zeroed page at upage, which must be page-aligned and below
// the kernel split.
func (as *AddressSpace) Map(upage uint32, writable bool) error {
	if abi.PageOffset(upage) != 0 {
		return fmt.Errorf("vm: unaligned page %#x", upage)
	}
	if !abi.IsUserAddr(upage) {
		return ErrKernelAddress
	}

	as.mu.Lock()
	defer as.mu.Unlock()

	if as.destroyed {
		return ErrDestroyed
	}
	if _, ok := as.pages[upage]; ok {
		return ErrAlreadyMapped
	}
	as.pages[upage] = &frame{writable: writable}
	return nil
}

// MapRange maps every page overlapping [addr, addr+n). Pages already mapped
// are left alone.
func (as *AddressSpace) MapRange(addr, n uint32, writable bool) error {
	if n == 0 {
		return nil
	}
	end := uint64(addr) + uint64(n)
	if end > uint64(abi.PhysBase) {
		return ErrKernelAddress
	}
	for page := uint64(abi.PageRoundDown(addr)); page < end; page += abi.PageSize {
		err := as.Map(uint32(page), writable)
		if err != nil && !errors.Is(err, ErrAlreadyMapped) {
			return err
		}
	}
	return nil
}

// Unmap removes the page at upage, if any.
func (as *AddressSpace) Unmap(upage uint32) {
	as.mu.Lock()
	delete(as.pages, abi.PageRoundDown(upage))
	as.mu.Unlock()
}

// IsMapped reports whether addr falls inside a mapped page.
func (as *AddressSpace) IsMapped(addr uint32) bool {
	as.mu.RLock()
	defer as.mu.RUnlock()
	_, ok := as.pages[abi.PageRoundDown(addr)]
	return ok
}

// LoadByte returns the byte at addr. ok is false if addr is a kernel address
// or is not mapped.
func (as *AddressSpace) LoadByte(addr uint32) (b byte, ok bool) {
	if !abi.IsUserAddr(addr) {
		return 0, false
	}
	as.mu.RLock()
	defer as.mu.RUnlock()

	f, found := as.pages[abi.PageRoundDown(addr)]
	if !found {
		return 0, false
	}
	return f.data[abi.PageOffset(addr)], true
}

// StoreByte stores b at addr. It fails on kernel addresses, unmapped pages
// and read-only pages.
func (as *AddressSpace) StoreByte(addr uint32, b byte) bool {
	if !abi.IsUserAddr(addr) {
		return false
	}
	as.mu.Lock()
	defer as.mu.Unlock()

	f, found := as.pages[abi.PageRoundDown(addr)]
	if !found || !f.writable {
		return false
	}
	f.data[abi.PageOffset(addr)] = b
	return true
}

// Writable reports whether addr is a mapped, writable user address.
func (as *AddressSpace) Writable(addr uint32) bool {
	if !abi.IsUserAddr(addr) {
		return false
	}
	as.mu.RLock()
	defer as.mu.RUnlock()
	f, found := as.pages[abi.PageRoundDown(addr)]
	return found && f.writable
}

// Read copies len(buf) bytes starting at addr. It is the trusted bulk path
// used by the loader and the user library, not by the kernel on behalf of a
// process.
func (as *AddressSpace) Read(addr uint32, buf []byte) error {
	for i := range buf {
		b, ok := as.LoadByte(addr + uint32(i))
		if !ok {
			return fmt.Errorf("read %#x: %w", addr+uint32(i), ErrUnmapped)
		}
		buf[i] = b
	}
	return nil
}

// Write copies data to addr, ignoring page protection. Used by the loader to
// initialise read-only segments and by the user library.
func (as *AddressSpace) Write(addr uint32, data []byte) error {
	as.mu.Lock()
	defer as.mu.Unlock()

	for i, b := range data {
		a := addr + uint32(i)
		if !abi.IsUserAddr(a) {
			return fmt.Errorf("write %#x: %w", a, ErrKernelAddress)
		}
		f, found := as.pages[abi.PageRoundDown(a)]
		if !found {
			return fmt.Errorf("write %#x: %w", a, ErrUnmapped)
		}
		f.data[abi.PageOffset(a)] = b
	}
	return nil
}

// Pages returns the number of mapped pages.
func (as *AddressSpace) Pages() int {
	as.mu.RLock()
	defer as.mu.RUnlock()
	return len(as.pages)
}

// Destroy drops every mapping. Later accesses behave as if unmapped.
func (as *AddressSpace) Destroy() {
	as.mu.Lock()
	as.pages = make(map[uint32]*frame)
	as.destroyed = true
	as.mu.Unlock()
}
