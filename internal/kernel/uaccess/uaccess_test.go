package uaccess

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/kernel/internal/kernel/abi"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/kernel/kmem"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/kernel/vm"
)

const lastUserPage = abi.PhysBase - abi.PageSize

// countingMemory records every read so tests can prove nothing was touched.
type countingMemory struct {
	*vm.AddressSpace
	reads int
}

func (m *countingMemory) LoadByte(addr uint32) (byte, bool) {
	m.reads++
	return m.AddressSpace.LoadByte(addr)
}

func newMemory(t *testing.T) *countingMemory {
	t.Helper()
	as := vm.New()
	require.NoError(t, as.Map(0x1000, true))
	require.NoError(t, as.Map(0x2000, false))
	require.NoError(t, as.Map(lastUserPage, true))
	return &countingMemory{AddressSpace: as}
}

func TestProbeByte(t *testing.T) {
	mem := newMemory(t)
	require.NoError(t, mem.Write(0x1004, []byte{42}))

	b, err := ProbeByte(mem, 0x1004)
	require.NoError(t, err)
	assert.Equal(t, byte(42), b)

	_, err = ProbeByte(mem, 0x5000)
	assert.ErrorIs(t, err, ErrBadAddress)

	_, err = ProbeByte(mem, abi.PhysBase)
	assert.ErrorIs(t, err, ErrKernelAddress)
}

func TestCheckArgumentWindow(t *testing.T) {
	tests := []struct {
		name    string
		esp     uint32
		slots   int
		wantErr bool
	}{
		{"well below split", 0x1000, 3, false},
		{"last word fits exactly", abi.PhysBase - 16, 3, false},
		{"last slot crosses split", abi.PhysBase - 12, 3, true},
		{"call number alone crosses", abi.PhysBase - 2, 0, true},
		{"esp in kernel space", abi.PhysBase, 0, true},
		{"wraps around address space", 0xFFFFFFFC, 1, true},
		{"too many slots", 0x1000, 4, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckArgumentWindow(tt.esp, tt.slots)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestReadWord(t *testing.T) {
	mem := newMemory(t)
	require.NoError(t, mem.Write(0x1010, []byte{0x78, 0x56, 0x34, 0x12}))

	w, err := ReadWord(mem, 0x1010)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x12345678), w)

	_, err = ReadWord(mem, 0x1FFE)
	assert.NoError(t, err, "0x2000 is mapped read-only, still readable")

	_, err = ReadWord(mem, 0x2FFE)
	assert.ErrorIs(t, err, ErrBadAddress)
}

func TestCopyInString(t *testing.T) {
	mem := newMemory(t)
	pages := kmem.NewPagePool(0)
	require.NoError(t, mem.Write(0x1100, []byte("hello\x00")))

	page, err := CopyInString(mem, pages, 0x1100)
	require.NoError(t, err)
	assert.Equal(t, "hello", page.String())
	assert.Equal(t, 1, pages.Live())

	pages.Free(page)
	assert.Equal(t, 0, pages.Live())
}

func TestCopyInStringAcrossPages(t *testing.T) {
	mem := newMemory(t)
	pages := kmem.NewPagePool(0)
	require.NoError(t, mem.Write(0x1FFD, []byte("spans\x00")))

	page, err := CopyInString(mem, pages, 0x1FFD)
	require.NoError(t, err)
	assert.Equal(t, "spans", page.String())
	pages.Free(page)
}

func TestCopyInStringUnterminatedIsTruncated(t *testing.T) {
	as := vm.New()
	require.NoError(t, as.MapRange(0x10000, 2*abi.PageSize, true))
	require.NoError(t, as.Write(0x10000, []byte(strings.Repeat("a", 2*abi.PageSize))))
	pages := kmem.NewPagePool(0)

	page, err := CopyInString(as, pages, 0x10000)
	require.NoError(t, err)
	assert.Len(t, page.String(), abi.PageSize-1)
	assert.Equal(t, byte(0), page[abi.PageSize-1])
	pages.Free(page)
}

func TestCopyInStringFailuresReleasePage(t *testing.T) {
	tests := []struct {
		name  string
		setup func(as *vm.AddressSpace)
		addr  uint32
		want  error
	}{
		{
			name: "unmapped start",
			addr: 0x9000,
			want: ErrBadAddress,
		},
		{
			name: "runs into unmapped page",
			setup: func(as *vm.AddressSpace) {
				_ = as.Write(0x2FFC, []byte("abcd"))
			},
			addr: 0x2FFC,
			want: ErrBadAddress,
		},
		{
			name: "straddles kernel split",
			setup: func(as *vm.AddressSpace) {
				_ = as.Write(abi.PhysBase-3, []byte("abc"))
			},
			addr: abi.PhysBase - 3,
			want: ErrKernelAddress,
		},
		{
			name: "kernel pointer",
			addr: abi.PhysBase + 0x100,
			want: ErrKernelAddress,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := newMemory(t)
			if tt.setup != nil {
				tt.setup(mem.AddressSpace)
			}
			pages := kmem.NewPagePool(0)

			page, err := CopyInString(mem, pages, tt.addr)
			assert.Nil(t, page)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, 0, pages.Live())
		})
	}
}

func TestCopyInStringOutOfMemory(t *testing.T) {
	mem := newMemory(t)
	pages := kmem.NewPagePool(1)
	held, err := pages.Alloc()
	require.NoError(t, err)

	_, err = CopyInString(mem, pages, 0x1000)
	assert.ErrorIs(t, err, ErrNoMemory)
	assert.Equal(t, 0, mem.reads, "no user byte read without a buffer")

	pages.Free(held)
}

func TestCopyInRejectsStraddleBeforeReading(t *testing.T) {
	mem := newMemory(t)

	_, err := CopyIn(mem, abi.PhysBase-4, 8)
	assert.ErrorIs(t, err, ErrKernelAddress)
	assert.Equal(t, 0, mem.reads)
}

func TestCheckReadableStopsAtFirstHole(t *testing.T) {
	mem := newMemory(t)

	require.NoError(t, CheckReadable(mem, 0x1000, 2*abi.PageSize))
	assert.Equal(t, 2, mem.reads, "one read per page")

	mem.reads = 0
	assert.ErrorIs(t, CheckReadable(mem, 0x1800, 0xB0000000), ErrBadAddress)
	assert.Equal(t, 3, mem.reads)

	mem.reads = 0
	_, err := CopyIn(mem, 0x1000, 0xB0000000)
	assert.ErrorIs(t, err, ErrBadAddress)
	assert.Equal(t, 3, mem.reads, "no copy before the range is checked")
}

func TestCopyInChunks(t *testing.T) {
	mem := newMemory(t)
	require.NoError(t, mem.Write(0x1000, []byte(strings.Repeat("a", abi.PageSize))))
	require.NoError(t, mem.Write(0x2000, []byte("bcdef")))

	var sizes []int
	var got strings.Builder
	err := CopyInChunks(mem, 0x1000, abi.PageSize+5, func(chunk []byte) error {
		sizes = append(sizes, len(chunk))
		got.Write(chunk)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{abi.PageSize, 5}, sizes)
	assert.Equal(t, strings.Repeat("a", abi.PageSize)+"bcdef", got.String())

	calls := 0
	err = CopyInChunks(mem, 0x1000, 0x3000, func([]byte) error {
		calls++
		return nil
	})
	assert.ErrorIs(t, err, ErrBadAddress)
	assert.Zero(t, calls, "bad range reported before any chunk")

	stop := errors.New("stop")
	calls = 0
	err = CopyInChunks(mem, 0x1000, 2*abi.PageSize, func([]byte) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestCopyOut(t *testing.T) {
	mem := newMemory(t)

	require.NoError(t, CopyOut(mem, 0x1FFE, []byte("ok")))
	got := make([]byte, 2)
	require.NoError(t, mem.Read(0x1FFE, got))
	assert.Equal(t, "ok", string(got))

	err := CopyOut(mem, 0x1FFF, []byte("xy"))
	assert.ErrorIs(t, err, ErrReadOnly)
	b, _ := mem.AddressSpace.LoadByte(0x1FFF)
	assert.Equal(t, byte('k'), b, "nothing written when any page is read-only")

	assert.ErrorIs(t, CopyOut(mem, 0x7000, []byte("z")), ErrBadAddress)
	assert.ErrorIs(t, CopyOut(mem, abi.PhysBase-1, []byte("zz")), ErrKernelAddress)
}
