package kmem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	last      map[string]int
	limit     int
	allocated uint64
}

func (r *recorder) ObserveArena(arena string, live, limit int, allocated uint64) {
	r.last[arena] = live
	r.limit = limit
	r.allocated = allocated
}

func TestArenaAllocFree(t *testing.T) {
	a := NewArena[int]("ints", 0)

	x, err := a.Alloc()
	require.NoError(t, err)
	y, err := a.Alloc()
	require.NoError(t, err)

	assert.NotSame(t, x, y)
	assert.Equal(t, 2, a.Live())

	a.Free(x)
	a.Free(y)
	assert.Equal(t, 0, a.Live())
}

func TestArenaLimit(t *testing.T) {
	a := NewArena[int]("bounded", 1)

	x, err := a.Alloc()
	require.NoError(t, err)

	_, err = a.Alloc()
	assert.ErrorIs(t, err, ErrExhausted)

	a.Free(x)
	_, err = a.Alloc()
	assert.NoError(t, err)
}

func TestArenaDoubleFreePanics(t *testing.T) {
	a := NewArena[int]("ints", 0)
	x, err := a.Alloc()
	require.NoError(t, err)

	a.Free(x)
	assert.Panics(t, func() { a.Free(x) })
	assert.Panics(t, func() { a.Free(new(int)) })
}

func TestArenaObserver(t *testing.T) {
	r := &recorder{last: make(map[string]int)}
	a := NewArena[int]("watched", 3).WithObserver(r)

	x, _ := a.Alloc()
	assert.Equal(t, 1, r.last["watched"])
	a.Free(x)
	assert.Equal(t, 0, r.last["watched"])

	y, _ := a.Alloc()
	a.Free(y)
	assert.Equal(t, 0, r.last["watched"])
	assert.Equal(t, uint64(2), r.allocated, "allocations are counted, not live objects")
	assert.Equal(t, 3, r.limit)
}

func TestPageString(t *testing.T) {
	p := new(Page)
	copy(p[:], "hello\x00world")
	assert.Equal(t, "hello", p.String())

	full := new(Page)
	for i := range full {
		full[i] = 'a'
	}
	assert.Len(t, full.String(), len(full))
}
