package syscall

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/GriffinCanCode/AgentOS/kernel/internal/kernel/filesys"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/user"
)

type mockFS struct {
	mock.Mock
}

func (m *mockFS) Create(name string, size int) error {
	return m.Called(name, size).Error(0)
}

func (m *mockFS) Remove(name string) error {
	return m.Called(name).Error(0)
}

func (m *mockFS) Open(name string) (filesys.File, error) {
	args := m.Called(name)
	f, _ := args.Get(0).(filesys.File)
	return f, args.Error(1)
}

type mockFile struct {
	mock.Mock
}

func (m *mockFile) Read(p []byte) (int, error) {
	args := m.Called(len(p))
	data, _ := args.Get(0).([]byte)
	return copy(p, data), args.Error(1)
}

func (m *mockFile) Write(p []byte) (int, error) {
	args := m.Called(string(p))
	return args.Int(0), args.Error(1)
}

func (m *mockFile) Seek(pos int) { m.Called(pos) }

func (m *mockFile) Tell() int { return m.Called().Int(0) }

func (m *mockFile) Length() int { return m.Called().Int(0) }

func (m *mockFile) Close() error { return m.Called().Error(0) }

func TestCreatePassesNameAndSize(t *testing.T) {
	fs := &mockFS{}
	fs.On("Create", "data", 512).Return(nil).Once()
	fs.On("Create", "taken", 0).Return(filesys.ErrExists).Once()
	k := newKernel(t, withFS(fs))

	var first, second bool
	k.run(t, "creator", func(env *user.Env) int {
		first = env.Create("data", 512)
		second = env.Create("taken", 0)
		return 0
	})
	k.finish(t)

	assert.True(t, first)
	assert.False(t, second)
	fs.AssertExpectations(t)
}

func TestOpenFailureReturnsMinusOne(t *testing.T) {
	fs := &mockFS{}
	fs.On("Open", "missing").Return(nil, filesys.ErrNotFound)
	k := newKernel(t, withFS(fs))

	var fd int
	k.run(t, "opener", func(env *user.Env) int {
		fd = env.Open("missing")
		return 0
	})
	k.finish(t)

	assert.Equal(t, -1, fd)
	fs.AssertExpectations(t)
}

func TestFileCallsDelegate(t *testing.T) {
	f := &mockFile{}
	f.On("Length").Return(11)
	f.On("Write", "abc").Return(3, nil)
	f.On("Seek", 4)
	f.On("Tell").Return(4)
	f.On("Read", 8).Return([]byte("wxyz"), nil)
	f.On("Close").Return(nil).Once()

	fs := &mockFS{}
	fs.On("Open", "f").Return(f, nil).Once()
	k := newKernel(t, withFS(fs))

	var size, written, tell, read int
	var got []byte
	k.run(t, "delegate", func(env *user.Env) int {
		fd := env.Open("f")
		size = env.Filesize(fd)
		written = env.Write(fd, []byte("abc"))
		env.Seek(fd, 4)
		tell = env.Tell(fd)
		buf := make([]byte, 8)
		read = env.Read(fd, buf)
		got = buf[:read]
		env.Close(fd)
		return 0
	})
	k.finish(t)

	assert.Equal(t, 11, size)
	assert.Equal(t, 3, written)
	assert.Equal(t, 4, tell)
	assert.Equal(t, 4, read)
	assert.Equal(t, []byte("wxyz"), got)
	f.AssertExpectations(t)
	fs.AssertExpectations(t)
}

func TestReadResultMapping(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		err  error
		want int
	}{
		{name: "end of file", data: nil, err: io.EOF, want: 0},
		{name: "device error", data: nil, err: errors.New("disk on fire"), want: -1},
		{name: "short read", data: []byte("ab"), err: nil, want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &mockFile{}
			f.On("Read", 4).Return(tt.data, tt.err)
			f.On("Close").Return(nil)

			fs := &mockFS{}
			fs.On("Open", "f").Return(f, nil)
			k := newKernel(t, withFS(fs))

			var n int
			k.run(t, "reader", func(env *user.Env) int {
				n = env.Read(env.Open("f"), make([]byte, 4))
				return 0
			})
			k.finish(t)

			assert.Equal(t, tt.want, n)
		})
	}
}

func TestPartialWriteAtSizeLimit(t *testing.T) {
	f := &mockFile{}
	f.On("Write", "abcdef").Return(2, filesys.ErrTooLarge)
	f.On("Close").Return(nil)

	fs := &mockFS{}
	fs.On("Open", "f").Return(f, nil)
	k := newKernel(t, withFS(fs))

	var n int
	k.run(t, "writer", func(env *user.Env) int {
		n = env.Write(env.Open("f"), []byte("abcdef"))
		return 0
	})
	k.finish(t)

	assert.Equal(t, 2, n)
}
