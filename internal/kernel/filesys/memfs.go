package filesys

import (
	"fmt"
	"io"
	"sort"
	"sync"
)

// inode is the in-memory body of a file. It outlives its directory entry
// while handles remain open.
type inode struct {
	data    []byte
	openCnt int
	removed bool
}

// MemFS is an in-memory FileSystem.
type MemFS struct {
	mu    sync.RWMutex
	files map[string]*inode
}

var _ FileSystem = (*MemFS)(nil)

// NewMemFS creates an empty filesystem.
func NewMemFS() *MemFS {
	return &MemFS{files: make(map[string]*inode)}
}

// Create implements FileSystem.
func (fs *MemFS) Create(name string, size int) error {
	if !ValidName(name) {
		return fmt.Errorf("create %q: %w", name, ErrInvalidName)
	}
	if size < 0 || size > MaxFileSize {
		return fmt.Errorf("create %q: %w", name, ErrTooLarge)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, ok := fs.files[name]; ok {
		return fmt.Errorf("create %q: %w", name, ErrExists)
	}
	fs.files[name] = &inode{data: make([]byte, size)}
	return nil
}

// Remove implements FileSystem.
func (fs *MemFS) Remove(name string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	node, ok := fs.files[name]
	if !ok {
		return fmt.Errorf("remove %q: %w", name, ErrNotFound)
	}
	node.removed = true
	delete(fs.files, name)
	return nil
}

// Open implements FileSystem.
func (fs *MemFS) Open(name string) (File, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	node, ok := fs.files[name]
	if !ok {
		return nil, fmt.Errorf("open %q: %w", name, ErrNotFound)
	}
	node.openCnt++
	return &memFile{fs: fs, node: node}, nil
}

// ReadFile returns a copy of the named file's contents.
func (fs *MemFS) ReadFile(name string) ([]byte, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	node, ok := fs.files[name]
	if !ok {
		return nil, fmt.Errorf("read %q: %w", name, ErrNotFound)
	}
	return append([]byte(nil), node.data...), nil
}

// WriteFile creates or replaces the named file.
func (fs *MemFS) WriteFile(name string, data []byte) error {
	if !ValidName(name) {
		return fmt.Errorf("write %q: %w", name, ErrInvalidName)
	}
	if len(data) > MaxFileSize {
		return fmt.Errorf("write %q: %w", name, ErrTooLarge)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if node, ok := fs.files[name]; ok {
		node.data = append(node.data[:0], data...)
		return nil
	}
	fs.files[name] = &inode{data: append([]byte(nil), data...)}
	return nil
}

// List returns every file, sorted by name.
func (fs *MemFS) List() []FileInfo {
	fs.mu.RLock()
	out := make([]FileInfo, 0, len(fs.files))
	for name, node := range fs.files {
		out = append(out, FileInfo{Name: name, Size: len(node.data), OpenCnt: node.openCnt})
	}
	fs.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// memFile is a handle onto an inode.
type memFile struct {
	fs     *MemFS
	node   *inode
	pos    int
	closed bool
}

func (f *memFile) Read(p []byte) (int, error) {
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()

	if f.closed {
		return 0, ErrClosed
	}
	if f.pos >= len(f.node.data) {
		return 0, io.EOF
	}
	n := copy(p, f.node.data[f.pos:])
	f.pos += n
	return n, nil
}

func (f *memFile) Write(p []byte) (int, error) {
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()

	if f.closed {
		return 0, ErrClosed
	}
	if len(p) == 0 {
		return 0, nil
	}

	var err error
	room := MaxFileSize - f.pos
	if room <= 0 {
		return 0, ErrTooLarge
	}
	if len(p) > room {
		p = p[:room]
		err = ErrTooLarge
	}

	end := f.pos + len(p)
	if end > len(f.node.data) {
		grown := make([]byte, end)
		copy(grown, f.node.data)
		f.node.data = grown
	}
	n := copy(f.node.data[f.pos:end], p)
	f.pos += n
	return n, err
}

func (f *memFile) Seek(pos int) {
	if pos < 0 {
		pos = 0
	}
	f.fs.mu.Lock()
	f.pos = pos
	f.fs.mu.Unlock()
}

func (f *memFile) Tell() int {
	f.fs.mu.RLock()
	defer f.fs.mu.RUnlock()
	return f.pos
}

func (f *memFile) Length() int {
	f.fs.mu.RLock()
	defer f.fs.mu.RUnlock()
	return len(f.node.data)
}

func (f *memFile) Close() error {
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()

	if f.closed {
		return ErrClosed
	}
	f.closed = true
	f.node.openCnt--
	return nil
}
