// Package filesys is the filesystem collaborator consumed by the system-call
// layer: a flat root directory of growable byte files.
//
// The kernel serializes every call into this package under one global lock;
// the implementation is nevertheless safe for concurrent use so that
// out-of-band readers (snapshots, the admin API) can inspect it.
package filesys

import (
	"errors"
	"strings"
)

const (
	// NameMax is the longest permitted file name.
	NameMax = 14

	// MaxFileSize bounds the length of any file.
	MaxFileSize = 8 << 20
)

var (
	// ErrNotFound is returned when no file has the given name.
	ErrNotFound = errors.New("filesys: file not found")

	// ErrExists is returned when creating a name that is taken.
	ErrExists = errors.New("filesys: file exists")

	// ErrInvalidName is returned for empty, overlong or nested names.
	ErrInvalidName = errors.New("filesys: invalid file name")

	// ErrTooLarge is returned when a file would exceed MaxFileSize.
	ErrTooLarge = errors.New("filesys: file too large")

	// ErrClosed is returned for operations on a closed file.
	ErrClosed = errors.New("filesys: file already closed")
)

// FileSystem names files and opens them.
type FileSystem interface {
	// Create makes a new zero-filled file of the given size.
	Create(name string, size int) error

	// Remove unlinks name. Open handles keep working until closed.
	Remove(name string) error

	// Open returns a handle positioned at offset zero.
	Open(name string) (File, error)
}

// File is an open file with its own position.
type File interface {
	// Read reads at the current position and advances it. It returns
	// io.EOF when the position is at or past the end.
	Read(p []byte) (int, error)

	// Write writes at the current position, growing the file as needed,
	// and advances the position.
	Write(p []byte) (int, error)

	// Seek moves the position. Positions past the end are allowed.
	Seek(pos int)

	// Tell returns the current position.
	Tell() int

	// Length returns the size of the file in bytes.
	Length() int

	// Close releases the handle.
	Close() error
}

// FileInfo describes one directory entry.
type FileInfo struct {
	Name    string `json:"name"`
	Size    int    `json:"size"`
	OpenCnt int    `json:"open_count"`
}

// ValidName reports whether name can be used as a file name.
func ValidName(name string) bool {
	return name != "" && len(name) <= NameMax && !strings.ContainsRune(name, '/')
}
