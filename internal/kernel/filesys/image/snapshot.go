package image

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/bytedance/sonic"
	"github.com/klauspost/compress/zstd"
)

// ErrBadSnapshot is returned for a snapshot that cannot be decoded.
var ErrBadSnapshot = errors.New("image: malformed snapshot")

// snapshotVersion is bumped when the encoding changes.
const snapshotVersion = 1

// Snapshot is the saved form of a filesystem.
type Snapshot struct {
	Version int       `json:"version"`
	BootID  string    `json:"boot_id,omitempty"`
	SavedAt time.Time `json:"saved_at"`
	Files   []Entry   `json:"files"`
}

// Entry is one saved file.
type Entry struct {
	Name string `json:"name"`
	Data []byte `json:"data"`
}

// Save writes every file in store to w as zstd-compressed JSON.
func Save(w io.Writer, store Store, bootID string) error {
	snap := Snapshot{
		Version: snapshotVersion,
		BootID:  bootID,
		SavedAt: time.Now().UTC(),
	}
	for _, info := range store.List() {
		data, err := store.ReadFile(info.Name)
		if err != nil {
			// removed since List; skip it
			continue
		}
		snap.Files = append(snap.Files, Entry{Name: info.Name, Data: data})
	}

	payload, err := sonic.Marshal(&snap)
	if err != nil {
		return fmt.Errorf("snapshot: encode: %w", err)
	}

	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	if _, err := zw.Write(payload); err != nil {
		zw.Close()
		return fmt.Errorf("snapshot: write: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("snapshot: flush: %w", err)
	}
	return nil
}

// Load reads a snapshot from r into store and returns it.
func Load(r io.Reader, store Store) (*Snapshot, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	defer zr.Close()

	payload, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w: %w", ErrBadSnapshot, err)
	}

	var snap Snapshot
	if err := sonic.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("snapshot: %w: %w", ErrBadSnapshot, err)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("snapshot: %w: version %d", ErrBadSnapshot, snap.Version)
	}

	for _, e := range snap.Files {
		if err := store.WriteFile(e.Name, e.Data); err != nil {
			return nil, fmt.Errorf("snapshot: restore %q: %w", e.Name, err)
		}
	}
	return &snap, nil
}

// SaveFile saves a snapshot to path, replacing it atomically.
func SaveFile(path string, store Store, bootID string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	if err := Save(f, store, bootID); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("snapshot: %w", err)
	}
	return os.Rename(tmp, path)
}

// LoadFile restores the snapshot at path. A missing file is not an error:
// it returns a nil snapshot.
func LoadFile(path string, store Store) (*Snapshot, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	defer f.Close()
	return Load(f, store)
}
