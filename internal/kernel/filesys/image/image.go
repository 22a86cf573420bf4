// Package image moves file contents between the kernel's in-memory
// filesystem and the host: importing a host directory at boot, and saving or
// restoring compressed snapshots across runs.
package image

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"

	"github.com/GriffinCanCode/AgentOS/kernel/internal/kernel/filesys"
)

// Store is the part of the filesystem this package reads and writes.
type Store interface {
	List() []filesys.FileInfo
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte) error
}

// DefaultPatterns imports every file at the top of the directory.
var DefaultPatterns = []string{"*"}

// ImportResult reports what an import did.
type ImportResult struct {
	Imported []string `json:"imported"`
	Skipped  []string `json:"skipped"`
}

// Import copies the regular files under dir whose slash-separated relative
// path matches one of patterns (doublestar syntax) into store. The
// filesystem is flat, so each file is stored under its base name; files
// whose base name is not a valid file name are skipped. When several matches
// share a base name, the one whose relative path sorts first is imported and
// the rest are skipped.
func Import(ctx context.Context, store Store, dir string, patterns []string) (*ImportResult, error) {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("import: invalid pattern %q", p)
		}
	}

	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("import: %w", err)
	}

	var (
		mu      sync.Mutex
		matched []string
	)
	conf := fastwalk.Config{Follow: false}

	err = fastwalk.Walk(&conf, root, func(path string, d os.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil || d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if !matchAny(patterns, rel) {
			return nil
		}

		mu.Lock()
		matched = append(matched, rel)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("import %s: %w", dir, err)
	}

	// fastwalk visits in no fixed order
	sort.Strings(matched)

	var result ImportResult
	taken := make(map[string]bool, len(matched))
	for _, rel := range matched {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("import %s: %w", dir, err)
		}
		name := path.Base(rel)
		if taken[name] {
			result.Skipped = append(result.Skipped, rel)
			continue
		}
		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
		if err == nil {
			err = store.WriteFile(name, data)
		}
		if err != nil {
			result.Skipped = append(result.Skipped, rel)
			continue
		}
		taken[name] = true
		result.Imported = append(result.Imported, name)
	}

	sort.Strings(result.Imported)
	return &result, nil
}

func matchAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}
