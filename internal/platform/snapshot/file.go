// Package snapshot persists keyed tables as whole-file JSON snapshots.
//
// Every mutation rewrites the full file through a temp file and rename, so a
// crash leaves either the previous or the new snapshot on disk, never a torn
// one. At most the most recent mutation is lost.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// File reads and writes one JSON document.
type File struct {
	mu   sync.Mutex
	path string
}

// NewFile prepares a snapshot file under dir, creating dir if needed.
func NewFile(dir, name string) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	return &File{path: filepath.Join(dir, name)}, nil
}

// Path returns the snapshot location.
func (f *File) Path() string {
	return f.path
}

// Load decodes the snapshot into v. A missing file leaves v untouched.
func (f *File) Load(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.Open(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(v); err != nil {
		return fmt.Errorf("decode snapshot %s: %w", filepath.Base(f.path), err)
	}
	return nil
}

// Save replaces the snapshot with v.
func (f *File) Save(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	tmp := f.path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		file.Close()
		os.Remove(tmp)
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}
