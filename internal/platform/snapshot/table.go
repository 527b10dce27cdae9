package snapshot

import (
	"maps"
	"sync"

	dErrors "warden/pkg/domain-errors"
)

// Table is a keyed in-memory table with optional write-through to a File.
//
// In-memory state is authoritative. When a write to the file fails the
// mutation is kept and a CodePersistenceFailed error is returned; the next
// successful write carries it to disk.
type Table[K comparable, V any] struct {
	mu   sync.RWMutex
	rows map[K]V
	file *File
}

// NewTable returns an empty table that never touches disk.
func NewTable[K comparable, V any]() *Table[K, V] {
	return &Table[K, V]{rows: make(map[K]V)}
}

// OpenTable loads an existing snapshot from file, if any, and writes every
// later mutation back to it. K must encode as a JSON object key.
func OpenTable[K comparable, V any](file *File) (*Table[K, V], error) {
	rows := make(map[K]V)
	if err := file.Load(&rows); err != nil {
		return nil, err
	}
	return &Table[K, V]{rows: rows, file: file}, nil
}

func (t *Table[K, V]) Get(key K) (V, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.rows[key]
	return v, ok
}

// Put inserts or overwrites key.
func (t *Table[K, V]) Put(key K, value V) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows[key] = value
	return t.persistLocked()
}

// Update applies fn to the current row under the table lock and stores the
// result. fn receives the zero value and false when key is absent. Returning
// a non-nil error aborts without mutating.
func (t *Table[K, V]) Update(key K, fn func(current V, ok bool) (V, error)) (V, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cur, ok := t.rows[key]
	next, err := fn(cur, ok)
	if err != nil {
		var zero V
		return zero, err
	}
	t.rows[key] = next
	return next, t.persistLocked()
}

// Delete removes key and reports whether it was present.
func (t *Table[K, V]) Delete(key K) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.rows[key]; !ok {
		return false, nil
	}
	delete(t.rows, key)
	return true, t.persistLocked()
}

// DeleteFunc removes every row matching pred while holding the write lock for
// the whole scan, and returns the removed keys.
func (t *Table[K, V]) DeleteFunc(pred func(K, V) bool) ([]K, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var removed []K
	for k, v := range t.rows {
		if pred(k, v) {
			delete(t.rows, k)
			removed = append(removed, k)
		}
	}
	if len(removed) == 0 {
		return nil, nil
	}
	return removed, t.persistLocked()
}

// All returns a shallow copy of every row.
func (t *Table[K, V]) All() map[K]V {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return maps.Clone(t.rows)
}

func (t *Table[K, V]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

func (t *Table[K, V]) persistLocked() error {
	if t.file == nil {
		return nil
	}
	if err := t.file.Save(t.rows); err != nil {
		return dErrors.Wrap(err, dErrors.CodePersistenceFailed, "write snapshot")
	}
	return nil
}
