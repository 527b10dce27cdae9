// Package keylock serializes work per key without a process-wide lock.
//
// Keys are spread across shards by FNV-1a hash. A shard's mutex only guards
// its bookkeeping map; waiters block on the per-key lock, so unrelated keys
// never wait on each other. Entries are reference counted and removed once
// the last holder or waiter leaves, keeping memory proportional to the
// number of keys currently in use.
package keylock

import (
	"context"
	"sync"

	dErrors "warden/pkg/domain-errors"
)

const numShards = 64

type entry struct {
	// sem has capacity one; holding the token means holding the key.
	sem  chan struct{}
	refs int
}

type shard struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// Map hands out exclusive per-key locks.
type Map struct {
	shards [numShards]shard
}

// New returns an empty lock map.
func New() *Map {
	m := &Map{}
	for i := range m.shards {
		m.shards[i].entries = make(map[string]*entry)
	}
	return m
}

// Lock blocks until key is held or ctx is done. The returned func releases
// the key and must be called exactly once.
func (m *Map) Lock(ctx context.Context, key string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "lock aborted: context cancelled")
	}

	sh := &m.shards[hash(key)%numShards]
	sh.mu.Lock()
	e, ok := sh.entries[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		sh.entries[key] = e
	}
	e.refs++
	sh.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		m.release(sh, key, e)
		return nil, dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "lock aborted: context cancelled")
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			m.release(sh, key, e)
		})
	}, nil
}

// WithLock runs fn while holding key.
func (m *Map) WithLock(ctx context.Context, key string, fn func() error) error {
	unlock, err := m.Lock(ctx, key)
	if err != nil {
		return err
	}
	defer unlock()
	return fn()
}

// Len reports how many keys are currently held or awaited.
func (m *Map) Len() int {
	n := 0
	for i := range m.shards {
		sh := &m.shards[i]
		sh.mu.Lock()
		n += len(sh.entries)
		sh.mu.Unlock()
	}
	return n
}

func (m *Map) release(sh *shard, key string, e *entry) {
	sh.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(sh.entries, key)
	}
	sh.mu.Unlock()
}

// hash is FNV-1a.
func hash(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}
