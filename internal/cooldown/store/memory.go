package store

import (
	"context"
	"time"

	"warden/internal/cooldown/models"
	"warden/internal/platform/snapshot"
	id "warden/pkg/domain"
	"warden/pkg/platform/sentinel"
)

// SnapshotFile is the file name used by NewSnapshot.
const SnapshotFile = "cooldowns.json"

// InMemory holds the ledger in a keyed table, optionally written through to
// a JSON snapshot.
type InMemory struct {
	table *snapshot.Table[id.UserID, models.Entry]
}

func NewInMemory() *InMemory {
	return &InMemory{table: snapshot.NewTable[id.UserID, models.Entry]()}
}

// NewSnapshot loads the ledger from dir and persists every mutation to it.
func NewSnapshot(dir string) (*InMemory, error) {
	file, err := snapshot.NewFile(dir, SnapshotFile)
	if err != nil {
		return nil, err
	}
	table, err := snapshot.OpenTable[id.UserID, models.Entry](file)
	if err != nil {
		return nil, err
	}
	return &InMemory{table: table}, nil
}

func (s *InMemory) Get(_ context.Context, user id.UserID) (*models.Entry, error) {
	e, ok := s.table.Get(user)
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &e, nil
}

// Put overwrites any existing entry for the user.
func (s *InMemory) Put(_ context.Context, entry models.Entry) error {
	return s.table.Put(entry.UserID, entry)
}

// DeleteExpired evicts every entry with expiry at or before now. The table
// stays write-locked for the whole scan. Evicted users are returned even when
// the snapshot write fails.
func (s *InMemory) DeleteExpired(_ context.Context, now time.Time) ([]id.UserID, error) {
	return s.table.DeleteFunc(func(_ id.UserID, e models.Entry) bool {
		return !e.ActiveAt(now)
	})
}

func (s *InMemory) Len() int {
	return s.table.Len()
}
