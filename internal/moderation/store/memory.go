package store

import (
	"context"

	"warden/internal/moderation/models"
	"warden/internal/platform/snapshot"
	id "warden/pkg/domain"
	"warden/pkg/platform/sentinel"
)

// SnapshotFile is the file name used by NewSnapshot.
const SnapshotFile = "records.json"

// InMemory keeps one record per user, optionally written through to a JSON
// snapshot.
type InMemory struct {
	table *snapshot.Table[id.UserID, models.Record]
}

func NewInMemory() *InMemory {
	return &InMemory{table: snapshot.NewTable[id.UserID, models.Record]()}
}

// NewSnapshot loads records from dir and persists every save back to it.
func NewSnapshot(dir string) (*InMemory, error) {
	file, err := snapshot.NewFile(dir, SnapshotFile)
	if err != nil {
		return nil, err
	}
	table, err := snapshot.OpenTable[id.UserID, models.Record](file)
	if err != nil {
		return nil, err
	}
	return &InMemory{table: table}, nil
}

func (s *InMemory) Get(_ context.Context, user id.UserID) (*models.Record, error) {
	rec, ok := s.table.Get(user)
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return rec.Clone(), nil
}

// Save upserts the user's record.
func (s *InMemory) Save(_ context.Context, rec *models.Record) error {
	return s.table.Put(rec.UserID, *rec.Clone())
}
