package store

import (
	"context"

	"warden/internal/platform/snapshot"
	"warden/internal/settings/models"
	id "warden/pkg/domain"
	"warden/pkg/platform/sentinel"
)

// SnapshotFile is the file name used by NewSnapshot.
const SnapshotFile = "settings.json"

// InMemory keeps settings in a keyed table, optionally written through to a
// JSON snapshot. It is pure I/O; merge rules live in the service.
type InMemory struct {
	table *snapshot.Table[id.GuildID, models.Settings]
}

func NewInMemory() *InMemory {
	return &InMemory{table: snapshot.NewTable[id.GuildID, models.Settings]()}
}

// NewSnapshot loads settings from dir and persists every save back to it.
func NewSnapshot(dir string) (*InMemory, error) {
	file, err := snapshot.NewFile(dir, SnapshotFile)
	if err != nil {
		return nil, err
	}
	table, err := snapshot.OpenTable[id.GuildID, models.Settings](file)
	if err != nil {
		return nil, err
	}
	return &InMemory{table: table}, nil
}

func (s *InMemory) Get(_ context.Context, guild id.GuildID) (*models.Settings, error) {
	st, ok := s.table.Get(guild)
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return st.Clone(), nil
}

// Save upserts settings. A snapshot write failure is returned after the
// in-memory row has already been replaced.
func (s *InMemory) Save(_ context.Context, settings *models.Settings) error {
	return s.table.Put(settings.GuildID, *settings.Clone())
}
