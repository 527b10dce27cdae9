package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warden/internal/settings/models"
	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
	"warden/pkg/platform/sentinel"
)

func TestInMemory_GetMissing(t *testing.T) {
	_, err := NewInMemory().Get(context.Background(), id.GuildID(1))
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestInMemory_SaveIsolatesCallerSlices(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	st := &models.Settings{GuildID: 7, Questions: []string{"A?"}}
	require.NoError(t, s.Save(ctx, st))

	st.Questions[0] = "changed"
	got, err := s.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, []string{"A?"}, got.Questions)
}

func TestSnapshot_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	updated := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	s, err := NewSnapshot(dir)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, &models.Settings{
		GuildID:          900000000000000001,
		WelcomeChannelID: 11,
		LogChannelID:     12,
		TempRoleID:       13,
		VerifiedRoleID:   14,
		AdminRoleID:      15,
		Questions:        []string{"Why?", "How?"},
		UpdatedAt:        updated,
	}))

	reopened, err := NewSnapshot(dir)
	require.NoError(t, err)
	got, err := reopened.Get(ctx, 900000000000000001)
	require.NoError(t, err)
	assert.True(t, got.IsReady())
	assert.Equal(t, id.RoleID(15), got.AdminRoleID)
	assert.Equal(t, []string{"Why?", "How?"}, got.Questions)
	assert.True(t, updated.Equal(got.UpdatedAt))
}

func TestSnapshot_WriteFailureKeepsMemory(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "data")
	s, err := NewSnapshot(dir)
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(dir))

	err = s.Save(ctx, &models.Settings{GuildID: 3, Questions: []string{"Q"}})
	assert.True(t, dErrors.HasCode(err, dErrors.CodePersistenceFailed))

	got, err := s.Get(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"Q"}, got.Questions)
}

func TestSnapshot_CorruptFileFailsOpen(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, SnapshotFile), []byte("{not json"), 0o600))
	_, err := NewSnapshot(dir)
	assert.Error(t, err)
}
