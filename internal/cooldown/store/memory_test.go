package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warden/internal/cooldown/models"
	id "warden/pkg/domain"
	"warden/pkg/platform/sentinel"
)

func TestSnapshot_ReopenKeepsNanosecondExpiry(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	until := time.Date(2026, 7, 1, 10, 0, 0, 987654321, time.UTC)

	s, err := NewSnapshot(dir)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, models.Entry{UserID: 5, ExpiresAt: until}))

	reopened, err := NewSnapshot(dir)
	require.NoError(t, err)
	got, err := reopened.Get(ctx, 5)
	require.NoError(t, err)
	assert.True(t, until.Equal(got.ExpiresAt))
}

func TestInMemory_DeleteExpired(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)
	s := NewInMemory()
	require.NoError(t, s.Put(ctx, models.Entry{UserID: 1, ExpiresAt: now}))
	require.NoError(t, s.Put(ctx, models.Entry{UserID: 2, ExpiresAt: now.Add(time.Second)}))

	removed, err := s.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, []id.UserID{1}, removed)

	_, err = s.Get(ctx, 1)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}
