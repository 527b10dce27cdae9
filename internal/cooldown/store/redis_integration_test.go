//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"warden/internal/cooldown/models"
	"warden/internal/cooldown/store"
	id "warden/pkg/domain"
	"warden/pkg/platform/sentinel"
	"warden/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *store.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.store = store.NewRedis(s.redis.Client, store.WithRetention(time.Hour))
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestPutGet() {
	ctx := context.Background()
	until := time.Now().Add(2 * time.Hour).UTC()
	s.Require().NoError(s.store.Put(ctx, models.Entry{UserID: 9, ExpiresAt: until}))

	got, err := s.store.Get(ctx, 9)
	s.Require().NoError(err)
	s.True(until.Equal(got.ExpiresAt))

	ttl, err := s.redis.Client.PTTL(ctx, store.KeyPrefix+"9").Result()
	s.Require().NoError(err)
	s.Greater(ttl, 2*time.Hour)

	_, err = s.store.Get(ctx, 10)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisStoreSuite) TestDeleteExpired() {
	ctx := context.Background()
	now := time.Now()
	s.Require().NoError(s.store.Put(ctx, models.Entry{UserID: 1, ExpiresAt: now.Add(-time.Minute)}))
	s.Require().NoError(s.store.Put(ctx, models.Entry{UserID: 2, ExpiresAt: now.Add(time.Hour)}))
	s.Require().NoError(s.redis.Client.Set(ctx, "unrelated", "x", 0).Err())

	removed, err := s.store.DeleteExpired(ctx, now)
	s.Require().NoError(err)
	s.Equal([]id.UserID{1}, removed)

	_, err = s.store.Get(ctx, 2)
	s.NoError(err)
	s.Equal(int64(1), s.redis.Client.Exists(ctx, "unrelated").Val())
}
