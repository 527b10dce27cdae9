package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"warden/internal/cooldown/models"
	id "warden/pkg/domain"
	"warden/pkg/platform/sentinel"
)

const (
	// KeyPrefix namespaces ledger entries; the suffix is the user id.
	KeyPrefix = "warden:cooldown:"

	defaultRetention = 24 * time.Hour
	scanCount        = 200
)

// deleteIfUnchanged removes a key only if it still holds the value the sweep
// read, so a block set between scan and delete survives.
var deleteIfUnchanged = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisStore shares the ledger across replicas. Each entry is a string key
// holding the RFC 3339 expiry. Keys carry a TTL of expiry plus a retention
// window so the reaper can still observe and report them before Redis drops
// them on its own.
type RedisStore struct {
	client    *redis.Client
	retention time.Duration
}

type RedisOption func(*RedisStore)

// WithRetention sets how long an expired key lingers for the reaper.
func WithRetention(d time.Duration) RedisOption {
	return func(s *RedisStore) {
		if d > 0 {
			s.retention = d
		}
	}
}

func NewRedis(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, retention: defaultRetention}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func key(user id.UserID) string {
	return KeyPrefix + user.String()
}

func (s *RedisStore) Get(ctx context.Context, user id.UserID) (*models.Entry, error) {
	raw, err := s.client.Get(ctx, key(user)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get cooldown: %w", err)
	}
	expires, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, fmt.Errorf("decode cooldown %s: %w", user, err)
	}
	return &models.Entry{UserID: user, ExpiresAt: expires}, nil
}

// Put overwrites the entry and its TTL in one transaction.
func (s *RedisStore) Put(ctx context.Context, entry models.Entry) error {
	k := key(entry.UserID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, k, entry.ExpiresAt.UTC().Format(time.RFC3339Nano), 0)
		pipe.PExpireAt(ctx, k, entry.ExpiresAt.Add(s.retention))
		return nil
	})
	if err != nil {
		return fmt.Errorf("put cooldown: %w", err)
	}
	return nil
}

// DeleteExpired scans the keyspace and removes entries expired at now.
func (s *RedisStore) DeleteExpired(ctx context.Context, now time.Time) ([]id.UserID, error) {
	var removed []id.UserID
	iter := s.client.Scan(ctx, 0, KeyPrefix+"*", scanCount).Iterator()
	for iter.Next(ctx) {
		k := iter.Val()
		user, err := id.ParseUserID(strings.TrimPrefix(k, KeyPrefix))
		if err != nil {
			continue
		}
		raw, err := s.client.Get(ctx, k).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return removed, fmt.Errorf("read cooldown during sweep: %w", err)
		}
		expires, err := time.Parse(time.RFC3339Nano, raw)
		if err == nil && expires.After(now) {
			continue
		}
		n, err := deleteIfUnchanged.Run(ctx, s.client, []string{k}, raw).Int()
		if err != nil {
			return removed, fmt.Errorf("delete expired cooldown: %w", err)
		}
		if n == 1 {
			removed = append(removed, user)
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("scan cooldowns: %w", err)
	}
	return removed, nil
}
