// Package cache keeps the backend's committed-as-of rosters in Redis so a
// restarted service does not refetch every gazette.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/sehansi-9/gztprocessor/internal/roster"
)

const defaultTTL = 10 * time.Minute

// entry is the stored form of a snapshot.
type entry struct {
	Snapshot *roster.Snapshot `json:"snapshot"`
	CachedAt time.Time        `json:"cached_at"`
}

// RedisStore caches snapshots keyed by scope and gazette number
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	log    *logrus.Entry
}

// NewRedisStore connects to redisURL and checks the connection
func NewRedisStore(redisURL string, ttl time.Duration, log *logrus.Entry) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client, ttl, log), nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client
func NewRedisStoreWithClient(client *redis.Client, ttl time.Duration, log *logrus.Entry) *RedisStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &RedisStore{
		client: client,
		prefix: "gztp:state:",
		ttl:    ttl,
		log:    log.WithField("component", "cache"),
	}
}

func (s *RedisStore) key(scope roster.Scope, number string) string {
	return s.prefix + string(scope) + ":" + number
}

// Get returns the cached snapshot. Misses and Redis failures both report false;
// failures are logged.
func (s *RedisStore) Get(ctx context.Context, scope roster.Scope, number string) (*roster.Snapshot, bool) {
	raw, err := s.client.Get(ctx, s.key(scope, number)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		s.log.WithFields(logrus.Fields{"scope": scope, "gazette": number}).WithError(err).Warn("snapshot cache read failed")
		return nil, false
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil || e.Snapshot == nil {
		s.log.WithFields(logrus.Fields{"scope": scope, "gazette": number}).Warn("dropping undecodable snapshot cache entry")
		_ = s.client.Del(ctx, s.key(scope, number)).Err()
		return nil, false
	}
	return e.Snapshot, true
}

// Put stores snap with the configured TTL. Failures are logged.
func (s *RedisStore) Put(ctx context.Context, scope roster.Scope, number string, snap *roster.Snapshot) {
	raw, err := json.Marshal(entry{Snapshot: snap, CachedAt: time.Now().UTC()})
	if err != nil {
		s.log.WithError(err).Error("marshal snapshot")
		return
	}
	if err := s.client.Set(ctx, s.key(scope, number), raw, s.ttl).Err(); err != nil {
		s.log.WithFields(logrus.Fields{"scope": scope, "gazette": number}).WithError(err).Warn("snapshot cache write failed")
	}
}

// Invalidate drops the cached snapshots of the given gazettes.
func (s *RedisStore) Invalidate(ctx context.Context, scope roster.Scope, numbers ...string) error {
	if len(numbers) == 0 {
		return nil
	}
	keys := make([]string, len(numbers))
	for i, n := range numbers {
		keys[i] = s.key(scope, n)
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("invalidate snapshots: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
