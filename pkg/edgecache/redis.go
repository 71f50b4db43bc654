package edgecache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists cache entries in Redis. Entries carry their own
// TTL so Redis expires them on its own; a per-cache sorted set indexed
// by store time drives least-recently-stored eviction.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	if rdb == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{rdb: rdb}
}

func redisEntryKey(cacheName, key string) string {
	return fmt.Sprintf("edge:%s:%s", cacheName, key)
}

func redisIndexKey(cacheName string) string {
	return fmt.Sprintf("edge:%s:index", cacheName)
}

// Get retrieves an entry. Returns ErrMiss if absent or expired.
func (s *RedisStore) Get(ctx context.Context, cacheName, key string) (*Entry, error) {
	data, err := s.rdb.Get(ctx, redisEntryKey(cacheName, key)).Bytes()
	if err != nil {
		if err == redis.Nil {
			storeMisses.WithLabelValues(cacheName).Inc()
			return nil, ErrMiss
		}
		storeErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		storeErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("unmarshal cache entry: %w", err)
	}

	if entry.Expired() {
		_ = s.Delete(ctx, cacheName, key)
		storeMisses.WithLabelValues(cacheName).Inc()
		return nil, ErrMiss
	}

	storeHits.WithLabelValues(cacheName).Inc()
	return &entry, nil
}

// Put stores an entry and evicts least-recently-stored entries beyond
// maxEntries.
func (s *RedisStore) Put(ctx context.Context, cacheName string, entry *Entry, maxEntries int) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	ttl := entry.TTL()
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		storeErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, redisEntryKey(cacheName, entry.Key), data, ttl)
	pipe.ZAdd(ctx, redisIndexKey(cacheName), redis.Z{
		Score:  float64(entry.StoredAt.UnixNano()),
		Member: entry.Key,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		storeErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	return s.enforceLimit(ctx, cacheName, maxEntries)
}

// Delete removes an entry and its index member.
func (s *RedisStore) Delete(ctx context.Context, cacheName, key string) error {
	pipe := s.rdb.Pipeline()
	pipe.Del(ctx, redisEntryKey(cacheName, key))
	pipe.ZRem(ctx, redisIndexKey(cacheName), key)
	if _, err := pipe.Exec(ctx); err != nil {
		storeErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (s *RedisStore) enforceLimit(ctx context.Context, cacheName string, maxEntries int) error {
	if maxEntries <= 0 {
		return nil
	}

	index := redisIndexKey(cacheName)
	count, err := s.rdb.ZCard(ctx, index).Result()
	if err != nil {
		return fmt.Errorf("redis zcard: %w", err)
	}
	if count <= int64(maxEntries) {
		return nil
	}

	// Oldest entries sit at the low end of the score range.
	victims, err := s.rdb.ZPopMin(ctx, index, count-int64(maxEntries)).Result()
	if err != nil {
		return fmt.Errorf("redis zpopmin: %w", err)
	}

	pipe := s.rdb.Pipeline()
	for _, victim := range victims {
		key, ok := victim.Member.(string)
		if !ok {
			continue
		}
		pipe.Del(ctx, redisEntryKey(cacheName, key))
		storeEvictions.WithLabelValues(cacheName).Inc()
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis evict: %w", err)
	}
	return nil
}
