package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrCacheMiss is returned when nothing usable is stored under a key.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry is returned when a stored value cannot be decoded.
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// indexTTL is the minimum lifetime of an endpoint index set.
const indexTTL = 24 * time.Hour

// Manager keeps revalidatable responses in Redis. Next to every entry it
// records the entry's key in a per-endpoint index so a write to an endpoint
// can drop all of its cached variants at once.
type Manager struct {
	rdb *redis.Client
}

// NewManager wraps rdb. It panics on a nil client.
func NewManager(rdb *redis.Client) *Manager {
	if rdb == nil {
		panic("cache: nil redis client")
	}
	return &Manager{rdb: rdb}
}

// Get loads the entry stored under key. Entries stored for a different
// principal than key.Principal are reported as ErrCacheMiss.
func (m *Manager) Get(ctx context.Context, key CacheKey) (*CacheEntry, error) {
	raw, err := m.rdb.Get(ctx, key.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, miss()
	}
	if err != nil {
		return nil, failed("get", fmt.Errorf("redis get: %w", err))
	}

	entry := new(CacheEntry)
	if err := json.Unmarshal(raw, entry); err != nil {
		return nil, failed("get", fmt.Errorf("%w: %v", ErrInvalidEntry, err))
	}
	if entry.Principal != key.Principal || entry.IsExpired() {
		return nil, miss()
	}

	CacheHits.WithLabelValues("redis").Inc()
	return entry, nil
}

// Set stores a copy of entry under key for the entry's remaining lifetime,
// stamped with key.Principal. An already expired entry is not stored.
func (m *Manager) Set(ctx context.Context, key CacheKey, entry *CacheEntry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}
	ttl := entry.TTL()
	if ttl == 0 {
		return nil
	}

	stored := *entry
	stored.Principal = key.Principal
	raw, err := json.Marshal(&stored)
	if err != nil {
		return failed("set", fmt.Errorf("marshal cache entry: %w", err))
	}

	id, index := key.String(), key.indexKey()
	keep := indexTTL
	if ttl > keep {
		keep = ttl
	}

	_, err = m.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, id, raw, ttl)
		pipe.SAdd(ctx, index, id)
		pipe.Expire(ctx, index, keep)
		return nil
	})
	if err != nil {
		return failed("set", fmt.Errorf("redis set: %w", err))
	}

	CacheSize.WithLabelValues("redis").Add(float64(len(raw)))
	return nil
}

// Delete removes the entry under key.
func (m *Manager) Delete(ctx context.Context, key CacheKey) error {
	_, err := m.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key.String())
		pipe.SRem(ctx, key.indexKey(), key.String())
		return nil
	})
	if err != nil {
		return failed("delete", fmt.Errorf("redis del: %w", err))
	}
	return nil
}

// Invalidate drops every cached variant of endpoint, across query strings and
// principals, and reports how many entries were removed.
func (m *Manager) Invalidate(ctx context.Context, endpoint string) (int, error) {
	index := CacheKey{Endpoint: endpoint}.indexKey()

	keys, err := m.rdb.SMembers(ctx, index).Result()
	if err != nil {
		return 0, failed("invalidate", fmt.Errorf("redis smembers: %w", err))
	}
	if len(keys) == 0 {
		return 0, nil
	}

	var removed *redis.IntCmd
	_, err = m.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.Del(ctx, keys...)
		pipe.Del(ctx, index)
		return nil
	})
	if err != nil {
		return 0, failed("invalidate", fmt.Errorf("redis del: %w", err))
	}

	n := int(removed.Val())
	CacheInvalidations.Add(float64(n))
	return n, nil
}

// Refresh moves the expiry of the entry under key out to expires, as after a
// 304 carrying a later Expires header. Earlier times leave the entry alone.
func (m *Manager) Refresh(ctx context.Context, key CacheKey, expires time.Time) error {
	entry, err := m.Get(ctx, key)
	if err != nil {
		return err
	}
	if !entry.Extend(expires) {
		return nil
	}
	return m.Set(ctx, key, entry)
}

func miss() error {
	CacheMisses.Inc()
	return ErrCacheMiss
}

func failed(op string, err error) error {
	CacheErrors.WithLabelValues(op).Inc()
	return err
}
