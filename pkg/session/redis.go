package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyPrefix is prepended to session ids to form Redis keys.
const KeyPrefix = "session:"

// ErrNotFound is returned by Load when the session does not exist or has expired.
var ErrNotFound = errors.New("session not found")

type contextKey struct{}

// WithID returns a context carrying the session id used by RedisStore.Token.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// IDFromContext returns the session id stored by WithID.
func IDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(contextKey{}).(string)
	return id, ok && id != ""
}

// RedisStore reads and writes sessions in Redis as JSON.
// Sessions are written by whoever owns login; the API client only reads them.
type RedisStore struct {
	redis *redis.Client
}

// NewRedisStore creates a session store backed by Redis.
func NewRedisStore(redisClient *redis.Client) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{redis: redisClient}
}

// Save stores a session under id. A zero ttl keeps the key until ExpiresAt,
// or forever when ExpiresAt is also zero.
func (s *RedisStore) Save(ctx context.Context, id string, sess Session, ttl time.Duration) error {
	if id == "" {
		return fmt.Errorf("session id is required")
	}

	if ttl <= 0 && !sess.ExpiresAt.IsZero() {
		ttl = time.Until(sess.ExpiresAt)
		if ttl <= 0 {
			// Already expired, nothing to keep
			return nil
		}
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	if err := s.redis.Set(ctx, KeyPrefix+id, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Load returns the session stored under id.
// Returns ErrNotFound if the key doesn't exist or the session has expired.
func (s *RedisStore) Load(ctx context.Context, id string) (Session, error) {
	data, err := s.redis.Get(ctx, KeyPrefix+id).Bytes()
	if err != nil {
		if err == redis.Nil {
			return Session{}, ErrNotFound
		}
		return Session{}, fmt.Errorf("redis get: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return Session{}, fmt.Errorf("unmarshal session: %w", err)
	}

	if sess.IsExpired() {
		_ = s.Delete(ctx, id)
		return Session{}, ErrNotFound
	}

	return sess, nil
}

// Delete removes the session stored under id.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.redis.Del(ctx, KeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Token resolves the session id from ctx and returns its access token.
// A missing id or session yields an empty token; Redis failures are returned.
func (s *RedisStore) Token(ctx context.Context) (string, error) {
	id, ok := IDFromContext(ctx)
	if !ok {
		return "", nil
	}

	sess, err := s.Load(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil
		}
		return "", err
	}

	return sess.AccessToken, nil
}
