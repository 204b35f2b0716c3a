package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// sessionKeyPrefix is the Redis key prefix for session data.
const sessionKeyPrefix = "session:"

// Store persists session records. Get returns ErrNoSession when the record
// is absent or expired.
type Store interface {
	Save(ctx context.Context, s *Session, ttl time.Duration) error
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
}

// redisStore implements Store with one JSON value per session and a Redis TTL.
type redisStore struct {
	redis *redis.Client
}

// NewRedisStore creates a session store backed by the given Redis client.
func NewRedisStore(rdb *redis.Client) Store {
	return &redisStore{redis: rdb}
}

// Save writes the record with the given TTL, replacing any existing value.
func (r *redisStore) Save(ctx context.Context, s *Session, ttl time.Duration) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}
	if err := r.redis.Set(ctx, sessionKeyPrefix+s.ID, data, ttl).Err(); err != nil {
		return fmt.Errorf("storing session in redis: %w", err)
	}
	return nil
}

// Get reads a record. Missing keys map to ErrNoSession; undecodable values
// map to errCorruptSession.
func (r *redisStore) Get(ctx context.Context, id string) (*Session, error) {
	data, err := r.redis.Get(ctx, sessionKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("reading session from redis: %w", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", errCorruptSession, err)
	}
	s.ID = id
	return &s, nil
}

// Delete removes a record. Deleting a missing record is not an error.
func (r *redisStore) Delete(ctx context.Context, id string) error {
	if err := r.redis.Del(ctx, sessionKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("deleting session from redis: %w", err)
	}
	return nil
}
