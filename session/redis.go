package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "sess:"

// RedisStore reads sessions stored as JSON under "sess:<id>".
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore wraps client. ttl applies to sessions created through
// Create; zero means no expiry.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// Get loads the session with the given ID.
func (s *RedisStore) Get(ctx context.Context, id string) (Session, error) {
	if id == "" {
		return Session{}, fmt.Errorf("get session: %w", ErrSessionNotFound)
	}

	data, err := s.client.Get(ctx, keyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Session{}, fmt.Errorf("get session: %w", ErrSessionNotFound)
		}
		return Session{}, fmt.Errorf("get session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return Session{}, fmt.Errorf("get session: decode: %w", err)
	}
	sess.ID = id

	return sess, nil
}

// Create stores sess under a fresh ID and returns the ID.
func (s *RedisStore) Create(ctx context.Context, sess Session) (string, error) {
	if !sess.Actor().IsValid() {
		return "", fmt.Errorf("create session: user id and valid role required")
	}

	id := uuid.NewString()

	data, err := json.Marshal(sess)
	if err != nil {
		return "", fmt.Errorf("create session: encode: %w", err)
	}

	if err := s.client.Set(ctx, keyPrefix+id, data, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}

	return id, nil
}

// Delete removes the session with the given ID. Deleting a missing session
// is not an error.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, keyPrefix+id).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
