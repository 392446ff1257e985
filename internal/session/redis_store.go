package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/repairdesk/repair-desk/internal/intake"
)

const keyPrefix = "intake:session:"

// RedisStore keeps sessions as JSON values. A positive idle timeout becomes the key TTL and is
// refreshed on every save.
type RedisStore struct {
	client *redis.Client
	idle   time.Duration
}

// NewRedisStore wraps client; idle <= 0 keeps sessions until completed or cancelled.
func NewRedisStore(client *redis.Client, idle time.Duration) *RedisStore {
	if idle < 0 {
		idle = 0
	}
	return &RedisStore{client: client, idle: idle}
}

func (s *RedisStore) Get(ctx context.Context, userID string) (*intake.Session, error) {
	raw, err := s.client.Get(ctx, keyPrefix+userID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	var sess intake.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &sess, nil
}

func (s *RedisStore) Save(ctx context.Context, sess intake.Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.client.Set(ctx, keyPrefix+sess.UserID, raw, s.idle).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, keyPrefix+userID).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
