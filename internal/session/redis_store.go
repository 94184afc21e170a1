package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a Redis-backed session store. Each session lives
// under session:<id>; user_sessions:<external id> indexes a user's
// sessions for revocation.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "session:",
	}
}

func (r *RedisStore) key(sessionID string) string {
	return r.prefix + sessionID
}

func (r *RedisStore) userKey(externalID string) string {
	return "user_sessions:" + externalID
}

func (r *RedisStore) Create(ctx context.Context, s Session) error {
	if s.SessionID == "" || s.ExternalID == "" {
		return fmt.Errorf("session: missing session_id or external_id")
	}

	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session: expires_at must be in the future")
	}

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("session: failed to marshal: %w", err)
	}

	indexTTL := time.Until(s.AbsoluteExpiresAt)
	if indexTTL < ttl {
		indexTTL = ttl
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.key(s.SessionID), data, ttl)
		pipe.SAdd(ctx, r.userKey(s.ExternalID), s.SessionID)
		// the newest session always has the latest absolute expiry
		pipe.Expire(ctx, r.userKey(s.ExternalID), indexTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("session: create: %w", err)
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, sessionID string) (*Session, error) {
	val, err := r.client.Get(ctx, r.key(sessionID)).Result()
	if err == redis.Nil {
		return nil, nil // not found
	}
	if err != nil {
		return nil, err
	}

	var s Session
	if err := json.Unmarshal([]byte(val), &s); err != nil {
		// corrupt entries are dropped rather than served
		r.client.Del(ctx, r.key(sessionID))
		return nil, fmt.Errorf("session: failed to unmarshal: %w", err)
	}

	return &s, nil
}

func (r *RedisStore) Delete(ctx context.Context, sessionID string) error {
	s, err := r.Get(ctx, sessionID)
	if err != nil {
		return r.client.Del(ctx, r.key(sessionID)).Err()
	}
	if s == nil {
		return nil
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.key(sessionID))
		pipe.SRem(ctx, r.userKey(s.ExternalID), sessionID)
		return nil
	})
	return err
}

func (r *RedisStore) Update(ctx context.Context, s Session) error {
	if s.SessionID == "" {
		return fmt.Errorf("session: missing session_id")
	}

	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		// If expired, delete session instead of extending
		return r.Delete(ctx, s.SessionID)
	}

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("session: failed to marshal: %w", err)
	}

	// XX: never resurrect a session deleted concurrently (logout, revocation).
	return r.client.SetXX(ctx, r.key(s.SessionID), data, ttl).Err()
}

func (r *RedisStore) DeleteByExternalID(ctx context.Context, externalID string) (int, error) {
	ids, err := r.client.SMembers(ctx, r.userKey(externalID)).Result()
	if err != nil {
		return 0, fmt.Errorf("session: list user sessions: %w", err)
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, r.key(id))
	}
	keys = append(keys, r.userKey(externalID))

	n, err := r.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("session: delete user sessions: %w", err)
	}

	// the index key itself is not a session
	removed := int(n)
	if removed > 0 {
		removed--
	}
	return removed, nil
}

var _ Store = (*RedisStore)(nil)
