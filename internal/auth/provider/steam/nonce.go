package steam

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/yohcop/openid-go"
)

const (
	nonceKeyPrefix = "openid_nonce:"
	nonceMaxAge    = time.Minute
	nonceTimeout   = 2 * time.Second

	// RFC 3339 UTC timestamp without fractional seconds
	nonceTimestampLen = len("2006-01-02T15:04:05Z")
)

var ErrNonceReused = errors.New("openid nonce already used")

// RedisNonceStore remembers accepted response nonces in Redis so every
// instance rejects a replayed assertion.
type RedisNonceStore struct {
	client *redis.Client
	maxAge time.Duration
	now    func() time.Time
}

func NewRedisNonceStore(client *redis.Client) *RedisNonceStore {
	return &RedisNonceStore{
		client: client,
		maxAge: nonceMaxAge,
		now:    time.Now,
	}
}

// Accept records nonce for endpoint. A nonce must start with a timestamp
// inside the acceptance window and may be used once.
func (s *RedisNonceStore) Accept(endpoint, nonce string) error {
	if len(nonce) < nonceTimestampLen || len(nonce) > 255 {
		return fmt.Errorf("invalid nonce length %d", len(nonce))
	}

	issued, err := time.Parse(time.RFC3339, nonce[:nonceTimestampLen])
	if err != nil {
		return fmt.Errorf("invalid nonce timestamp: %w", err)
	}
	age := s.now().Sub(issued)
	if age > s.maxAge || age < -s.maxAge {
		return fmt.Errorf("nonce outside acceptance window (age %s)", age)
	}

	ctx, cancel := context.WithTimeout(context.Background(), nonceTimeout)
	defer cancel()

	// kept until the timestamp can no longer pass the window check
	ok, err := s.client.SetNX(ctx, nonceKeyPrefix+endpoint+":"+nonce, 1, 2*s.maxAge).Result()
	if err != nil {
		return fmt.Errorf("record nonce: %w", err)
	}
	if !ok {
		return ErrNonceReused
	}
	return nil
}

var _ openid.NonceStore = (*RedisNonceStore)(nil)
