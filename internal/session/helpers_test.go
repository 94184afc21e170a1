package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/Housri/steam-auth-public/internal/user"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func setupRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisStore(client), mr
}

// userTable is a concurrency-safe UserFinder over a map.
type userTable struct {
	mu   sync.Mutex
	rows map[string]user.Record
	err  error
}

func newUserTable(recs ...user.Record) *userTable {
	u := &userTable{rows: map[string]user.Record{}}
	for _, r := range recs {
		u.rows[r.ExternalID] = r
	}
	return u
}

func (u *userTable) FindByExternalID(_ context.Context, externalID string) (*user.Record, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.err != nil {
		return nil, u.err
	}
	rec, ok := u.rows[externalID]
	if !ok {
		return nil, user.ErrNotFound
	}
	return &rec, nil
}

func (u *userTable) put(rec user.Record) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.rows[rec.ExternalID] = rec
}

func (u *userTable) remove(externalID string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.rows, externalID)
}

// testClock is a settable time source.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Now().Truncate(time.Second)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func alice() user.Record {
	now := time.Now().UTC()
	return user.Record{
		LocalID:     "local-alice",
		ExternalID:  "76561197960287930",
		DisplayName: "Alice",
		CreatedAt:   now,
		LastLoginAt: now,
	}
}

func newTestManager(t *testing.T, users UserFinder, clock *testClock) (*Manager, *RedisStore, *miniredis.Miniredis) {
	t.Helper()

	store, mr := setupRedisStore(t)
	m, err := NewManager(store, users, Config{
		Secret:      testSecret,
		IdleTTL:     24 * time.Hour,
		AbsoluteTTL: 7 * 24 * time.Hour,
	}, WithClock(clock.Now))
	require.NoError(t, err)

	return m, store, mr
}
