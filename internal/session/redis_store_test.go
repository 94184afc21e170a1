package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(id, externalID string) Session {
	now := time.Now()
	return Session{
		SessionID:         id,
		ExternalID:        externalID,
		CreatedAt:         now,
		ExpiresAt:         now.Add(time.Hour),
		AbsoluteExpiresAt: now.Add(24 * time.Hour),
	}
}

func TestRedisStore_CreateAndGet(t *testing.T) {
	store, mr := setupRedisStore(t)
	ctx := context.Background()

	s := newSession("sid-1", "ext-1")
	require.NoError(t, store.Create(ctx, s))

	got, err := store.Get(ctx, "sid-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "ext-1", got.ExternalID)
	assert.True(t, got.ExpiresAt.Equal(s.ExpiresAt))

	ttl := mr.TTL("session:sid-1")
	assert.True(t, ttl > 59*time.Minute && ttl <= time.Hour, "ttl %s", ttl)

	members, err := mr.SMembers("user_sessions:ext-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"sid-1"}, members)
	assert.True(t, mr.TTL("user_sessions:ext-1") > 23*time.Hour)
}

func TestRedisStore_CreateRejectsInvalid(t *testing.T) {
	store, _ := setupRedisStore(t)
	ctx := context.Background()

	assert.Error(t, store.Create(ctx, newSession("", "ext-1")))
	assert.Error(t, store.Create(ctx, newSession("sid", "")))

	expired := newSession("sid", "ext-1")
	expired.ExpiresAt = time.Now().Add(-time.Second)
	assert.Error(t, store.Create(ctx, expired))
}

func TestRedisStore_GetMissingAndExpired(t *testing.T) {
	store, mr := setupRedisStore(t)
	ctx := context.Background()

	got, err := store.Get(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, store.Create(ctx, newSession("sid-1", "ext-1")))
	mr.FastForward(2 * time.Hour)

	got, err = store.Get(ctx, "sid-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisStore_GetDropsCorruptEntries(t *testing.T) {
	store, mr := setupRedisStore(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("session:bad", "{not json"))

	_, err := store.Get(ctx, "bad")
	assert.Error(t, err)
	assert.False(t, mr.Exists("session:bad"))
}

func TestRedisStore_Delete(t *testing.T) {
	store, mr := setupRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, newSession("sid-1", "ext-1")))
	require.NoError(t, store.Create(ctx, newSession("sid-2", "ext-1")))

	require.NoError(t, store.Delete(ctx, "sid-1"))
	assert.False(t, mr.Exists("session:sid-1"))

	members, err := mr.SMembers("user_sessions:ext-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"sid-2"}, members)

	// unknown ids are fine
	assert.NoError(t, store.Delete(ctx, "sid-1"))
}

func TestRedisStore_UpdateNeverResurrects(t *testing.T) {
	store, mr := setupRedisStore(t)
	ctx := context.Background()

	s := newSession("sid-1", "ext-1")
	require.NoError(t, store.Create(ctx, s))
	require.NoError(t, store.Delete(ctx, "sid-1"))

	s.ExpiresAt = time.Now().Add(2 * time.Hour)
	require.NoError(t, store.Update(ctx, s))
	assert.False(t, mr.Exists("session:sid-1"))
}

func TestRedisStore_UpdateExtendsTTL(t *testing.T) {
	store, mr := setupRedisStore(t)
	ctx := context.Background()

	s := newSession("sid-1", "ext-1")
	require.NoError(t, store.Create(ctx, s))

	s.ExpiresAt = time.Now().Add(3 * time.Hour)
	require.NoError(t, store.Update(ctx, s))

	assert.True(t, mr.TTL("session:sid-1") > 2*time.Hour)
}

func TestRedisStore_DeleteByExternalID(t *testing.T) {
	store, mr := setupRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, newSession("a", "ext-1")))
	require.NoError(t, store.Create(ctx, newSession("b", "ext-1")))
	require.NoError(t, store.Create(ctx, newSession("c", "ext-2")))

	n, err := store.DeleteByExternalID(ctx, "ext-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.False(t, mr.Exists("session:a"))
	assert.False(t, mr.Exists("session:b"))
	assert.False(t, mr.Exists("user_sessions:ext-1"))
	assert.True(t, mr.Exists("session:c"))
}
