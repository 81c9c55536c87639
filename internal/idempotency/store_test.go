package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCachedStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(client, nil, time.Hour), mr
}

func TestLookupServesFromRedis(t *testing.T) {
	store, mr := newCachedStore(t)
	ctx := context.Background()
	key := ScopedKey("user-1", "key-1")

	store.cache(ctx, Record{
		Key:         key,
		RequestHash: "hash",
		Status:      201,
		Body:        []byte(`{"id":"1"}`),
		ContentType: "application/json",
	})
	assert.True(t, mr.Exists("idempotency:user-1:key-1"))
	assert.Equal(t, time.Hour, mr.TTL("idempotency:user-1:key-1"))

	rec, err := store.Lookup(ctx, key, "hash")
	require.NoError(t, err)
	assert.Equal(t, "redis", rec.ServedBy)
	assert.Equal(t, 201, rec.Status)
	assert.JSONEq(t, `{"id":"1"}`, string(rec.Body))

	_, err = store.Lookup(ctx, key, "other-hash")
	assert.ErrorIs(t, err, ErrHashMismatch)
}

func TestScopedKey(t *testing.T) {
	assert.Equal(t, "user-1:abc", ScopedKey("user-1", " abc "))
	assert.Equal(t, "anonymous:abc", ScopedKey("", "abc"))
	assert.NotEqual(t, ScopedKey("user-1", "abc"), ScopedKey("user-2", "abc"))
}

func TestLookupIgnoresCorruptCacheEntry(t *testing.T) {
	store, mr := newCachedStore(t)
	require.NoError(t, mr.Set("idempotency:user-1:key-2", "{not json"))

	_, ok := store.cached(context.Background(), ScopedKey("user-1", "key-2"))
	assert.False(t, ok)
}

func TestCacheSkippedWithoutRedis(t *testing.T) {
	store := NewStore(nil, nil, time.Hour)
	store.cache(context.Background(), Record{Key: "user-1:k"})
	_, ok := store.cached(context.Background(), "user-1:k")
	assert.False(t, ok)
}
