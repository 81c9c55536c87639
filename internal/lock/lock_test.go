package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisLock(t *testing.T) (*DistributedLock, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewDistributedLock(client, 5*time.Second), mr
}

func TestDistributedLockRunsAndReleases(t *testing.T) {
	l, mr := newRedisLock(t)
	ctx := context.Background()

	ran, err := l.TryRun(ctx, "expiry", func(context.Context) error {
		assert.True(t, mr.Exists(keyPrefix+"expiry"))
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.False(t, mr.Exists(keyPrefix+"expiry"))
}

func TestDistributedLockSkipsWhenHeld(t *testing.T) {
	l, _ := newRedisLock(t)
	ctx := context.Background()

	var innerRan bool
	ran, err := l.TryRun(ctx, "expiry", func(ctx context.Context) error {
		var innerErr error
		innerRan, innerErr = l.TryRun(ctx, "expiry", func(context.Context) error {
			t.Fatal("nested holder must not run")
			return nil
		})
		return innerErr
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.False(t, innerRan)

	ran, err = l.TryRun(ctx, "expiry", func(context.Context) error { return nil })
	require.NoError(t, err)
	assert.True(t, ran, "released lock can be taken again")
}

func TestDistributedLockPropagatesJobError(t *testing.T) {
	l, _ := newRedisLock(t)
	boom := errors.New("boom")

	ran, err := l.TryRun(context.Background(), "job", func(context.Context) error { return boom })
	assert.True(t, ran)
	assert.ErrorIs(t, err, boom)
}

func TestLocalLock(t *testing.T) {
	l := NewLocalLock()
	ctx := context.Background()

	ran, err := l.TryRun(ctx, "a", func(ctx context.Context) error {
		inner, err := l.TryRun(ctx, "a", func(context.Context) error { return nil })
		assert.False(t, inner)
		other, err2 := l.TryRun(ctx, "b", func(context.Context) error { return nil })
		assert.True(t, other)
		return errors.Join(err, err2)
	})
	require.NoError(t, err)
	assert.True(t, ran)
}
