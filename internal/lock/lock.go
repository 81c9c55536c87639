package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ayo6706/escrow-ledger/internal/observability"
	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const keyPrefix = "escrow-ledger:lock:"

// Locker guards jobs that must run on a single instance at a time.
type Locker interface {
	// TryRun runs fn only if key is free. ran is false when another holder
	// owns the lock.
	TryRun(ctx context.Context, key string, fn func(ctx context.Context) error) (ran bool, err error)
}

// DistributedLock is a Redis-backed Locker.
type DistributedLock struct {
	rs     *redsync.Redsync
	expiry time.Duration
}

func NewDistributedLock(client redis.UniversalClient, expiry time.Duration) *DistributedLock {
	if expiry <= 0 {
		expiry = time.Minute
	}
	return &DistributedLock{
		rs:     redsync.New(goredis.NewPool(client)),
		expiry: expiry,
	}
}

func (l *DistributedLock) TryRun(ctx context.Context, key string, fn func(ctx context.Context) error) (bool, error) {
	ctx, span := observability.StartSpan(ctx, "lock.try_run", attribute.String("lock.key", key))
	mutex := l.rs.NewMutex(keyPrefix+key,
		redsync.WithExpiry(l.expiry),
		redsync.WithTries(1),
	)

	if err := mutex.LockContext(ctx); err != nil {
		var taken *redsync.ErrTaken
		if errors.Is(err, redsync.ErrFailed) || errors.As(err, &taken) {
			zap.L().Debug("lock held elsewhere, skipping", zap.String("key", key))
			observability.EndSpan(span, nil)
			return false, nil
		}
		err = fmt.Errorf("acquire lock %s: %w", key, err)
		observability.EndSpan(span, err)
		return false, err
	}

	defer func() {
		if ok, err := mutex.UnlockContext(context.WithoutCancel(ctx)); !ok || err != nil {
			zap.L().Warn("failed to release lock", zap.String("key", key), zap.Bool("ok", ok), zap.Error(err))
		}
	}()

	err := fn(ctx)
	observability.EndSpan(span, err)
	return true, err
}

// LocalLock is the in-process Locker used when Redis is not configured.
type LocalLock struct {
	mu   sync.Mutex
	held map[string]bool
}

func NewLocalLock() *LocalLock {
	return &LocalLock{held: make(map[string]bool)}
}

func (l *LocalLock) TryRun(ctx context.Context, key string, fn func(ctx context.Context) error) (bool, error) {
	l.mu.Lock()
	if l.held[key] {
		l.mu.Unlock()
		return false, nil
	}
	l.held[key] = true
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		delete(l.held, key)
		l.mu.Unlock()
	}()
	return true, fn(ctx)
}
