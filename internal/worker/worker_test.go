package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ayo6706/escrow-ledger/internal/lock"
	"github.com/ayo6706/escrow-ledger/internal/service"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExpirer struct {
	mu      sync.Mutex
	calls   int
	lastNow time.Time
	batch   int32
	result  int
	err     error
	block   chan struct{}
}

func (f *fakeExpirer) ExpireOverdue(_ context.Context, now time.Time, batchSize int32) (int, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastNow = now
	f.batch = batchSize
	return f.result, f.err
}

func TestExpirySchedulerRunOnce(t *testing.T) {
	expirer := &fakeExpirer{result: 3}
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewExpiryScheduler(expirer, nil).WithBatchSize(25)
	s.now = func() time.Time { return fixed }

	n, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, fixed, expirer.lastNow)
	assert.Equal(t, int32(25), expirer.batch)

	expirer.err = errors.New("db down")
	_, err = s.RunOnce(context.Background())
	assert.Error(t, err)
}

func TestExpirySchedulerSingleInstance(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	locker := lock.NewDistributedLock(client, 5*time.Second)

	release := make(chan struct{})
	first := &fakeExpirer{result: 1, block: release}
	second := &fakeExpirer{result: 1}
	a := NewExpiryScheduler(first, locker)
	b := NewExpiryScheduler(second, locker)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = a.RunOnce(context.Background())
	}()

	require.Eventually(t, func() bool {
		return mr.Exists("escrow-ledger:lock:" + expiryLockKey)
	}, 2*time.Second, 10*time.Millisecond)

	n, err := b.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 0, second.calls)

	close(release)
	<-done
	assert.Equal(t, 1, first.calls)
}

func TestExpirySchedulerRejectsBadSchedule(t *testing.T) {
	s := NewExpiryScheduler(&fakeExpirer{}, nil).WithSchedule("not a schedule")
	assert.Error(t, s.Start())
}

type fakePurger struct {
	calls atomic.Int32
	n     int64
}

func (f *fakePurger) Purge(context.Context) (int64, error) {
	f.calls.Add(1)
	return f.n, nil
}

func TestIdempotencyPurge(t *testing.T) {
	s := NewExpiryScheduler(&fakeExpirer{}, nil)
	n, err := s.PurgeOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "no purger configured")

	purger := &fakePurger{n: 7}
	s.WithIdempotencyPurge(purger, "")
	assert.Equal(t, DefaultPurgeSchedule, s.purgeSchedule)

	n, err = s.PurgeOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	assert.Equal(t, int32(1), purger.calls.Load())

	bad := NewExpiryScheduler(&fakeExpirer{}, nil).WithIdempotencyPurge(purger, "every tuesday")
	assert.Error(t, bad.Start())
}

type fakeProcessor struct {
	calls atomic.Int32
}

func (f *fakeProcessor) ProcessWithdrawals(context.Context, int32) error {
	f.calls.Add(1)
	return nil
}

func TestWithdrawalWorkerPollsUntilStopped(t *testing.T) {
	processor := &fakeProcessor{}
	w := NewWithdrawalWorker(processor).WithPollInterval(10 * time.Millisecond)

	stop := w.Run(context.Background())
	require.Eventually(t, func() bool { return processor.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	stop()
	stop()
}

type fakeReconciler struct {
	calls atomic.Int32
}

func (f *fakeReconciler) Run(context.Context) (service.ReconciliationReport, error) {
	f.calls.Add(1)
	return service.ReconciliationReport{}, nil
}

func TestReconciliationWorkerRunsAtStartup(t *testing.T) {
	reconciler := &fakeReconciler{}
	w := NewReconciliationWorker(reconciler, nil).WithInterval(time.Hour)

	stop := w.Run(context.Background())
	defer stop()
	require.Eventually(t, func() bool { return reconciler.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
}
