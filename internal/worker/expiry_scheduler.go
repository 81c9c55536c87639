package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/ayo6706/escrow-ledger/internal/lock"
	"github.com/ayo6706/escrow-ledger/internal/observability"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	expiryLockKey         = "escrow-expiry"
	purgeLockKey          = "idempotency-purge"
	DefaultExpirySchedule = "@every 1m"
	DefaultPurgeSchedule  = "@hourly"
)

// Expirer moves overdue escrows to EXPIRED and returns how many it expired.
type Expirer interface {
	ExpireOverdue(ctx context.Context, now time.Time, batchSize int32) (int, error)
}

// Purger drops idempotency records past their retention.
type Purger interface {
	Purge(ctx context.Context) (int64, error)
}

// ExpiryScheduler runs the escrow expiry sweep on a cron schedule. The sweep
// is guarded by a lock so only one instance expires escrows at a time.
type ExpiryScheduler struct {
	cron      *cron.Cron
	expirer   Expirer
	locker    lock.Locker
	schedule  string
	batchSize int32
	timeout   time.Duration
	now       func() time.Time

	purger        Purger
	purgeSchedule string
}

func NewExpiryScheduler(expirer Expirer, locker lock.Locker) *ExpiryScheduler {
	if locker == nil {
		locker = lock.NewLocalLock()
	}
	cronLogger := cron.PrintfLogger(zap.NewStdLog(zap.L()))
	return &ExpiryScheduler{
		cron:      cron.New(cron.WithChain(cron.Recover(cronLogger))),
		expirer:   expirer,
		locker:    locker,
		schedule:  DefaultExpirySchedule,
		batchSize: 100,
		timeout:   time.Minute,
		now:       time.Now,
	}
}

func (s *ExpiryScheduler) WithSchedule(schedule string) *ExpiryScheduler {
	if schedule != "" {
		s.schedule = schedule
	}
	return s
}

func (s *ExpiryScheduler) WithBatchSize(size int32) *ExpiryScheduler {
	if size > 0 {
		s.batchSize = size
	}
	return s
}

// WithIdempotencyPurge also runs p on schedule under its own lock.
func (s *ExpiryScheduler) WithIdempotencyPurge(p Purger, schedule string) *ExpiryScheduler {
	s.purger = p
	s.purgeSchedule = schedule
	if s.purgeSchedule == "" {
		s.purgeSchedule = DefaultPurgeSchedule
	}
	return s
}

// Start registers the sweep and starts the scheduler in the background.
func (s *ExpiryScheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.sweep); err != nil {
		return fmt.Errorf("schedule escrow expiry %q: %w", s.schedule, err)
	}
	if s.purger != nil {
		if _, err := s.cron.AddFunc(s.purgeSchedule, s.purge); err != nil {
			return fmt.Errorf("schedule idempotency purge %q: %w", s.purgeSchedule, err)
		}
	}
	zap.L().Info("scheduled escrow expiry job", zap.String("schedule", s.schedule))
	s.cron.Start()
	return nil
}

// Stop stops scheduling new runs. The returned context is done once a
// running sweep finishes.
func (s *ExpiryScheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *ExpiryScheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if _, err := s.RunOnce(ctx); err != nil {
		zap.L().Error("escrow expiry sweep failed", zap.Error(err))
	}
}

// RunOnce performs one sweep and returns the number of escrows expired.
func (s *ExpiryScheduler) RunOnce(ctx context.Context) (int, error) {
	var expired int
	ran, err := s.locker.TryRun(ctx, expiryLockKey, func(ctx context.Context) error {
		var err error
		expired, err = s.expirer.ExpireOverdue(ctx, s.now(), s.batchSize)
		return err
	})
	switch {
	case err != nil:
		observability.IncrementWorkerRun("escrow_expiry", "failed")
		return expired, err
	case !ran:
		observability.IncrementWorkerRun("escrow_expiry", "skipped")
		return 0, nil
	}
	observability.IncrementWorkerRun("escrow_expiry", "success")
	if expired > 0 {
		zap.L().Info("expired overdue escrows", zap.Int("count", expired))
	}
	return expired, nil
}

func (s *ExpiryScheduler) purge() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if _, err := s.PurgeOnce(ctx); err != nil {
		zap.L().Error("idempotency purge failed", zap.Error(err))
	}
}

// PurgeOnce runs the idempotency purge once and returns the rows removed.
func (s *ExpiryScheduler) PurgeOnce(ctx context.Context) (int64, error) {
	if s.purger == nil {
		return 0, nil
	}
	var purged int64
	ran, err := s.locker.TryRun(ctx, purgeLockKey, func(ctx context.Context) error {
		var err error
		purged, err = s.purger.Purge(ctx)
		return err
	})
	switch {
	case err != nil:
		observability.IncrementWorkerRun("idempotency_purge", "failed")
		return 0, err
	case !ran:
		observability.IncrementWorkerRun("idempotency_purge", "skipped")
		return 0, nil
	}
	observability.IncrementWorkerRun("idempotency_purge", "success")
	if purged > 0 {
		zap.L().Info("purged idempotency keys", zap.Int64("count", purged))
	}
	return purged, nil
}
