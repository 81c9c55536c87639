package worker

import (
	"context"
	"sync"
	"time"

	"github.com/ayo6706/escrow-ledger/internal/lock"
	"github.com/ayo6706/escrow-ledger/internal/observability"
	"github.com/ayo6706/escrow-ledger/internal/service"
	"go.uber.org/zap"
)

const reconciliationLockKey = "reconciliation"

// Reconciler compares stored balances with the ledger.
type Reconciler interface {
	Run(ctx context.Context) (service.ReconciliationReport, error)
}

// ReconciliationWorker periodically checks that every account's stored
// balance and locked amount still match its ledger entries and open escrows.
// Only one instance runs a pass at a time.
type ReconciliationWorker struct {
	svc      Reconciler
	locker   lock.Locker
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewReconciliationWorker(svc Reconciler, locker lock.Locker) *ReconciliationWorker {
	if locker == nil {
		locker = lock.NewLocalLock()
	}
	return &ReconciliationWorker{
		svc:      svc,
		locker:   locker,
		interval: 24 * time.Hour,
		stopCh:   make(chan struct{}),
	}
}

func (w *ReconciliationWorker) WithInterval(interval time.Duration) *ReconciliationWorker {
	if interval > 0 {
		w.interval = interval
	}
	return w
}

// Start blocks and runs reconciliation at the configured interval.
func (w *ReconciliationWorker) Start(ctx context.Context) {
	zap.L().Info("reconciliation worker starting", zap.Duration("interval", w.interval))
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// A drift introduced before a restart is reported without waiting a full interval.
	w.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("reconciliation worker context canceled")
			return
		case <-w.stopCh:
			zap.L().Info("reconciliation worker stop signal received")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

// Stop stops the running worker loop.
func (w *ReconciliationWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
}

// Run starts the worker in a goroutine and returns a stop function.
func (w *ReconciliationWorker) Run(ctx context.Context) func() {
	go w.Start(ctx)
	return w.Stop
}

func (w *ReconciliationWorker) runOnce(ctx context.Context) {
	var report service.ReconciliationReport
	ran, err := w.locker.TryRun(ctx, reconciliationLockKey, func(ctx context.Context) error {
		var err error
		report, err = w.svc.Run(ctx)
		return err
	})
	switch {
	case err != nil:
		observability.IncrementWorkerRun("reconciliation", "failed")
		zap.L().Error("reconciliation run failed", zap.Error(err))
	case !ran:
		observability.IncrementWorkerRun("reconciliation", "skipped")
	case !report.Balanced():
		observability.IncrementWorkerRun("reconciliation", "drift")
		zap.L().Error("ledger drift detected",
			zap.Int("balance_drift_accounts", len(report.BalanceDrift)),
			zap.Int("escrow_lock_drift_accounts", len(report.EscrowLockDrift)),
		)
	default:
		observability.IncrementWorkerRun("reconciliation", "success")
	}
}
