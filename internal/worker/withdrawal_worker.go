package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ayo6706/escrow-ledger/internal/observability"
	"go.uber.org/zap"
)

// WithdrawalProcessor settles a batch of pending withdrawals.
type WithdrawalProcessor interface {
	ProcessWithdrawals(ctx context.Context, batchSize int32) error
}

// WithdrawalWorker polls for pending withdrawals and hands them to the
// gateway. Several instances may run at once; rows are claimed with
// FOR UPDATE SKIP LOCKED.
type WithdrawalWorker struct {
	processor    WithdrawalProcessor
	pollInterval time.Duration
	batchSize    int32
	stopCh       chan struct{}
	stopOnce     sync.Once
}

func NewWithdrawalWorker(processor WithdrawalProcessor) *WithdrawalWorker {
	return &WithdrawalWorker{
		processor:    processor,
		pollInterval: 10 * time.Second,
		batchSize:    10,
		stopCh:       make(chan struct{}),
	}
}

func (w *WithdrawalWorker) WithPollInterval(interval time.Duration) *WithdrawalWorker {
	if interval > 0 {
		w.pollInterval = interval
	}
	return w
}

func (w *WithdrawalWorker) WithBatchSize(size int32) *WithdrawalWorker {
	if size > 0 {
		w.batchSize = size
	}
	return w
}

// Start blocks until Stop is called or ctx is canceled.
func (w *WithdrawalWorker) Start(ctx context.Context) {
	zap.L().Info("withdrawal worker starting",
		zap.Duration("poll_interval", w.pollInterval),
		zap.Int32("batch_size", w.batchSize),
	)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("withdrawal worker context canceled")
			return
		case <-w.stopCh:
			zap.L().Info("withdrawal worker stop signal received")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *WithdrawalWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
}

// ProcessOnce processes a single batch immediately.
func (w *WithdrawalWorker) ProcessOnce(ctx context.Context) error {
	return w.processor.ProcessWithdrawals(ctx, w.batchSize)
}

// Run starts the worker in a goroutine and returns a stop function.
func (w *WithdrawalWorker) Run(ctx context.Context) func() {
	go w.Start(ctx)
	return w.Stop
}

func (w *WithdrawalWorker) String() string {
	return fmt.Sprintf("WithdrawalWorker(interval=%v, batch=%d)", w.pollInterval, w.batchSize)
}

func (w *WithdrawalWorker) runOnce(ctx context.Context) {
	if err := w.ProcessOnce(ctx); err != nil {
		observability.IncrementWorkerRun("withdrawal", "failed")
		zap.L().Error("withdrawal batch failed", zap.Error(err))
		return
	}
	observability.IncrementWorkerRun("withdrawal", "success")
}
