package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce           sync.Once
	httpDurationHistogram  *prometheus.HistogramVec
	ledgerOperationCounter *prometheus.CounterVec
	ledgerDriftCounter     *prometheus.CounterVec
	escrowTransitionCount  *prometheus.CounterVec
	escrowsExpiredCounter  prometheus.Counter
	eventPublishCounter    *prometheus.CounterVec
	idempotencyCounter     *prometheus.CounterVec
	workerRunCounter       *prometheus.CounterVec
	httpInFlightGauge      prometheus.Gauge
	panicCounter           prometheus.Counter
)

// Init registers all Prometheus collectors.
func Init() {
	registerOnce.Do(func() {
		httpDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"})

		ledgerOperationCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_operations_total",
			Help: "Ledger primitive invocations by outcome",
		}, []string{"operation", "result"})

		ledgerDriftCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_drift_total",
			Help: "Accounts whose stored balances diverged from their entries or escrows",
		}, []string{"check"})

		escrowTransitionCount = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "escrow_transitions_total",
			Help: "Committed escrow state transitions",
		}, []string{"event", "to"})

		escrowsExpiredCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "escrows_expired_total",
			Help: "Escrows moved to EXPIRED by the expiry sweep",
		})

		eventPublishCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "escrow_event_publish_total",
			Help: "Escrow event publish outcomes",
		}, []string{"result"})

		idempotencyCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "idempotency_events_total",
			Help: "Idempotency middleware outcomes",
		}, []string{"outcome"})

		workerRunCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_runs_total",
			Help: "Background worker run outcomes",
		}, []string{"worker", "result"})

		httpInFlightGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Requests currently being served",
		})

		panicCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_panics_total",
			Help: "Handler panics recovered by the HTTP stack",
		})

		prometheus.MustRegister(
			httpDurationHistogram,
			ledgerOperationCounter,
			ledgerDriftCounter,
			escrowTransitionCount,
			escrowsExpiredCounter,
			eventPublishCounter,
			idempotencyCounter,
			workerRunCounter,
			httpInFlightGauge,
			panicCounter,
		)
	})
}

func ObserveHTTP(method, path string, status int, duration time.Duration) {
	if httpDurationHistogram == nil {
		return
	}
	httpDurationHistogram.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
}

func IncrementLedgerOperation(operation string, err error) {
	if ledgerOperationCounter == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	ledgerOperationCounter.WithLabelValues(operation, result).Inc()
}

func IncrementLedgerDrift(check string) {
	if ledgerDriftCounter == nil {
		return
	}
	ledgerDriftCounter.WithLabelValues(check).Inc()
}

func IncrementEscrowTransition(event, to string) {
	if escrowTransitionCount == nil {
		return
	}
	escrowTransitionCount.WithLabelValues(event, to).Inc()
}

func AddEscrowsExpired(n int) {
	if escrowsExpiredCounter == nil || n <= 0 {
		return
	}
	escrowsExpiredCounter.Add(float64(n))
}

func IncrementEventPublish(result string) {
	if eventPublishCounter == nil {
		return
	}
	eventPublishCounter.WithLabelValues(result).Inc()
}

func IncrementIdempotencyEvent(outcome string) {
	if idempotencyCounter == nil {
		return
	}
	idempotencyCounter.WithLabelValues(outcome).Inc()
}

func IncrementWorkerRun(worker, result string) {
	if workerRunCounter == nil {
		return
	}
	workerRunCounter.WithLabelValues(worker, result).Inc()
}

// TrackInFlight bumps the in-flight gauge and returns the matching decrement.
func TrackInFlight() func() {
	if httpInFlightGauge == nil {
		return func() {}
	}
	httpInFlightGauge.Inc()
	return httpInFlightGauge.Dec
}

func IncrementPanic() {
	if panicCounter == nil {
		return
	}
	panicCounter.Inc()
}
