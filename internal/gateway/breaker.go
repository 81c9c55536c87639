package gateway

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerGateway stops calling a failing provider for a cool-down period
// instead of draining the withdrawal queue into guaranteed failures.
type BreakerGateway struct {
	next Gateway
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerGateway trips after consecutiveFailures failed calls and probes
// again after timeout.
func NewBreakerGateway(next Gateway, consecutiveFailures uint32, timeout time.Duration) *BreakerGateway {
	if consecutiveFailures == 0 {
		consecutiveFailures = 5
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	settings := gobreaker.Settings{
		Name:        "withdrawal-gateway",
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= consecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			zap.L().Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}
	return &BreakerGateway{next: next, cb: gobreaker.NewCircuitBreaker(settings)}
}

func (g *BreakerGateway) SendWithdrawal(ctx context.Context, destination string, amount int64, currency string) (string, error) {
	ref, err := g.cb.Execute(func() (interface{}, error) {
		return g.next.SendWithdrawal(ctx, destination, amount, currency)
	})
	if err != nil {
		return "", err
	}
	return ref.(string), nil
}

// State exposes the breaker state for health reporting.
func (g *BreakerGateway) State() gobreaker.State {
	return g.cb.State()
}
