package gateway

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// ErrRejected is returned when the provider declines a withdrawal outright.
var ErrRejected = errors.New("withdrawal rejected by provider")

// Gateway is the outbound payment provider used to settle withdrawals.
type Gateway interface {
	// SendWithdrawal pays amount cents of currency out to destination and
	// returns the provider's reference.
	SendWithdrawal(ctx context.Context, destination string, amount int64, currency string) (string, error)
}

// MockGateway simulates a payment provider with latency and random failures.
type MockGateway struct {
	// FailureRate is the probability of failure (0.0 to 1.0).
	FailureRate float64
	MinDelay    time.Duration
	MaxDelay    time.Duration
}

func NewMockGateway() *MockGateway {
	return &MockGateway{
		FailureRate: 0.1,
		MinDelay:    2 * time.Second,
		MaxDelay:    5 * time.Second,
	}
}

func (g *MockGateway) SendWithdrawal(ctx context.Context, destination string, amount int64, currency string) (string, error) {
	delay := g.MinDelay
	if spread := g.MaxDelay - g.MinDelay; spread > 0 {
		delay += time.Duration(rand.Int63n(int64(spread)))
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", fmt.Errorf("gateway call canceled: %w", ctx.Err())
		}
	}

	if rand.Float64() < g.FailureRate {
		return "", fmt.Errorf("%w: provider temporarily unavailable", ErrRejected)
	}

	// MOCK-YYYYMMDD-HHMMSS-XXXXX
	ref := fmt.Sprintf("MOCK-%s-%05d", time.Now().Format("20060102-150405"), rand.Intn(100000))
	return ref, nil
}
