package service

import (
	"context"

	"github.com/ayo6706/escrow-ledger/internal/models"
	"github.com/ayo6706/escrow-ledger/internal/repository"
)

// QueryStore is the data access every service needs. Balance and escrow
// mutations must go through RunInTx so row locks and entries commit together.
type QueryStore interface {
	Queries() *repository.Queries
	RunInTx(ctx context.Context, fn func(q *repository.Queries) error) error
}

var _ QueryStore = (*repository.Store)(nil)

// EventPublisher forwards committed escrow events to downstream consumers.
// Publishing happens after commit and never rolls a transition back.
type EventPublisher interface {
	PublishEscrowEvent(ctx context.Context, escrow models.Escrow, event models.EscrowEvent) error
}

type noopPublisher struct{}

func (noopPublisher) PublishEscrowEvent(context.Context, models.Escrow, models.EscrowEvent) error {
	return nil
}
