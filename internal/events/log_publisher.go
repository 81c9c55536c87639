package events

import (
	"context"

	"github.com/ayo6706/escrow-ledger/internal/models"
	"github.com/ayo6706/escrow-ledger/internal/observability"
	"go.uber.org/zap"
)

// LogPublisher is used when no broker is configured. It writes each event to
// the application log.
type LogPublisher struct{}

func (LogPublisher) PublishEscrowEvent(_ context.Context, escrow models.Escrow, event models.EscrowEvent) error {
	zap.L().Info("escrow event",
		zap.String("routing_key", RoutingKey(event.EventType)),
		zap.String("escrow_id", escrow.ID.String()),
		zap.String("prev_status", event.PrevStatus),
		zap.String("next_status", event.NextStatus),
		zap.Int64("event_id", event.ID),
	)
	observability.IncrementEventPublish("logged")
	return nil
}
