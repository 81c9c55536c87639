package service

import (
	"context"
	"fmt"

	"github.com/ayo6706/escrow-ledger/internal/domain"
	"github.com/ayo6706/escrow-ledger/internal/models"
	"github.com/ayo6706/escrow-ledger/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// EscrowEventWriter appends to the immutable per-escrow history.
type EscrowEventWriter struct{}

func NewEscrowEventWriter() *EscrowEventWriter {
	return &EscrowEventWriter{}
}

// Write stores one event inside the caller's transaction. The system actor is
// recorded with a NULL actor_id.
func (w *EscrowEventWriter) Write(ctx context.Context, qtx *repository.Queries, escrowID uuid.UUID, actor domain.Actor, eventType, prevStatus, nextStatus string, details map[string]any) (models.EscrowEvent, error) {
	var actorID pgtype.UUID
	if actor.UserID != uuid.Nil {
		actorID = repository.ToPgUUID(actor.UserID)
	}
	payload, err := marshalDetails(details)
	if err != nil {
		return models.EscrowEvent{}, fmt.Errorf("encode event details: %w", err)
	}

	row, err := qtx.InsertEscrowEvent(ctx, repository.InsertEscrowEventParams{
		EscrowID:   repository.ToPgUUID(escrowID),
		EventType:  eventType,
		ActorID:    actorID,
		PrevStatus: textParam(prevStatus),
		NextStatus: nextStatus,
		Details:    payload,
	})
	if err != nil {
		return models.EscrowEvent{}, fmt.Errorf("insert escrow event: %w", err)
	}
	return toEscrowEventModel(row), nil
}

func toEscrowEventModel(row repository.EscrowEvent) models.EscrowEvent {
	evt := models.EscrowEvent{
		ID:         row.ID,
		EscrowID:   repository.FromPgUUID(row.EscrowID),
		EventType:  row.EventType,
		ActorID:    repository.FromNullablePgUUID(row.ActorID),
		NextStatus: row.NextStatus,
		Details:    row.Details,
		CreatedAt:  row.CreatedAt.Time,
	}
	if row.PrevStatus != nil {
		evt.PrevStatus = *row.PrevStatus
	}
	return evt
}

func textParam(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
