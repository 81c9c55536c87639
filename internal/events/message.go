package events

import (
	"encoding/json"
	"time"

	"github.com/ayo6706/escrow-ledger/internal/domain"
	"github.com/ayo6706/escrow-ledger/internal/models"
	"github.com/google/uuid"
)

const routingKeyPrefix = "escrow."

// EscrowMessage is the JSON body published for every committed escrow event.
type EscrowMessage struct {
	EventID    int64           `json:"event_id"`
	EventType  string          `json:"event_type"`
	EscrowID   uuid.UUID       `json:"escrow_id"`
	PrevStatus string          `json:"prev_status,omitempty"`
	NextStatus string          `json:"next_status"`
	ActorID    *uuid.UUID      `json:"actor_id,omitempty"`
	PartyA     domain.OwnerRef `json:"party_a"`
	PartyB     domain.OwnerRef `json:"party_b"`
	Amount     string          `json:"amount"`
	Currency   string          `json:"currency"`
	Details    json.RawMessage `json:"details,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

func NewEscrowMessage(escrow models.Escrow, event models.EscrowEvent) EscrowMessage {
	return EscrowMessage{
		EventID:    event.ID,
		EventType:  event.EventType,
		EscrowID:   escrow.ID,
		PrevStatus: event.PrevStatus,
		NextStatus: event.NextStatus,
		ActorID:    event.ActorID,
		PartyA:     escrow.PartyA,
		PartyB:     escrow.PartyB,
		Amount:     domain.FormatAmount(escrow.Amount),
		Currency:   escrow.Currency,
		Details:    event.Details,
		OccurredAt: event.CreatedAt,
	}
}

// RoutingKey is "escrow.<event_type>", e.g. "escrow.funded".
func RoutingKey(eventType string) string {
	return routingKeyPrefix + eventType
}
