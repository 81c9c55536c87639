package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const insertEscrowEvent = `-- name: InsertEscrowEvent :one
INSERT INTO escrow_events (escrow_id, event_type, actor_id, prev_status, next_status, details)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, escrow_id, event_type, actor_id, prev_status, next_status, details, created_at
`

type InsertEscrowEventParams struct {
	EscrowID   pgtype.UUID
	EventType  string
	ActorID    pgtype.UUID
	PrevStatus *string
	NextStatus string
	Details    []byte
}

func (q *Queries) InsertEscrowEvent(ctx context.Context, arg InsertEscrowEventParams) (EscrowEvent, error) {
	row := q.db.QueryRow(ctx, insertEscrowEvent,
		arg.EscrowID,
		arg.EventType,
		arg.ActorID,
		arg.PrevStatus,
		arg.NextStatus,
		arg.Details,
	)
	var i EscrowEvent
	err := row.Scan(
		&i.ID,
		&i.EscrowID,
		&i.EventType,
		&i.ActorID,
		&i.PrevStatus,
		&i.NextStatus,
		&i.Details,
		&i.CreatedAt,
	)
	return i, err
}

const listEscrowEvents = `-- name: ListEscrowEvents :many
SELECT id, escrow_id, event_type, actor_id, prev_status, next_status, details, created_at
FROM escrow_events
WHERE escrow_id = $1
ORDER BY id
`

func (q *Queries) ListEscrowEvents(ctx context.Context, escrowID pgtype.UUID) ([]EscrowEvent, error) {
	rows, err := q.db.Query(ctx, listEscrowEvents, escrowID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []EscrowEvent
	for rows.Next() {
		var i EscrowEvent
		if err := rows.Scan(
			&i.ID,
			&i.EscrowID,
			&i.EventType,
			&i.ActorID,
			&i.PrevStatus,
			&i.NextStatus,
			&i.Details,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
