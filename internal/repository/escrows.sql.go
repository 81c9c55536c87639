package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const escrowColumns = `id, service_type_id, party_a_type, party_a_id, party_b_type, party_b_id,
       counterparty_email, counterparty_org_id, status, amount, currency,
       platform_fee_percent::text, platform_fee, requires_party_a_confirmation, requires_party_b_confirmation,
       metadata, party_a_confirmed_at, party_b_confirmed_at, funded_at, completed_at, canceled_at,
       expires_at, created_at, updated_at`

func scanEscrow(row interface{ Scan(...any) error }) (Escrow, error) {
	var i Escrow
	err := row.Scan(
		&i.ID,
		&i.ServiceTypeID,
		&i.PartyAType,
		&i.PartyAID,
		&i.PartyBType,
		&i.PartyBID,
		&i.CounterpartyEmail,
		&i.CounterpartyOrgID,
		&i.Status,
		&i.Amount,
		&i.Currency,
		&i.PlatformFeePercent,
		&i.PlatformFee,
		&i.RequiresPartyAConfirmation,
		&i.RequiresPartyBConfirmation,
		&i.Metadata,
		&i.PartyAConfirmedAt,
		&i.PartyBConfirmedAt,
		&i.FundedAt,
		&i.CompletedAt,
		&i.CanceledAt,
		&i.ExpiresAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const insertEscrow = `-- name: InsertEscrow :one
INSERT INTO escrows (
    id, service_type_id, party_a_type, party_a_id, party_b_type, party_b_id,
    counterparty_email, counterparty_org_id, status, amount, currency,
    platform_fee_percent, requires_party_a_confirmation, requires_party_b_confirmation,
    metadata, expires_at
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12::text::numeric, $13, $14, $15, $16
)
RETURNING ` + escrowColumns

type InsertEscrowParams struct {
	ID                         pgtype.UUID
	ServiceTypeID              pgtype.UUID
	PartyAType                 string
	PartyAID                   pgtype.UUID
	PartyBType                 *string
	PartyBID                   pgtype.UUID
	CounterpartyEmail          *string
	CounterpartyOrgID          pgtype.UUID
	Status                     string
	Amount                     int64
	Currency                   string
	PlatformFeePercent         string
	RequiresPartyAConfirmation bool
	RequiresPartyBConfirmation bool
	Metadata                   []byte
	ExpiresAt                  pgtype.Timestamptz
}

func (q *Queries) InsertEscrow(ctx context.Context, arg InsertEscrowParams) (Escrow, error) {
	row := q.db.QueryRow(ctx, insertEscrow,
		arg.ID,
		arg.ServiceTypeID,
		arg.PartyAType,
		arg.PartyAID,
		arg.PartyBType,
		arg.PartyBID,
		arg.CounterpartyEmail,
		arg.CounterpartyOrgID,
		arg.Status,
		arg.Amount,
		arg.Currency,
		arg.PlatformFeePercent,
		arg.RequiresPartyAConfirmation,
		arg.RequiresPartyBConfirmation,
		arg.Metadata,
		arg.ExpiresAt,
	)
	return scanEscrow(row)
}

const getEscrow = `-- name: GetEscrow :one
SELECT ` + escrowColumns + `
FROM escrows
WHERE id = $1
`

func (q *Queries) GetEscrow(ctx context.Context, id pgtype.UUID) (Escrow, error) {
	return scanEscrow(q.db.QueryRow(ctx, getEscrow, id))
}

const getEscrowForUpdate = `-- name: GetEscrowForUpdate :one
SELECT ` + escrowColumns + `
FROM escrows
WHERE id = $1
FOR UPDATE
`

func (q *Queries) GetEscrowForUpdate(ctx context.Context, id pgtype.UUID) (Escrow, error) {
	return scanEscrow(q.db.QueryRow(ctx, getEscrowForUpdate, id))
}

const updateEscrowState = `-- name: UpdateEscrowState :execrows
UPDATE escrows
SET status = $3,
    party_b_type = $4,
    party_b_id = $5,
    platform_fee = $6,
    party_a_confirmed_at = $7,
    party_b_confirmed_at = $8,
    funded_at = $9,
    completed_at = $10,
    canceled_at = $11,
    updated_at = NOW()
WHERE id = $1 AND status = $2
`

// UpdateEscrowStateParams carries the full mutable state; the update only
// applies while the row is still in ExpectedStatus.
type UpdateEscrowStateParams struct {
	ID                pgtype.UUID
	ExpectedStatus    string
	Status            string
	PartyBType        *string
	PartyBID          pgtype.UUID
	PlatformFee       *int64
	PartyAConfirmedAt pgtype.Timestamptz
	PartyBConfirmedAt pgtype.Timestamptz
	FundedAt          pgtype.Timestamptz
	CompletedAt       pgtype.Timestamptz
	CanceledAt        pgtype.Timestamptz
}

func (q *Queries) UpdateEscrowState(ctx context.Context, arg UpdateEscrowStateParams) (int64, error) {
	result, err := q.db.Exec(ctx, updateEscrowState,
		arg.ID,
		arg.ExpectedStatus,
		arg.Status,
		arg.PartyBType,
		arg.PartyBID,
		arg.PlatformFee,
		arg.PartyAConfirmedAt,
		arg.PartyBConfirmedAt,
		arg.FundedAt,
		arg.CompletedAt,
		arg.CanceledAt,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const listEscrowsForOwner = `-- name: ListEscrowsForOwner :many
SELECT ` + escrowColumns + `
FROM escrows
WHERE (party_a_type = $1 AND party_a_id = $2)
   OR (party_b_type = $1 AND party_b_id = $2)
ORDER BY created_at DESC, id
LIMIT $3 OFFSET $4
`

type ListEscrowsForOwnerParams struct {
	OwnerType string
	OwnerID   pgtype.UUID
	Limit     int32
	Offset    int32
}

func (q *Queries) ListEscrowsForOwner(ctx context.Context, arg ListEscrowsForOwnerParams) ([]Escrow, error) {
	rows, err := q.db.Query(ctx, listEscrowsForOwner, arg.OwnerType, arg.OwnerID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Escrow
	for rows.Next() {
		i, err := scanEscrow(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listExpiredEscrowIDs = `-- name: ListExpiredEscrowIDs :many
SELECT id, expires_at
FROM escrows
WHERE status IN ('PENDING_FUNDING', 'FUNDED')
  AND expires_at IS NOT NULL
  AND expires_at < $1
  AND ($2::timestamptz IS NULL OR (expires_at, id) > ($2::timestamptz, $3::uuid))
ORDER BY expires_at, id
LIMIT $4
`

// ListExpiredEscrowIDsParams pages through overdue escrows by the
// (expires_at, id) key. A null AfterExpiresAt starts from the oldest.
type ListExpiredEscrowIDsParams struct {
	Now            pgtype.Timestamptz
	AfterExpiresAt pgtype.Timestamptz
	AfterID        pgtype.UUID
	Limit          int32
}

type ListExpiredEscrowIDsRow struct {
	ID        pgtype.UUID
	ExpiresAt pgtype.Timestamptz
}

func (q *Queries) ListExpiredEscrowIDs(ctx context.Context, arg ListExpiredEscrowIDsParams) ([]ListExpiredEscrowIDsRow, error) {
	rows, err := q.db.Query(ctx, listExpiredEscrowIDs, arg.Now, arg.AfterExpiresAt, arg.AfterID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListExpiredEscrowIDsRow
	for rows.Next() {
		var i ListExpiredEscrowIDsRow
		if err := rows.Scan(&i.ID, &i.ExpiresAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
