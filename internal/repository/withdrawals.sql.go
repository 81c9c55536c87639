package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const withdrawalColumns = `id, account_id, amount, currency, destination, reference_id, status, gateway_ref, created_at, updated_at`

func scanWithdrawal(row interface{ Scan(...any) error }) (Withdrawal, error) {
	var i Withdrawal
	err := row.Scan(
		&i.ID,
		&i.AccountID,
		&i.Amount,
		&i.Currency,
		&i.Destination,
		&i.ReferenceID,
		&i.Status,
		&i.GatewayRef,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const insertWithdrawal = `-- name: InsertWithdrawal :one
INSERT INTO withdrawals (id, account_id, amount, currency, destination, reference_id, status)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + withdrawalColumns

type InsertWithdrawalParams struct {
	ID          pgtype.UUID
	AccountID   pgtype.UUID
	Amount      int64
	Currency    string
	Destination string
	ReferenceID string
	Status      string
}

func (q *Queries) InsertWithdrawal(ctx context.Context, arg InsertWithdrawalParams) (Withdrawal, error) {
	row := q.db.QueryRow(ctx, insertWithdrawal,
		arg.ID,
		arg.AccountID,
		arg.Amount,
		arg.Currency,
		arg.Destination,
		arg.ReferenceID,
		arg.Status,
	)
	return scanWithdrawal(row)
}

const getWithdrawal = `-- name: GetWithdrawal :one
SELECT ` + withdrawalColumns + `
FROM withdrawals
WHERE id = $1
`

func (q *Queries) GetWithdrawal(ctx context.Context, id pgtype.UUID) (Withdrawal, error) {
	return scanWithdrawal(q.db.QueryRow(ctx, getWithdrawal, id))
}

const getWithdrawalForUpdate = `-- name: GetWithdrawalForUpdate :one
SELECT ` + withdrawalColumns + `
FROM withdrawals
WHERE id = $1
FOR UPDATE
`

func (q *Queries) GetWithdrawalForUpdate(ctx context.Context, id pgtype.UUID) (Withdrawal, error) {
	return scanWithdrawal(q.db.QueryRow(ctx, getWithdrawalForUpdate, id))
}

const getWithdrawalByReference = `-- name: GetWithdrawalByReference :one
SELECT ` + withdrawalColumns + `
FROM withdrawals
WHERE reference_id = $1
`

func (q *Queries) GetWithdrawalByReference(ctx context.Context, referenceID string) (Withdrawal, error) {
	return scanWithdrawal(q.db.QueryRow(ctx, getWithdrawalByReference, referenceID))
}

const getPendingWithdrawals = `-- name: GetPendingWithdrawals :many
SELECT ` + withdrawalColumns + `
FROM withdrawals
WHERE status = 'PENDING'
ORDER BY created_at
LIMIT $1
FOR UPDATE SKIP LOCKED
`

func (q *Queries) GetPendingWithdrawals(ctx context.Context, limit int32) ([]Withdrawal, error) {
	return q.queryWithdrawals(ctx, getPendingWithdrawals, limit)
}

const getStaleProcessingWithdrawals = `-- name: GetStaleProcessingWithdrawals :many
SELECT ` + withdrawalColumns + `
FROM withdrawals
WHERE status = 'PROCESSING' AND updated_at < $1
ORDER BY updated_at
LIMIT $2
FOR UPDATE SKIP LOCKED
`

type GetStaleProcessingWithdrawalsParams struct {
	UpdatedAt pgtype.Timestamptz
	Limit     int32
}

func (q *Queries) GetStaleProcessingWithdrawals(ctx context.Context, arg GetStaleProcessingWithdrawalsParams) ([]Withdrawal, error) {
	return q.queryWithdrawals(ctx, getStaleProcessingWithdrawals, arg.UpdatedAt, arg.Limit)
}

const updateWithdrawalStatus = `-- name: UpdateWithdrawalStatus :execrows
UPDATE withdrawals
SET status = $2,
    gateway_ref = COALESCE($3, gateway_ref),
    updated_at = NOW()
WHERE id = $1
`

type UpdateWithdrawalStatusParams struct {
	ID         pgtype.UUID
	Status     string
	GatewayRef *string
}

func (q *Queries) UpdateWithdrawalStatus(ctx context.Context, arg UpdateWithdrawalStatusParams) (int64, error) {
	result, err := q.db.Exec(ctx, updateWithdrawalStatus, arg.ID, arg.Status, arg.GatewayRef)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

func (q *Queries) queryWithdrawals(ctx context.Context, query string, args ...interface{}) ([]Withdrawal, error) {
	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Withdrawal
	for rows.Next() {
		i, err := scanWithdrawal(rows)
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
