package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const accountColumns = `id, owner_type, owner_id, currency, available_balance, in_contract_balance, created_at, updated_at`

func scanAccount(row interface{ Scan(...any) error }) (Account, error) {
	var i Account
	err := row.Scan(
		&i.ID,
		&i.OwnerType,
		&i.OwnerID,
		&i.Currency,
		&i.AvailableBalance,
		&i.InContractBalance,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const insertAccountIfMissing = `-- name: InsertAccountIfMissing :exec
INSERT INTO accounts (owner_type, owner_id, currency)
VALUES ($1, $2, $3)
ON CONFLICT (owner_type, owner_id, currency) DO NOTHING
`

type OwnerParams struct {
	OwnerType string
	OwnerID   pgtype.UUID
	Currency  string
}

func (q *Queries) InsertAccountIfMissing(ctx context.Context, arg OwnerParams) error {
	_, err := q.db.Exec(ctx, insertAccountIfMissing, arg.OwnerType, arg.OwnerID, arg.Currency)
	return err
}

const getAccountByOwner = `-- name: GetAccountByOwner :one
SELECT ` + accountColumns + `
FROM accounts
WHERE owner_type = $1 AND owner_id = $2 AND currency = $3
`

func (q *Queries) GetAccountByOwner(ctx context.Context, arg OwnerParams) (Account, error) {
	return scanAccount(q.db.QueryRow(ctx, getAccountByOwner, arg.OwnerType, arg.OwnerID, arg.Currency))
}

const getAccount = `-- name: GetAccount :one
SELECT ` + accountColumns + `
FROM accounts
WHERE id = $1
`

func (q *Queries) GetAccount(ctx context.Context, id pgtype.UUID) (Account, error) {
	return scanAccount(q.db.QueryRow(ctx, getAccount, id))
}

const getAccountForUpdate = `-- name: GetAccountForUpdate :one
SELECT ` + accountColumns + `
FROM accounts
WHERE id = $1
FOR UPDATE
`

// GetAccountForUpdate takes the row lock that serializes balance mutations.
func (q *Queries) GetAccountForUpdate(ctx context.Context, id pgtype.UUID) (Account, error) {
	return scanAccount(q.db.QueryRow(ctx, getAccountForUpdate, id))
}

const applyBalanceDelta = `-- name: ApplyBalanceDelta :execrows
UPDATE accounts
SET available_balance = available_balance + $2,
    in_contract_balance = in_contract_balance + $3,
    updated_at = NOW()
WHERE id = $1
  AND available_balance + $2 >= 0
  AND in_contract_balance + $3 >= 0
`

type ApplyBalanceDeltaParams struct {
	ID              pgtype.UUID
	AvailableDelta  int64
	InContractDelta int64
}

// ApplyBalanceDelta returns 0 rows when the account is missing or a bucket would go negative.
func (q *Queries) ApplyBalanceDelta(ctx context.Context, arg ApplyBalanceDeltaParams) (int64, error) {
	result, err := q.db.Exec(ctx, applyBalanceDelta, arg.ID, arg.AvailableDelta, arg.InContractDelta)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const getBalanceDrift = `-- name: GetBalanceDrift :many
SELECT a.id,
       a.available_balance,
       a.in_contract_balance,
       COALESCE(SUM(e.amount) FILTER (WHERE e.bucket = 'available' AND e.entry_type <> 'PLATFORM_FEE'), 0)::bigint AS available_sum,
       COALESCE(SUM(e.amount) FILTER (WHERE e.bucket = 'in_contract'), 0)::bigint AS in_contract_sum
FROM accounts a
LEFT JOIN ledger_entries e ON e.account_id = a.id
GROUP BY a.id
HAVING a.available_balance <> COALESCE(SUM(e.amount) FILTER (WHERE e.bucket = 'available' AND e.entry_type <> 'PLATFORM_FEE'), 0)
    OR a.in_contract_balance <> COALESCE(SUM(e.amount) FILTER (WHERE e.bucket = 'in_contract'), 0)
`

type GetBalanceDriftRow struct {
	ID                pgtype.UUID
	AvailableBalance  int64
	InContractBalance int64
	AvailableSum      int64
	InContractSum     int64
}

func (q *Queries) GetBalanceDrift(ctx context.Context) ([]GetBalanceDriftRow, error) {
	rows, err := q.db.Query(ctx, getBalanceDrift)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GetBalanceDriftRow
	for rows.Next() {
		var i GetBalanceDriftRow
		if err := rows.Scan(
			&i.ID,
			&i.AvailableBalance,
			&i.InContractBalance,
			&i.AvailableSum,
			&i.InContractSum,
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

const getEscrowLockDrift = `-- name: GetEscrowLockDrift :many
SELECT a.id,
       a.in_contract_balance,
       COALESCE(SUM(e.amount), 0)::bigint AS locked_sum
FROM accounts a
LEFT JOIN escrows e
       ON e.party_a_type = a.owner_type
      AND e.party_a_id = a.owner_id
      AND e.currency = a.currency
      AND e.status IN ('FUNDED', 'PARTY_A_CONFIRMED', 'PARTY_B_CONFIRMED', 'DISPUTED')
GROUP BY a.id
HAVING a.in_contract_balance <> COALESCE(SUM(e.amount), 0)
`

type GetEscrowLockDriftRow struct {
	ID                pgtype.UUID
	InContractBalance int64
	LockedSum         int64
}

func (q *Queries) GetEscrowLockDrift(ctx context.Context) ([]GetEscrowLockDriftRow, error) {
	rows, err := q.db.Query(ctx, getEscrowLockDrift)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GetEscrowLockDriftRow
	for rows.Next() {
		var i GetEscrowLockDriftRow
		if err := rows.Scan(&i.ID, &i.InContractBalance, &i.LockedSum); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
