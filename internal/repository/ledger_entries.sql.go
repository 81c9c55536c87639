package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const ledgerEntryColumns = `id, account_id, amount, bucket, entry_type, reference_type, reference_id, description, created_at`

func scanLedgerEntry(row interface{ Scan(...any) error }) (LedgerEntry, error) {
	var i LedgerEntry
	err := row.Scan(
		&i.ID,
		&i.AccountID,
		&i.Amount,
		&i.Bucket,
		&i.EntryType,
		&i.ReferenceType,
		&i.ReferenceID,
		&i.Description,
		&i.CreatedAt,
	)
	return i, err
}

const insertLedgerEntry = `-- name: InsertLedgerEntry :one
INSERT INTO ledger_entries (id, account_id, amount, bucket, entry_type, reference_type, reference_id, description)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + ledgerEntryColumns

type InsertLedgerEntryParams struct {
	ID            pgtype.UUID
	AccountID     pgtype.UUID
	Amount        int64
	Bucket        string
	EntryType     string
	ReferenceType string
	ReferenceID   string
	Description   string
}

func (q *Queries) InsertLedgerEntry(ctx context.Context, arg InsertLedgerEntryParams) (LedgerEntry, error) {
	row := q.db.QueryRow(ctx, insertLedgerEntry,
		arg.ID,
		arg.AccountID,
		arg.Amount,
		arg.Bucket,
		arg.EntryType,
		arg.ReferenceType,
		arg.ReferenceID,
		arg.Description,
	)
	return scanLedgerEntry(row)
}

const listLedgerEntries = `-- name: ListLedgerEntries :many
SELECT ` + ledgerEntryColumns + `
FROM ledger_entries
WHERE account_id = $1
ORDER BY seq DESC
LIMIT $2 OFFSET $3
`

type ListLedgerEntriesParams struct {
	AccountID pgtype.UUID
	Limit     int32
	Offset    int32
}

func (q *Queries) ListLedgerEntries(ctx context.Context, arg ListLedgerEntriesParams) ([]LedgerEntry, error) {
	return q.queryLedgerEntries(ctx, listLedgerEntries, arg.AccountID, arg.Limit, arg.Offset)
}

const listLedgerEntriesByReference = `-- name: ListLedgerEntriesByReference :many
SELECT ` + ledgerEntryColumns + `
FROM ledger_entries
WHERE reference_type = $1 AND reference_id = $2
ORDER BY seq
`

type ReferenceParams struct {
	ReferenceType string
	ReferenceID   string
}

func (q *Queries) ListLedgerEntriesByReference(ctx context.Context, arg ReferenceParams) ([]LedgerEntry, error) {
	return q.queryLedgerEntries(ctx, listLedgerEntriesByReference, arg.ReferenceType, arg.ReferenceID)
}

const getDepositByReference = `-- name: GetDepositByReference :one
SELECT ` + ledgerEntryColumns + `
FROM ledger_entries
WHERE reference_type = $1 AND reference_id = $2 AND entry_type = 'DEPOSIT'
`

func (q *Queries) GetDepositByReference(ctx context.Context, arg ReferenceParams) (LedgerEntry, error) {
	return scanLedgerEntry(q.db.QueryRow(ctx, getDepositByReference, arg.ReferenceType, arg.ReferenceID))
}

func (q *Queries) queryLedgerEntries(ctx context.Context, query string, args ...interface{}) ([]LedgerEntry, error) {
	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []LedgerEntry
	for rows.Next() {
		i, err := scanLedgerEntry(rows)
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
