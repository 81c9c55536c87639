package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const serviceTypeColumns = `id, code, name, platform_fee_percent::text, requires_party_a_confirmation,
       requires_party_b_confirmation, default_expiry_hours, created_at`

func scanServiceType(row interface{ Scan(...any) error }) (ServiceType, error) {
	var i ServiceType
	err := row.Scan(
		&i.ID,
		&i.Code,
		&i.Name,
		&i.PlatformFeePercent,
		&i.RequiresPartyAConfirmation,
		&i.RequiresPartyBConfirmation,
		&i.DefaultExpiryHours,
		&i.CreatedAt,
	)
	return i, err
}

const getServiceType = `-- name: GetServiceType :one
SELECT ` + serviceTypeColumns + `
FROM service_types
WHERE id = $1
`

func (q *Queries) GetServiceType(ctx context.Context, id pgtype.UUID) (ServiceType, error) {
	return scanServiceType(q.db.QueryRow(ctx, getServiceType, id))
}

const getServiceTypeByCode = `-- name: GetServiceTypeByCode :one
SELECT ` + serviceTypeColumns + `
FROM service_types
WHERE code = $1
`

func (q *Queries) GetServiceTypeByCode(ctx context.Context, code string) (ServiceType, error) {
	return scanServiceType(q.db.QueryRow(ctx, getServiceTypeByCode, code))
}

const listServiceTypes = `-- name: ListServiceTypes :many
SELECT ` + serviceTypeColumns + `
FROM service_types
ORDER BY code
`

func (q *Queries) ListServiceTypes(ctx context.Context) ([]ServiceType, error) {
	rows, err := q.db.Query(ctx, listServiceTypes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ServiceType
	for rows.Next() {
		i, err := scanServiceType(rows)
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

const upsertServiceType = `-- name: UpsertServiceType :one
INSERT INTO service_types (code, name, platform_fee_percent, requires_party_a_confirmation, requires_party_b_confirmation, default_expiry_hours)
VALUES ($1, $2, $3::text::numeric, $4, $5, $6)
ON CONFLICT (code) DO UPDATE
SET name = EXCLUDED.name,
    platform_fee_percent = EXCLUDED.platform_fee_percent,
    requires_party_a_confirmation = EXCLUDED.requires_party_a_confirmation,
    requires_party_b_confirmation = EXCLUDED.requires_party_b_confirmation,
    default_expiry_hours = EXCLUDED.default_expiry_hours
RETURNING ` + serviceTypeColumns

type UpsertServiceTypeParams struct {
	Code                       string
	Name                       string
	PlatformFeePercent         string
	RequiresPartyAConfirmation bool
	RequiresPartyBConfirmation bool
	DefaultExpiryHours         int32
}

func (q *Queries) UpsertServiceType(ctx context.Context, arg UpsertServiceTypeParams) (ServiceType, error) {
	row := q.db.QueryRow(ctx, upsertServiceType,
		arg.Code,
		arg.Name,
		arg.PlatformFeePercent,
		arg.RequiresPartyAConfirmation,
		arg.RequiresPartyBConfirmation,
		arg.DefaultExpiryHours,
	)
	return scanServiceType(row)
}
