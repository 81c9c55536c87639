package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ayo6706/escrow-ledger/internal/domain"
	"github.com/ayo6706/escrow-ledger/internal/models"
	"github.com/ayo6706/escrow-ledger/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// ServiceTypeCatalog reads and maintains the escrow service types.
type ServiceTypeCatalog struct {
	store QueryStore
}

func NewServiceTypeCatalog(store QueryStore) *ServiceTypeCatalog {
	return &ServiceTypeCatalog{store: store}
}

type UpsertServiceTypeInput struct {
	Code                       string
	Name                       string
	PlatformFeePercent         decimal.Decimal
	RequiresPartyAConfirmation bool
	RequiresPartyBConfirmation bool
	DefaultExpiry              time.Duration
}

func (c *ServiceTypeCatalog) Get(ctx context.Context, id uuid.UUID) (*models.ServiceType, error) {
	return c.getTx(ctx, c.store.Queries(), id)
}

func (c *ServiceTypeCatalog) GetByCode(ctx context.Context, code string) (*models.ServiceType, error) {
	row, err := c.store.Queries().GetServiceTypeByCode(ctx, strings.ToLower(strings.TrimSpace(code)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrServiceTypeNotFound, code)
		}
		return nil, fmt.Errorf("get service type: %w", err)
	}
	return toServiceTypeModel(row)
}

func (c *ServiceTypeCatalog) List(ctx context.Context) ([]models.ServiceType, error) {
	rows, err := c.store.Queries().ListServiceTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list service types: %w", err)
	}
	out := make([]models.ServiceType, 0, len(rows))
	for _, row := range rows {
		st, err := toServiceTypeModel(row)
		if err != nil {
			return nil, err
		}
		out = append(out, *st)
	}
	return out, nil
}

// Upsert creates or replaces a service type by code. Escrows already created
// keep the fee and confirmation rules they were created with.
func (c *ServiceTypeCatalog) Upsert(ctx context.Context, in UpsertServiceTypeInput) (*models.ServiceType, error) {
	code := strings.ToLower(strings.TrimSpace(in.Code))
	if code == "" {
		return nil, fmt.Errorf("%w: service type code is required", domain.ErrInvalidRequest)
	}
	if in.PlatformFeePercent.IsNegative() || in.PlatformFeePercent.GreaterThan(decimal.NewFromInt(100)) {
		return nil, fmt.Errorf("%w: platform fee percent must be within [0, 100]", domain.ErrInvalidAmount)
	}
	if in.DefaultExpiry < 0 {
		return nil, fmt.Errorf("%w: default expiry cannot be negative", domain.ErrInvalidRequest)
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = code
	}

	row, err := c.store.Queries().UpsertServiceType(ctx, repository.UpsertServiceTypeParams{
		Code:                       code,
		Name:                       name,
		PlatformFeePercent:         in.PlatformFeePercent.StringFixed(2),
		RequiresPartyAConfirmation: in.RequiresPartyAConfirmation,
		RequiresPartyBConfirmation: in.RequiresPartyBConfirmation,
		DefaultExpiryHours:         int32(in.DefaultExpiry / time.Hour),
	})
	if err != nil {
		return nil, fmt.Errorf("upsert service type: %w", err)
	}
	return toServiceTypeModel(row)
}

func (c *ServiceTypeCatalog) getTx(ctx context.Context, qtx *repository.Queries, id uuid.UUID) (*models.ServiceType, error) {
	row, err := qtx.GetServiceType(ctx, repository.ToPgUUID(id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrServiceTypeNotFound, id)
		}
		return nil, fmt.Errorf("get service type: %w", err)
	}
	return toServiceTypeModel(row)
}

func toServiceTypeModel(row repository.ServiceType) (*models.ServiceType, error) {
	pct, err := decimal.NewFromString(row.PlatformFeePercent)
	if err != nil {
		return nil, fmt.Errorf("parse platform fee percent %q: %w", row.PlatformFeePercent, err)
	}
	return &models.ServiceType{
		ID:                         repository.FromPgUUID(row.ID),
		Code:                       row.Code,
		Name:                       row.Name,
		PlatformFeePercent:         pct,
		RequiresPartyAConfirmation: row.RequiresPartyAConfirmation,
		RequiresPartyBConfirmation: row.RequiresPartyBConfirmation,
		DefaultExpiry:              time.Duration(row.DefaultExpiryHours) * time.Hour,
	}, nil
}
