package service

import (
	"context"
	"testing"
	"time"

	"github.com/ayo6706/escrow-ledger/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceTypeCatalogSeeds(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	freelance, err := env.catalog.GetByCode(ctx, " Freelance ")
	require.NoError(t, err)
	assert.True(t, freelance.PlatformFeePercent.Equal(decimal.NewFromInt(15)))
	assert.True(t, freelance.RequiresPartyAConfirmation)
	assert.True(t, freelance.RequiresPartyBConfirmation)
	assert.Equal(t, 720*time.Hour, freelance.DefaultExpiry)

	byID, err := env.catalog.Get(ctx, freelance.ID)
	require.NoError(t, err)
	assert.Equal(t, "freelance", byID.Code)

	all, err := env.catalog.List(ctx)
	require.NoError(t, err)
	codes := make([]string, 0, len(all))
	for _, st := range all {
		codes = append(codes, st.Code)
	}
	assert.Subset(t, codes, []string{"freelance", "goods", "rental"})

	_, err = env.catalog.GetByCode(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrServiceTypeNotFound)
	_, err = env.catalog.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrServiceTypeNotFound)
}

func TestServiceTypeUpsert(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	code := "consulting-" + uuid.NewString()[:8]

	created, err := env.catalog.Upsert(ctx, UpsertServiceTypeInput{
		Code:                       code,
		PlatformFeePercent:         decimal.RequireFromString("2.5"),
		RequiresPartyAConfirmation: true,
		DefaultExpiry:              48 * time.Hour,
	})
	require.NoError(t, err)
	assert.Equal(t, code, created.Name)
	assert.Equal(t, "2.5", created.PlatformFeePercent.String())

	updated, err := env.catalog.Upsert(ctx, UpsertServiceTypeInput{
		Code:               code,
		Name:               "Consulting",
		PlatformFeePercent: decimal.NewFromInt(3),
	})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "Consulting", updated.Name)
	assert.False(t, updated.RequiresPartyAConfirmation)

	cases := []struct {
		name string
		in   UpsertServiceTypeInput
		want error
	}{
		{name: "missing_code", in: UpsertServiceTypeInput{}, want: domain.ErrInvalidRequest},
		{name: "negative_fee", in: UpsertServiceTypeInput{Code: code, PlatformFeePercent: decimal.NewFromInt(-1)}, want: domain.ErrInvalidAmount},
		{name: "fee_above_100", in: UpsertServiceTypeInput{Code: code, PlatformFeePercent: decimal.NewFromInt(101)}, want: domain.ErrInvalidAmount},
		{name: "negative_expiry", in: UpsertServiceTypeInput{Code: code, DefaultExpiry: -time.Hour}, want: domain.ErrInvalidRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.catalog.Upsert(ctx, tc.in)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}
