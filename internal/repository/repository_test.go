package repository

import (
	"context"
	"os"
	"testing"

	"github.com/ayo6706/escrow-ledger/internal/db"
	"github.com/ayo6706/escrow-ledger/internal/domain"
	"github.com/ayo6706/escrow-ledger/internal/testutil/dblock"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	_ = godotenv.Load("../../.env") // Load from root
}

func TestAccountGetOrCreateAndImmutableEntries(t *testing.T) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("Skipping integration test: DATABASE_URL not set")
	}
	release := dblock.Acquire(dbURL)
	defer release()

	require.NoError(t, db.Migrate(dbURL))
	pool, err := db.Connect(context.Background(), dbURL, db.PoolOptions{})
	require.NoError(t, err)
	defer pool.Close()

	ctx := context.Background()
	store := NewStore(pool)
	owner := OwnerParams{
		OwnerType: domain.OwnerTypeUser,
		OwnerID:   ToPgUUID(uuid.New()),
		Currency:  domain.CurrencyUSD,
	}

	var first, second Account
	require.NoError(t, store.RunInTx(ctx, func(q *Queries) error {
		if err := q.InsertAccountIfMissing(ctx, owner); err != nil {
			return err
		}
		first, err = q.GetAccountByOwner(ctx, owner)
		return err
	}))
	require.NoError(t, store.Queries().InsertAccountIfMissing(ctx, owner))
	second, err = store.Queries().GetAccountByOwner(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(0), second.AvailableBalance)

	rows, err := store.Queries().ApplyBalanceDelta(ctx, ApplyBalanceDeltaParams{ID: first.ID, AvailableDelta: -1})
	require.NoError(t, err)
	assert.Equal(t, int64(0), rows, "guarded update must refuse a negative bucket")

	entry, err := store.Queries().InsertLedgerEntry(ctx, InsertLedgerEntryParams{
		ID:            ToPgUUID(uuid.New()),
		AccountID:     first.ID,
		Amount:        500,
		Bucket:        domain.BucketAvailable,
		EntryType:     domain.EntryTypeDeposit,
		ReferenceType: "test",
		ReferenceID:   uuid.NewString(),
	})
	require.NoError(t, err)

	_, err = pool.Exec(ctx, "UPDATE ledger_entries SET amount = 1 WHERE id = $1", entry.ID)
	require.Error(t, err)
	_, err = pool.Exec(ctx, "DELETE FROM ledger_entries WHERE id = $1", entry.ID)
	require.Error(t, err)

	_, err = store.Queries().InsertLedgerEntry(ctx, InsertLedgerEntryParams{
		ID:            ToPgUUID(uuid.New()),
		AccountID:     first.ID,
		Amount:        500,
		Bucket:        domain.BucketAvailable,
		EntryType:     domain.EntryTypeDeposit,
		ReferenceType: entry.ReferenceType,
		ReferenceID:   entry.ReferenceID,
	})
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err, "uq_ledger_entries_deposit_reference"))
}
