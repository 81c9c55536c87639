package service

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/ayo6706/escrow-ledger/internal/db"
	"github.com/ayo6706/escrow-ledger/internal/domain"
	"github.com/ayo6706/escrow-ledger/internal/models"
	"github.com/ayo6706/escrow-ledger/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/require"
)

func init() {
	_ = godotenv.Load("../../.env")
}

// setupTestDB migrates the database behind DATABASE_URL and empties every
// mutable table. Service types keep their seeded rows.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	connString := os.Getenv("DATABASE_URL")
	if connString == "" {
		t.Skip("Skipping integration test: DATABASE_URL not set")
	}
	require.NoError(t, db.Migrate(connString))

	pool, err := db.Connect(context.Background(), connString, db.PoolOptions{})
	if err != nil {
		t.Fatalf("Failed to connect to DB: %v", err)
	}

	if _, err := pool.Exec(context.Background(),
		"TRUNCATE TABLE escrow_events, escrows, ledger_entries, withdrawals, idempotency_keys, accounts CASCADE",
	); err != nil {
		t.Fatalf("Failed to truncate tables: %v", err)
	}
	return pool
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.EscrowEvent
}

func (p *recordingPublisher) PublishEscrowEvent(_ context.Context, _ models.Escrow, event models.EscrowEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) eventTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, evt := range p.events {
		out = append(out, evt.EventType)
	}
	return out
}

type testEnv struct {
	pool      *pgxpool.Pool
	store     *repository.Store
	ledger    *LedgerService
	catalog   *ServiceTypeCatalog
	escrows   *EscrowService
	publisher *recordingPublisher
	now       time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	pool := setupTestDB(t)
	t.Cleanup(pool.Close)

	store := repository.NewStore(pool).WithLockTimeout(2 * time.Second)
	ledger := NewLedgerService(store)
	catalog := NewServiceTypeCatalog(store)
	publisher := &recordingPublisher{}
	env := &testEnv{
		pool:      pool,
		store:     store,
		ledger:    ledger,
		catalog:   catalog,
		publisher: publisher,
		now:       time.Now().UTC().Truncate(time.Second),
	}
	env.escrows = NewEscrowService(store, ledger, catalog, publisher).WithClock(func() time.Time { return env.now })
	return env
}

func newUser() domain.Actor {
	return domain.Actor{UserID: uuid.New()}
}

// deposit credits cents to the actor's own account.
func (e *testEnv) deposit(t *testing.T, actor domain.Actor, cents int64) *models.Account {
	t.Helper()
	ctx := context.Background()
	account, err := e.ledger.GetOrCreateAccount(ctx, actor.Owner(), domain.CurrencyUSD)
	require.NoError(t, err)
	_, err = e.ledger.Deposit(ctx, DepositRequest{
		AccountID:     account.ID,
		Amount:        cents,
		ReferenceType: "test",
		ReferenceID:   uuid.NewString(),
		Description:   "test funding",
	})
	require.NoError(t, err)
	return account
}

func (e *testEnv) balances(t *testing.T, owner domain.OwnerRef) (int64, int64) {
	t.Helper()
	account, err := e.ledger.GetAccountByOwner(context.Background(), owner, domain.CurrencyUSD)
	require.NoError(t, err)
	return account.AvailableBalance, account.InContractBalance
}

func (e *testEnv) entriesFor(t *testing.T, referenceType, referenceID string) []repository.LedgerEntry {
	t.Helper()
	rows, err := e.store.Queries().ListLedgerEntriesByReference(context.Background(), repository.ReferenceParams{
		ReferenceType: referenceType,
		ReferenceID:   referenceID,
	})
	require.NoError(t, err)
	return rows
}

// fundedEscrow opens a freelance escrow from payer to payee and funds it.
func (e *testEnv) fundedEscrow(t *testing.T, payer, payee domain.Actor, cents int64) *models.Escrow {
	t.Helper()
	ctx := context.Background()
	esc, err := e.escrows.CreateEscrow(ctx, payer, CreateEscrowInput{
		ServiceTypeCode: "freelance",
		Amount:          cents,
		Counterparty:    payee.Owner(),
	})
	require.NoError(t, err)
	esc, err = e.escrows.FundEscrow(ctx, payer, esc.ID)
	require.NoError(t, err)
	return esc
}
