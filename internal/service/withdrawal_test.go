package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ayo6706/escrow-ledger/internal/domain"
	"github.com/ayo6706/escrow-ledger/internal/gateway"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGateway struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (g *stubGateway) SendWithdrawal(_ context.Context, _ string, _ int64, _ string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	return "STUB-REF", nil
}

func TestWithdrawalCompletes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	gw := &stubGateway{}
	svc := NewWithdrawalService(env.store, env.ledger, gw)
	user := newUser()
	env.deposit(t, user, 10_000)

	wd, created, err := svc.RequestWithdrawal(ctx, user, RequestWithdrawalInput{
		Amount:      4_000,
		Destination: "acct_123",
		ReferenceID: "wd-1",
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, domain.WithdrawalStatusPending, wd.Status)

	available, _ := env.balances(t, user.Owner())
	assert.Equal(t, int64(6_000), available, "funds leave available on request")

	require.NoError(t, svc.ProcessWithdrawals(ctx, 10))
	assert.Equal(t, 1, gw.calls)

	done, err := svc.GetWithdrawal(ctx, user, wd.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalStatusCompleted, done.Status)
	require.NotNil(t, done.GatewayRef)
	assert.Equal(t, "STUB-REF", *done.GatewayRef)

	available, _ = env.balances(t, user.Owner())
	assert.Equal(t, int64(6_000), available)
}

func TestWithdrawalFailureRefunds(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	gw := &stubGateway{err: gateway.ErrRejected}
	svc := NewWithdrawalService(env.store, env.ledger, gw)
	user := newUser()
	env.deposit(t, user, 10_000)

	wd, _, err := svc.RequestWithdrawal(ctx, user, RequestWithdrawalInput{
		Amount:      10_000,
		Destination: "acct_123",
		ReferenceID: "wd-2",
	})
	require.NoError(t, err)

	require.NoError(t, svc.ProcessWithdrawals(ctx, 10))

	failed, err := svc.GetWithdrawal(ctx, user, wd.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalStatusFailed, failed.Status)

	available, _ := env.balances(t, user.Owner())
	assert.Equal(t, int64(10_000), available)

	types := map[string]int64{}
	for _, e := range env.entriesFor(t, domain.ReferenceTypeWithdrawal, wd.ID.String()) {
		types[e.EntryType] += e.Amount
	}
	assert.Equal(t, int64(-10_000), types[domain.EntryTypeWithdraw])
	assert.Equal(t, int64(10_000), types[domain.EntryTypeRefund])

	require.NoError(t, svc.ProcessWithdrawals(ctx, 10))
	assert.Equal(t, 1, gw.calls, "failed withdrawals are not retried")
}

func TestWithdrawalValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := NewWithdrawalService(env.store, env.ledger, &stubGateway{})
	user := newUser()
	env.deposit(t, user, 1_000)

	cases := []struct {
		name  string
		actor domain.Actor
		in    RequestWithdrawalInput
		want  error
	}{
		{name: "system_actor", actor: domain.SystemActor, in: RequestWithdrawalInput{Amount: 100, Destination: "d", ReferenceID: "r1"}, want: domain.ErrPermissionDenied},
		{name: "zero_amount", actor: user, in: RequestWithdrawalInput{Amount: 0, Destination: "d", ReferenceID: "r2"}, want: domain.ErrInvalidAmount},
		{name: "missing_reference", actor: user, in: RequestWithdrawalInput{Amount: 100, Destination: "d"}, want: domain.ErrInvalidRequest},
		{name: "missing_destination", actor: user, in: RequestWithdrawalInput{Amount: 100, ReferenceID: "r3"}, want: domain.ErrInvalidRequest},
		{name: "currency", actor: user, in: RequestWithdrawalInput{Amount: 100, Currency: "EUR", Destination: "d", ReferenceID: "r4"}, want: domain.ErrUnsupportedCurrency},
		{name: "insufficient", actor: user, in: RequestWithdrawalInput{Amount: 1_001, Destination: "d", ReferenceID: "r5"}, want: domain.ErrInsufficientBalance},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := svc.RequestWithdrawal(ctx, tc.actor, tc.in)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	available, _ := env.balances(t, user.Owner())
	assert.Equal(t, int64(1_000), available)
}

func TestWithdrawalReferenceReuse(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := NewWithdrawalService(env.store, env.ledger, &stubGateway{})
	user := newUser()
	env.deposit(t, user, 5_000)
	in := RequestWithdrawalInput{Amount: 1_000, Destination: "acct_9", ReferenceID: "wd-3"}

	first, created, err := svc.RequestWithdrawal(ctx, user, in)
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := svc.RequestWithdrawal(ctx, user, in)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	in.Amount = 2_000
	_, _, err = svc.RequestWithdrawal(ctx, user, in)
	assert.ErrorIs(t, err, domain.ErrDuplicateReference)

	available, _ := env.balances(t, user.Owner())
	assert.Equal(t, int64(4_000), available, "only the first request debits")
}

func TestGetWithdrawalPermissions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := NewWithdrawalService(env.store, env.ledger, &stubGateway{})
	user := newUser()
	env.deposit(t, user, 5_000)

	wd, _, err := svc.RequestWithdrawal(ctx, user, RequestWithdrawalInput{Amount: 500, Destination: "d", ReferenceID: "wd-4"})
	require.NoError(t, err)

	_, err = svc.GetWithdrawal(ctx, newUser(), wd.ID)
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	_, err = svc.GetWithdrawal(ctx, domain.Actor{UserID: uuid.New(), IsAdmin: true}, wd.ID)
	assert.NoError(t, err)

	_, err = svc.GetWithdrawal(ctx, user, uuid.New())
	assert.True(t, errors.Is(err, domain.ErrWithdrawalNotFound))
}
