package service

import (
	"testing"
	"time"

	"github.com/ayo6706/escrow-ledger/internal/domain"
	"github.com/ayo6706/escrow-ledger/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextStatus(t *testing.T) {
	cases := []struct {
		from   string
		action string
		want   string
	}{
		{domain.EscrowStatusCreated, ActionPost, domain.EscrowStatusPendingAcceptance},
		{domain.EscrowStatusCreated, ActionPostBound, domain.EscrowStatusPendingFunding},
		{domain.EscrowStatusPendingAcceptance, ActionAccept, domain.EscrowStatusPendingFunding},
		{domain.EscrowStatusPendingFunding, ActionFund, domain.EscrowStatusFunded},
		{domain.EscrowStatusPendingFunding, ActionExpire, domain.EscrowStatusExpired},
		{domain.EscrowStatusFunded, ActionConfirmA, domain.EscrowStatusPartyAConfirmed},
		{domain.EscrowStatusFunded, ActionConfirmB, domain.EscrowStatusPartyBConfirmed},
		{domain.EscrowStatusFunded, ActionDispute, domain.EscrowStatusDisputed},
		{domain.EscrowStatusFunded, ActionExpire, domain.EscrowStatusExpired},
		{domain.EscrowStatusPartyBConfirmed, ActionConfirmA, domain.EscrowStatusPartyAConfirmed},
		{domain.EscrowStatusPartyAConfirmed, ActionConfirmB, domain.EscrowStatusPartyBConfirmed},
		{domain.EscrowStatusPartyAConfirmed, ActionComplete, domain.EscrowStatusCompleted},
		{domain.EscrowStatusPartyBConfirmed, ActionCancel, domain.EscrowStatusCanceled},
		{" funded ", ActionCancel, domain.EscrowStatusCanceled},
	}
	for _, tc := range cases {
		t.Run(tc.from+"_"+tc.action, func(t *testing.T) {
			got, err := nextStatus(tc.from, tc.action)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNextStatusRejectsIllegalActions(t *testing.T) {
	cases := []struct {
		from   string
		action string
	}{
		{domain.EscrowStatusCreated, ActionFund},
		{domain.EscrowStatusPendingAcceptance, ActionFund},
		{domain.EscrowStatusPendingFunding, ActionConfirmB},
		{domain.EscrowStatusPartyBConfirmed, ActionExpire},
		{domain.EscrowStatusDisputed, ActionCancel},
		{domain.EscrowStatusCompleted, ActionCancel},
		{domain.EscrowStatusExpired, ActionFund},
		{"UNKNOWN", ActionPost},
	}
	for _, tc := range cases {
		t.Run(tc.from+"_"+tc.action, func(t *testing.T) {
			_, err := nextStatus(tc.from, tc.action)
			var transitionErr *domain.TransitionError
			require.ErrorAs(t, err, &transitionErr)
			assert.Equal(t, tc.action, transitionErr.Action)
			assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)
		})
	}
}

func TestTerminalStatuses(t *testing.T) {
	for _, status := range []string{
		domain.EscrowStatusCompleted,
		domain.EscrowStatusCanceled,
		domain.EscrowStatusExpired,
		domain.EscrowStatusDisputed,
	} {
		assert.True(t, IsTerminalStatus(status), status)
	}
	assert.False(t, IsTerminalStatus(domain.EscrowStatusFunded))
	assert.False(t, IsTerminalStatus("UNKNOWN"))
}

func TestEveryActionHasEventType(t *testing.T) {
	for status, actions := range escrowTransitions {
		for action := range actions {
			assert.NotEmpty(t, actionEventTypes[action], "%s from %s", action, status)
		}
	}
}

func TestConfirmationsSatisfied(t *testing.T) {
	ts := time.Now()
	now := &ts
	cases := []struct {
		name string
		esc  models.Escrow
		want bool
	}{
		{name: "both_required_none", esc: models.Escrow{RequiresPartyAConfirmation: true, RequiresPartyBConfirmation: true}},
		{name: "both_required_b_only", esc: models.Escrow{RequiresPartyAConfirmation: true, RequiresPartyBConfirmation: true, PartyBConfirmedAt: now}},
		{name: "both_required_both", esc: models.Escrow{RequiresPartyAConfirmation: true, RequiresPartyBConfirmation: true, PartyAConfirmedAt: now, PartyBConfirmedAt: now}, want: true},
		{name: "a_required_a", esc: models.Escrow{RequiresPartyAConfirmation: true, PartyAConfirmedAt: now}, want: true},
		{name: "a_required_b", esc: models.Escrow{RequiresPartyAConfirmation: true, PartyBConfirmedAt: now}},
		{name: "none_required", esc: models.Escrow{}, want: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, confirmationsSatisfied(tc.esc))
		})
	}
}

func TestCanCancel(t *testing.T) {
	partyA, partyB := newUser(), newUser()
	esc := models.Escrow{PartyA: partyA.Owner(), PartyB: partyB.Owner()}
	admin := domain.Actor{UserID: uuid.New(), IsAdmin: true}

	assert.True(t, canCancel(esc, partyA, false))
	assert.True(t, canCancel(esc, partyB, false))
	assert.False(t, canCancel(esc, newUser(), false))

	assert.False(t, canCancel(esc, partyA, true))
	assert.True(t, canCancel(esc, partyB, true))
	assert.True(t, canCancel(esc, admin, true))

	open := models.Escrow{PartyA: partyA.Owner()}
	assert.False(t, canCancel(open, newUser(), false))
}

func TestEligibleCounterparty(t *testing.T) {
	orgID := uuid.New()
	email := "seller@example.com"

	assert.True(t, eligibleCounterparty(models.Escrow{}, newUser()))
	assert.True(t, eligibleCounterparty(models.Escrow{CounterpartyEmail: &email}, domain.Actor{UserID: uuid.New(), Email: " SELLER@example.com"}))
	assert.False(t, eligibleCounterparty(models.Escrow{CounterpartyEmail: &email}, domain.Actor{UserID: uuid.New(), Email: "other@example.com"}))
	assert.True(t, eligibleCounterparty(models.Escrow{CounterpartyOrgID: &orgID}, domain.Actor{UserID: uuid.New(), OrgID: &orgID}))
	assert.False(t, eligibleCounterparty(models.Escrow{CounterpartyOrgID: &orgID}, newUser()))
}

func TestIsLockedStatus(t *testing.T) {
	assert.True(t, isLockedStatus(domain.EscrowStatusFunded))
	assert.True(t, isLockedStatus(domain.EscrowStatusPartyAConfirmed))
	assert.True(t, isLockedStatus(domain.EscrowStatusDisputed))
	assert.False(t, isLockedStatus(domain.EscrowStatusPendingFunding))
	assert.False(t, isLockedStatus(domain.EscrowStatusCompleted))
}
