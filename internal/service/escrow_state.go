package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/ayo6706/escrow-ledger/internal/domain"
	"github.com/ayo6706/escrow-ledger/internal/models"
	"github.com/ayo6706/escrow-ledger/internal/repository"
)

// Escrow lifecycle actions.
const (
	ActionPost      = "post"
	ActionPostBound = "post_bound"
	ActionAccept    = "accept"
	ActionFund      = "fund"
	ActionConfirmA  = "confirm_a"
	ActionConfirmB  = "confirm_b"
	ActionComplete  = "complete"
	ActionCancel    = "cancel"
	ActionExpire    = "expire"
	ActionDispute   = "dispute"
)

// escrowTransitions maps status -> action -> next status. Terminal statuses
// have no outgoing actions.
var escrowTransitions = map[string]map[string]string{
	domain.EscrowStatusCreated: {
		ActionPost:      domain.EscrowStatusPendingAcceptance,
		ActionPostBound: domain.EscrowStatusPendingFunding,
		ActionCancel:    domain.EscrowStatusCanceled,
	},
	domain.EscrowStatusPendingAcceptance: {
		ActionAccept: domain.EscrowStatusPendingFunding,
		ActionCancel: domain.EscrowStatusCanceled,
	},
	domain.EscrowStatusPendingFunding: {
		ActionFund:   domain.EscrowStatusFunded,
		ActionCancel: domain.EscrowStatusCanceled,
		ActionExpire: domain.EscrowStatusExpired,
	},
	domain.EscrowStatusFunded: {
		ActionConfirmA: domain.EscrowStatusPartyAConfirmed,
		ActionConfirmB: domain.EscrowStatusPartyBConfirmed,
		ActionComplete: domain.EscrowStatusCompleted,
		ActionCancel:   domain.EscrowStatusCanceled,
		ActionExpire:   domain.EscrowStatusExpired,
		ActionDispute:  domain.EscrowStatusDisputed,
	},
	domain.EscrowStatusPartyBConfirmed: {
		ActionConfirmA: domain.EscrowStatusPartyAConfirmed,
		ActionComplete: domain.EscrowStatusCompleted,
		ActionCancel:   domain.EscrowStatusCanceled,
		ActionDispute:  domain.EscrowStatusDisputed,
	},
	domain.EscrowStatusPartyAConfirmed: {
		ActionConfirmB: domain.EscrowStatusPartyBConfirmed,
		ActionComplete: domain.EscrowStatusCompleted,
		ActionCancel:   domain.EscrowStatusCanceled,
		ActionDispute:  domain.EscrowStatusDisputed,
	},
	domain.EscrowStatusCompleted: {},
	domain.EscrowStatusCanceled:  {},
	domain.EscrowStatusExpired:   {},
	domain.EscrowStatusDisputed:  {},
}

var actionEventTypes = map[string]string{
	ActionPost:      domain.EscrowEventPosted,
	ActionPostBound: domain.EscrowEventPosted,
	ActionAccept:    domain.EscrowEventAccepted,
	ActionFund:      domain.EscrowEventFunded,
	ActionConfirmA:  domain.EscrowEventConfirmedA,
	ActionConfirmB:  domain.EscrowEventConfirmedB,
	ActionComplete:  domain.EscrowEventCompleted,
	ActionCancel:    domain.EscrowEventCanceled,
	ActionExpire:    domain.EscrowEventExpired,
	ActionDispute:   domain.EscrowEventDisputed,
}

func normalizeStatus(status string) string {
	return strings.ToUpper(strings.TrimSpace(status))
}

// nextStatus resolves the status an action leads to, or a *domain.TransitionError.
func nextStatus(current, action string) (string, error) {
	current = normalizeStatus(current)
	next, ok := escrowTransitions[current][action]
	if !ok {
		return "", &domain.TransitionError{From: current, Action: action}
	}
	return next, nil
}

func canApply(current, action string) bool {
	_, err := nextStatus(current, action)
	return err == nil
}

// IsTerminalStatus reports whether no further action can leave status.
func IsTerminalStatus(status string) bool {
	next, ok := escrowTransitions[normalizeStatus(status)]
	return ok && len(next) == 0
}

// isLockedStatus reports whether the escrow amount sits in party A's
// in_contract bucket while the escrow is in status.
func isLockedStatus(status string) bool {
	switch normalizeStatus(status) {
	case domain.EscrowStatusFunded,
		domain.EscrowStatusPartyAConfirmed,
		domain.EscrowStatusPartyBConfirmed,
		domain.EscrowStatusDisputed:
		return true
	default:
		return false
	}
}

// transitionEscrow validates action against esc's current status, persists
// the new state guarded on the old one and appends the matching event.
// Callers set any timestamp or party fields on esc beforehand.
func transitionEscrow(ctx context.Context, qtx *repository.Queries, events *EscrowEventWriter, esc *models.Escrow, action string, actor domain.Actor, details map[string]any) (models.EscrowEvent, error) {
	prev := esc.Status
	next, err := nextStatus(prev, action)
	if err != nil {
		return models.EscrowEvent{}, err
	}

	params := repository.UpdateEscrowStateParams{
		ID:                repository.ToPgUUID(esc.ID),
		ExpectedStatus:    prev,
		Status:            next,
		PlatformFee:       esc.PlatformFee,
		PartyAConfirmedAt: repository.NullableTimestamptz(esc.PartyAConfirmedAt),
		PartyBConfirmedAt: repository.NullableTimestamptz(esc.PartyBConfirmedAt),
		FundedAt:          repository.NullableTimestamptz(esc.FundedAt),
		CompletedAt:       repository.NullableTimestamptz(esc.CompletedAt),
		CanceledAt:        repository.NullableTimestamptz(esc.CanceledAt),
	}
	if !esc.PartyB.IsZero() {
		partyBType := esc.PartyB.Type()
		params.PartyBType = &partyBType
		params.PartyBID = repository.ToPgUUID(esc.PartyB.ID())
	}

	rows, err := qtx.UpdateEscrowState(ctx, params)
	if err != nil {
		return models.EscrowEvent{}, fmt.Errorf("update escrow state: %w", err)
	}
	if rows == 0 {
		return models.EscrowEvent{}, fmt.Errorf("%w: escrow %s left %s", domain.ErrConcurrentModification, esc.ID, prev)
	}
	if err := requireExactlyOne(rows, "update escrow state"); err != nil {
		return models.EscrowEvent{}, err
	}
	esc.Status = next

	return events.Write(ctx, qtx, esc.ID, actor, actionEventTypes[action], prev, next, details)
}
