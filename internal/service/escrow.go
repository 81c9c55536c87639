package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ayo6706/escrow-ledger/internal/domain"
	"github.com/ayo6706/escrow-ledger/internal/models"
	"github.com/ayo6706/escrow-ledger/internal/observability"
	"github.com/ayo6706/escrow-ledger/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// EscrowService drives the escrow lifecycle. Every transition locks the
// escrow row, then any accounts it moves money between, and commits the
// status change, its event and its ledger effects atomically.
type EscrowService struct {
	store     QueryStore
	ledger    *LedgerService
	catalog   *ServiceTypeCatalog
	events    *EscrowEventWriter
	publisher EventPublisher
	now       func() time.Time
}

func NewEscrowService(store QueryStore, ledger *LedgerService, catalog *ServiceTypeCatalog, publisher EventPublisher) *EscrowService {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	return &EscrowService{
		store:     store,
		ledger:    ledger,
		catalog:   catalog,
		events:    NewEscrowEventWriter(),
		publisher: publisher,
		now:       time.Now,
	}
}

// WithClock overrides the time source used for lifecycle timestamps.
func (s *EscrowService) WithClock(now func() time.Time) *EscrowService {
	if now != nil {
		s.now = now
	}
	return s
}

// CreateEscrowInput describes a new escrow offered by the acting identity.
// Counterparty binds party B up front; left zero, the escrow is an open offer
// that CounterpartyEmail or CounterpartyOrgID may restrict.
type CreateEscrowInput struct {
	ServiceTypeID     uuid.UUID
	ServiceTypeCode   string
	Amount            int64
	Currency          string
	Counterparty      domain.OwnerRef
	CounterpartyEmail string
	CounterpartyOrgID *uuid.UUID
	Metadata          json.RawMessage
	ExpiresAt         *time.Time
	// Draft leaves the escrow in CREATED instead of posting it.
	Draft bool
}

type transitionFunc func(action string, actor domain.Actor, details map[string]any) error

func (s *EscrowService) CreateEscrow(ctx context.Context, actor domain.Actor, in CreateEscrowInput) (*models.Escrow, error) {
	if actor.IsSystem() {
		return nil, fmt.Errorf("%w: an identity is required to open an escrow", domain.ErrPermissionDenied)
	}
	if in.Amount <= 0 {
		return nil, fmt.Errorf("%w: escrow amount must be positive", domain.ErrInvalidAmount)
	}
	currency, err := domain.ValidateCurrency(in.Currency)
	if err != nil {
		return nil, err
	}
	partyA := actor.Owner()
	if !in.Counterparty.IsZero() && actor.Represents(in.Counterparty) {
		return nil, fmt.Errorf("%w: counterparty cannot be the creator", domain.ErrInvalidOwner)
	}
	now := s.now()
	if in.ExpiresAt != nil && !in.ExpiresAt.After(now) {
		return nil, fmt.Errorf("%w: expires_at must be in the future", domain.ErrInvalidRequest)
	}
	var metadata []byte
	if len(in.Metadata) > 0 {
		if !json.Valid(in.Metadata) {
			return nil, fmt.Errorf("%w: metadata must be valid JSON", domain.ErrInvalidRequest)
		}
		metadata = in.Metadata
	}

	serviceType, err := s.resolveServiceType(ctx, in)
	if err != nil {
		return nil, err
	}
	expiresAt := in.ExpiresAt
	if expiresAt == nil && serviceType.DefaultExpiry > 0 {
		deadline := now.Add(serviceType.DefaultExpiry)
		expiresAt = &deadline
	}

	ctx, span := observability.StartSpan(ctx, "escrow.create", attribute.String("party_a", partyA.String()))
	var (
		esc       *models.Escrow
		committed []models.EscrowEvent
	)
	err = s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		committed = committed[:0]
		if _, err := s.ledger.GetOrCreateAccountTx(ctx, qtx, partyA, currency); err != nil {
			return err
		}

		params := repository.InsertEscrowParams{
			ID:                         repository.ToPgUUID(uuid.New()),
			ServiceTypeID:              repository.ToPgUUID(serviceType.ID),
			PartyAType:                 partyA.Type(),
			PartyAID:                   repository.ToPgUUID(partyA.ID()),
			CounterpartyOrgID:          repository.NullablePgUUID(in.CounterpartyOrgID),
			Status:                     domain.EscrowStatusCreated,
			Amount:                     in.Amount,
			Currency:                   currency,
			PlatformFeePercent:         serviceType.PlatformFeePercent.StringFixed(2),
			RequiresPartyAConfirmation: serviceType.RequiresPartyAConfirmation,
			RequiresPartyBConfirmation: serviceType.RequiresPartyBConfirmation,
			Metadata:                   metadata,
			ExpiresAt:                  repository.NullableTimestamptz(expiresAt),
		}
		if email := strings.TrimSpace(in.CounterpartyEmail); email != "" {
			params.CounterpartyEmail = &email
		}
		if !in.Counterparty.IsZero() {
			if _, err := s.ledger.GetOrCreateAccountTx(ctx, qtx, in.Counterparty, currency); err != nil {
				return err
			}
			partyBType := in.Counterparty.Type()
			params.PartyBType = &partyBType
			params.PartyBID = repository.ToPgUUID(in.Counterparty.ID())
		}

		row, err := qtx.InsertEscrow(ctx, params)
		if err != nil {
			return fmt.Errorf("insert escrow: %w", err)
		}
		esc, err = toEscrowModel(row)
		if err != nil {
			return err
		}

		created, err := s.events.Write(ctx, qtx, esc.ID, actor, domain.EscrowEventCreated, "", esc.Status, map[string]any{
			"amount":       domain.FormatAmount(esc.Amount),
			"service_type": serviceType.Code,
		})
		if err != nil {
			return err
		}
		committed = append(committed, created)

		if in.Draft {
			return nil
		}
		evt, err := transitionEscrow(ctx, qtx, s.events, esc, postAction(esc), actor, nil)
		if err != nil {
			return err
		}
		committed = append(committed, evt)
		return nil
	})
	observability.EndSpan(span, err)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, esc, committed)
	return esc, nil
}

// PostEscrow publishes a draft: open offers await acceptance, bound escrows
// go straight to funding.
func (s *EscrowService) PostEscrow(ctx context.Context, actor domain.Actor, escrowID uuid.UUID) (*models.Escrow, error) {
	return s.mutate(ctx, "post", escrowID, func(qtx *repository.Queries, esc *models.Escrow, transition transitionFunc) error {
		if !actor.Represents(esc.PartyA) {
			return fmt.Errorf("%w: only the creator can post an escrow", domain.ErrPermissionDenied)
		}
		return transition(postAction(esc), actor, nil)
	})
}

// AcceptEscrow binds the acting identity as party B of an open offer.
func (s *EscrowService) AcceptEscrow(ctx context.Context, actor domain.Actor, escrowID uuid.UUID) (*models.Escrow, error) {
	return s.mutate(ctx, "accept", escrowID, func(qtx *repository.Queries, esc *models.Escrow, transition transitionFunc) error {
		if _, err := nextStatus(esc.Status, ActionAccept); err != nil {
			return err
		}
		if actor.IsSystem() || actor.Represents(esc.PartyA) {
			return fmt.Errorf("%w: the creator cannot accept their own escrow", domain.ErrPermissionDenied)
		}
		if !eligibleCounterparty(*esc, actor) {
			return fmt.Errorf("%w: escrow is restricted to another counterparty", domain.ErrPermissionDenied)
		}

		esc.PartyB = actor.Owner()
		if _, err := s.ledger.GetOrCreateAccountTx(ctx, qtx, esc.PartyB, esc.Currency); err != nil {
			return err
		}
		return transition(ActionAccept, actor, map[string]any{"party_b": esc.PartyB.String()})
	})
}

// FundEscrow locks the escrow amount in party A's account. With insufficient
// available funds nothing changes and ErrInsufficientBalance is returned.
func (s *EscrowService) FundEscrow(ctx context.Context, actor domain.Actor, escrowID uuid.UUID) (*models.Escrow, error) {
	return s.mutate(ctx, "fund", escrowID, func(qtx *repository.Queries, esc *models.Escrow, transition transitionFunc) error {
		if !actor.Represents(esc.PartyA) {
			return fmt.Errorf("%w: only party A can fund an escrow", domain.ErrPermissionDenied)
		}
		if _, err := nextStatus(esc.Status, ActionFund); err != nil {
			return err
		}

		account, err := s.ledger.GetOrCreateAccountTx(ctx, qtx, esc.PartyA, esc.Currency)
		if err != nil {
			return err
		}
		if err := s.ledger.LockForEscrowTx(ctx, qtx, repository.FromPgUUID(account.ID), esc.Amount, esc.ID); err != nil {
			return err
		}
		fundedAt := s.now()
		esc.FundedAt = &fundedAt
		return transition(ActionFund, actor, map[string]any{"amount": domain.FormatAmount(esc.Amount)})
	})
}

// ConfirmEscrow records the acting party's confirmation. Repeating a
// confirmation is a no-op. Once every confirmation the service type requires
// is present the escrow completes and the funds are released in the same
// transaction.
func (s *EscrowService) ConfirmEscrow(ctx context.Context, actor domain.Actor, escrowID uuid.UUID) (*models.Escrow, error) {
	return s.mutate(ctx, "confirm", escrowID, func(qtx *repository.Queries, esc *models.Escrow, transition transitionFunc) error {
		now := s.now()
		switch {
		case actor.Represents(esc.PartyA):
			if esc.PartyAConfirmedAt != nil {
				return nil
			}
			esc.PartyAConfirmedAt = &now
			if err := transition(ActionConfirmA, actor, nil); err != nil {
				return err
			}
		case !esc.PartyB.IsZero() && actor.Represents(esc.PartyB):
			if esc.PartyBConfirmedAt != nil {
				return nil
			}
			esc.PartyBConfirmedAt = &now
			if err := transition(ActionConfirmB, actor, nil); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: only a party can confirm an escrow", domain.ErrPermissionDenied)
		}

		if !confirmationsSatisfied(*esc) {
			return nil
		}
		return s.complete(ctx, qtx, esc, actor, transition)
	})
}

// CancelEscrow aborts an escrow. Before funding either party may cancel;
// afterwards only party B or an admin may, and the locked amount is refunded
// to party A.
func (s *EscrowService) CancelEscrow(ctx context.Context, actor domain.Actor, escrowID uuid.UUID, reason string) (*models.Escrow, error) {
	return s.mutate(ctx, "cancel", escrowID, func(qtx *repository.Queries, esc *models.Escrow, transition transitionFunc) error {
		if _, err := nextStatus(esc.Status, ActionCancel); err != nil {
			return err
		}
		locked := isLockedStatus(esc.Status)
		if !canCancel(*esc, actor, locked) {
			return fmt.Errorf("%w: not allowed to cancel this escrow", domain.ErrPermissionDenied)
		}

		if locked {
			if err := s.refund(ctx, qtx, esc); err != nil {
				return err
			}
		}
		canceledAt := s.now()
		esc.CanceledAt = &canceledAt
		return transition(ActionCancel, actor, map[string]any{"reason": reason, "refunded": locked})
	})
}

// DisputeEscrow freezes a funded escrow. Funds stay locked.
func (s *EscrowService) DisputeEscrow(ctx context.Context, actor domain.Actor, escrowID uuid.UUID, reason string) (*models.Escrow, error) {
	return s.mutate(ctx, "dispute", escrowID, func(qtx *repository.Queries, esc *models.Escrow, transition transitionFunc) error {
		if !actor.IsAdmin && !esc.IsParty(actor) {
			return fmt.Errorf("%w: only a party can dispute an escrow", domain.ErrPermissionDenied)
		}
		return transition(ActionDispute, actor, map[string]any{"reason": reason})
	})
}

// ExpireEscrow moves an overdue escrow to EXPIRED, refunding party A when the
// escrow was funded. It reports false when the escrow is not, or no longer,
// eligible for expiry.
func (s *EscrowService) ExpireEscrow(ctx context.Context, escrowID uuid.UUID, now time.Time) (*models.Escrow, bool, error) {
	expired := false
	esc, err := s.mutate(ctx, "expire", escrowID, func(qtx *repository.Queries, esc *models.Escrow, transition transitionFunc) error {
		if !canApply(esc.Status, ActionExpire) || esc.ExpiresAt == nil || !esc.ExpiresAt.Before(now) {
			return nil
		}
		refunded := isLockedStatus(esc.Status)
		if refunded {
			if err := s.refund(ctx, qtx, esc); err != nil {
				return err
			}
		}
		expired = true
		return transition(ActionExpire, domain.SystemActor, map[string]any{
			"expires_at": esc.ExpiresAt.UTC().Format(time.RFC3339),
			"refunded":   refunded,
		})
	})
	if err != nil {
		return nil, false, err
	}
	return esc, expired, nil
}

// ExpireOverdue expires up to batchSize overdue escrows, one transaction
// each, and returns how many were expired. Overdue rows are walked in
// (expires_at, id) order with a keyset cursor, so an escrow that keeps failing
// is logged and stepped over instead of blocking the ones behind it.
func (s *EscrowService) ExpireOverdue(ctx context.Context, now time.Time, batchSize int32) (int, error) {
	if batchSize <= 0 {
		batchSize = 100
	}

	count := 0
	params := repository.ListExpiredEscrowIDsParams{
		Now:   repository.ToPgTimestamptz(now),
		Limit: batchSize,
	}
	defer func() { observability.AddEscrowsExpired(count) }()
	for count < int(batchSize) {
		rows, err := s.store.Queries().ListExpiredEscrowIDs(ctx, params)
		if err != nil {
			return count, fmt.Errorf("list expired escrows: %w", err)
		}
		for _, row := range rows {
			if err := ctx.Err(); err != nil {
				return count, err
			}
			params.AfterExpiresAt, params.AfterID = row.ExpiresAt, row.ID
			escrowID := repository.FromPgUUID(row.ID)
			_, expired, err := s.ExpireEscrow(ctx, escrowID, now)
			if err != nil {
				zap.L().Error("failed to expire escrow", zap.Error(err), zap.String("escrow_id", escrowID.String()))
				continue
			}
			if expired {
				count++
				if count == int(batchSize) {
					break
				}
			}
		}
		if len(rows) < int(batchSize) {
			break
		}
	}
	return count, nil
}

// GetEscrow returns an escrow visible to actor: its parties, an admin, or an
// eligible counterparty while the offer is open.
func (s *EscrowService) GetEscrow(ctx context.Context, actor domain.Actor, escrowID uuid.UUID) (*models.Escrow, error) {
	esc, err := s.load(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	if !canView(*esc, actor) {
		return nil, fmt.Errorf("%w: not a party to this escrow", domain.ErrPermissionDenied)
	}
	return esc, nil
}

// ListEscrowEvents returns the escrow's history oldest first.
func (s *EscrowService) ListEscrowEvents(ctx context.Context, actor domain.Actor, escrowID uuid.UUID) ([]models.EscrowEvent, error) {
	if _, err := s.GetEscrow(ctx, actor, escrowID); err != nil {
		return nil, err
	}
	rows, err := s.store.Queries().ListEscrowEvents(ctx, repository.ToPgUUID(escrowID))
	if err != nil {
		return nil, fmt.Errorf("list escrow events: %w", err)
	}
	events := make([]models.EscrowEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, toEscrowEventModel(row))
	}
	return events, nil
}

// ListEscrowsForActor lists escrows where the acting identity is either party.
func (s *EscrowService) ListEscrowsForActor(ctx context.Context, actor domain.Actor, limit, offset int) ([]models.Escrow, error) {
	if actor.IsSystem() {
		return nil, fmt.Errorf("%w: an identity is required", domain.ErrPermissionDenied)
	}
	owner := actor.Owner()
	pageLimit, pageOffset := clampPage(limit, offset)
	rows, err := s.store.Queries().ListEscrowsForOwner(ctx, repository.ListEscrowsForOwnerParams{
		OwnerType: owner.Type(),
		OwnerID:   repository.ToPgUUID(owner.ID()),
		Limit:     pageLimit,
		Offset:    pageOffset,
	})
	if err != nil {
		return nil, fmt.Errorf("list escrows: %w", err)
	}
	out := make([]models.Escrow, 0, len(rows))
	for _, row := range rows {
		esc, err := toEscrowModel(row)
		if err != nil {
			return nil, err
		}
		out = append(out, *esc)
	}
	return out, nil
}

func (s *EscrowService) complete(ctx context.Context, qtx *repository.Queries, esc *models.Escrow, actor domain.Actor, transition transitionFunc) error {
	if esc.PartyB.IsZero() {
		return fmt.Errorf("escrow %s has no counterparty to release to", esc.ID)
	}
	from, err := s.ledger.GetOrCreateAccountTx(ctx, qtx, esc.PartyA, esc.Currency)
	if err != nil {
		return err
	}
	to, err := s.ledger.GetOrCreateAccountTx(ctx, qtx, esc.PartyB, esc.Currency)
	if err != nil {
		return err
	}

	fee := domain.PlatformFee(esc.Amount, esc.PlatformFeePercent)
	if err := s.ledger.ReleaseEscrowTx(ctx, qtx, repository.FromPgUUID(from.ID), repository.FromPgUUID(to.ID), esc.Amount, fee, esc.ID); err != nil {
		return err
	}
	completedAt := s.now()
	esc.PlatformFee = &fee
	esc.CompletedAt = &completedAt
	return transition(ActionComplete, actor, map[string]any{
		"platform_fee": domain.FormatAmount(fee),
		"net_amount":   domain.FormatAmount(esc.Amount - fee),
	})
}

func (s *EscrowService) refund(ctx context.Context, qtx *repository.Queries, esc *models.Escrow) error {
	account, err := s.ledger.GetOrCreateAccountTx(ctx, qtx, esc.PartyA, esc.Currency)
	if err != nil {
		return err
	}
	return s.ledger.RefundEscrowTx(ctx, qtx, repository.FromPgUUID(account.ID), esc.Amount, esc.ID)
}

// mutate runs fn against the row-locked escrow and publishes the events it
// produced once the transaction commits.
func (s *EscrowService) mutate(ctx context.Context, operation string, escrowID uuid.UUID, fn func(qtx *repository.Queries, esc *models.Escrow, transition transitionFunc) error) (*models.Escrow, error) {
	ctx, span := observability.StartSpan(ctx, "escrow."+operation, attribute.String("escrow_id", escrowID.String()))
	var (
		esc       *models.Escrow
		committed []models.EscrowEvent
	)
	err := s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		committed = committed[:0]
		row, err := qtx.GetEscrowForUpdate(ctx, repository.ToPgUUID(escrowID))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrEscrowNotFound
			}
			return fmt.Errorf("lock escrow: %w", err)
		}
		esc, err = toEscrowModel(row)
		if err != nil {
			return err
		}
		return fn(qtx, esc, func(action string, actor domain.Actor, details map[string]any) error {
			evt, err := transitionEscrow(ctx, qtx, s.events, esc, action, actor, details)
			if err != nil {
				return err
			}
			committed = append(committed, evt)
			return nil
		})
	})
	observability.EndSpan(span, err)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, esc, committed)
	return esc, nil
}

func (s *EscrowService) publish(ctx context.Context, esc *models.Escrow, events []models.EscrowEvent) {
	for _, evt := range events {
		observability.IncrementEscrowTransition(evt.EventType, evt.NextStatus)
		if err := s.publisher.PublishEscrowEvent(ctx, *esc, evt); err != nil {
			zap.L().Warn("failed to publish escrow event",
				zap.Error(err),
				zap.String("escrow_id", esc.ID.String()),
				zap.String("event_type", evt.EventType),
			)
		}
	}
}

func (s *EscrowService) load(ctx context.Context, escrowID uuid.UUID) (*models.Escrow, error) {
	row, err := s.store.Queries().GetEscrow(ctx, repository.ToPgUUID(escrowID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrEscrowNotFound
		}
		return nil, fmt.Errorf("get escrow: %w", err)
	}
	return toEscrowModel(row)
}

func (s *EscrowService) resolveServiceType(ctx context.Context, in CreateEscrowInput) (*models.ServiceType, error) {
	switch {
	case in.ServiceTypeID != uuid.Nil:
		return s.catalog.Get(ctx, in.ServiceTypeID)
	case strings.TrimSpace(in.ServiceTypeCode) != "":
		return s.catalog.GetByCode(ctx, in.ServiceTypeCode)
	default:
		return nil, fmt.Errorf("%w: service type is required", domain.ErrInvalidRequest)
	}
}

func postAction(esc *models.Escrow) string {
	if esc.PartyB.IsZero() {
		return ActionPost
	}
	return ActionPostBound
}

func confirmationsSatisfied(esc models.Escrow) bool {
	if esc.RequiresPartyAConfirmation && esc.PartyAConfirmedAt == nil {
		return false
	}
	if esc.RequiresPartyBConfirmation && esc.PartyBConfirmedAt == nil {
		return false
	}
	return true
}

func eligibleCounterparty(esc models.Escrow, actor domain.Actor) bool {
	if esc.CounterpartyEmail != nil && !strings.EqualFold(strings.TrimSpace(actor.Email), *esc.CounterpartyEmail) {
		return false
	}
	if esc.CounterpartyOrgID != nil && (actor.OrgID == nil || *actor.OrgID != *esc.CounterpartyOrgID) {
		return false
	}
	return true
}

func canCancel(esc models.Escrow, actor domain.Actor, funded bool) bool {
	if actor.IsAdmin {
		return true
	}
	partyB := !esc.PartyB.IsZero() && actor.Represents(esc.PartyB)
	if funded {
		return partyB
	}
	return partyB || actor.Represents(esc.PartyA)
}

func canView(esc models.Escrow, actor domain.Actor) bool {
	if actor.IsAdmin || esc.IsParty(actor) {
		return true
	}
	return esc.Status == domain.EscrowStatusPendingAcceptance && !actor.IsSystem() && eligibleCounterparty(esc, actor)
}

func toEscrowModel(row repository.Escrow) (*models.Escrow, error) {
	id := repository.FromPgUUID(row.ID)
	partyA, err := domain.ParseOwner(row.PartyAType, repository.FromPgUUID(row.PartyAID))
	if err != nil {
		return nil, fmt.Errorf("escrow %s party_a: %w", id, err)
	}
	var partyB domain.OwnerRef
	if row.PartyBType != nil {
		partyB, err = domain.ParseOwner(*row.PartyBType, repository.FromPgUUID(row.PartyBID))
		if err != nil {
			return nil, fmt.Errorf("escrow %s party_b: %w", id, err)
		}
	}
	pct, err := decimal.NewFromString(row.PlatformFeePercent)
	if err != nil {
		return nil, fmt.Errorf("escrow %s platform_fee_percent: %w", id, err)
	}

	return &models.Escrow{
		ID:                         id,
		ServiceTypeID:              repository.FromPgUUID(row.ServiceTypeID),
		PartyA:                     partyA,
		PartyB:                     partyB,
		CounterpartyEmail:          row.CounterpartyEmail,
		CounterpartyOrgID:          repository.FromNullablePgUUID(row.CounterpartyOrgID),
		Status:                     row.Status,
		Amount:                     row.Amount,
		Currency:                   row.Currency,
		PlatformFeePercent:         pct,
		PlatformFee:                row.PlatformFee,
		RequiresPartyAConfirmation: row.RequiresPartyAConfirmation,
		RequiresPartyBConfirmation: row.RequiresPartyBConfirmation,
		Metadata:                   row.Metadata,
		PartyAConfirmedAt:          repository.FromNullableTimestamptz(row.PartyAConfirmedAt),
		PartyBConfirmedAt:          repository.FromNullableTimestamptz(row.PartyBConfirmedAt),
		FundedAt:                   repository.FromNullableTimestamptz(row.FundedAt),
		CompletedAt:                repository.FromNullableTimestamptz(row.CompletedAt),
		CanceledAt:                 repository.FromNullableTimestamptz(row.CanceledAt),
		ExpiresAt:                  repository.FromNullableTimestamptz(row.ExpiresAt),
		CreatedAt:                  row.CreatedAt.Time,
		UpdatedAt:                  row.UpdatedAt.Time,
	}, nil
}
