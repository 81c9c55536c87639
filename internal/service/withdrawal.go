package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ayo6706/escrow-ledger/internal/domain"
	"github.com/ayo6706/escrow-ledger/internal/gateway"
	"github.com/ayo6706/escrow-ledger/internal/models"
	"github.com/ayo6706/escrow-ledger/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"
)

const staleWithdrawalRecoveryWindow = 2 * time.Minute

// WithdrawalService moves available funds out to an external destination.
// Funds are debited when the request is accepted; a gateway failure credits
// them back with a REFUND entry.
type WithdrawalService struct {
	store   QueryStore
	ledger  *LedgerService
	gateway gateway.Gateway
}

func NewWithdrawalService(store QueryStore, ledger *LedgerService, gw gateway.Gateway) *WithdrawalService {
	return &WithdrawalService{
		store:   store,
		ledger:  ledger,
		gateway: gw,
	}
}

// RequestWithdrawalInput holds the parameters for creating a withdrawal.
type RequestWithdrawalInput struct {
	Amount      int64
	Currency    string
	Destination string
	ReferenceID string
}

// RequestWithdrawal debits the actor's account and queues the payout for the
// background worker. A repeated ReferenceID returns the original withdrawal.
func (s *WithdrawalService) RequestWithdrawal(ctx context.Context, actor domain.Actor, in RequestWithdrawalInput) (*models.Withdrawal, bool, error) {
	if actor.IsSystem() {
		return nil, false, fmt.Errorf("%w: an identity is required", domain.ErrPermissionDenied)
	}
	if in.Amount <= 0 {
		return nil, false, fmt.Errorf("%w: withdrawal amount must be positive", domain.ErrInvalidAmount)
	}
	in.ReferenceID = strings.TrimSpace(in.ReferenceID)
	in.Destination = strings.TrimSpace(in.Destination)
	if in.ReferenceID == "" {
		return nil, false, fmt.Errorf("%w: reference_id is required", domain.ErrInvalidRequest)
	}
	if in.Destination == "" {
		return nil, false, fmt.Errorf("%w: destination is required", domain.ErrInvalidRequest)
	}
	currency, err := domain.ValidateCurrency(in.Currency)
	if err != nil {
		return nil, false, err
	}

	existing, err := s.store.Queries().GetWithdrawalByReference(ctx, in.ReferenceID)
	if err == nil {
		wd := toWithdrawalModel(existing)
		if wd.Amount != in.Amount || wd.Destination != in.Destination {
			return nil, false, fmt.Errorf("%w: reference %s was used for a different withdrawal", domain.ErrDuplicateReference, in.ReferenceID)
		}
		return &wd, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("check withdrawal reference: %w", err)
	}

	withdrawalID := uuid.New()
	var row repository.Withdrawal
	err = s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		account, err := s.ledger.GetOrCreateAccountTx(ctx, qtx, actor.Owner(), currency)
		if err != nil {
			return err
		}
		accountID := repository.FromPgUUID(account.ID)

		// The row goes first so the ledger entries reference a real withdrawal.
		row, err = qtx.InsertWithdrawal(ctx, repository.InsertWithdrawalParams{
			ID:          repository.ToPgUUID(withdrawalID),
			AccountID:   account.ID,
			Amount:      in.Amount,
			Currency:    currency,
			Destination: in.Destination,
			ReferenceID: in.ReferenceID,
			Status:      domain.WithdrawalStatusPending,
		})
		if err != nil {
			if repository.IsUniqueViolation(err, "") {
				return fmt.Errorf("%w: reference %s", domain.ErrDuplicateReference, in.ReferenceID)
			}
			return fmt.Errorf("insert withdrawal: %w", err)
		}
		return s.ledger.WithdrawTx(ctx, qtx, accountID, in.Amount, withdrawalID)
	})
	if err != nil {
		return nil, false, err
	}

	wd := toWithdrawalModel(row)
	return &wd, true, nil
}

// GetWithdrawal returns a withdrawal owned by actor.
func (s *WithdrawalService) GetWithdrawal(ctx context.Context, actor domain.Actor, withdrawalID uuid.UUID) (*models.Withdrawal, error) {
	queries := s.store.Queries()
	row, err := queries.GetWithdrawal(ctx, repository.ToPgUUID(withdrawalID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrWithdrawalNotFound
		}
		return nil, fmt.Errorf("get withdrawal: %w", err)
	}
	if !actor.IsAdmin {
		account, err := queries.GetAccount(ctx, row.AccountID)
		if err != nil {
			return nil, fmt.Errorf("get withdrawal account: %w", err)
		}
		owner, err := domain.ParseOwner(account.OwnerType, repository.FromPgUUID(account.OwnerID))
		if err != nil {
			return nil, err
		}
		if !actor.Represents(owner) {
			return nil, fmt.Errorf("%w: withdrawal belongs to another owner", domain.ErrPermissionDenied)
		}
	}
	wd := toWithdrawalModel(row)
	return &wd, nil
}

// ProcessWithdrawals settles a batch of pending withdrawals. Rows are claimed
// with SKIP LOCKED so several workers can run side by side.
func (s *WithdrawalService) ProcessWithdrawals(ctx context.Context, batchSize int32) error {
	if err := s.recoverStaleProcessing(ctx, batchSize); err != nil {
		return err
	}

	claimed, err := s.claimPending(ctx, batchSize)
	if err != nil {
		return err
	}

	for i, wd := range claimed {
		if err := ctx.Err(); err != nil {
			if requeueErr := s.requeue(context.Background(), claimed[i:]); requeueErr != nil {
				zap.L().Error("failed to requeue claimed withdrawals on context cancellation", zap.Error(requeueErr))
			}
			return err
		}

		withdrawalID := repository.FromPgUUID(wd.ID)
		gatewayRef, err := s.gateway.SendWithdrawal(ctx, wd.Destination, wd.Amount, wd.Currency)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if requeueErr := s.requeue(context.Background(), []repository.Withdrawal{wd}); requeueErr != nil {
					zap.L().Error("failed to requeue withdrawal after gateway cancellation", zap.Error(requeueErr), zap.String("withdrawal_id", withdrawalID.String()))
				}
				return err
			}
			s.handleFailure(ctx, wd, err.Error())
			continue
		}

		if err := s.markCompleted(ctx, wd, gatewayRef); err != nil {
			// TODO: park these rows in a review state; stale recovery currently re-sends them.
			zap.L().Error("withdrawal paid at gateway but local completion failed",
				zap.Error(err),
				zap.String("withdrawal_id", withdrawalID.String()),
				zap.String("gateway_ref", gatewayRef),
			)
		}
	}
	return nil
}

func (s *WithdrawalService) recoverStaleProcessing(ctx context.Context, batchSize int32) error {
	cutoff := time.Now().Add(-staleWithdrawalRecoveryWindow)
	var stale []repository.Withdrawal
	err := s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		var err error
		stale, err = qtx.GetStaleProcessingWithdrawals(ctx, repository.GetStaleProcessingWithdrawalsParams{
			UpdatedAt: pgtype.Timestamptz{Time: cutoff, Valid: true},
			Limit:     batchSize,
		})
		if err != nil {
			return fmt.Errorf("load stale processing withdrawals: %w", err)
		}
		return setWithdrawalStatus(ctx, qtx, stale, domain.WithdrawalStatusPending)
	})
	if err != nil {
		return err
	}
	if len(stale) > 0 {
		zap.L().Warn("recovered stale processing withdrawals", zap.Int("count", len(stale)))
	}
	return nil
}

func (s *WithdrawalService) claimPending(ctx context.Context, batchSize int32) ([]repository.Withdrawal, error) {
	var claimed []repository.Withdrawal
	err := s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		var err error
		claimed, err = qtx.GetPendingWithdrawals(ctx, batchSize)
		if err != nil {
			return fmt.Errorf("fetch pending withdrawals: %w", err)
		}
		return setWithdrawalStatus(ctx, qtx, claimed, domain.WithdrawalStatusProcessing)
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (s *WithdrawalService) requeue(ctx context.Context, withdrawals []repository.Withdrawal) error {
	if len(withdrawals) == 0 {
		return nil
	}
	return s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		return setWithdrawalStatus(ctx, qtx, withdrawals, domain.WithdrawalStatusPending)
	})
}

func (s *WithdrawalService) markCompleted(ctx context.Context, wd repository.Withdrawal, gatewayRef string) error {
	ref := gatewayRef
	rows, err := s.store.Queries().UpdateWithdrawalStatus(ctx, repository.UpdateWithdrawalStatusParams{
		ID:         wd.ID,
		Status:     domain.WithdrawalStatusCompleted,
		GatewayRef: &ref,
	})
	if err != nil {
		return fmt.Errorf("mark withdrawal completed: %w", err)
	}
	return requireExactlyOne(rows, "mark withdrawal completed")
}

// handleFailure re-credits the account and marks the withdrawal FAILED in one
// transaction.
func (s *WithdrawalService) handleFailure(ctx context.Context, wd repository.Withdrawal, reason string) {
	withdrawalID := repository.FromPgUUID(wd.ID)
	err := s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		current, err := qtx.GetWithdrawalForUpdate(ctx, wd.ID)
		if err != nil {
			return fmt.Errorf("lock withdrawal: %w", err)
		}
		if current.Status != domain.WithdrawalStatusProcessing {
			return nil
		}
		if err := s.ledger.ReverseWithdrawalTx(ctx, qtx, repository.FromPgUUID(wd.AccountID), wd.Amount, withdrawalID, reason); err != nil {
			return err
		}
		rows, err := qtx.UpdateWithdrawalStatus(ctx, repository.UpdateWithdrawalStatusParams{
			ID:     wd.ID,
			Status: domain.WithdrawalStatusFailed,
		})
		if err != nil {
			return fmt.Errorf("mark withdrawal failed: %w", err)
		}
		return requireExactlyOne(rows, "mark withdrawal failed")
	})
	if err != nil {
		zap.L().Error("handle withdrawal failure failed", zap.Error(err), zap.String("withdrawal_id", withdrawalID.String()))
		return
	}
	zap.L().Warn("withdrawal marked failed", zap.String("withdrawal_id", withdrawalID.String()), zap.String("reason", reason))
}

func setWithdrawalStatus(ctx context.Context, qtx *repository.Queries, withdrawals []repository.Withdrawal, status string) error {
	for i, wd := range withdrawals {
		rows, err := qtx.UpdateWithdrawalStatus(ctx, repository.UpdateWithdrawalStatusParams{
			ID:     wd.ID,
			Status: status,
		})
		if err != nil {
			return fmt.Errorf("set withdrawal %s %s: %w", repository.FromPgUUID(wd.ID), status, err)
		}
		if err := requireExactlyOne(rows, "set withdrawal status"); err != nil {
			return err
		}
		withdrawals[i].Status = status
	}
	return nil
}

func toWithdrawalModel(row repository.Withdrawal) models.Withdrawal {
	return models.Withdrawal{
		ID:          repository.FromPgUUID(row.ID),
		AccountID:   repository.FromPgUUID(row.AccountID),
		Amount:      row.Amount,
		Currency:    row.Currency,
		Destination: row.Destination,
		Status:      row.Status,
		GatewayRef:  row.GatewayRef,
		CreatedAt:   row.CreatedAt.Time,
		UpdatedAt:   row.UpdatedAt.Time,
	}
}
