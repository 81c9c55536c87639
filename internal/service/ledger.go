package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/ayo6706/escrow-ledger/internal/domain"
	"github.com/ayo6706/escrow-ledger/internal/models"
	"github.com/ayo6706/escrow-ledger/internal/observability"
	"github.com/ayo6706/escrow-ledger/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
)

const depositReferenceConstraint = "uq_ledger_entries_deposit_reference"

// LedgerService owns every balance mutation. Each primitive locks the
// accounts it touches, applies the bucket deltas and appends the matching
// ledger entries in one transaction. The *Tx variants run inside a caller's
// transaction so escrow transitions and ledger effects commit together.
type LedgerService struct {
	store QueryStore
}

func NewLedgerService(store QueryStore) *LedgerService {
	return &LedgerService{store: store}
}

// DepositRequest credits an account's available bucket from an external source.
type DepositRequest struct {
	AccountID     uuid.UUID
	Amount        int64
	ReferenceType string
	ReferenceID   string
	Description   string
}

// entryLine is one ledger entry plus the balance delta it explains.
type entryLine struct {
	accountID   uuid.UUID
	amount      int64
	bucket      string
	entryType   string
	description string
	// memo lines are recorded without touching balances
	memo bool
}

func (s *LedgerService) Deposit(ctx context.Context, req DepositRequest) (*models.LedgerEntry, error) {
	ctx, span := observability.StartSpan(ctx, "ledger.deposit",
		attribute.String("account_id", req.AccountID.String()),
		attribute.Int64("amount", req.Amount),
	)
	var entry models.LedgerEntry
	err := s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		var err error
		entry, err = s.DepositTx(ctx, qtx, req)
		return err
	})
	observability.IncrementLedgerOperation("deposit", err)
	observability.EndSpan(span, err)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// DepositTx records a DEPOSIT entry. A repeated (ReferenceType, ReferenceID)
// pair fails with ErrDuplicateReference.
func (s *LedgerService) DepositTx(ctx context.Context, qtx *repository.Queries, req DepositRequest) (models.LedgerEntry, error) {
	if req.Amount <= 0 {
		return models.LedgerEntry{}, fmt.Errorf("%w: deposit amount must be positive", domain.ErrInvalidAmount)
	}
	if req.ReferenceID == "" {
		return models.LedgerEntry{}, fmt.Errorf("%w: deposit reference_id is required", domain.ErrInvalidRequest)
	}
	if _, err := s.lockAccounts(ctx, qtx, req.AccountID); err != nil {
		return models.LedgerEntry{}, err
	}

	rows, err := s.post(ctx, qtx, req.ReferenceType, req.ReferenceID, entryLine{
		accountID:   req.AccountID,
		amount:      req.Amount,
		bucket:      domain.BucketAvailable,
		entryType:   domain.EntryTypeDeposit,
		description: req.Description,
	})
	if err != nil {
		if repository.IsUniqueViolation(err, depositReferenceConstraint) {
			return models.LedgerEntry{}, fmt.Errorf("%w: %s/%s", domain.ErrDuplicateReference, req.ReferenceType, req.ReferenceID)
		}
		return models.LedgerEntry{}, err
	}
	return toLedgerEntryModel(rows[0]), nil
}

// LockForEscrow moves amount from available to in_contract.
func (s *LedgerService) LockForEscrow(ctx context.Context, accountID uuid.UUID, amount int64, escrowID uuid.UUID) error {
	return s.runPrimitive(ctx, "lock_for_escrow", escrowID, func(qtx *repository.Queries) error {
		return s.LockForEscrowTx(ctx, qtx, accountID, amount, escrowID)
	})
}

func (s *LedgerService) LockForEscrowTx(ctx context.Context, qtx *repository.Queries, accountID uuid.UUID, amount int64, escrowID uuid.UUID) error {
	if amount <= 0 {
		return fmt.Errorf("%w: lock amount must be positive", domain.ErrInvalidAmount)
	}
	accounts, err := s.lockAccounts(ctx, qtx, accountID)
	if err != nil {
		return err
	}
	if available := accounts[accountID].AvailableBalance; available < amount {
		return fmt.Errorf("%w: available %d, required %d", domain.ErrInsufficientBalance, available, amount)
	}

	description := fmt.Sprintf("escrow %s funded", escrowID)
	_, err = s.post(ctx, qtx, domain.ReferenceTypeEscrow, escrowID.String(),
		entryLine{accountID: accountID, amount: -amount, bucket: domain.BucketAvailable, entryType: domain.EntryTypeEscrowLock, description: description},
		entryLine{accountID: accountID, amount: amount, bucket: domain.BucketInContract, entryType: domain.EntryTypeEscrowLock, description: description},
	)
	return err
}

// ReleaseEscrow pays a locked amount out to the counterparty, keeping fee
// back as platform revenue.
func (s *LedgerService) ReleaseEscrow(ctx context.Context, fromAccountID, toAccountID uuid.UUID, amount, fee int64, escrowID uuid.UUID) error {
	return s.runPrimitive(ctx, "release_escrow", escrowID, func(qtx *repository.Queries) error {
		return s.ReleaseEscrowTx(ctx, qtx, fromAccountID, toAccountID, amount, fee, escrowID)
	})
}

// ReleaseEscrowTx debits amount from the payer's in_contract bucket and
// credits amount-fee to the payee's available bucket. The fee is recorded as
// a PLATFORM_FEE memo on the payer; no platform account is credited. When fee
// equals amount the payee receives nothing and no ESCROW_RECEIVE entry is
// written, since entries must be non-zero.
func (s *LedgerService) ReleaseEscrowTx(ctx context.Context, qtx *repository.Queries, fromAccountID, toAccountID uuid.UUID, amount, fee int64, escrowID uuid.UUID) error {
	if amount <= 0 {
		return fmt.Errorf("%w: release amount must be positive", domain.ErrInvalidAmount)
	}
	if fee < 0 || fee > amount {
		return fmt.Errorf("%w: fee %d outside [0, %d]", domain.ErrInvalidAmount, fee, amount)
	}
	accounts, err := s.lockAccounts(ctx, qtx, fromAccountID, toAccountID)
	if err != nil {
		return err
	}
	if locked := accounts[fromAccountID].InContractBalance; locked < amount {
		return fmt.Errorf("%w: in_contract %d, required %d", domain.ErrInsufficientBalance, locked, amount)
	}

	description := fmt.Sprintf("escrow %s released", escrowID)
	lines := []entryLine{
		{accountID: fromAccountID, amount: -amount, bucket: domain.BucketInContract, entryType: domain.EntryTypeEscrowRelease, description: description},
	}
	if net := amount - fee; net > 0 {
		lines = append(lines, entryLine{accountID: toAccountID, amount: net, bucket: domain.BucketAvailable, entryType: domain.EntryTypeEscrowReceive, description: description})
	}
	if fee > 0 {
		lines = append(lines, entryLine{
			accountID:   fromAccountID,
			amount:      -fee,
			bucket:      domain.BucketAvailable,
			entryType:   domain.EntryTypePlatformFee,
			description: fmt.Sprintf("platform fee for escrow %s", escrowID),
			memo:        true,
		})
	}
	_, err = s.post(ctx, qtx, domain.ReferenceTypeEscrow, escrowID.String(), lines...)
	return err
}

// RefundEscrow returns a locked amount to the payer's available bucket.
func (s *LedgerService) RefundEscrow(ctx context.Context, accountID uuid.UUID, amount int64, escrowID uuid.UUID) error {
	return s.runPrimitive(ctx, "refund_escrow", escrowID, func(qtx *repository.Queries) error {
		return s.RefundEscrowTx(ctx, qtx, accountID, amount, escrowID)
	})
}

func (s *LedgerService) RefundEscrowTx(ctx context.Context, qtx *repository.Queries, accountID uuid.UUID, amount int64, escrowID uuid.UUID) error {
	if amount <= 0 {
		return fmt.Errorf("%w: refund amount must be positive", domain.ErrInvalidAmount)
	}
	accounts, err := s.lockAccounts(ctx, qtx, accountID)
	if err != nil {
		return err
	}
	if locked := accounts[accountID].InContractBalance; locked < amount {
		return fmt.Errorf("%w: in_contract %d, required %d", domain.ErrInsufficientBalance, locked, amount)
	}

	description := fmt.Sprintf("escrow %s refunded", escrowID)
	_, err = s.post(ctx, qtx, domain.ReferenceTypeEscrow, escrowID.String(),
		entryLine{accountID: accountID, amount: -amount, bucket: domain.BucketInContract, entryType: domain.EntryTypeRefund, description: description},
		entryLine{accountID: accountID, amount: amount, bucket: domain.BucketAvailable, entryType: domain.EntryTypeRefund, description: description},
	)
	return err
}

// WithdrawTx debits available funds for an outbound withdrawal.
func (s *LedgerService) WithdrawTx(ctx context.Context, qtx *repository.Queries, accountID uuid.UUID, amount int64, withdrawalID uuid.UUID) error {
	if amount <= 0 {
		return fmt.Errorf("%w: withdrawal amount must be positive", domain.ErrInvalidAmount)
	}
	accounts, err := s.lockAccounts(ctx, qtx, accountID)
	if err != nil {
		return err
	}
	if available := accounts[accountID].AvailableBalance; available < amount {
		return fmt.Errorf("%w: available %d, required %d", domain.ErrInsufficientBalance, available, amount)
	}
	_, err = s.post(ctx, qtx, domain.ReferenceTypeWithdrawal, withdrawalID.String(), entryLine{
		accountID:   accountID,
		amount:      -amount,
		bucket:      domain.BucketAvailable,
		entryType:   domain.EntryTypeWithdraw,
		description: fmt.Sprintf("withdrawal %s", withdrawalID),
	})
	return err
}

// ReverseWithdrawalTx re-credits a withdrawal the gateway rejected.
func (s *LedgerService) ReverseWithdrawalTx(ctx context.Context, qtx *repository.Queries, accountID uuid.UUID, amount int64, withdrawalID uuid.UUID, reason string) error {
	if _, err := s.lockAccounts(ctx, qtx, accountID); err != nil {
		return err
	}
	_, err := s.post(ctx, qtx, domain.ReferenceTypeWithdrawal, withdrawalID.String(), entryLine{
		accountID:   accountID,
		amount:      amount,
		bucket:      domain.BucketAvailable,
		entryType:   domain.EntryTypeRefund,
		description: fmt.Sprintf("withdrawal %s reversed: %s", withdrawalID, reason),
	})
	return err
}

// GetLedgerEntries returns an account's entries newest first.
func (s *LedgerService) GetLedgerEntries(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]models.LedgerEntry, error) {
	if _, err := s.store.Queries().GetAccount(ctx, repository.ToPgUUID(accountID)); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}

	pageLimit, pageOffset := clampPage(limit, offset)
	rows, err := s.store.Queries().ListLedgerEntries(ctx, repository.ListLedgerEntriesParams{
		AccountID: repository.ToPgUUID(accountID),
		Limit:     pageLimit,
		Offset:    pageOffset,
	})
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	entries := make([]models.LedgerEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, toLedgerEntryModel(row))
	}
	return entries, nil
}

func (s *LedgerService) runPrimitive(ctx context.Context, operation string, escrowID uuid.UUID, fn func(qtx *repository.Queries) error) error {
	ctx, span := observability.StartSpan(ctx, "ledger."+operation, attribute.String("escrow_id", escrowID.String()))
	err := s.store.RunInTx(ctx, fn)
	observability.IncrementLedgerOperation(operation, err)
	observability.EndSpan(span, err)
	return err
}

// lockAccounts takes row locks in ascending id order so concurrent
// multi-account operations cannot deadlock.
func (s *LedgerService) lockAccounts(ctx context.Context, qtx *repository.Queries, ids ...uuid.UUID) (map[uuid.UUID]repository.Account, error) {
	ordered := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ordered = append(ordered, id)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return bytes.Compare(ordered[i][:], ordered[j][:]) < 0
	})

	locked := make(map[uuid.UUID]repository.Account, len(ordered))
	for _, id := range ordered {
		row, err := qtx.GetAccountForUpdate(ctx, repository.ToPgUUID(id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, id)
			}
			return nil, fmt.Errorf("lock account %s: %w", id, err)
		}
		locked[id] = row
	}
	return locked, nil
}

// post applies each line's balance delta and appends its entry. Callers must
// already hold the account locks.
func (s *LedgerService) post(ctx context.Context, qtx *repository.Queries, referenceType, referenceID string, lines ...entryLine) ([]repository.LedgerEntry, error) {
	out := make([]repository.LedgerEntry, 0, len(lines))
	for _, line := range lines {
		if !line.memo {
			delta := repository.ApplyBalanceDeltaParams{ID: repository.ToPgUUID(line.accountID)}
			if line.bucket == domain.BucketInContract {
				delta.InContractDelta = line.amount
			} else {
				delta.AvailableDelta = line.amount
			}
			rows, err := qtx.ApplyBalanceDelta(ctx, delta)
			if err != nil {
				return nil, fmt.Errorf("apply %s delta: %w", line.entryType, err)
			}
			if rows == 0 {
				return nil, fmt.Errorf("%w: %s bucket of account %s", domain.ErrInsufficientBalance, line.bucket, line.accountID)
			}
			if err := requireExactlyOne(rows, "apply balance delta"); err != nil {
				return nil, err
			}
		}

		entry, err := qtx.InsertLedgerEntry(ctx, repository.InsertLedgerEntryParams{
			ID:            repository.ToPgUUID(uuid.New()),
			AccountID:     repository.ToPgUUID(line.accountID),
			Amount:        line.amount,
			Bucket:        line.bucket,
			EntryType:     line.entryType,
			ReferenceType: referenceType,
			ReferenceID:   referenceID,
			Description:   line.description,
		})
		if err != nil {
			return nil, fmt.Errorf("insert %s entry: %w", line.entryType, err)
		}
		out = append(out, entry)
	}
	return out, nil
}
