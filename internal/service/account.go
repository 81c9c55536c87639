package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/ayo6706/escrow-ledger/internal/domain"
	"github.com/ayo6706/escrow-ledger/internal/models"
	"github.com/ayo6706/escrow-ledger/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// GetOrCreateAccount returns the owner's account for currency, creating an
// empty one on first use. Concurrent callers converge on the same row.
func (s *LedgerService) GetOrCreateAccount(ctx context.Context, owner domain.OwnerRef, currency string) (*models.Account, error) {
	var row repository.Account
	err := s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		var err error
		row, err = s.GetOrCreateAccountTx(ctx, qtx, owner, currency)
		return err
	})
	if err != nil {
		return nil, err
	}
	return toAccountModel(row)
}

// GetOrCreateAccountTx is GetOrCreateAccount inside the caller's transaction.
func (s *LedgerService) GetOrCreateAccountTx(ctx context.Context, qtx *repository.Queries, owner domain.OwnerRef, currency string) (repository.Account, error) {
	if owner.IsZero() {
		return repository.Account{}, fmt.Errorf("%w: owner is required", domain.ErrInvalidOwner)
	}
	currency, err := domain.ValidateCurrency(currency)
	if err != nil {
		return repository.Account{}, err
	}

	params := ownerParams(owner, currency)
	if err := qtx.InsertAccountIfMissing(ctx, params); err != nil {
		return repository.Account{}, fmt.Errorf("insert account: %w", err)
	}
	row, err := qtx.GetAccountByOwner(ctx, params)
	if err != nil {
		return repository.Account{}, fmt.Errorf("load account: %w", err)
	}
	return row, nil
}

func (s *LedgerService) GetAccount(ctx context.Context, accountID uuid.UUID) (*models.Account, error) {
	row, err := s.store.Queries().GetAccount(ctx, repository.ToPgUUID(accountID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return toAccountModel(row)
}

// GetAccountByOwner looks up an existing account without creating one.
func (s *LedgerService) GetAccountByOwner(ctx context.Context, owner domain.OwnerRef, currency string) (*models.Account, error) {
	currency, err := domain.ValidateCurrency(currency)
	if err != nil {
		return nil, err
	}
	row, err := s.store.Queries().GetAccountByOwner(ctx, ownerParams(owner, currency))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("get account by owner: %w", err)
	}
	return toAccountModel(row)
}

func ownerParams(owner domain.OwnerRef, currency string) repository.OwnerParams {
	return repository.OwnerParams{
		OwnerType: owner.Type(),
		OwnerID:   repository.ToPgUUID(owner.ID()),
		Currency:  currency,
	}
}

func toAccountModel(row repository.Account) (*models.Account, error) {
	owner, err := domain.ParseOwner(row.OwnerType, repository.FromPgUUID(row.OwnerID))
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", repository.FromPgUUID(row.ID), err)
	}
	return &models.Account{
		ID:                repository.FromPgUUID(row.ID),
		Owner:             owner,
		Currency:          row.Currency,
		AvailableBalance:  row.AvailableBalance,
		InContractBalance: row.InContractBalance,
		CreatedAt:         row.CreatedAt.Time,
		UpdatedAt:         row.UpdatedAt.Time,
	}, nil
}

func toLedgerEntryModel(row repository.LedgerEntry) models.LedgerEntry {
	return models.LedgerEntry{
		ID:            repository.FromPgUUID(row.ID),
		AccountID:     repository.FromPgUUID(row.AccountID),
		Amount:        row.Amount,
		Bucket:        row.Bucket,
		EntryType:     row.EntryType,
		ReferenceType: row.ReferenceType,
		ReferenceID:   row.ReferenceID,
		Description:   row.Description,
		CreatedAt:     row.CreatedAt.Time,
	}
}
