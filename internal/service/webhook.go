package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ayo6706/escrow-ledger/internal/domain"
	"github.com/ayo6706/escrow-ledger/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	ErrInvalidSignature       = errors.New("invalid signature")
	ErrDepositPayloadMismatch = errors.New("deposit payload does not match existing reference")
)

const depositReferencePrefix = "deposit:"

// WebhookService credits accounts from payment-provider deposit callbacks.
type WebhookService struct {
	store   QueryStore
	ledger  *LedgerService
	hmacKey []byte
	skipSig bool
}

func NewWebhookService(store QueryStore, ledger *LedgerService, hmacKey string, skipSignature bool) *WebhookService {
	return &WebhookService{
		store:   store,
		ledger:  ledger,
		hmacKey: []byte(hmacKey),
		skipSig: skipSignature,
	}
}

// DepositWebhookPayload is the provider's deposit notification. Amount is a
// decimal string in major units, e.g. "200.00".
type DepositWebhookPayload struct {
	OwnerType string `json:"owner_type"`
	OwnerID   string `json:"owner_id"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
	Provider  string `json:"provider"`
	Reference string `json:"reference"`
}

type DepositWebhookResponse struct {
	EntryID   uuid.UUID `json:"entry_id"`
	AccountID uuid.UUID `json:"account_id"`
	Amount    string    `json:"amount"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
}

// HandleDepositWebhook verifies the signature and credits the owner's
// account. Redelivering the same provider reference is acknowledged without
// crediting twice.
func (s *WebhookService) HandleDepositWebhook(ctx context.Context, payload []byte, signature string) (*DepositWebhookResponse, error) {
	if !s.verifyHMAC(payload, signature) {
		return nil, ErrInvalidSignature
	}

	var deposit DepositWebhookPayload
	if err := json.Unmarshal(payload, &deposit); err != nil {
		return nil, fmt.Errorf("%w: invalid payload: %v", domain.ErrInvalidRequest, err)
	}
	deposit.Reference = strings.TrimSpace(deposit.Reference)
	deposit.Provider = strings.ToLower(strings.TrimSpace(deposit.Provider))
	if deposit.Reference == "" {
		return nil, fmt.Errorf("%w: reference is required", domain.ErrInvalidRequest)
	}
	if deposit.Provider == "" {
		deposit.Provider = "default"
	}

	amount, err := domain.ParseAmount(deposit.Amount)
	if err != nil {
		return nil, err
	}
	currency, err := domain.ValidateCurrency(deposit.Currency)
	if err != nil {
		return nil, err
	}
	ownerID, err := uuid.Parse(strings.TrimSpace(deposit.OwnerID))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid owner_id", domain.ErrInvalidOwner)
	}
	owner, err := domain.ParseOwner(deposit.OwnerType, ownerID)
	if err != nil {
		return nil, err
	}

	refType := depositReferencePrefix + deposit.Provider
	if resp, err := s.existingDeposit(ctx, refType, deposit.Reference, amount, owner, currency); resp != nil || err != nil {
		return resp, err
	}

	var (
		accountID uuid.UUID
		entryID   uuid.UUID
	)
	err = s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		account, err := s.ledger.GetOrCreateAccountTx(ctx, qtx, owner, currency)
		if err != nil {
			return err
		}
		accountID = repository.FromPgUUID(account.ID)
		entry, err := s.ledger.DepositTx(ctx, qtx, DepositRequest{
			AccountID:     accountID,
			Amount:        amount,
			ReferenceType: refType,
			ReferenceID:   deposit.Reference,
			Description:   fmt.Sprintf("deposit via %s", deposit.Provider),
		})
		if err != nil {
			return err
		}
		entryID = entry.ID
		return nil
	})
	if err != nil {
		// A concurrent delivery of the same reference won the unique index.
		if errors.Is(err, domain.ErrDuplicateReference) {
			if resp, lookupErr := s.existingDeposit(ctx, refType, deposit.Reference, amount, owner, currency); resp != nil || lookupErr != nil {
				return resp, lookupErr
			}
		}
		return nil, err
	}

	return &DepositWebhookResponse{
		EntryID:   entryID,
		AccountID: accountID,
		Amount:    domain.FormatAmount(amount),
		Status:    "COMPLETED",
		Message:   "Deposit processed successfully",
	}, nil
}

// existingDeposit returns the stored deposit for reference, or nil when none
// exists. A redelivery must match the original amount, owner and currency.
func (s *WebhookService) existingDeposit(ctx context.Context, refType, reference string, amount int64, owner domain.OwnerRef, currency string) (*DepositWebhookResponse, error) {
	existing, err := s.store.Queries().GetDepositByReference(ctx, repository.ReferenceParams{
		ReferenceType: refType,
		ReferenceID:   reference,
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("check deposit reference: %w", err)
	}
	if existing.Amount != amount {
		return nil, ErrDepositPayloadMismatch
	}
	account, err := s.store.Queries().GetAccount(ctx, existing.AccountID)
	if err != nil {
		return nil, fmt.Errorf("load deposit account: %w", err)
	}
	if account.OwnerType != owner.Type() || repository.FromPgUUID(account.OwnerID) != owner.ID() || account.Currency != currency {
		return nil, ErrDepositPayloadMismatch
	}
	return &DepositWebhookResponse{
		EntryID:   repository.FromPgUUID(existing.ID),
		AccountID: repository.FromPgUUID(existing.AccountID),
		Amount:    domain.FormatAmount(existing.Amount),
		Status:    "COMPLETED",
		Message:   "Deposit already processed",
	}, nil
}

func (s *WebhookService) verifyHMAC(payload []byte, signature string) bool {
	if s.skipSig {
		return true
	}
	if len(s.hmacKey) == 0 {
		return false
	}
	h := hmac.New(sha256.New, s.hmacKey)
	h.Write(payload)
	expectedSig := "sha256=" + hex.EncodeToString(h.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expectedSig))
}
