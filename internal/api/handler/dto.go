package handler

import (
	"encoding/json"
	"time"

	"github.com/ayo6706/escrow-ledger/internal/domain"
	"github.com/ayo6706/escrow-ledger/internal/models"
	"github.com/google/uuid"
)

// Response shapes render cents as fixed two-place decimal strings.

type accountResponse struct {
	ID                uuid.UUID       `json:"id"`
	Owner             domain.OwnerRef `json:"owner"`
	Currency          string          `json:"currency"`
	AvailableBalance  string          `json:"available_balance"`
	InContractBalance string          `json:"in_contract_balance"`
	TotalBalance      string          `json:"total_balance"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

func newAccountResponse(a *models.Account) accountResponse {
	return accountResponse{
		ID:                a.ID,
		Owner:             a.Owner,
		Currency:          a.Currency,
		AvailableBalance:  domain.FormatAmount(a.AvailableBalance),
		InContractBalance: domain.FormatAmount(a.InContractBalance),
		TotalBalance:      domain.FormatAmount(a.TotalBalance()),
		UpdatedAt:         a.UpdatedAt,
	}
}

type entryResponse struct {
	ID            uuid.UUID `json:"id"`
	Amount        string    `json:"amount"`
	Bucket        string    `json:"bucket"`
	EntryType     string    `json:"entry_type"`
	ReferenceType string    `json:"reference_type"`
	ReferenceID   string    `json:"reference_id"`
	Description   string    `json:"description,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func newEntryResponses(entries []models.LedgerEntry) []entryResponse {
	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryResponse{
			ID:            e.ID,
			Amount:        domain.FormatAmount(e.Amount),
			Bucket:        e.Bucket,
			EntryType:     e.EntryType,
			ReferenceType: e.ReferenceType,
			ReferenceID:   e.ReferenceID,
			Description:   e.Description,
			CreatedAt:     e.CreatedAt,
		})
	}
	return out
}

type escrowResponse struct {
	ID                         uuid.UUID       `json:"id"`
	ServiceTypeID              uuid.UUID       `json:"service_type_id"`
	PartyA                     domain.OwnerRef `json:"party_a"`
	PartyB                     domain.OwnerRef `json:"party_b"`
	CounterpartyEmail          *string         `json:"counterparty_email,omitempty"`
	CounterpartyOrgID          *uuid.UUID      `json:"counterparty_org_id,omitempty"`
	Status                     string          `json:"status"`
	Amount                     string          `json:"amount"`
	Currency                   string          `json:"currency"`
	PlatformFeePercent         string          `json:"platform_fee_percent"`
	PlatformFee                *string         `json:"platform_fee,omitempty"`
	RequiresPartyAConfirmation bool            `json:"requires_party_a_confirmation"`
	RequiresPartyBConfirmation bool            `json:"requires_party_b_confirmation"`
	Metadata                   json.RawMessage `json:"metadata,omitempty"`
	PartyAConfirmedAt          *time.Time      `json:"party_a_confirmed_at,omitempty"`
	PartyBConfirmedAt          *time.Time      `json:"party_b_confirmed_at,omitempty"`
	FundedAt                   *time.Time      `json:"funded_at,omitempty"`
	CompletedAt                *time.Time      `json:"completed_at,omitempty"`
	CanceledAt                 *time.Time      `json:"canceled_at,omitempty"`
	ExpiresAt                  *time.Time      `json:"expires_at,omitempty"`
	CreatedAt                  time.Time       `json:"created_at"`
	UpdatedAt                  time.Time       `json:"updated_at"`
}

func newEscrowResponse(e *models.Escrow) escrowResponse {
	resp := escrowResponse{
		ID:                         e.ID,
		ServiceTypeID:              e.ServiceTypeID,
		PartyA:                     e.PartyA,
		PartyB:                     e.PartyB,
		CounterpartyEmail:          e.CounterpartyEmail,
		CounterpartyOrgID:          e.CounterpartyOrgID,
		Status:                     e.Status,
		Amount:                     domain.FormatAmount(e.Amount),
		Currency:                   e.Currency,
		PlatformFeePercent:         e.PlatformFeePercent.StringFixed(2),
		RequiresPartyAConfirmation: e.RequiresPartyAConfirmation,
		RequiresPartyBConfirmation: e.RequiresPartyBConfirmation,
		Metadata:                   e.Metadata,
		PartyAConfirmedAt:          e.PartyAConfirmedAt,
		PartyBConfirmedAt:          e.PartyBConfirmedAt,
		FundedAt:                   e.FundedAt,
		CompletedAt:                e.CompletedAt,
		CanceledAt:                 e.CanceledAt,
		ExpiresAt:                  e.ExpiresAt,
		CreatedAt:                  e.CreatedAt,
		UpdatedAt:                  e.UpdatedAt,
	}
	if e.PlatformFee != nil {
		fee := domain.FormatAmount(*e.PlatformFee)
		resp.PlatformFee = &fee
	}
	return resp
}

type withdrawalResponse struct {
	ID          uuid.UUID `json:"id"`
	AccountID   uuid.UUID `json:"account_id"`
	Amount      string    `json:"amount"`
	Currency    string    `json:"currency"`
	Destination string    `json:"destination"`
	Status      string    `json:"status"`
	GatewayRef  *string   `json:"gateway_ref,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func newWithdrawalResponse(wd *models.Withdrawal) withdrawalResponse {
	return withdrawalResponse{
		ID:          wd.ID,
		AccountID:   wd.AccountID,
		Amount:      domain.FormatAmount(wd.Amount),
		Currency:    wd.Currency,
		Destination: wd.Destination,
		Status:      wd.Status,
		GatewayRef:  wd.GatewayRef,
		CreatedAt:   wd.CreatedAt,
		UpdatedAt:   wd.UpdatedAt,
	}
}
