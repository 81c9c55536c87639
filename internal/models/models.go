package models

import (
	"encoding/json"
	"time"

	"github.com/ayo6706/escrow-ledger/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account holds the two balance buckets for one (owner, currency) pair.
// Amounts are cents.
type Account struct {
	ID                uuid.UUID       `json:"id"`
	Owner             domain.OwnerRef `json:"owner"`
	Currency          string          `json:"currency"`
	AvailableBalance  int64           `json:"available_balance"`
	InContractBalance int64           `json:"in_contract_balance"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// TotalBalance is derived and never stored.
func (a Account) TotalBalance() int64 {
	return a.AvailableBalance + a.InContractBalance
}

type LedgerEntry struct {
	ID            uuid.UUID `json:"id"`
	AccountID     uuid.UUID `json:"account_id"`
	Amount        int64     `json:"amount"` // signed: positive=credit, negative=debit
	Bucket        string    `json:"bucket"`
	EntryType     string    `json:"entry_type"`
	ReferenceType string    `json:"reference_type"`
	ReferenceID   string    `json:"reference_id"`
	Description   string    `json:"description"`
	CreatedAt     time.Time `json:"created_at"`
}

type ServiceType struct {
	ID                         uuid.UUID       `json:"id"`
	Code                       string          `json:"code"`
	Name                       string          `json:"name"`
	PlatformFeePercent         decimal.Decimal `json:"platform_fee_percent"`
	RequiresPartyAConfirmation bool            `json:"requires_party_a_confirmation"`
	RequiresPartyBConfirmation bool            `json:"requires_party_b_confirmation"`
	DefaultExpiry              time.Duration   `json:"-"`
}

type Escrow struct {
	ID                         uuid.UUID       `json:"id"`
	ServiceTypeID              uuid.UUID       `json:"service_type_id"`
	PartyA                     domain.OwnerRef `json:"party_a"`
	PartyB                     domain.OwnerRef `json:"party_b"`
	CounterpartyEmail          *string         `json:"counterparty_email,omitempty"`
	CounterpartyOrgID          *uuid.UUID      `json:"counterparty_org_id,omitempty"`
	Status                     string          `json:"status"`
	Amount                     int64           `json:"amount"`
	Currency                   string          `json:"currency"`
	PlatformFeePercent         decimal.Decimal `json:"platform_fee_percent"`
	PlatformFee                *int64          `json:"platform_fee,omitempty"`
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

// IsParty reports whether the actor represents either side of the escrow.
func (e Escrow) IsParty(actor domain.Actor) bool {
	return actor.Represents(e.PartyA) || actor.Represents(e.PartyB)
}

type EscrowEvent struct {
	ID         int64           `json:"id"`
	EscrowID   uuid.UUID       `json:"escrow_id"`
	EventType  string          `json:"event_type"`
	ActorID    *uuid.UUID      `json:"actor_id,omitempty"`
	PrevStatus string          `json:"prev_status,omitempty"`
	NextStatus string          `json:"next_status"`
	Details    json.RawMessage `json:"details,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

type Withdrawal struct {
	ID          uuid.UUID `json:"id"`
	AccountID   uuid.UUID `json:"account_id"`
	Amount      int64     `json:"amount"`
	Currency    string    `json:"currency"`
	Destination string    `json:"destination"`
	Status      string    `json:"status"`
	GatewayRef  *string   `json:"gateway_ref,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
