package repository

import (
	"github.com/jackc/pgx/v5/pgtype"
)

type Account struct {
	ID                pgtype.UUID
	OwnerType         string
	OwnerID           pgtype.UUID
	Currency          string
	AvailableBalance  int64
	InContractBalance int64
	CreatedAt         pgtype.Timestamptz
	UpdatedAt         pgtype.Timestamptz
}

type LedgerEntry struct {
	ID            pgtype.UUID
	AccountID     pgtype.UUID
	Amount        int64
	Bucket        string
	EntryType     string
	ReferenceType string
	ReferenceID   string
	Description   string
	CreatedAt     pgtype.Timestamptz
}

type ServiceType struct {
	ID                         pgtype.UUID
	Code                       string
	Name                       string
	PlatformFeePercent         string
	RequiresPartyAConfirmation bool
	RequiresPartyBConfirmation bool
	DefaultExpiryHours         int32
	CreatedAt                  pgtype.Timestamptz
}

type Escrow struct {
	ID                         pgtype.UUID
	ServiceTypeID              pgtype.UUID
	PartyAType                 string
	PartyAID                   pgtype.UUID
	PartyBType                 *string
	PartyBID                   pgtype.UUID
	CounterpartyEmail          *string
	CounterpartyOrgID          pgtype.UUID
	Status                     string
	Amount                     int64
	Currency                   string
	PlatformFeePercent         string
	PlatformFee                *int64
	RequiresPartyAConfirmation bool
	RequiresPartyBConfirmation bool
	Metadata                   []byte
	PartyAConfirmedAt          pgtype.Timestamptz
	PartyBConfirmedAt          pgtype.Timestamptz
	FundedAt                   pgtype.Timestamptz
	CompletedAt                pgtype.Timestamptz
	CanceledAt                 pgtype.Timestamptz
	ExpiresAt                  pgtype.Timestamptz
	CreatedAt                  pgtype.Timestamptz
	UpdatedAt                  pgtype.Timestamptz
}

type EscrowEvent struct {
	ID         int64
	EscrowID   pgtype.UUID
	EventType  string
	ActorID    pgtype.UUID
	PrevStatus *string
	NextStatus string
	Details    []byte
	CreatedAt  pgtype.Timestamptz
}

type Withdrawal struct {
	ID          pgtype.UUID
	AccountID   pgtype.UUID
	Amount      int64
	Currency    string
	Destination string
	ReferenceID string
	Status      string
	GatewayRef  *string
	CreatedAt   pgtype.Timestamptz
	UpdatedAt   pgtype.Timestamptz
}

type IdempotencyKey struct {
	IdempotencyKey string
	RequestHash    string
	Method         string
	Path           string
	ResponseStatus int32
	ResponseBody   []byte
	ContentType    string
	InProgress     bool
	CreatedAt      pgtype.Timestamptz
	UpdatedAt      pgtype.Timestamptz
}
