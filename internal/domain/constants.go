package domain

const (
	// CurrencyUSD is the only currency accounts and escrows are denominated in.
	CurrencyUSD = "USD"

	OwnerTypeUser         = "user"
	OwnerTypeOrganization = "organization"

	BucketAvailable  = "available"
	BucketInContract = "in_contract"

	EntryTypeDeposit       = "DEPOSIT"
	EntryTypeEscrowLock    = "ESCROW_LOCK"
	EntryTypeEscrowRelease = "ESCROW_RELEASE"
	EntryTypeEscrowReceive = "ESCROW_RECEIVE"
	EntryTypePlatformFee   = "PLATFORM_FEE"
	EntryTypeRefund        = "REFUND"
	EntryTypeWithdraw      = "WITHDRAW"

	ReferenceTypeEscrow     = "escrow"
	ReferenceTypeWithdrawal = "withdrawal"

	// Escrow statuses
	EscrowStatusCreated           = "CREATED"
	EscrowStatusPendingAcceptance = "PENDING_ACCEPTANCE"
	EscrowStatusPendingFunding    = "PENDING_FUNDING"
	EscrowStatusFunded            = "FUNDED"
	EscrowStatusPartyBConfirmed   = "PARTY_B_CONFIRMED"
	EscrowStatusPartyAConfirmed   = "PARTY_A_CONFIRMED"
	EscrowStatusCompleted         = "COMPLETED"
	EscrowStatusCanceled          = "CANCELED"
	EscrowStatusExpired           = "EXPIRED"
	EscrowStatusDisputed          = "DISPUTED"

	// Escrow event types
	EscrowEventCreated    = "created"
	EscrowEventPosted     = "posted"
	EscrowEventAccepted   = "accepted"
	EscrowEventFunded     = "funded"
	EscrowEventConfirmedA = "party_a_confirmed"
	EscrowEventConfirmedB = "party_b_confirmed"
	EscrowEventCompleted  = "completed"
	EscrowEventCanceled   = "canceled"
	EscrowEventExpired    = "expired"
	EscrowEventDisputed   = "disputed"

	// Withdrawal statuses
	WithdrawalStatusPending    = "PENDING"
	WithdrawalStatusProcessing = "PROCESSING"
	WithdrawalStatusCompleted  = "COMPLETED"
	WithdrawalStatusFailed     = "FAILED"

	RoleUser  = "user"
	RoleAdmin = "admin"
)
