package domain

import (
	"errors"
	"fmt"
)

var (
	ErrAccountNotFound        = errors.New("account not found")
	ErrEscrowNotFound         = errors.New("escrow not found")
	ErrWithdrawalNotFound     = errors.New("withdrawal not found")
	ErrServiceTypeNotFound    = errors.New("service type not found")
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrPermissionDenied       = errors.New("permission denied")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrUnsupportedCurrency    = errors.New("unsupported currency")
	ErrInvalidOwner           = errors.New("invalid owner")
	ErrDuplicateReference     = errors.New("duplicate reference")
	ErrInvalidRequest         = errors.New("invalid request")
)

// TransitionError reports an action that is not legal from the escrow's current status.
type TransitionError struct {
	From   string
	Action string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid state transition: cannot %s escrow in status %s", e.Action, e.From)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidStateTransition
}
