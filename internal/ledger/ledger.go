package ledger

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned when a ledger operation is attempted without a
	// bound wallet account.
	ErrNotConnected = errors.New("wallet not connected")

	// ErrUserRejectedSignature indicates the wallet declined to sign a mutation.
	ErrUserRejectedSignature = errors.New("user rejected signature")

	// ErrLedgerReverted covers any on-chain rejection of a mutation.
	ErrLedgerReverted = errors.New("ledger reverted")

	// ErrInsufficientLedgerFunds is the ledger-side balance rejection. Errors
	// matching it also match ErrLedgerReverted.
	ErrInsufficientLedgerFunds = errors.New("insufficient ledger funds")

	// ErrInvalidAmount rejects zero or negative amounts before submission.
	ErrInvalidAmount = errors.New("amount must be positive")
)

// Receipt identifies a confirmed ledger transaction.
type Receipt struct {
	TxHash string
	Block  uint64
}

// Tx is a submitted, not yet confirmed, ledger mutation.
type Tx interface {
	// Hash returns the transaction identifier assigned at submission.
	Hash() string
	// Wait blocks until the mutation is confirmed or rejected by the ledger.
	Wait(ctx context.Context) (Receipt, error)
}

// Client is the ledger capability consumed by the balance controller. Every
// operation acts on behalf of the bound wallet account.
type Client interface {
	Balance(ctx context.Context, account string) (int64, error)
	Deposit(ctx context.Context, account string, amount int64) (Tx, error)
	Withdraw(ctx context.Context, account string, amount int64) (Tx, error)
}

// RevertError carries the ledger's reason for rejecting a mutation.
type RevertError struct {
	Reason       string
	Insufficient bool
}

func (e *RevertError) Error() string {
	if e.Reason == "" {
		return ErrLedgerReverted.Error()
	}
	return fmt.Sprintf("%s: %s", ErrLedgerReverted, e.Reason)
}

// Is matches ErrLedgerReverted, and ErrInsufficientLedgerFunds when the
// revert was caused by the ledger-side balance check.
func (e *RevertError) Is(target error) bool {
	switch target {
	case ErrLedgerReverted:
		return true
	case ErrInsufficientLedgerFunds:
		return e.Insufficient
	}
	return false
}

func validate(account string, amount int64) error {
	if account == "" {
		return ErrNotConnected
	}
	if amount <= 0 {
		return ErrInvalidAmount
	}
	return nil
}
