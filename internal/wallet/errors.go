package wallet

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrOwnerRequired rejects wallet creation without an owner.
	ErrOwnerRequired = errors.New("owner is required")

	// ErrInvalidAmount rejects zero or negative amounts before any read or
	// mutation happens.
	ErrInvalidAmount = errors.New("amount must be greater than 0")

	// ErrSameWalletTransfer rejects transfers where source and destination are
	// the same wallet.
	ErrSameWalletTransfer = errors.New("cannot transfer to the same wallet")

	// ErrInsufficientFunds indicates the source balance cannot cover the debit.
	// No mutation is performed.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrConcurrencyExhausted indicates the bounded optimistic retry budget ran
	// out. The operation had no lasting side effects and may be retried whole.
	ErrConcurrencyExhausted = errors.New("too many concurrent updates, retry the operation")

	// ErrTransferFailed indicates a transfer leg failed after the debit leg
	// committed and the debit was successfully compensated. Balances are
	// restored; the wrapped cause explains the failing leg.
	ErrTransferFailed = errors.New("transfer failed")

	// ErrTransferIrrecoverable indicates a compensating mutation itself failed
	// and the ledger needs out-of-band reconciliation. Always carried by an
	// IrrecoverableError with the details required to reconcile.
	ErrTransferIrrecoverable = errors.New("transfer left an unreconciled balance")
)

// IrrecoverableError reports a mutation that could not be compensated. It
// carries enough detail for manual reconciliation and must never be swallowed.
type IrrecoverableError struct {
	WalletID      string
	Amount        decimal.Decimal
	TransactionID string
	Cause         error
}

func (e *IrrecoverableError) Error() string {
	return fmt.Sprintf("unreconciled amount %s on wallet %s (attempted transaction %s): %v",
		e.Amount, e.WalletID, e.TransactionID, e.Cause)
}

// Unwrap exposes both the sentinel and the underlying cause so callers can
// match either with errors.Is.
func (e *IrrecoverableError) Unwrap() []error {
	return []error{ErrTransferIrrecoverable, e.Cause}
}
