package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrWalletNotFound occurs when no wallet exists for the requested id or owner.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrTransactionNotFound occurs when no transaction exists for the requested id.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrDuplicateOwner indicates the owner already holds a wallet. One wallet
	// per owner is enforced here because it cannot be derived from a race-free
	// read at the service layer.
	ErrDuplicateOwner = errors.New("owner already has a wallet")

	// ErrDuplicateTransaction indicates the transaction id already exists in the
	// append-only history.
	ErrDuplicateTransaction = errors.New("duplicate transaction")

	// ErrVersionConflict indicates a versioned balance mutation lost the race
	// against a concurrent writer and must be retried from a fresh read.
	ErrVersionConflict = errors.New("wallet version conflict")
)

const (
	// KindDeposit credits a wallet from outside the ledger.
	KindDeposit = "DEPOSIT"
	// KindWithdrawal debits a wallet to outside the ledger.
	KindWithdrawal = "WITHDRAWAL"
	// KindTransfer moves funds between two wallets.
	KindTransfer = "TRANSFER"

	// StatusCompleted marks a fully applied transaction.
	StatusCompleted = "COMPLETED"
	// StatusFailed marks a rejected transaction. Failed operations normally
	// leave no record at all; the status exists for the response model.
	StatusFailed = "FAILED"
)

// Wallet is a stored-value account. Balance is mutated in place; Version
// increments on every balance mutation and backs optimistic concurrency.
type Wallet struct {
	ID        string
	Owner     string
	Currency  string
	Balance   decimal.Decimal
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Transaction is one immutable entry of the movement history. FromWallet is
// set for withdrawals and transfers, ToWallet for deposits and transfers.
type Transaction struct {
	ID          string
	Kind        string
	FromWallet  string
	ToWallet    string
	Amount      decimal.Decimal
	Status      string
	Description string
	Timestamp   time.Time
}

// Store is the contract implemented by ledger backends (in-memory, Postgres).
//
// MutateBalance is the single atomic primitive correctness is built from: it
// applies the delta only when the stored version equals expectedVersion, then
// increments the version. It is linearizable per wallet, so no two concurrent
// callers can both succeed against the same expected version. The store knows
// nothing about the balance/history pairing rule; the wallet service owns it.
type Store interface {
	CreateWallet(ctx context.Context, w Wallet) (Wallet, error)
	Get(ctx context.Context, walletID string) (Wallet, error)
	GetByOwner(ctx context.Context, owner string) (Wallet, error)
	MutateBalance(ctx context.Context, walletID string, delta decimal.Decimal, expectedVersion int64) (Wallet, error)
	AppendTransaction(ctx context.Context, tx Transaction) (Transaction, error)
	TransactionsForWallet(ctx context.Context, walletID string) ([]Transaction, error)
	TransactionByID(ctx context.Context, id string) (Transaction, error)
}
