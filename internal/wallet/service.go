package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vault-pay/vault_pay/internal/ledger"
	"github.com/vault-pay/vault_pay/internal/notification"
)

const (
	defaultCurrency = "USD"

	// mutateAttempts bounds the optimistic read-mutate retry loop. A writer
	// that loses the version race this many times in a row surfaces
	// ErrConcurrencyExhausted instead of spinning.
	mutateAttempts = 5
)

// Service owns the balance-mutation rules over the ledger store: every
// balance change is paired with exactly one appended transaction record, and
// a transfer either applies both legs or restores the source balance.
type Service struct {
	store    ledger.Store
	notifier notification.Notifier
}

// NewService builds a wallet service instance.
func NewService(store ledger.Store, notifier notification.Notifier) *Service {
	return &Service{store: store, notifier: notifier}
}

// CreateInput captures data required to create a wallet.
type CreateInput struct {
	Owner    string
	Currency string
}

// Balance is a point-in-time view of a wallet's available funds.
type Balance struct {
	WalletID string
	Amount   decimal.Decimal
	Currency string
	AsOf     time.Time
}

// CreateWallet provisions a zero-balance wallet for the owner. The store
// enforces the one-wallet-per-owner rule and reports ledger.ErrDuplicateOwner.
func (s *Service) CreateWallet(ctx context.Context, input CreateInput) (ledger.Wallet, error) {
	owner := strings.TrimSpace(input.Owner)
	if owner == "" {
		return ledger.Wallet{}, ErrOwnerRequired
	}

	currency := input.Currency
	if currency == "" {
		currency = defaultCurrency
	}

	now := time.Now().UTC()
	return s.store.CreateWallet(ctx, ledger.Wallet{
		ID:        newWalletID(),
		Owner:     owner,
		Currency:  currency,
		Balance:   decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

// Deposit credits the wallet and appends the matching DEPOSIT record. If the
// append fails after the credit committed, the credit is reversed before the
// error surfaces.
func (s *Service) Deposit(ctx context.Context, walletID string, amount decimal.Decimal, description string) (ledger.Transaction, error) {
	if !amount.IsPositive() {
		return ledger.Transaction{}, ErrInvalidAmount
	}

	updated, err := s.applyDelta(ctx, walletID, amount)
	if err != nil {
		return ledger.Transaction{}, err
	}

	if description == "" {
		description = "Deposit to wallet"
	}
	tx := ledger.Transaction{
		ID:          newTransactionID(),
		Kind:        ledger.KindDeposit,
		ToWallet:    walletID,
		Amount:      amount,
		Status:      ledger.StatusCompleted,
		Description: description,
		Timestamp:   time.Now().UTC(),
	}
	if _, err := s.store.AppendTransaction(ctx, tx); err != nil {
		if cerr := s.reverse(ctx, walletID, amount.Neg(), tx.ID); cerr != nil {
			return ledger.Transaction{}, cerr
		}
		return ledger.Transaction{}, fmt.Errorf("append deposit record: %w", err)
	}

	s.notify(ctx, notification.KindDeposit, updated.Owner,
		fmt.Sprintf("Your wallet %s was credited %s", walletID, amount))
	return tx, nil
}

// Withdraw debits the wallet and appends the matching WITHDRAWAL record. The
// insufficient-funds check is re-derived from a fresh versioned read on every
// attempt, so a stale balance snapshot never authorizes a debit.
func (s *Service) Withdraw(ctx context.Context, walletID string, amount decimal.Decimal, description string) (ledger.Transaction, error) {
	if !amount.IsPositive() {
		return ledger.Transaction{}, ErrInvalidAmount
	}

	if _, err := s.applyDelta(ctx, walletID, amount.Neg()); err != nil {
		return ledger.Transaction{}, err
	}

	if description == "" {
		description = "Withdrawal from wallet"
	}
	tx := ledger.Transaction{
		ID:          newTransactionID(),
		Kind:        ledger.KindWithdrawal,
		FromWallet:  walletID,
		Amount:      amount,
		Status:      ledger.StatusCompleted,
		Description: description,
		Timestamp:   time.Now().UTC(),
	}
	if _, err := s.store.AppendTransaction(ctx, tx); err != nil {
		if cerr := s.reverse(ctx, walletID, amount, tx.ID); cerr != nil {
			return ledger.Transaction{}, cerr
		}
		return ledger.Transaction{}, fmt.Errorf("append withdrawal record: %w", err)
	}

	return tx, nil
}

// Transfer moves funds between two wallets as a debit leg followed by a
// credit leg, then appends a single TRANSFER record. The legs are separate
// store mutations, so any failure after the debit committed triggers
// compensating reversals; a TRANSFER record only exists when both legs and
// the append succeeded.
func (s *Service) Transfer(ctx context.Context, fromWalletID, toWalletID string, amount decimal.Decimal, description string) (ledger.Transaction, error) {
	if !amount.IsPositive() {
		return ledger.Transaction{}, ErrInvalidAmount
	}
	if fromWalletID == toWalletID {
		return ledger.Transaction{}, ErrSameWalletTransfer
	}

	dest, err := s.store.Get(ctx, toWalletID)
	if err != nil {
		return ledger.Transaction{}, fmt.Errorf("destination wallet %s: %w", toWalletID, err)
	}

	txID := newTransactionID()

	if _, err := s.applyDelta(ctx, fromWalletID, amount.Neg()); err != nil {
		if errors.Is(err, ledger.ErrWalletNotFound) {
			return ledger.Transaction{}, fmt.Errorf("source wallet %s: %w", fromWalletID, err)
		}
		return ledger.Transaction{}, err
	}

	if _, err := s.applyDelta(ctx, toWalletID, amount); err != nil {
		if cerr := s.reverse(ctx, fromWalletID, amount, txID); cerr != nil {
			return ledger.Transaction{}, cerr
		}
		return ledger.Transaction{}, fmt.Errorf("%w: credit leg: %v", ErrTransferFailed, err)
	}

	if description == "" {
		description = fmt.Sprintf("Transfer to wallet %s", toWalletID)
	}
	tx := ledger.Transaction{
		ID:          txID,
		Kind:        ledger.KindTransfer,
		FromWallet:  fromWalletID,
		ToWallet:    toWalletID,
		Amount:      amount,
		Status:      ledger.StatusCompleted,
		Description: description,
		Timestamp:   time.Now().UTC(),
	}
	if _, err := s.store.AppendTransaction(ctx, tx); err != nil {
		// Both reversals run regardless of each other's outcome: a stuck
		// credit on the destination never cancels the compensating credit
		// owed to the source. Every failed reversal is reported.
		destErr := s.reverse(ctx, toWalletID, amount.Neg(), txID)
		srcErr := s.reverse(ctx, fromWalletID, amount, txID)
		if destErr != nil || srcErr != nil {
			return ledger.Transaction{}, errors.Join(destErr, srcErr)
		}
		return ledger.Transaction{}, fmt.Errorf("%w: append record: %v", ErrTransferFailed, err)
	}

	s.notify(ctx, notification.KindTransfer, dest.Owner,
		fmt.Sprintf("You received %s from wallet %s", amount, fromWalletID))
	return tx, nil
}

// GetWallet retrieves a wallet by id.
func (s *Service) GetWallet(ctx context.Context, walletID string) (ledger.Wallet, error) {
	return s.store.Get(ctx, walletID)
}

// GetWalletByOwner retrieves the wallet held by the owner.
func (s *Service) GetWalletByOwner(ctx context.Context, owner string) (ledger.Wallet, error) {
	return s.store.GetByOwner(ctx, owner)
}

// GetBalance returns the current balance view for the wallet.
func (s *Service) GetBalance(ctx context.Context, walletID string) (Balance, error) {
	w, err := s.store.Get(ctx, walletID)
	if err != nil {
		return Balance{}, err
	}
	return Balance{WalletID: w.ID, Amount: w.Balance, Currency: w.Currency, AsOf: time.Now().UTC()}, nil
}

// GetTransaction retrieves a single history record.
func (s *Service) GetTransaction(ctx context.Context, id string) (ledger.Transaction, error) {
	return s.store.TransactionByID(ctx, id)
}

// WalletTransactions returns both legs of the wallet's history in timestamp
// order. An empty history is a valid result, not an error.
func (s *Service) WalletTransactions(ctx context.Context, walletID string) ([]ledger.Transaction, error) {
	return s.store.TransactionsForWallet(ctx, walletID)
}

// applyDelta runs the bounded optimistic read-mutate cycle. Each attempt
// re-reads the wallet, re-checks that a debit stays within the balance, and
// issues the version-guarded mutation; a version conflict means a concurrent
// writer got there first and forces a fresh read rather than an overwrite.
func (s *Service) applyDelta(ctx context.Context, walletID string, delta decimal.Decimal) (ledger.Wallet, error) {
	for attempt := 0; attempt < mutateAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return ledger.Wallet{}, err
		}

		current, err := s.store.Get(ctx, walletID)
		if err != nil {
			return ledger.Wallet{}, err
		}
		if delta.IsNegative() && current.Balance.Add(delta).IsNegative() {
			return ledger.Wallet{}, ErrInsufficientFunds
		}

		updated, err := s.store.MutateBalance(ctx, walletID, delta, current.Version)
		if errors.Is(err, ledger.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return ledger.Wallet{}, err
		}
		return updated, nil
	}
	return ledger.Wallet{}, ErrConcurrencyExhausted
}

// reverse applies a compensating delta after a later step failed. It runs
// detached from the caller's cancellation so an expired deadline cannot leave
// the ledger unreconciled; if the compensation itself fails the result is an
// IrrecoverableError with the detail needed for manual reconciliation.
func (s *Service) reverse(ctx context.Context, walletID string, delta decimal.Decimal, txID string) error {
	if _, err := s.applyDelta(context.WithoutCancel(ctx), walletID, delta); err != nil {
		return &IrrecoverableError{
			WalletID:      walletID,
			Amount:        delta.Abs(),
			TransactionID: txID,
			Cause:         err,
		}
	}
	return nil
}

func (s *Service) notify(ctx context.Context, kind, destination, body string) {
	if s.notifier == nil {
		return
	}
	_ = s.notifier.Send(ctx, notification.Message{Kind: kind, Destination: destination, Body: body})
}

func newWalletID() string {
	return "WAL" + randomSuffix()
}

func newTransactionID() string {
	return "TXN" + randomSuffix()
}

// randomSuffix keeps the original WAL/TXN id shape: 13 uppercase hex chars
// drawn from a fresh UUID. Collisions are improbable; if the store still
// reports a duplicate, the operation fails hard and a retry generates a new id.
func randomSuffix() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:13])
}
