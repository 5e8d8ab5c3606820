package wallet

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/vault-pay/vault_pay/internal/ledger"
	"github.com/vault-pay/vault_pay/internal/logging"
	"github.com/vault-pay/vault_pay/internal/notification"
)

func newTestService() (*Service, ledger.Store) {
	store := ledger.NewMemoryStore()
	svc := NewService(store, notification.NewLoggerNotifier(logging.Discard()))
	return svc, store
}

func money(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return d
}

func mustCreate(t *testing.T, svc *Service, owner string) ledger.Wallet {
	t.Helper()
	w, err := svc.CreateWallet(context.Background(), CreateInput{Owner: owner})
	if err != nil {
		t.Fatalf("create wallet for %s: %v", owner, err)
	}
	return w
}

func mustDeposit(t *testing.T, svc *Service, walletID, amount string) ledger.Transaction {
	t.Helper()
	tx, err := svc.Deposit(context.Background(), walletID, money(t, amount), "")
	if err != nil {
		t.Fatalf("deposit %s into %s: %v", amount, walletID, err)
	}
	return tx
}

func balanceOf(t *testing.T, svc *Service, walletID string) decimal.Decimal {
	t.Helper()
	b, err := svc.GetBalance(context.Background(), walletID)
	if err != nil {
		t.Fatalf("balance of %s: %v", walletID, err)
	}
	return b.Amount
}

func TestCreateWallet(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	w, err := svc.CreateWallet(ctx, CreateInput{Owner: "user-1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.HasPrefix(w.ID, "WAL") || len(w.ID) != 16 {
		t.Fatalf("unexpected wallet id %q", w.ID)
	}
	if w.Currency != "USD" {
		t.Fatalf("expected default currency USD, got %s", w.Currency)
	}
	if !w.Balance.IsZero() {
		t.Fatalf("expected zero balance, got %s", w.Balance)
	}

	if _, err := svc.CreateWallet(ctx, CreateInput{Owner: "user-1", Currency: "EUR"}); !errors.Is(err, ledger.ErrDuplicateOwner) {
		t.Fatalf("expected ErrDuplicateOwner, got %v", err)
	}

	byOwner, err := svc.GetWalletByOwner(ctx, "user-1")
	if err != nil {
		t.Fatalf("get by owner: %v", err)
	}
	if byOwner.ID != w.ID {
		t.Fatalf("expected %s, got %s", w.ID, byOwner.ID)
	}
}

func TestDepositRejectsNonPositiveAmounts(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	w := mustCreate(t, svc, "user-1")

	for _, amount := range []string{"0.00", "-5.00"} {
		if _, err := svc.Deposit(ctx, w.ID, money(t, amount), ""); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("amount %s: expected ErrInvalidAmount, got %v", amount, err)
		}
	}

	if !balanceOf(t, svc, w.ID).IsZero() {
		t.Fatal("rejected deposit must not change the balance")
	}
	history, err := svc.WalletTransactions(ctx, w.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("rejected deposit must not append records, got %d", len(history))
	}
}

func TestDepositAppendsRecord(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	w := mustCreate(t, svc, "user-1")

	tx := mustDeposit(t, svc, w.ID, "100.00")
	if !strings.HasPrefix(tx.ID, "TXN") {
		t.Fatalf("unexpected transaction id %q", tx.ID)
	}
	if tx.Kind != ledger.KindDeposit || tx.ToWallet != w.ID || tx.FromWallet != "" {
		t.Fatalf("unexpected record %+v", tx)
	}
	if tx.Status != ledger.StatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", tx.Status)
	}
	if tx.Description != "Deposit to wallet" {
		t.Fatalf("expected default description, got %q", tx.Description)
	}

	if !balanceOf(t, svc, w.ID).Equal(money(t, "100.00")) {
		t.Fatalf("expected balance 100.00, got %s", balanceOf(t, svc, w.ID))
	}

	got, err := svc.GetTransaction(ctx, tx.ID)
	if err != nil {
		t.Fatalf("get transaction: %v", err)
	}
	if got.ID != tx.ID {
		t.Fatalf("expected %s, got %s", tx.ID, got.ID)
	}
}

func TestWithdrawInsufficientFunds(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	w := mustCreate(t, svc, "user-1")
	mustDeposit(t, svc, w.ID, "100.00")

	if _, err := svc.Withdraw(ctx, w.ID, money(t, "150.00"), ""); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if !balanceOf(t, svc, w.ID).Equal(money(t, "100.00")) {
		t.Fatalf("balance must stay 100.00, got %s", balanceOf(t, svc, w.ID))
	}

	history, err := svc.WalletTransactions(ctx, w.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("rejected withdrawal must not append a record, got %d records", len(history))
	}
}

func TestBalanceEqualsSignedHistorySum(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	w := mustCreate(t, svc, "user-1")

	mustDeposit(t, svc, w.ID, "50.00")
	mustDeposit(t, svc, w.ID, "25.50")
	if _, err := svc.Withdraw(ctx, w.ID, money(t, "30.25"), ""); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	mustDeposit(t, svc, w.ID, "4.75")

	history, err := svc.WalletTransactions(ctx, w.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}

	sum := decimal.Zero
	for _, tx := range history {
		if tx.Status != ledger.StatusCompleted {
			t.Fatalf("unexpected status %s in history", tx.Status)
		}
		switch {
		case tx.ToWallet == w.ID:
			sum = sum.Add(tx.Amount)
		case tx.FromWallet == w.ID:
			sum = sum.Sub(tx.Amount)
		}
	}

	balance := balanceOf(t, svc, w.ID)
	if !balance.Equal(sum) {
		t.Fatalf("balance %s does not match history sum %s", balance, sum)
	}
	if !balance.Equal(money(t, "50.00")) {
		t.Fatalf("expected balance 50.00, got %s", balance)
	}
}

func TestSequentialWithdrawalsExhaustExactly(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	w := mustCreate(t, svc, "user-1")
	mustDeposit(t, svc, w.ID, "100.00")

	amount := money(t, "25.00")
	for i := 0; i < 4; i++ {
		if _, err := svc.Withdraw(ctx, w.ID, amount, ""); err != nil {
			t.Fatalf("withdrawal %d: %v", i, err)
		}
	}
	if _, err := svc.Withdraw(ctx, w.ID, amount, ""); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("fifth withdrawal: expected ErrInsufficientFunds, got %v", err)
	}
	if !balanceOf(t, svc, w.ID).IsZero() {
		t.Fatalf("expected zero balance, got %s", balanceOf(t, svc, w.ID))
	}
}

func TestTransferMovesFundsAtomically(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	a := mustCreate(t, svc, "alice")
	b := mustCreate(t, svc, "bob")
	mustDeposit(t, svc, a.ID, "100.00")

	tx, err := svc.Transfer(ctx, a.ID, b.ID, money(t, "40.00"), "")
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if tx.Kind != ledger.KindTransfer || tx.FromWallet != a.ID || tx.ToWallet != b.ID {
		t.Fatalf("unexpected record %+v", tx)
	}
	if !tx.Amount.Equal(money(t, "40.00")) {
		t.Fatalf("expected amount 40.00, got %s", tx.Amount)
	}

	if !balanceOf(t, svc, a.ID).Equal(money(t, "60.00")) {
		t.Fatalf("expected source 60.00, got %s", balanceOf(t, svc, a.ID))
	}
	if !balanceOf(t, svc, b.ID).Equal(money(t, "40.00")) {
		t.Fatalf("expected destination 40.00, got %s", balanceOf(t, svc, b.ID))
	}

	historyB, err := svc.WalletTransactions(ctx, b.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	transfers := 0
	for _, rec := range historyB {
		if rec.Kind == ledger.KindTransfer {
			transfers++
		}
	}
	if transfers != 1 {
		t.Fatalf("expected exactly one TRANSFER record, got %d", transfers)
	}
}

func TestTransferValidation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	a := mustCreate(t, svc, "alice")
	b := mustCreate(t, svc, "bob")
	mustDeposit(t, svc, a.ID, "100.00")

	if _, err := svc.Transfer(ctx, a.ID, a.ID, money(t, "10.00"), ""); !errors.Is(err, ErrSameWalletTransfer) {
		t.Fatalf("expected ErrSameWalletTransfer, got %v", err)
	}
	if _, err := svc.Transfer(ctx, a.ID, b.ID, money(t, "0.00"), ""); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}

	_, err := svc.Transfer(ctx, a.ID, "WALMISSING", money(t, "10.00"), "")
	if !errors.Is(err, ledger.ErrWalletNotFound) {
		t.Fatalf("expected ErrWalletNotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), "destination wallet") {
		t.Fatalf("error must name the failing side, got %q", err)
	}

	if _, err := svc.Transfer(ctx, a.ID, b.ID, money(t, "500.00"), ""); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if !balanceOf(t, svc, a.ID).Equal(money(t, "100.00")) || !balanceOf(t, svc, b.ID).IsZero() {
		t.Fatal("failed transfer must leave both balances unchanged")
	}
}
