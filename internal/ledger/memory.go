package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type memoryStore struct {
	mu           sync.RWMutex
	wallets      map[string]Wallet
	ownerIndex   map[string]string
	transactions map[string]Transaction
}

// NewMemoryStore creates a concurrency-safe in-memory store used by unit
// tests and dev mode.
func NewMemoryStore() Store {
	return &memoryStore{
		wallets:      make(map[string]Wallet),
		ownerIndex:   make(map[string]string),
		transactions: make(map[string]Transaction),
	}
}

func (s *memoryStore) CreateWallet(_ context.Context, w Wallet) (Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ownerIndex[w.Owner]; exists {
		return Wallet{}, ErrDuplicateOwner
	}
	if _, exists := s.wallets[w.ID]; exists {
		return Wallet{}, fmt.Errorf("wallet %s already exists", w.ID)
	}

	s.wallets[w.ID] = w
	s.ownerIndex[w.Owner] = w.ID
	return w, nil
}

func (s *memoryStore) Get(_ context.Context, walletID string) (Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.wallets[walletID]
	if !ok {
		return Wallet{}, ErrWalletNotFound
	}
	return w, nil
}

func (s *memoryStore) GetByOwner(_ context.Context, owner string) (Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.ownerIndex[owner]
	if !ok {
		return Wallet{}, ErrWalletNotFound
	}
	return s.wallets[id], nil
}

func (s *memoryStore) MutateBalance(_ context.Context, walletID string, delta decimal.Decimal, expectedVersion int64) (Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.wallets[walletID]
	if !ok {
		return Wallet{}, ErrWalletNotFound
	}
	if w.Version != expectedVersion {
		return Wallet{}, ErrVersionConflict
	}

	w.Balance = w.Balance.Add(delta)
	w.Version++
	w.UpdatedAt = time.Now().UTC()
	s.wallets[walletID] = w
	return w, nil
}

func (s *memoryStore) AppendTransaction(_ context.Context, tx Transaction) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.transactions[tx.ID]; exists {
		return Transaction{}, ErrDuplicateTransaction
	}
	s.transactions[tx.ID] = tx
	return tx, nil
}

func (s *memoryStore) TransactionsForWallet(_ context.Context, walletID string) ([]Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Transaction, 0)
	for _, tx := range s.transactions {
		if tx.FromWallet == walletID || tx.ToWallet == walletID {
			result = append(result, tx)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Timestamp.Equal(result[j].Timestamp) {
			return result[i].ID < result[j].ID
		}
		return result[i].Timestamp.Before(result[j].Timestamp)
	})
	return result, nil
}

func (s *memoryStore) TransactionByID(_ context.Context, id string) (Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.transactions[id]
	if !ok {
		return Transaction{}, ErrTransactionNotFound
	}
	return tx, nil
}
