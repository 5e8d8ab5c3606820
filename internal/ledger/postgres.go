package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const uniqueViolation = "23505"

// PostgresStore persists wallets and transactions in PostgreSQL.
//
// Expected schema:
//
//	CREATE TABLE wallets (
//	    id         TEXT PRIMARY KEY,
//	    owner_id   TEXT NOT NULL UNIQUE,
//	    currency   TEXT NOT NULL,
//	    balance    NUMERIC(20,2) NOT NULL DEFAULT 0 CHECK (balance >= 0),
//	    version    BIGINT NOT NULL DEFAULT 0,
//	    created_at TIMESTAMPTZ NOT NULL,
//	    updated_at TIMESTAMPTZ NOT NULL
//	);
//	CREATE TABLE transactions (
//	    id          TEXT PRIMARY KEY,
//	    kind        TEXT NOT NULL,
//	    from_wallet TEXT,
//	    to_wallet   TEXT,
//	    amount      NUMERIC(20,2) NOT NULL CHECK (amount > 0),
//	    status      TEXT NOT NULL,
//	    description TEXT,
//	    created_at  TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX transactions_from_wallet_idx ON transactions (from_wallet);
//	CREATE INDEX transactions_to_wallet_idx ON transactions (to_wallet);
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// CreateWallet inserts a wallet row, relying on the owner uniqueness
// constraint to enforce one wallet per owner.
func (s *PostgresStore) CreateWallet(ctx context.Context, w Wallet) (Wallet, error) {
	_, err := s.db.Exec(ctx, `INSERT INTO wallets (id, owner_id, currency, balance, version, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		w.ID, w.Owner, w.Currency, w.Balance, w.Version, w.CreatedAt.UTC(), w.UpdatedAt.UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			if pgErr.ConstraintName == "wallets_owner_id_key" {
				return Wallet{}, ErrDuplicateOwner
			}
			return Wallet{}, fmt.Errorf("wallet %s already exists", w.ID)
		}
		return Wallet{}, err
	}
	return w, nil
}

// Get fetches a wallet by id.
func (s *PostgresStore) Get(ctx context.Context, walletID string) (Wallet, error) {
	return s.scanWallet(s.db.QueryRow(ctx, `SELECT id, owner_id, currency, balance, version, created_at, updated_at
        FROM wallets WHERE id = $1`, walletID))
}

// GetByOwner fetches a wallet by its owning principal.
func (s *PostgresStore) GetByOwner(ctx context.Context, owner string) (Wallet, error) {
	return s.scanWallet(s.db.QueryRow(ctx, `SELECT id, owner_id, currency, balance, version, created_at, updated_at
        FROM wallets WHERE owner_id = $1`, owner))
}

// MutateBalance applies the delta through a version-guarded UPDATE. The WHERE
// clause on version makes the compare-and-swap a single atomic statement, so
// two concurrent callers against the same expected version cannot both match.
func (s *PostgresStore) MutateBalance(ctx context.Context, walletID string, delta decimal.Decimal, expectedVersion int64) (Wallet, error) {
	row := s.db.QueryRow(ctx, `UPDATE wallets
        SET balance = balance + $2, version = version + 1, updated_at = now()
        WHERE id = $1 AND version = $3
        RETURNING id, owner_id, currency, balance, version, created_at, updated_at`,
		walletID, delta, expectedVersion)

	w, err := s.scanWallet(row)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, ErrWalletNotFound) {
		return Wallet{}, err
	}

	// No row matched: distinguish a missing wallet from a lost race.
	var exists bool
	if qerr := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM wallets WHERE id = $1)`, walletID).Scan(&exists); qerr != nil {
		return Wallet{}, qerr
	}
	if !exists {
		return Wallet{}, ErrWalletNotFound
	}
	return Wallet{}, ErrVersionConflict
}

// AppendTransaction inserts an immutable history record.
func (s *PostgresStore) AppendTransaction(ctx context.Context, tx Transaction) (Transaction, error) {
	_, err := s.db.Exec(ctx, `INSERT INTO transactions (id, kind, from_wallet, to_wallet, amount, status, description, created_at)
        VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7, $8)`,
		tx.ID, tx.Kind, tx.FromWallet, tx.ToWallet, tx.Amount, tx.Status, tx.Description, tx.Timestamp.UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Transaction{}, ErrDuplicateTransaction
		}
		return Transaction{}, err
	}
	return tx, nil
}

// TransactionsForWallet returns both legs of the wallet's history ordered by
// timestamp ascending.
func (s *PostgresStore) TransactionsForWallet(ctx context.Context, walletID string) ([]Transaction, error) {
	rows, err := s.db.Query(ctx, `SELECT id, kind, COALESCE(from_wallet, ''), COALESCE(to_wallet, ''), amount, status, COALESCE(description, ''), created_at
        FROM transactions
        WHERE from_wallet = $1 OR to_wallet = $1
        ORDER BY created_at ASC, id ASC`, walletID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]Transaction, 0)
	for rows.Next() {
		var tx Transaction
		if err := rows.Scan(&tx.ID, &tx.Kind, &tx.FromWallet, &tx.ToWallet, &tx.Amount, &tx.Status, &tx.Description, &tx.Timestamp); err != nil {
			return nil, err
		}
		result = append(result, tx)
	}
	return result, rows.Err()
}

// TransactionByID fetches a single history record.
func (s *PostgresStore) TransactionByID(ctx context.Context, id string) (Transaction, error) {
	var tx Transaction
	err := s.db.QueryRow(ctx, `SELECT id, kind, COALESCE(from_wallet, ''), COALESCE(to_wallet, ''), amount, status, COALESCE(description, ''), created_at
        FROM transactions WHERE id = $1`, id).
		Scan(&tx.ID, &tx.Kind, &tx.FromWallet, &tx.ToWallet, &tx.Amount, &tx.Status, &tx.Description, &tx.Timestamp)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrTransactionNotFound
		}
		return Transaction{}, err
	}
	return tx, nil
}

func (s *PostgresStore) scanWallet(row pgx.Row) (Wallet, error) {
	var w Wallet
	err := row.Scan(&w.ID, &w.Owner, &w.Currency, &w.Balance, &w.Version, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, ErrWalletNotFound
		}
		return Wallet{}, err
	}
	return w, nil
}
