package token

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists ledger state in PostgreSQL. Unbounded integers are
// stored as decimal text; arithmetic happens in Go inside row-locked
// transactions.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed ledger store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// BaseUnits returns the stored base-unit balance for the account.
func (s *PostgresStore) BaseUnits(ctx context.Context, account string) (*big.Int, error) {
	var raw string
	err := s.db.QueryRow(ctx, `SELECT base_units FROM token_accounts WHERE account = $1`, account).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, err
	}
	return parseBig(raw)
}

// TotalBaseUnits returns the stored base-unit total supply.
func (s *PostgresStore) TotalBaseUnits(ctx context.Context) (*big.Int, error) {
	var raw string
	err := s.db.QueryRow(ctx, `SELECT total_base_units FROM token_supply WHERE id = 1`).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, err
	}
	return parseBig(raw)
}

// Credit adds base units to the account and to the total supply.
func (s *PostgresStore) Credit(ctx context.Context, account string, baseUnits *big.Int) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	balance, err := lockedBalance(ctx, tx, account)
	if err != nil {
		return err
	}
	balance.Add(balance, baseUnits)
	if err := writeBalance(ctx, tx, account, balance); err != nil {
		return err
	}
	if err := adjustSupply(ctx, tx, baseUnits); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Debit removes base units from the account and the total supply, failing if
// the balance would go negative.
func (s *PostgresStore) Debit(ctx context.Context, account string, baseUnits *big.Int) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	balance, err := lockedBalance(ctx, tx, account)
	if err != nil {
		return err
	}
	if balance.Cmp(baseUnits) < 0 {
		return ErrInsufficientBalance
	}
	balance.Sub(balance, baseUnits)
	if err := writeBalance(ctx, tx, account, balance); err != nil {
		return err
	}
	if err := adjustSupply(ctx, tx, new(big.Int).Neg(baseUnits)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Move shifts base units between two accounts without changing the total.
func (s *PostgresStore) Move(ctx context.Context, from, to string, baseUnits *big.Int) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	fromBalance, err := lockedBalance(ctx, tx, from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(baseUnits) < 0 {
		return ErrInsufficientBalance
	}
	toBalance, err := lockedBalance(ctx, tx, to)
	if err != nil {
		return err
	}

	fromBalance.Sub(fromBalance, baseUnits)
	toBalance.Add(toBalance, baseUnits)
	if err := writeBalance(ctx, tx, from, fromBalance); err != nil {
		return err
	}
	if err := writeBalance(ctx, tx, to, toBalance); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Allowance returns the remaining allowance from owner to spender.
func (s *PostgresStore) Allowance(ctx context.Context, owner, spender string) (*big.Int, error) {
	var raw string
	err := s.db.QueryRow(ctx, `SELECT amount FROM token_allowances WHERE owner = $1 AND spender = $2`, owner, spender).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, err
	}
	return parseBig(raw)
}

// SetAllowance overwrites the allowance from owner to spender.
func (s *PostgresStore) SetAllowance(ctx context.Context, owner, spender string, amount *big.Int) error {
	_, err := s.db.Exec(ctx, `INSERT INTO token_allowances (owner, spender, amount) VALUES ($1, $2, $3)
        ON CONFLICT (owner, spender) DO UPDATE SET amount = EXCLUDED.amount`, owner, spender, amount.String())
	return err
}

// Nonce returns the owner's permit nonce.
func (s *PostgresStore) Nonce(ctx context.Context, owner string) (uint64, error) {
	var nonce int64
	err := s.db.QueryRow(ctx, `SELECT nonce FROM token_nonces WHERE owner = $1`, owner).Scan(&nonce)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return uint64(nonce), nil
}

// IncrementNonce advances the owner's permit nonce by one.
func (s *PostgresStore) IncrementNonce(ctx context.Context, owner string) (uint64, error) {
	var nonce int64
	err := s.db.QueryRow(ctx, `INSERT INTO token_nonces (owner, nonce) VALUES ($1, 1)
        ON CONFLICT (owner) DO UPDATE SET nonce = token_nonces.nonce + 1
        RETURNING nonce`, owner).Scan(&nonce)
	if err != nil {
		return 0, err
	}
	return uint64(nonce), nil
}

func lockedBalance(ctx context.Context, tx pgx.Tx, account string) (*big.Int, error) {
	var raw string
	err := tx.QueryRow(ctx, `SELECT base_units FROM token_accounts WHERE account = $1 FOR UPDATE`, account).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, err
	}
	return parseBig(raw)
}

func writeBalance(ctx context.Context, tx pgx.Tx, account string, balance *big.Int) error {
	_, err := tx.Exec(ctx, `INSERT INTO token_accounts (account, base_units) VALUES ($1, $2)
        ON CONFLICT (account) DO UPDATE SET base_units = EXCLUDED.base_units`, account, balance.String())
	return err
}

func adjustSupply(ctx context.Context, tx pgx.Tx, delta *big.Int) error {
	var raw string
	err := tx.QueryRow(ctx, `SELECT total_base_units FROM token_supply WHERE id = 1 FOR UPDATE`).Scan(&raw)
	total := new(big.Int)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return err
	default:
		if total, err = parseBig(raw); err != nil {
			return err
		}
	}
	total.Add(total, delta)
	_, err = tx.Exec(ctx, `INSERT INTO token_supply (id, total_base_units) VALUES (1, $1)
        ON CONFLICT (id) DO UPDATE SET total_base_units = EXCLUDED.total_base_units`, total.String())
	return err
}

func parseBig(raw string) (*big.Int, error) {
	out, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("malformed stored amount %q", raw)
	}
	return out, nil
}
