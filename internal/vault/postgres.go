package vault

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists vault state in PostgreSQL. Amounts are decimal text;
// arithmetic happens in Go inside row-locked transactions.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed vault store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Shares(ctx context.Context, account string) (*big.Int, error) {
	var raw string
	err := s.db.QueryRow(ctx, `SELECT shares FROM vault_shares WHERE account = $1`, account).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, err
	}
	return parseStored(raw)
}

func (s *PostgresStore) TotalShares(ctx context.Context) (*big.Int, error) {
	total, _, err := s.state(ctx)
	return total, err
}

func (s *PostgresStore) HeldUnits(ctx context.Context) (*big.Int, error) {
	_, held, err := s.state(ctx)
	return held, err
}

func (s *PostgresStore) state(ctx context.Context) (*big.Int, *big.Int, error) {
	var rawTotal, rawHeld string
	err := s.db.QueryRow(ctx, `SELECT total_shares, held_units FROM vault_state WHERE id = 1`).Scan(&rawTotal, &rawHeld)
	if errors.Is(err, pgx.ErrNoRows) {
		return new(big.Int), new(big.Int), nil
	}
	if err != nil {
		return nil, nil, err
	}
	total, err := parseStored(rawTotal)
	if err != nil {
		return nil, nil, err
	}
	held, err := parseStored(rawHeld)
	if err != nil {
		return nil, nil, err
	}
	return total, held, nil
}

func (s *PostgresStore) MintShares(ctx context.Context, account string, amount *big.Int) error {
	return s.adjustShares(ctx, account, amount, amount)
}

func (s *PostgresStore) BurnShares(ctx context.Context, account string, amount *big.Int) error {
	return s.adjustShares(ctx, account, new(big.Int).Neg(amount), new(big.Int).Neg(amount))
}

func (s *PostgresStore) adjustShares(ctx context.Context, account string, delta, totalDelta *big.Int) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	balance, err := lockedShares(ctx, tx, account)
	if err != nil {
		return err
	}
	balance.Add(balance, delta)
	if balance.Sign() < 0 {
		return ErrInsufficientShares
	}
	if err := writeShares(ctx, tx, account, balance); err != nil {
		return err
	}
	if err := adjustState(ctx, tx, totalDelta, new(big.Int)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) MoveShares(ctx context.Context, from, to string, amount *big.Int) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	fromBalance, err := lockedShares(ctx, tx, from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return ErrInsufficientShares
	}
	toBalance, err := lockedShares(ctx, tx, to)
	if err != nil {
		return err
	}

	fromBalance.Sub(fromBalance, amount)
	toBalance.Add(toBalance, amount)
	if err := writeShares(ctx, tx, from, fromBalance); err != nil {
		return err
	}
	if err := writeShares(ctx, tx, to, toBalance); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) ShareAllowance(ctx context.Context, owner, spender string) (*big.Int, error) {
	var raw string
	err := s.db.QueryRow(ctx, `SELECT amount FROM vault_share_allowances WHERE owner = $1 AND spender = $2`, owner, spender).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, err
	}
	return parseStored(raw)
}

func (s *PostgresStore) SetShareAllowance(ctx context.Context, owner, spender string, amount *big.Int) error {
	_, err := s.db.Exec(ctx, `INSERT INTO vault_share_allowances (owner, spender, amount) VALUES ($1, $2, $3)
        ON CONFLICT (owner, spender) DO UPDATE SET amount = EXCLUDED.amount`, owner, spender, amount.String())
	return err
}

func (s *PostgresStore) AddHeldUnits(ctx context.Context, delta *big.Int) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := adjustState(ctx, tx, new(big.Int), delta); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func lockedShares(ctx context.Context, tx pgx.Tx, account string) (*big.Int, error) {
	var raw string
	err := tx.QueryRow(ctx, `SELECT shares FROM vault_shares WHERE account = $1 FOR UPDATE`, account).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, err
	}
	return parseStored(raw)
}

func writeShares(ctx context.Context, tx pgx.Tx, account string, balance *big.Int) error {
	_, err := tx.Exec(ctx, `INSERT INTO vault_shares (account, shares) VALUES ($1, $2)
        ON CONFLICT (account) DO UPDATE SET shares = EXCLUDED.shares`, account, balance.String())
	return err
}

func adjustState(ctx context.Context, tx pgx.Tx, totalDelta, heldDelta *big.Int) error {
	var rawTotal, rawHeld string
	total := new(big.Int)
	held := new(big.Int)
	err := tx.QueryRow(ctx, `SELECT total_shares, held_units FROM vault_state WHERE id = 1 FOR UPDATE`).Scan(&rawTotal, &rawHeld)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return err
	default:
		if total, err = parseStored(rawTotal); err != nil {
			return err
		}
		if held, err = parseStored(rawHeld); err != nil {
			return err
		}
	}
	total.Add(total, totalDelta)
	held.Add(held, heldDelta)
	if held.Sign() < 0 {
		return errors.New("held units would go negative")
	}
	_, err = tx.Exec(ctx, `INSERT INTO vault_state (id, total_shares, held_units) VALUES (1, $1, $2)
        ON CONFLICT (id) DO UPDATE SET total_shares = EXCLUDED.total_shares, held_units = EXCLUDED.held_units`,
		total.String(), held.String())
	return err
}

func parseStored(raw string) (*big.Int, error) {
	out, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("malformed stored amount %q", raw)
	}
	return out, nil
}
