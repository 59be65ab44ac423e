package token

import (
	"context"
	"errors"
	"math/big"
)

var (
	// ErrInvalidAddress occurs when an empty account is supplied where a real
	// account is required.
	ErrInvalidAddress = errors.New("invalid account address")

	// ErrZeroAmount occurs when an operation defined only for positive
	// quantities is requested with zero.
	ErrZeroAmount = errors.New("amount must be positive")

	// ErrInsufficientBalance occurs when a debit would push an account
	// balance negative.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInsufficientAllowance occurs when a transferFrom exceeds the
	// remaining allowance.
	ErrInsufficientAllowance = errors.New("insufficient allowance")

	// ErrExpiredAuthorization occurs when a permit deadline has passed.
	ErrExpiredAuthorization = errors.New("authorization expired")

	// ErrInvalidAuthorization occurs when a permit signature does not recover
	// to the claimed owner.
	ErrInvalidAuthorization = errors.New("invalid authorization")

	// ErrInvalidRate occurs when the rate source reports a non-positive rate.
	ErrInvalidRate = errors.New("invalid exchange rate")
)

// Unlimited is the allowance sentinel meaning "never decrement". Matches the
// conventional 2^256-1 maximum.
var Unlimited = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// Store owns the durable ledger state: per-account base-unit balances, the
// base-unit total supply, allowances and permit nonces. Credit and Debit keep
// sum(balances) == total by adjusting both together; Move touches only the
// two accounts.
type Store interface {
	BaseUnits(ctx context.Context, account string) (*big.Int, error)
	TotalBaseUnits(ctx context.Context) (*big.Int, error)
	Credit(ctx context.Context, account string, baseUnits *big.Int) error
	Debit(ctx context.Context, account string, baseUnits *big.Int) error
	Move(ctx context.Context, from, to string, baseUnits *big.Int) error
	Allowance(ctx context.Context, owner, spender string) (*big.Int, error)
	SetAllowance(ctx context.Context, owner, spender string, amount *big.Int) error
	Nonce(ctx context.Context, owner string) (uint64, error)
	IncrementNonce(ctx context.Context, owner string) (uint64, error)
}
