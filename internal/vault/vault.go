package vault

import (
	"context"
	"errors"
	"fmt"
	"math/big"
)

var (
	// ErrInvalidAddress occurs when an empty account is supplied where a real
	// account is required.
	ErrInvalidAddress = errors.New("invalid account address")

	// ErrZeroAmount occurs when a deposit, withdrawal or redemption is
	// requested with a zero quantity.
	ErrZeroAmount = errors.New("amount must be positive")

	// ErrZeroShares occurs when a deposit would round down to zero shares,
	// which would silently forfeit the depositor's value.
	ErrZeroShares = errors.New("deposit would mint zero shares")

	// ErrZeroAssets occurs when a redemption would pay out zero assets for a
	// positive share quantity.
	ErrZeroAssets = errors.New("redemption would return zero assets")

	// ErrInsufficientShares occurs when a share debit would go negative.
	ErrInsufficientShares = errors.New("insufficient shares")

	// ErrInsufficientAllowance occurs when a third-party withdrawal exceeds
	// the owner's share allowance.
	ErrInsufficientAllowance = errors.New("insufficient share allowance")
)

// ExceededMaxError reports a policy ceiling violation together with the
// requested amount and the ceiling.
type ExceededMaxError struct {
	Op        string
	Requested *big.Int
	Max       *big.Int
}

func (e *ExceededMaxError) Error() string {
	return fmt.Sprintf("%s of %s exceeds maximum %s", e.Op, e.Requested, e.Max)
}

// Store owns the vault's durable state: per-account share balances, the share
// total, share allowances, and the vault's own record of wrapped base units.
// MintShares and BurnShares keep sum(shares) == total shares.
type Store interface {
	Shares(ctx context.Context, account string) (*big.Int, error)
	TotalShares(ctx context.Context) (*big.Int, error)
	MintShares(ctx context.Context, account string, amount *big.Int) error
	BurnShares(ctx context.Context, account string, amount *big.Int) error
	MoveShares(ctx context.Context, from, to string, amount *big.Int) error
	ShareAllowance(ctx context.Context, owner, spender string) (*big.Int, error)
	SetShareAllowance(ctx context.Context, owner, spender string, amount *big.Int) error
	HeldUnits(ctx context.Context) (*big.Int, error)
	AddHeldUnits(ctx context.Context, delta *big.Int) error
}
