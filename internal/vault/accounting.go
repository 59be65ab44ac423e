package vault

import (
	"context"
	"fmt"
	"math/big"

	"github.com/wrapmint/wrapmint/internal/conversion"
	"github.com/wrapmint/wrapmint/internal/token"
)

// Accounting decides how the vault measures the assets backing its shares.
// The two strategies are not interchangeable at runtime: a vault instance
// picks one at construction and keeps it for life, because they diverge when
// the vault's ledger account is manipulated externally.
type Accounting interface {
	// TotalAssets reports the wrapped holdings in ledger value units.
	TotalAssets(ctx context.Context) (*big.Int, error)
	// RecordDeposit notes base units the vault itself wrapped in.
	RecordDeposit(ctx context.Context, baseUnits *big.Int) error
	// RecordWithdraw notes base units the vault itself released.
	RecordWithdraw(ctx context.Context, baseUnits *big.Int) error
}

// passThrough trusts the ledger's live balance of the vault account. Fewer
// moving parts, but a donation to the vault account shifts the share price.
type passThrough struct {
	ledger  *token.Service
	account string
}

// NewPassThrough builds the live-query accounting strategy.
func NewPassThrough(ledger *token.Service, account string) Accounting {
	return &passThrough{ledger: ledger, account: account}
}

func (a *passThrough) TotalAssets(ctx context.Context) (*big.Int, error) {
	return a.ledger.BalanceOf(ctx, a.account)
}

func (a *passThrough) RecordDeposit(context.Context, *big.Int) error  { return nil }
func (a *passThrough) RecordWithdraw(context.Context, *big.Int) error { return nil }

// selfTracked keeps its own base-unit counter of what the vault wrapped and
// derives total assets through the two-stage base-units-to-value path. The
// counter only moves when the vault itself moves assets, so the share price
// cannot be pushed around by transfers into the vault's ledger account.
type selfTracked struct {
	store  Store
	ledger *token.Service
}

// NewSelfTracked builds the held-units accounting strategy.
func NewSelfTracked(store Store, ledger *token.Service) Accounting {
	return &selfTracked{store: store, ledger: ledger}
}

func (a *selfTracked) TotalAssets(ctx context.Context) (*big.Int, error) {
	held, err := a.store.HeldUnits(ctx)
	if err != nil {
		return nil, err
	}
	return conversion.ToValueUnits(held, a.ledger.Rate()), nil
}

func (a *selfTracked) RecordDeposit(ctx context.Context, baseUnits *big.Int) error {
	return a.store.AddHeldUnits(ctx, baseUnits)
}

func (a *selfTracked) RecordWithdraw(ctx context.Context, baseUnits *big.Int) error {
	if err := a.store.AddHeldUnits(ctx, new(big.Int).Neg(baseUnits)); err != nil {
		return fmt.Errorf("release held units: %w", err)
	}
	return nil
}
