package asset

import (
	"context"
	"errors"
	"math/big"
	"sync"
)

// ErrInsufficientAssets occurs when a holder lacks base-asset balance to
// cover a pull into the reserve.
var ErrInsufficientAssets = errors.New("insufficient base asset balance")

// Reserve represents the external base-asset ledger the wrapper debits and
// credits. The wrapper itself never implements asset custody; it only moves
// amounts between holders and its own reserve.
type Reserve interface {
	// Pull debits the holder and credits the reserve.
	Pull(ctx context.Context, from string, amount *big.Int) error
	// Push debits the reserve and credits the holder.
	Push(ctx context.Context, to string, amount *big.Int) error
	// Balance reports a holder's base-asset balance.
	Balance(ctx context.Context, holder string) (*big.Int, error)
}

type inMemoryReserve struct {
	mu       sync.RWMutex
	balances map[string]*big.Int
	reserve  *big.Int
}

// NewInMemory creates a concurrency-safe in-memory reserve simulator for
// tests and dev mode.
func NewInMemory() Reserve {
	return &inMemoryReserve{
		balances: make(map[string]*big.Int),
		reserve:  new(big.Int),
	}
}

func (r *inMemoryReserve) Pull(_ context.Context, from string, amount *big.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	balance, ok := r.balances[from]
	if !ok || balance.Cmp(amount) < 0 {
		return ErrInsufficientAssets
	}
	balance.Sub(balance, amount)
	r.reserve.Add(r.reserve, amount)
	return nil
}

func (r *inMemoryReserve) Push(_ context.Context, to string, amount *big.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.reserve.Cmp(amount) < 0 {
		return ErrInsufficientAssets
	}
	r.reserve.Sub(r.reserve, amount)
	balance, ok := r.balances[to]
	if !ok {
		balance = new(big.Int)
		r.balances[to] = balance
	}
	balance.Add(balance, amount)
	return nil
}

func (r *inMemoryReserve) Balance(_ context.Context, holder string) (*big.Int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	balance, ok := r.balances[holder]
	if !ok {
		return new(big.Int), nil
	}
	return new(big.Int).Set(balance), nil
}
