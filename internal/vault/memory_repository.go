package vault

import (
	"context"
	"errors"
	"math/big"
	"sync"
)

type memoryStore struct {
	mu         sync.RWMutex
	shares     map[string]*big.Int
	total      *big.Int
	allowances map[string]*big.Int
	held       *big.Int
}

// NewMemoryStore creates a concurrency-safe in-memory vault store used in
// tests and dev mode.
func NewMemoryStore() Store {
	return &memoryStore{
		shares:     make(map[string]*big.Int),
		total:      new(big.Int),
		allowances: make(map[string]*big.Int),
		held:       new(big.Int),
	}
}

func shareAllowanceKey(owner, spender string) string {
	return owner + "\x00" + spender
}

func (s *memoryStore) Shares(_ context.Context, account string) (*big.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	balance, ok := s.shares[account]
	if !ok {
		return new(big.Int), nil
	}
	return new(big.Int).Set(balance), nil
}

func (s *memoryStore) TotalShares(_ context.Context) (*big.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return new(big.Int).Set(s.total), nil
}

func (s *memoryStore) MintShares(_ context.Context, account string, amount *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	balance, ok := s.shares[account]
	if !ok {
		balance = new(big.Int)
		s.shares[account] = balance
	}
	balance.Add(balance, amount)
	s.total.Add(s.total, amount)
	return nil
}

func (s *memoryStore) BurnShares(_ context.Context, account string, amount *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	balance, ok := s.shares[account]
	if !ok || balance.Cmp(amount) < 0 {
		return ErrInsufficientShares
	}
	balance.Sub(balance, amount)
	s.total.Sub(s.total, amount)
	return nil
}

func (s *memoryStore) MoveShares(_ context.Context, from, to string, amount *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fromBalance, ok := s.shares[from]
	if !ok {
		fromBalance = new(big.Int)
		s.shares[from] = fromBalance
	}
	if fromBalance.Cmp(amount) < 0 {
		return ErrInsufficientShares
	}
	toBalance, ok := s.shares[to]
	if !ok {
		toBalance = new(big.Int)
		s.shares[to] = toBalance
	}
	fromBalance.Sub(fromBalance, amount)
	toBalance.Add(toBalance, amount)
	return nil
}

func (s *memoryStore) ShareAllowance(_ context.Context, owner, spender string) (*big.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	amount, ok := s.allowances[shareAllowanceKey(owner, spender)]
	if !ok {
		return new(big.Int), nil
	}
	return new(big.Int).Set(amount), nil
}

func (s *memoryStore) SetShareAllowance(_ context.Context, owner, spender string, amount *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allowances[shareAllowanceKey(owner, spender)] = new(big.Int).Set(amount)
	return nil
}

func (s *memoryStore) HeldUnits(_ context.Context) (*big.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return new(big.Int).Set(s.held), nil
}

func (s *memoryStore) AddHeldUnits(_ context.Context, delta *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := new(big.Int).Add(s.held, delta)
	if next.Sign() < 0 {
		return errors.New("held units would go negative")
	}
	s.held = next
	return nil
}
