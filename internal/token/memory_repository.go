package token

import (
	"context"
	"math/big"
	"sync"
)

type memoryStore struct {
	mu         sync.RWMutex
	balances   map[string]*big.Int
	total      *big.Int
	allowances map[string]*big.Int
	nonces     map[string]uint64
}

// NewMemoryStore creates a concurrency-safe in-memory ledger store used in
// tests and dev mode.
func NewMemoryStore() Store {
	return &memoryStore{
		balances:   make(map[string]*big.Int),
		total:      new(big.Int),
		allowances: make(map[string]*big.Int),
		nonces:     make(map[string]uint64),
	}
}

func allowanceKey(owner, spender string) string {
	return owner + "\x00" + spender
}

func (s *memoryStore) BaseUnits(_ context.Context, account string) (*big.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	balance, ok := s.balances[account]
	if !ok {
		return new(big.Int), nil
	}
	return new(big.Int).Set(balance), nil
}

func (s *memoryStore) TotalBaseUnits(_ context.Context) (*big.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return new(big.Int).Set(s.total), nil
}

func (s *memoryStore) Credit(_ context.Context, account string, baseUnits *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	balance, ok := s.balances[account]
	if !ok {
		balance = new(big.Int)
		s.balances[account] = balance
	}
	balance.Add(balance, baseUnits)
	s.total.Add(s.total, baseUnits)
	return nil
}

func (s *memoryStore) Debit(_ context.Context, account string, baseUnits *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	balance, ok := s.balances[account]
	if !ok || balance.Cmp(baseUnits) < 0 {
		return ErrInsufficientBalance
	}
	balance.Sub(balance, baseUnits)
	s.total.Sub(s.total, baseUnits)
	return nil
}

func (s *memoryStore) Move(_ context.Context, from, to string, baseUnits *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fromBalance, ok := s.balances[from]
	if !ok {
		fromBalance = new(big.Int)
		s.balances[from] = fromBalance
	}
	if fromBalance.Cmp(baseUnits) < 0 {
		return ErrInsufficientBalance
	}
	toBalance, ok := s.balances[to]
	if !ok {
		toBalance = new(big.Int)
		s.balances[to] = toBalance
	}
	fromBalance.Sub(fromBalance, baseUnits)
	toBalance.Add(toBalance, baseUnits)
	return nil
}

func (s *memoryStore) Allowance(_ context.Context, owner, spender string) (*big.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	amount, ok := s.allowances[allowanceKey(owner, spender)]
	if !ok {
		return new(big.Int), nil
	}
	return new(big.Int).Set(amount), nil
}

func (s *memoryStore) SetAllowance(_ context.Context, owner, spender string, amount *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allowances[allowanceKey(owner, spender)] = new(big.Int).Set(amount)
	return nil
}

func (s *memoryStore) Nonce(_ context.Context, owner string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nonces[owner], nil
}

func (s *memoryStore) IncrementNonce(_ context.Context, owner string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nonces[owner]++
	return s.nonces[owner], nil
}
