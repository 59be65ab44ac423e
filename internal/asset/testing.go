package asset

import "math/big"

// Seed is a test helper that seeds a holder's balance when using the
// in-memory reserve.
func Seed(r Reserve, holder string, amount *big.Int) {
	if mem, ok := r.(*inMemoryReserve); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.balances[holder] = new(big.Int).Set(amount)
	}
}

// ReserveBalance is a test helper reporting the reserve's own holdings when
// using the in-memory reserve.
func ReserveBalance(r Reserve) *big.Int {
	if mem, ok := r.(*inMemoryReserve); ok {
		mem.mu.RLock()
		defer mem.mu.RUnlock()
		return new(big.Int).Set(mem.reserve)
	}
	return nil
}
