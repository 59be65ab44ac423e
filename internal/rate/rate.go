package rate

import (
	"context"
	"errors"
	"math/big"
	"sync"
)

// ErrUnavailable occurs when a source cannot produce a current rate.
var ErrUnavailable = errors.New("exchange rate unavailable")

// Source supplies the current exchange rate scaled by conversion.Unit. A
// source makes no monotonicity guarantee; consumers must reject non-positive
// rates themselves.
type Source interface {
	CurrentRate(ctx context.Context) (*big.Int, error)
}

// Static is an in-memory source updated administratively. Useful in dev mode
// and tests.
type Static struct {
	mu   sync.RWMutex
	rate *big.Int
}

// NewStatic builds a static source seeded with the provided rate.
func NewStatic(initial *big.Int) *Static {
	return &Static{rate: new(big.Int).Set(initial)}
}

// CurrentRate returns a copy of the stored rate.
func (s *Static) CurrentRate(_ context.Context) (*big.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.rate == nil {
		return nil, ErrUnavailable
	}
	return new(big.Int).Set(s.rate), nil
}

// Set replaces the stored rate.
func (s *Static) Set(rate *big.Int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rate = new(big.Int).Set(rate)
}
