package token

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/wrapmint/wrapmint/internal/asset"
	"github.com/wrapmint/wrapmint/internal/conversion"
	"github.com/wrapmint/wrapmint/internal/notification"
	"github.com/wrapmint/wrapmint/internal/rate"
	"github.com/wrapmint/wrapmint/internal/signer"
)

// Metadata fixes the token identity used for display and for the permit
// domain separator.
type Metadata struct {
	Name   string
	Symbol string
}

// Service is the rebasing value-unit ledger. Storage is in base-asset units;
// every value-denominated figure is derived from base units and the cached
// rate at read time, which keeps rebase O(1).
type Service struct {
	mu       sync.RWMutex
	store    Store
	reserve  asset.Reserve
	rates    rate.Source
	verifier signer.Verifier
	notifier notification.Notifier
	meta     Metadata
	domain   []byte
	rate     *big.Int
}

// NewService constructs the ledger and snapshots the initial rate from the
// source. A non-positive initial rate is rejected.
func NewService(ctx context.Context, store Store, reserve asset.Reserve, rates rate.Source, verifier signer.Verifier, notifier notification.Notifier, meta Metadata) (*Service, error) {
	initial, err := rates.CurrentRate(ctx)
	if err != nil {
		return nil, fmt.Errorf("read initial rate: %w", err)
	}
	if initial.Sign() <= 0 {
		return nil, ErrInvalidRate
	}
	return &Service{
		store:    store,
		reserve:  reserve,
		rates:    rates,
		verifier: verifier,
		notifier: notifier,
		meta:     meta,
		domain:   signer.DomainSeparator(meta.Name, meta.Symbol),
		rate:     new(big.Int).Set(initial),
	}, nil
}

// Rate returns the cached exchange rate.
func (s *Service) Rate() *big.Int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return new(big.Int).Set(s.rate)
}

// Metadata returns the token identity.
func (s *Service) Metadata() Metadata {
	return s.meta
}

// DomainSeparator returns the permit domain identifier.
func (s *Service) DomainSeparator() []byte {
	out := make([]byte, len(s.domain))
	copy(out, s.domain)
	return out
}

// Rebase reads the current rate from the source and swaps the cached rate if
// it changed. No per-account state is touched; reported balances shift
// implicitly. Returns the rate now in effect.
func (s *Service) Rebase(ctx context.Context) (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.rates.CurrentRate(ctx)
	if err != nil {
		return nil, fmt.Errorf("read rate: %w", err)
	}
	if next.Cmp(s.rate) == 0 {
		return new(big.Int).Set(s.rate), nil
	}
	if next.Sign() <= 0 {
		return nil, ErrInvalidRate
	}

	previous := s.rate
	s.rate = new(big.Int).Set(next)
	s.emit(ctx, notification.Event{
		Kind:     notification.KindRateChange,
		Previous: previous.String(),
		Next:     s.rate.String(),
	})
	return new(big.Int).Set(s.rate), nil
}

// Mint pulls baseAmount base units from the account via the reserve and
// credits the account's stored balance by the same base amount. Returns the
// minted value at the current rate.
func (s *Service) Mint(ctx context.Context, account string, baseAmount *big.Int) (*big.Int, error) {
	if account == "" {
		return nil, ErrInvalidAddress
	}
	if baseAmount == nil || baseAmount.Sign() <= 0 {
		return nil, ErrZeroAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.reserve.Pull(ctx, account, baseAmount); err != nil {
		return nil, fmt.Errorf("pull base asset: %w", err)
	}
	if err := s.store.Credit(ctx, account, baseAmount); err != nil {
		return nil, err
	}

	minted := conversion.ToValueUnits(baseAmount, s.rate)
	s.emit(ctx, notification.Event{
		Kind:   notification.KindValueTransfer,
		To:     account,
		Amount: minted.String(),
	})
	return minted, nil
}

// Burn debits the owner by the base-unit equivalent of valueAmount and pushes
// those base units to baseReceiver (the owner when empty). Returns the base
// units released.
func (s *Service) Burn(ctx context.Context, owner string, valueAmount *big.Int, baseReceiver string) (*big.Int, error) {
	if owner == "" {
		return nil, ErrInvalidAddress
	}
	if valueAmount == nil || valueAmount.Sign() <= 0 {
		return nil, ErrZeroAmount
	}
	if baseReceiver == "" {
		baseReceiver = owner
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	baseAmount := conversion.ToBaseUnits(valueAmount, s.rate)
	// Ledger state settles before the reserve is touched so a re-entrant
	// reserve call cannot observe an unspent balance.
	if err := s.store.Debit(ctx, owner, baseAmount); err != nil {
		return nil, err
	}
	if err := s.reserve.Push(ctx, baseReceiver, baseAmount); err != nil {
		return nil, fmt.Errorf("push base asset: %w", err)
	}

	s.emit(ctx, notification.Event{
		Kind:   notification.KindValueTransfer,
		From:   owner,
		Amount: valueAmount.String(),
	})
	return baseAmount, nil
}

// BurnAll burns the owner's entire balance by debiting the full stored base
// amount, leaving no dust behind. Returns the base units released and the
// value they represented. A zero balance is a no-op.
func (s *Service) BurnAll(ctx context.Context, owner string, baseReceiver string) (*big.Int, *big.Int, error) {
	if owner == "" {
		return nil, nil, ErrInvalidAddress
	}
	if baseReceiver == "" {
		baseReceiver = owner
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	baseAmount, err := s.store.BaseUnits(ctx, owner)
	if err != nil {
		return nil, nil, err
	}
	if baseAmount.Sign() == 0 {
		return new(big.Int), new(big.Int), nil
	}
	value := conversion.ToValueUnits(baseAmount, s.rate)

	if err := s.store.Debit(ctx, owner, baseAmount); err != nil {
		return nil, nil, err
	}
	if err := s.reserve.Push(ctx, baseReceiver, baseAmount); err != nil {
		return nil, nil, fmt.Errorf("push base asset: %w", err)
	}

	s.emit(ctx, notification.Event{
		Kind:   notification.KindValueTransfer,
		From:   owner,
		Amount: value.String(),
	})
	return baseAmount, value, nil
}

// Transfer moves valueAmount from one account to another. The moved base
// units are converted back to value units for the event and the first return
// value; this re-derived amount may differ from the request by one rounding
// unit and is the figure consistent with stored state. The second return value
// is the base units that actually moved, so callers tracking base-unit
// holdings never re-derive them from a rate snapshot of their own.
func (s *Service) Transfer(ctx context.Context, from, to string, valueAmount *big.Int) (*big.Int, *big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transfer(ctx, from, to, valueAmount)
}

// TransferFrom moves valueAmount on behalf of from, enforcing and (unless
// unlimited) decrementing the spender's allowance. Returns the re-derived
// value moved and the base units that moved.
func (s *Service) TransferFrom(ctx context.Context, spender, from, to string, valueAmount *big.Int) (*big.Int, *big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if valueAmount == nil || valueAmount.Sign() < 0 {
		return nil, nil, ErrZeroAmount
	}
	allowed, err := s.store.Allowance(ctx, from, spender)
	if err != nil {
		return nil, nil, err
	}
	unlimited := allowed.Cmp(Unlimited) == 0
	if !unlimited && allowed.Cmp(valueAmount) < 0 {
		return nil, nil, ErrInsufficientAllowance
	}

	moved, baseMoved, err := s.transfer(ctx, from, to, valueAmount)
	if err != nil {
		return nil, nil, err
	}

	if !unlimited {
		remaining := new(big.Int).Sub(allowed, valueAmount)
		if err := s.store.SetAllowance(ctx, from, spender, remaining); err != nil {
			return nil, nil, err
		}
	}
	return moved, baseMoved, nil
}

func (s *Service) transfer(ctx context.Context, from, to string, valueAmount *big.Int) (*big.Int, *big.Int, error) {
	if from == "" || to == "" {
		return nil, nil, ErrInvalidAddress
	}
	if valueAmount == nil || valueAmount.Sign() < 0 {
		return nil, nil, ErrZeroAmount
	}

	baseAmount := conversion.ToBaseUnits(valueAmount, s.rate)
	if err := s.store.Move(ctx, from, to, baseAmount); err != nil {
		return nil, nil, err
	}
	moved := conversion.ToValueUnits(baseAmount, s.rate)

	s.emit(ctx, notification.Event{
		Kind:   notification.KindValueTransfer,
		From:   from,
		To:     to,
		Amount: moved.String(),
	})
	return moved, baseAmount, nil
}

// Approve sets the allowance from owner to spender.
func (s *Service) Approve(ctx context.Context, owner, spender string, amount *big.Int) error {
	if owner == "" || spender == "" {
		return ErrInvalidAddress
	}
	if amount == nil {
		amount = new(big.Int)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.SetAllowance(ctx, owner, spender, amount); err != nil {
		return err
	}
	s.emit(ctx, notification.Event{
		Kind:    notification.KindApproval,
		Owner:   owner,
		Spender: spender,
		Amount:  amount.String(),
	})
	return nil
}

// Allowance reports the remaining allowance from owner to spender.
func (s *Service) Allowance(ctx context.Context, owner, spender string) (*big.Int, error) {
	return s.store.Allowance(ctx, owner, spender)
}

// Nonce reports the owner's current permit nonce.
func (s *Service) Nonce(ctx context.Context, owner string) (uint64, error) {
	return s.store.Nonce(ctx, owner)
}

// BalanceOf derives the account's value-unit balance from its stored base
// units and the cached rate. Never cached.
func (s *Service) BalanceOf(ctx context.Context, account string) (*big.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	baseUnits, err := s.store.BaseUnits(ctx, account)
	if err != nil {
		return nil, err
	}
	return conversion.ToValueUnits(baseUnits, s.rate), nil
}

// BaseUnitsOf reports the account's stored base-unit balance.
func (s *Service) BaseUnitsOf(ctx context.Context, account string) (*big.Int, error) {
	return s.store.BaseUnits(ctx, account)
}

// TotalSupply derives the value-unit supply from the base-unit total.
func (s *Service) TotalSupply(ctx context.Context) (*big.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total, err := s.store.TotalBaseUnits(ctx)
	if err != nil {
		return nil, err
	}
	return conversion.ToValueUnits(total, s.rate), nil
}

// TotalBaseUnits reports the stored base-unit total supply.
func (s *Service) TotalBaseUnits(ctx context.Context) (*big.Int, error) {
	return s.store.TotalBaseUnits(ctx)
}

func (s *Service) emit(ctx context.Context, event notification.Event) {
	if s.notifier != nil {
		_ = s.notifier.Emit(ctx, event)
	}
}
