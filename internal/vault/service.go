package vault

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/wrapmint/wrapmint/internal/conversion"
	"github.com/wrapmint/wrapmint/internal/notification"
	"github.com/wrapmint/wrapmint/internal/token"
)

var one = big.NewInt(1)

// Config fixes a vault instance's identity and policy at construction.
type Config struct {
	// Account is the vault's own account on the rebasing ledger.
	Account string
	// DecimalsOffset is the virtual-liquidity exponent d: 10^d virtual
	// shares and one virtual asset unit enter every share/asset ratio, so an
	// empty vault cannot be pushed to an extreme share price.
	DecimalsOffset uint
	// MaxDeposit optionally caps deposits per receiver. Nil means unlimited.
	MaxDeposit func(receiver string) *big.Int
}

// Service wraps the rebasing ledger as its asset and issues non-rebasing
// shares against it. All asset figures are in ledger value units.
type Service struct {
	mu            sync.Mutex
	store         Store
	ledger        *token.Service
	accounting    Accounting
	notifier      notification.Notifier
	account       string
	virtualShares *big.Int
	maxDeposit    func(receiver string) *big.Int
}

// NewService constructs a vault over the given ledger with the chosen
// accounting strategy.
func NewService(store Store, ledger *token.Service, accounting Accounting, notifier notification.Notifier, cfg Config) (*Service, error) {
	if cfg.Account == "" {
		return nil, ErrInvalidAddress
	}
	virtual := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(cfg.DecimalsOffset)), nil)
	return &Service{
		store:         store,
		ledger:        ledger,
		accounting:    accounting,
		notifier:      notifier,
		account:       cfg.Account,
		virtualShares: virtual,
		maxDeposit:    cfg.MaxDeposit,
	}, nil
}

// Account returns the vault's ledger account.
func (s *Service) Account() string {
	return s.account
}

// TotalAssets reports the wrapped holdings in value units, per the vault's
// accounting strategy.
func (s *Service) TotalAssets(ctx context.Context) (*big.Int, error) {
	return s.accounting.TotalAssets(ctx)
}

func (s *Service) ratio(ctx context.Context) (totalShares, totalAssets *big.Int, err error) {
	totalShares, err = s.store.TotalShares(ctx)
	if err != nil {
		return nil, nil, err
	}
	totalAssets, err = s.accounting.TotalAssets(ctx)
	if err != nil {
		return nil, nil, err
	}
	return totalShares, totalAssets, nil
}

func ceilDiv(num, den *big.Int) *big.Int {
	out, rem := new(big.Int).QuoRem(num, den, new(big.Int))
	if rem.Sign() != 0 {
		out.Add(out, one)
	}
	return out
}

// ConvertToShares converts an asset amount to shares, rounding down.
func (s *Service) ConvertToShares(ctx context.Context, assets *big.Int) (*big.Int, error) {
	totalShares, totalAssets, err := s.ratio(ctx)
	if err != nil {
		return nil, err
	}
	num := new(big.Int).Mul(assets, new(big.Int).Add(totalShares, s.virtualShares))
	return num.Quo(num, new(big.Int).Add(totalAssets, one)), nil
}

// ConvertToAssets converts a share amount to assets, rounding down.
func (s *Service) ConvertToAssets(ctx context.Context, shares *big.Int) (*big.Int, error) {
	totalShares, totalAssets, err := s.ratio(ctx)
	if err != nil {
		return nil, err
	}
	num := new(big.Int).Mul(shares, new(big.Int).Add(totalAssets, one))
	return num.Quo(num, new(big.Int).Add(totalShares, s.virtualShares)), nil
}

// PreviewDeposit returns the shares a deposit would mint, rounding down in
// the vault's favor.
func (s *Service) PreviewDeposit(ctx context.Context, assets *big.Int) (*big.Int, error) {
	return s.ConvertToShares(ctx, assets)
}

// PreviewRedeem returns the assets a redemption would pay, rounding down in
// the vault's favor.
func (s *Service) PreviewRedeem(ctx context.Context, shares *big.Int) (*big.Int, error) {
	return s.ConvertToAssets(ctx, shares)
}

// PreviewWithdraw returns the shares a withdrawal would burn, rounding up in
// the vault's favor.
func (s *Service) PreviewWithdraw(ctx context.Context, assets *big.Int) (*big.Int, error) {
	totalShares, totalAssets, err := s.ratio(ctx)
	if err != nil {
		return nil, err
	}
	num := new(big.Int).Mul(assets, new(big.Int).Add(totalShares, s.virtualShares))
	return ceilDiv(num, new(big.Int).Add(totalAssets, one)), nil
}

// PreviewMint returns the assets minting a share amount would cost, rounding
// up in the vault's favor.
func (s *Service) PreviewMint(ctx context.Context, shares *big.Int) (*big.Int, error) {
	totalShares, totalAssets, err := s.ratio(ctx)
	if err != nil {
		return nil, err
	}
	num := new(big.Int).Mul(shares, new(big.Int).Add(totalAssets, one))
	return ceilDiv(num, new(big.Int).Add(totalShares, s.virtualShares)), nil
}

// MaxDeposit reports the deposit ceiling for a receiver. Nil means no limit.
func (s *Service) MaxDeposit(receiver string) *big.Int {
	if s.maxDeposit == nil {
		return nil
	}
	return s.maxDeposit(receiver)
}

// MaxMint is always zero: the share-denominated mint path would accept the
// raw base asset directly, which this system does not support.
func (s *Service) MaxMint(string) *big.Int {
	return new(big.Int)
}

// MaxWithdraw reports the value-unit amount the owner could withdraw.
func (s *Service) MaxWithdraw(ctx context.Context, owner string) (*big.Int, error) {
	shares, err := s.store.Shares(ctx, owner)
	if err != nil {
		return nil, err
	}
	return s.ConvertToAssets(ctx, shares)
}

// MaxRedeem reports the owner's redeemable share balance.
func (s *Service) MaxRedeem(ctx context.Context, owner string) (*big.Int, error) {
	return s.store.Shares(ctx, owner)
}

// Deposit pulls amount value units from the caller and mints shares to the
// receiver. When the caller's ledger balance is short, the shortfall is
// wrapped transparently by minting the caller's raw base asset into the
// ledger first. The caller must have approved the vault's ledger account.
func (s *Service) Deposit(ctx context.Context, caller string, amount *big.Int, receiver string) (*big.Int, error) {
	if caller == "" || receiver == "" {
		return nil, ErrInvalidAddress
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrZeroAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if max := s.MaxDeposit(receiver); max != nil && amount.Cmp(max) > 0 {
		return nil, &ExceededMaxError{Op: "deposit", Requested: new(big.Int).Set(amount), Max: max}
	}

	shares, err := s.PreviewDeposit(ctx, amount)
	if err != nil {
		return nil, err
	}
	if shares.Sign() == 0 {
		return nil, ErrZeroShares
	}

	balance, err := s.ledger.BalanceOf(ctx, caller)
	if err != nil {
		return nil, err
	}
	if balance.Cmp(amount) < 0 {
		shortfall := new(big.Int).Sub(amount, balance)
		baseNeeded := ceilDiv(new(big.Int).Mul(shortfall, conversion.Unit), s.ledger.Rate())
		if _, err := s.ledger.Mint(ctx, caller, baseNeeded); err != nil {
			return nil, fmt.Errorf("wrap base asset: %w", err)
		}
	}

	// Accounting records the base units the ledger reports moving, never a
	// figure re-derived from a separate rate snapshot: a rebase landing
	// between the two would drift the held-units counter for good.
	_, baseMoved, err := s.ledger.TransferFrom(ctx, s.account, caller, s.account, amount)
	if err != nil {
		return nil, err
	}
	if err := s.accounting.RecordDeposit(ctx, baseMoved); err != nil {
		return nil, err
	}
	if err := s.store.MintShares(ctx, receiver, shares); err != nil {
		return nil, err
	}

	s.emit(ctx, notification.Event{
		Kind:   notification.KindVaultDeposit,
		From:   caller,
		To:     receiver,
		Amount: amount.String(),
		Shares: shares.String(),
	})
	return shares, nil
}

// Mint is the disabled share-denominated deposit path; it always fails with
// the zero ceiling.
func (s *Service) Mint(_ context.Context, _ string, shares *big.Int, _ string) (*big.Int, error) {
	requested := new(big.Int)
	if shares != nil {
		requested.Set(shares)
	}
	return nil, &ExceededMaxError{Op: "mint", Requested: requested, Max: new(big.Int)}
}

// Withdraw burns enough of the owner's shares to release amount value units
// and pushes the unwrapped base asset to the receiver. A caller other than
// the owner spends the owner's share allowance.
func (s *Service) Withdraw(ctx context.Context, caller string, amount *big.Int, receiver, owner string) (*big.Int, error) {
	if caller == "" || receiver == "" || owner == "" {
		return nil, ErrInvalidAddress
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrZeroAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	max, err := s.MaxWithdraw(ctx, owner)
	if err != nil {
		return nil, err
	}
	if amount.Cmp(max) > 0 {
		return nil, &ExceededMaxError{Op: "withdraw", Requested: new(big.Int).Set(amount), Max: max}
	}

	shares, err := s.PreviewWithdraw(ctx, amount)
	if err != nil {
		return nil, err
	}

	if err := s.settle(ctx, caller, owner, receiver, amount, shares); err != nil {
		return nil, err
	}
	return shares, nil
}

// Redeem burns an exact share quantity and pays the floor-rounded asset
// equivalent to the receiver.
func (s *Service) Redeem(ctx context.Context, caller string, shares *big.Int, receiver, owner string) (*big.Int, error) {
	if caller == "" || receiver == "" || owner == "" {
		return nil, ErrInvalidAddress
	}
	if shares == nil || shares.Sign() <= 0 {
		return nil, ErrZeroAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	max, err := s.MaxRedeem(ctx, owner)
	if err != nil {
		return nil, err
	}
	if shares.Cmp(max) > 0 {
		return nil, &ExceededMaxError{Op: "redeem", Requested: new(big.Int).Set(shares), Max: max}
	}

	amount, err := s.PreviewRedeem(ctx, shares)
	if err != nil {
		return nil, err
	}
	if amount.Sign() == 0 {
		return nil, ErrZeroAssets
	}

	if err := s.settle(ctx, caller, owner, receiver, amount, shares); err != nil {
		return nil, err
	}
	return amount, nil
}

// settle executes the common exit path: spend allowance, burn shares, release
// the asset through the ledger burn, then record the released base units. The
// shares are burned before the ledger is invoked so a re-entrant call cannot
// observe unburned shares.
func (s *Service) settle(ctx context.Context, caller, owner, receiver string, amount, shares *big.Int) error {
	if caller != owner {
		if err := s.spendShareAllowance(ctx, owner, caller, shares); err != nil {
			return err
		}
	}
	if err := s.store.BurnShares(ctx, owner, shares); err != nil {
		return err
	}

	// The ledger burn reports the base units it actually released; the
	// held-units counter follows that figure, not a local conversion.
	baseOut, err := s.ledger.Burn(ctx, s.account, amount, receiver)
	if err != nil {
		return err
	}
	if err := s.accounting.RecordWithdraw(ctx, baseOut); err != nil {
		return err
	}

	s.emit(ctx, notification.Event{
		Kind:   notification.KindVaultWithdraw,
		From:   caller,
		To:     receiver,
		Owner:  owner,
		Amount: amount.String(),
		Shares: shares.String(),
	})
	return nil
}

func (s *Service) spendShareAllowance(ctx context.Context, owner, spender string, shares *big.Int) error {
	allowed, err := s.store.ShareAllowance(ctx, owner, spender)
	if err != nil {
		return err
	}
	if allowed.Cmp(token.Unlimited) == 0 {
		return nil
	}
	if allowed.Cmp(shares) < 0 {
		return ErrInsufficientAllowance
	}
	return s.store.SetShareAllowance(ctx, owner, spender, new(big.Int).Sub(allowed, shares))
}

// ShareBalanceOf reports an account's share balance.
func (s *Service) ShareBalanceOf(ctx context.Context, account string) (*big.Int, error) {
	return s.store.Shares(ctx, account)
}

// TotalShares reports the outstanding share supply.
func (s *Service) TotalShares(ctx context.Context) (*big.Int, error) {
	return s.store.TotalShares(ctx)
}

// ShareTransfer moves shares between accounts. Shares do not rebase.
func (s *Service) ShareTransfer(ctx context.Context, from, to string, amount *big.Int) error {
	if from == "" || to == "" {
		return ErrInvalidAddress
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrZeroAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.MoveShares(ctx, from, to, amount); err != nil {
		return err
	}
	s.emit(ctx, notification.Event{
		Kind:   notification.KindShareTransfer,
		From:   from,
		To:     to,
		Shares: amount.String(),
	})
	return nil
}

// ShareApprove sets a share allowance from owner to spender.
func (s *Service) ShareApprove(ctx context.Context, owner, spender string, amount *big.Int) error {
	if owner == "" || spender == "" {
		return ErrInvalidAddress
	}
	if amount == nil {
		amount = new(big.Int)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.SetShareAllowance(ctx, owner, spender, amount); err != nil {
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

// ShareAllowance reports the remaining share allowance.
func (s *Service) ShareAllowance(ctx context.Context, owner, spender string) (*big.Int, error) {
	return s.store.ShareAllowance(ctx, owner, spender)
}

func (s *Service) emit(ctx context.Context, event notification.Event) {
	if s.notifier != nil {
		_ = s.notifier.Emit(ctx, event)
	}
}
