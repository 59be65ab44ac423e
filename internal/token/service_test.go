package token

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/wrapmint/wrapmint/internal/asset"
	"github.com/wrapmint/wrapmint/internal/notification"
	"github.com/wrapmint/wrapmint/internal/rate"
	"github.com/wrapmint/wrapmint/internal/signer"
)

func bi(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad test literal: " + s)
	}
	return v
}

var (
	rateOne = bi("1000000000000000000")
	rateTwo = bi("2000000000000000000")
)

func newTestLedger(t *testing.T, initial *big.Int) (*Service, *rate.Static, asset.Reserve, *notification.Recorder) {
	t.Helper()
	src := rate.NewStatic(initial)
	reserve := asset.NewInMemory()
	recorder := &notification.Recorder{}
	svc, err := NewService(context.Background(), NewMemoryStore(), reserve, src, signer.Ed25519{}, recorder, Metadata{Name: "Wrapped Value", Symbol: "WVAL"})
	if err != nil {
		t.Fatalf("build ledger: %v", err)
	}
	return svc, src, reserve, recorder
}

func TestNewServiceRejectsZeroRate(t *testing.T) {
	src := rate.NewStatic(new(big.Int))
	_, err := NewService(context.Background(), NewMemoryStore(), asset.NewInMemory(), src, signer.Ed25519{}, nil, Metadata{Name: "Wrapped Value", Symbol: "WVAL"})
	if !errors.Is(err, ErrInvalidRate) {
		t.Fatalf("expected ErrInvalidRate, got %v", err)
	}
}

func TestMintBurnConservation(t *testing.T) {
	svc, _, reserve, _ := newTestLedger(t, bi("1370000000000000123"))
	ctx := context.Background()

	deposit := bi("5000000000000000000")
	asset.Seed(reserve, "alice", deposit)

	minted, err := svc.Mint(ctx, "alice", deposit)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	returned, err := svc.Burn(ctx, "alice", minted, "")
	if err != nil {
		t.Fatalf("burn: %v", err)
	}

	loss := new(big.Int).Sub(deposit, returned)
	if loss.Sign() < 0 {
		t.Fatalf("burn returned more base than deposited: %s -> %s", deposit, returned)
	}
	if loss.Cmp(big.NewInt(1)) > 0 {
		t.Fatalf("round trip lost more than 1 base unit: %s", loss)
	}
}

func TestRateDoublingScenario(t *testing.T) {
	svc, src, reserve, _ := newTestLedger(t, rateOne)
	ctx := context.Background()

	oneBase := bi("1000000000000000000")
	asset.Seed(reserve, "alice", oneBase)

	minted, err := svc.Mint(ctx, "alice", oneBase)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if minted.Cmp(oneBase) != 0 {
		t.Fatalf("expected 1.0 value minted at rate 1.0, got %s", minted)
	}

	src.Set(rateTwo)
	if _, err := svc.Rebase(ctx); err != nil {
		t.Fatalf("rebase: %v", err)
	}

	balance, err := svc.BalanceOf(ctx, "alice")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Cmp(rateTwo) != 0 {
		t.Fatalf("expected balance 2.0 value units after rebase, got %s", balance)
	}

	returned, err := svc.Burn(ctx, "alice", balance, "")
	if err != nil {
		t.Fatalf("burn: %v", err)
	}
	if returned.Cmp(oneBase) != 0 {
		t.Fatalf("expected 1.0 base unit back, got %s", returned)
	}

	held, err := reserve.Balance(ctx, "alice")
	if err != nil {
		t.Fatalf("reserve balance: %v", err)
	}
	if held.Cmp(oneBase) != 0 {
		t.Fatalf("expected alice to hold her base unit again, got %s", held)
	}
}

func TestRebaseIsExactOverRateSequence(t *testing.T) {
	svc, src, reserve, _ := newTestLedger(t, rateOne)
	ctx := context.Background()

	deposit := bi("3141592653589793238")
	asset.Seed(reserve, "alice", deposit)
	if _, err := svc.Mint(ctx, "alice", deposit); err != nil {
		t.Fatalf("mint: %v", err)
	}

	for _, next := range []*big.Int{bi("1100000000000000000"), bi("900000000000000000"), bi("5000000000000000000")} {
		src.Set(next)
		if _, err := svc.Rebase(ctx); err != nil {
			t.Fatalf("rebase to %s: %v", next, err)
		}

		baseUnits, err := svc.BaseUnitsOf(ctx, "alice")
		if err != nil {
			t.Fatalf("base units: %v", err)
		}
		if baseUnits.Cmp(deposit) != 0 {
			t.Fatalf("rebase mutated stored base units: %s", baseUnits)
		}

		balance, err := svc.BalanceOf(ctx, "alice")
		if err != nil {
			t.Fatalf("balance: %v", err)
		}
		want := new(big.Int).Mul(deposit, next)
		want.Quo(want, bi("1000000000000000000"))
		if balance.Cmp(want) != 0 {
			t.Fatalf("balance at rate %s: expected %s, got %s", next, want, balance)
		}
	}
}

func TestRebaseRejectsZeroRate(t *testing.T) {
	svc, src, _, _ := newTestLedger(t, rateOne)

	src.Set(new(big.Int))
	if _, err := svc.Rebase(context.Background()); !errors.Is(err, ErrInvalidRate) {
		t.Fatalf("expected ErrInvalidRate, got %v", err)
	}

	if svc.Rate().Cmp(rateOne) != 0 {
		t.Fatalf("rejected rebase must not touch the cached rate, got %s", svc.Rate())
	}
}

func TestRebaseUnchangedRateEmitsNothing(t *testing.T) {
	svc, _, _, recorder := newTestLedger(t, rateOne)

	if _, err := svc.Rebase(context.Background()); err != nil {
		t.Fatalf("rebase: %v", err)
	}
	if got := recorder.Last(notification.KindRateChange); got.Kind != "" {
		t.Fatalf("unchanged rate must be a silent no-op, got event %+v", got)
	}
}

func TestTransferRederivesMovedAmount(t *testing.T) {
	// Rate 3.0: 1 value unit = 1/3 base unit, so requested amounts that do
	// not divide evenly come back truncated.
	svc, _, reserve, recorder := newTestLedger(t, bi("3000000000000000000"))
	ctx := context.Background()

	asset.Seed(reserve, "alice", bi("1000000000000000000"))
	if _, err := svc.Mint(ctx, "alice", bi("1000000000000000000")); err != nil {
		t.Fatalf("mint: %v", err)
	}

	requested := bi("1000000000000000000")
	moved, baseMoved, err := svc.Transfer(ctx, "alice", "bob", requested)
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	bobBase, err := svc.BaseUnitsOf(ctx, "bob")
	if err != nil {
		t.Fatalf("base units: %v", err)
	}
	if baseMoved.Cmp(bobBase) != 0 {
		t.Fatalf("reported base moved %s, recipient holds %s", baseMoved, bobBase)
	}
	if moved.Cmp(requested) > 0 {
		t.Fatalf("re-derived amount exceeds request: %s > %s", moved, requested)
	}
	diff := new(big.Int).Sub(requested, moved)
	if diff.Cmp(big.NewInt(3)) > 0 {
		t.Fatalf("re-derived amount off by more than rounding: %s", diff)
	}

	event := recorder.Last(notification.KindValueTransfer)
	if event.Amount != moved.String() {
		t.Fatalf("event must carry the re-derived amount %s, got %s", moved, event.Amount)
	}

	bobBalance, err := svc.BalanceOf(ctx, "bob")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if bobBalance.Cmp(moved) != 0 {
		t.Fatalf("recipient observes %s, event said %s", bobBalance, moved)
	}
}

func TestTransferRejectsNullRecipient(t *testing.T) {
	svc, _, reserve, _ := newTestLedger(t, rateOne)
	ctx := context.Background()
	asset.Seed(reserve, "alice", bi("10"))
	if _, err := svc.Mint(ctx, "alice", bi("10")); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, _, err := svc.Transfer(ctx, "alice", "", bi("1")); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress, got %v", err)
	}
}

func TestZeroTransferFromEmptyAccount(t *testing.T) {
	svc, _, _, _ := newTestLedger(t, rateOne)

	moved, baseMoved, err := svc.Transfer(context.Background(), "ghost", "bob", new(big.Int))
	if err != nil {
		t.Fatalf("zero transfer from empty account: %v", err)
	}
	if moved.Sign() != 0 || baseMoved.Sign() != 0 {
		t.Fatalf("zero transfer moved %s value / %s base", moved, baseMoved)
	}
}

func TestTransferFromEnforcesAllowance(t *testing.T) {
	svc, _, reserve, _ := newTestLedger(t, rateOne)
	ctx := context.Background()

	asset.Seed(reserve, "alice", bi("100"))
	if _, err := svc.Mint(ctx, "alice", bi("100")); err != nil {
		t.Fatalf("mint: %v", err)
	}

	if _, _, err := svc.TransferFrom(ctx, "carol", "alice", "bob", bi("10")); !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("expected ErrInsufficientAllowance, got %v", err)
	}

	if err := svc.Approve(ctx, "alice", "carol", bi("30")); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, _, err := svc.TransferFrom(ctx, "carol", "alice", "bob", bi("10")); err != nil {
		t.Fatalf("transferFrom: %v", err)
	}

	remaining, err := svc.Allowance(ctx, "alice", "carol")
	if err != nil {
		t.Fatalf("allowance: %v", err)
	}
	if remaining.Cmp(bi("20")) != 0 {
		t.Fatalf("expected allowance 20 after spend, got %s", remaining)
	}

	if _, _, err := svc.TransferFrom(ctx, "carol", "alice", "bob", bi("25")); !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("expected ErrInsufficientAllowance on overspend, got %v", err)
	}
}

func TestUnlimitedAllowanceNeverDecrements(t *testing.T) {
	svc, _, reserve, _ := newTestLedger(t, rateOne)
	ctx := context.Background()

	asset.Seed(reserve, "alice", bi("100"))
	if _, err := svc.Mint(ctx, "alice", bi("100")); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := svc.Approve(ctx, "alice", "carol", Unlimited); err != nil {
		t.Fatalf("approve: %v", err)
	}

	if _, _, err := svc.TransferFrom(ctx, "carol", "alice", "bob", bi("40")); err != nil {
		t.Fatalf("transferFrom: %v", err)
	}

	remaining, err := svc.Allowance(ctx, "alice", "carol")
	if err != nil {
		t.Fatalf("allowance: %v", err)
	}
	if remaining.Cmp(Unlimited) != 0 {
		t.Fatalf("unlimited allowance was decremented: %s", remaining)
	}
}

func TestBurnInsufficientBalance(t *testing.T) {
	svc, _, reserve, _ := newTestLedger(t, rateOne)
	ctx := context.Background()
	asset.Seed(reserve, "alice", bi("5"))
	if _, err := svc.Mint(ctx, "alice", bi("5")); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := svc.Burn(ctx, "alice", bi("6"), ""); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestMintZeroAmountRejected(t *testing.T) {
	svc, _, _, _ := newTestLedger(t, rateOne)
	if _, err := svc.Mint(context.Background(), "alice", new(big.Int)); !errors.Is(err, ErrZeroAmount) {
		t.Fatalf("expected ErrZeroAmount, got %v", err)
	}
}

func TestDustSettlesWithinBound(t *testing.T) {
	svc, src, reserve, _ := newTestLedger(t, rateOne)
	ctx := context.Background()

	pairs := []struct {
		rate   *big.Int
		amount *big.Int
	}{
		{bi("1000000000000000001"), bi("999999999999999999")},
		{bi("1100000000000000000"), bi("123456789123456789")},
		{bi("1234567891234567891"), bi("1000000000000000000")},
		{bi("900000000000000007"), bi("777777777777777777")},
		{bi("2000000000000000000"), bi("31415926535897932")},
		{bi("1999999999999999999"), bi("1")},
		{bi("1500000000000000000"), bi("999999999999999998")},
		{bi("3333333333333333333"), bi("250000000000000001")},
		{bi("1013370000000000000"), bi("860000000000000003")},
		{bi("5000000000000000001"), bi("420000000000000017")},
	}

	deposited := make(map[string]*big.Int)
	for i, pair := range pairs {
		account := fmt.Sprintf("account-%d", i)
		total := new(big.Int).Mul(pair.amount, big.NewInt(2))
		asset.Seed(reserve, account, total)
		deposited[account] = total

		if _, err := svc.Mint(ctx, account, pair.amount); err != nil {
			t.Fatalf("mint #%d: %v", i, err)
		}
		src.Set(pair.rate)
		if _, err := svc.Rebase(ctx); err != nil {
			t.Fatalf("rebase #%d: %v", i, err)
		}
		if _, err := svc.Mint(ctx, account, pair.amount); err != nil {
			t.Fatalf("second mint #%d: %v", i, err)
		}
	}

	dustBound := big.NewInt(20)
	for account, total := range deposited {
		if _, _, err := svc.BurnAll(ctx, account, ""); err != nil {
			t.Fatalf("burn all %s: %v", account, err)
		}
		recovered, err := reserve.Balance(ctx, account)
		if err != nil {
			t.Fatalf("reserve balance %s: %v", account, err)
		}
		shortfall := new(big.Int).Sub(total, recovered)
		if shortfall.Sign() < 0 || shortfall.Cmp(dustBound) > 0 {
			t.Fatalf("account %s recovered %s of %s (shortfall %s)", account, recovered, total, shortfall)
		}
	}

	residual, err := svc.TotalBaseUnits(ctx)
	if err != nil {
		t.Fatalf("total base units: %v", err)
	}
	if residual.Cmp(dustBound) > 0 {
		t.Fatalf("ledger retained %s base units of dust, bound is %s", residual, dustBound)
	}

	// Conservation: whatever the ledger still records outstanding must sit in
	// the reserve, no more and no less.
	if held := asset.ReserveBalance(reserve); held.Cmp(residual) != 0 {
		t.Fatalf("reserve holds %s base units but ledger records %s outstanding", held, residual)
	}
}
