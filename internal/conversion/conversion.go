package conversion

import "math/big"

// Decimals is the fixed-point precision shared by rates, value units and base
// units across the system.
const Decimals = 18

// Unit is the fixed-point scale (10^Decimals). A rate of exactly Unit means
// one value unit is worth one base unit.
var Unit = new(big.Int).Exp(big.NewInt(10), big.NewInt(Decimals), nil)

// ToBaseUnits converts a value-unit amount into base-asset units at the given
// rate, rounding toward zero. The rate must be positive; callers snapshot the
// rate once per operation and pass the same snapshot to every conversion
// within it.
func ToBaseUnits(value, rate *big.Int) *big.Int {
	out := new(big.Int).Mul(value, Unit)
	return out.Quo(out, rate)
}

// ToValueUnits converts a base-asset amount into value units at the given
// rate, rounding toward zero. Composing ToBaseUnits and ToValueUnits in either
// order can lose at most a bounded fraction of a unit and can never gain.
func ToValueUnits(base, rate *big.Int) *big.Int {
	out := new(big.Int).Mul(base, rate)
	return out.Quo(out, Unit)
}
