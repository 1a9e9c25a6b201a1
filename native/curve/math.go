package curve

import "math/big"

// The curve is parameterised with a fixed connector weight of 1/2, so a buy
// follows growth = sqrt(1 + deposit/virtual_balance) - 1 and a sell follows
// drop = 1 - (1 - tokens/virtual_supply)^2, the algebraic inverse of growth.
// The square root is evaluated on big.Float at sqrtPrecision bits; every other
// step is exact integer arithmetic. All amounts live in [0, 2^128).

// sqrtPrecision is the mantissa width used for the one transcendental step.
// Counters are full 128-bit values, so 256 bits keeps the truncation error of
// a buy/sell round trip within one integer unit.
const sqrtPrecision = 256

var maxUint128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

func withinUint128(v *big.Int) bool {
	return v != nil && v.Sign() >= 0 && v.Cmp(maxUint128) <= 0
}

// checkedAdd returns a+b or ErrAmountOverflow when the sum leaves the unsigned
// 128-bit range. The original design saturated here, which can mask a real
// fault by silently clamping a counter.
func checkedAdd(a, b *big.Int) (*big.Int, error) {
	sum := new(big.Int).Add(a, b)
	if !withinUint128(sum) {
		return nil, ErrAmountOverflow
	}
	return sum, nil
}

// checkedSub returns a-b or ErrAmountUnderflow when the difference would go
// negative.
func checkedSub(a, b *big.Int) (*big.Int, error) {
	diff := new(big.Int).Sub(a, b)
	if diff.Sign() < 0 {
		return nil, ErrAmountUnderflow
	}
	return diff, nil
}

// checkedDouble returns 2*v or ErrAmountOverflow.
func checkedDouble(v *big.Int) (*big.Int, error) {
	doubled := new(big.Int).Lsh(v, 1)
	if !withinUint128(doubled) {
		return nil, ErrAmountOverflow
	}
	return doubled, nil
}

// purchaseReturn computes the Token amount minted for depositing the given
// VSToken amount against the supplied virtual pair:
//
//	minted = virtual_supply * (sqrt(1 + deposit/virtual_balance) - 1)
//
// truncated toward zero.
func purchaseReturn(virtualSupply, virtualBalance, deposit *big.Int) (*big.Int, error) {
	if virtualBalance == nil || virtualBalance.Sign() == 0 {
		return nil, ErrPrecision
	}
	supply := new(big.Float).SetPrec(sqrtPrecision).SetInt(virtualSupply)
	balance := new(big.Float).SetPrec(sqrtPrecision).SetInt(virtualBalance)
	amount := new(big.Float).SetPrec(sqrtPrecision).SetInt(deposit)
	one := new(big.Float).SetPrec(sqrtPrecision).SetInt64(1)

	ratio := new(big.Float).SetPrec(sqrtPrecision).Quo(amount, balance)
	radicand := new(big.Float).SetPrec(sqrtPrecision).Add(one, ratio)
	root := new(big.Float).SetPrec(sqrtPrecision).Sqrt(radicand)
	if root.IsInf() {
		return nil, ErrPrecision
	}
	growth := new(big.Float).SetPrec(sqrtPrecision).Sub(root, one)
	if growth.Sign() < 0 {
		growth.SetInt64(0)
	}
	mintedFloat := new(big.Float).SetPrec(sqrtPrecision).Mul(growth, supply)
	minted, _ := mintedFloat.Int(nil)
	if !withinUint128(minted) {
		return nil, ErrAmountOverflow
	}
	return minted, nil
}

// saleReturn computes the VSToken amount released for burning the given Token
// amount. The drop factor 1 - (1 - share)^2 expands to
// tokens*(2*virtual_supply - tokens)/virtual_supply^2, so the whole sell path
// is exact integer arithmetic with a single truncating division:
//
//	returned = virtual_balance * tokens * (2*virtual_supply - tokens) / virtual_supply^2
func saleReturn(virtualSupply, virtualBalance, tokens *big.Int) (*big.Int, error) {
	if virtualSupply == nil || virtualSupply.Sign() == 0 {
		return nil, ErrPrecision
	}
	if tokens.Cmp(virtualSupply) > 0 {
		return nil, ErrAmountUnderflow
	}
	remainder := new(big.Int).Lsh(virtualSupply, 1)
	remainder.Sub(remainder, tokens)
	numerator := new(big.Int).Mul(tokens, remainder)
	numerator.Mul(numerator, virtualBalance)
	denominator := new(big.Int).Mul(virtualSupply, virtualSupply)
	returned := numerator.Quo(numerator, denominator)
	if !withinUint128(returned) {
		return nil, ErrAmountOverflow
	}
	return returned, nil
}
