package curve

import (
	"errors"
	"math/big"
	"testing"
)

func TestPurchaseReturnConcrete(t *testing.T) {
	minted, err := purchaseReturn(big.NewInt(2000), big.NewInt(1000), big.NewInt(1000))
	if err != nil {
		t.Fatalf("purchase return: %v", err)
	}
	if minted.Cmp(big.NewInt(828)) != 0 {
		t.Fatalf("minted = %s, want 828", minted)
	}
}

func TestPurchaseReturnZeroDeposit(t *testing.T) {
	minted, err := purchaseReturn(big.NewInt(2000), big.NewInt(1000), big.NewInt(0))
	if err != nil {
		t.Fatalf("purchase return: %v", err)
	}
	if minted.Sign() != 0 {
		t.Fatalf("zero deposit minted %s", minted)
	}
}

func TestPurchaseReturnZeroBalance(t *testing.T) {
	if _, err := purchaseReturn(big.NewInt(2000), big.NewInt(0), big.NewInt(1000)); !errors.Is(err, ErrPrecision) {
		t.Fatalf("error = %v, want ErrPrecision", err)
	}
}

func TestSaleReturnInvertsPurchase(t *testing.T) {
	// State after buying 1000 against the 2000/1000 curve: selling the 828
	// minted tokens releases the deposit minus one unit of truncation.
	returned, err := saleReturn(big.NewInt(2828), big.NewInt(2000), big.NewInt(828))
	if err != nil {
		t.Fatalf("sale return: %v", err)
	}
	if returned.Cmp(big.NewInt(999)) != 0 {
		t.Fatalf("returned = %s, want 999", returned)
	}
}

func TestSaleReturnFullSupplyDrainsBalance(t *testing.T) {
	// drop = 1 - (1 - 1)^2 = 1, so selling the entire virtual supply releases
	// the entire virtual balance exactly.
	returned, err := saleReturn(big.NewInt(2828), big.NewInt(2000), big.NewInt(2828))
	if err != nil {
		t.Fatalf("sale return: %v", err)
	}
	if returned.Cmp(big.NewInt(2000)) != 0 {
		t.Fatalf("returned = %s, want 2000", returned)
	}
}

func TestSaleReturnRejectsExcessTokens(t *testing.T) {
	if _, err := saleReturn(big.NewInt(2000), big.NewInt(1000), big.NewInt(2001)); !errors.Is(err, ErrAmountUnderflow) {
		t.Fatalf("error = %v, want ErrAmountUnderflow", err)
	}
}

func TestSaleReturnZeroSupply(t *testing.T) {
	if _, err := saleReturn(big.NewInt(0), big.NewInt(1000), big.NewInt(1)); !errors.Is(err, ErrPrecision) {
		t.Fatalf("error = %v, want ErrPrecision", err)
	}
}

func TestCheckedArithmeticBounds(t *testing.T) {
	if _, err := checkedAdd(maxUint128, big.NewInt(1)); !errors.Is(err, ErrAmountOverflow) {
		t.Fatalf("checkedAdd error = %v, want ErrAmountOverflow", err)
	}
	sum, err := checkedAdd(new(big.Int).Sub(maxUint128, big.NewInt(1)), big.NewInt(1))
	if err != nil {
		t.Fatalf("checkedAdd at boundary: %v", err)
	}
	if sum.Cmp(maxUint128) != 0 {
		t.Fatalf("sum = %s, want max", sum)
	}

	if _, err := checkedSub(big.NewInt(1), big.NewInt(2)); !errors.Is(err, ErrAmountUnderflow) {
		t.Fatalf("checkedSub error = %v, want ErrAmountUnderflow", err)
	}
	diff, err := checkedSub(big.NewInt(2), big.NewInt(2))
	if err != nil {
		t.Fatalf("checkedSub at boundary: %v", err)
	}
	if diff.Sign() != 0 {
		t.Fatalf("diff = %s, want 0", diff)
	}

	if _, err := checkedDouble(new(big.Int).Lsh(big.NewInt(1), 127)); !errors.Is(err, ErrAmountOverflow) {
		t.Fatalf("checkedDouble error = %v, want ErrAmountOverflow", err)
	}
}

func TestPurchaseReturnLargeAmounts(t *testing.T) {
	// Full-scale counters must survive the float round trip without leaving
	// the 128-bit domain.
	vb := new(big.Int).Rsh(maxUint128, 2)
	vs := new(big.Int).Lsh(vb, 1)
	minted, err := purchaseReturn(vs, vb, vb)
	if err != nil {
		t.Fatalf("purchase return: %v", err)
	}
	if !withinUint128(minted) {
		t.Fatalf("minted %s outside 128-bit range", minted)
	}
	// growth = sqrt(2)-1, so minted stays below the virtual supply.
	if minted.Cmp(vs) >= 0 {
		t.Fatalf("minted %s exceeds virtual supply %s", minted, vs)
	}
}
