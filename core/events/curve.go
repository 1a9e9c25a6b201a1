package events

import (
	"math/big"

	"bancornode/core/types"
	"bancornode/crypto"
)

const (
	// TypeCurveInitialized is emitted once when the bonding curve is seeded.
	TypeCurveInitialized = "curve.initialized"
	// TypeTokenPurchased is emitted whenever VSToken reserve is exchanged for
	// freshly minted Token.
	TypeTokenPurchased = "curve.tokenPurchased"
	// TypeTokenSold is emitted whenever Token is burned back into VSToken.
	TypeTokenSold = "curve.tokenSold"
)

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func callerString(addr [20]byte) string {
	if addr == ([20]byte{}) {
		return ""
	}
	return crypto.NewAddress(crypto.BancorPrefix, addr[:]).String()
}

type CurveInitialized struct {
	BaseSupply  *big.Int
	BaseBalance *big.Int
	Caller      [20]byte
}

func (CurveInitialized) EventType() string { return TypeCurveInitialized }

func (e CurveInitialized) Event() *types.Event {
	return &types.Event{
		Type: TypeCurveInitialized,
		Attributes: map[string]string{
			"baseSupply":  amountString(e.BaseSupply),
			"baseBalance": amountString(e.BaseBalance),
			"caller":      callerString(e.Caller),
		},
	}
}

type TokenPurchased struct {
	Deposited *big.Int
	Minted    *big.Int
	Caller    [20]byte
}

func (TokenPurchased) EventType() string { return TypeTokenPurchased }

func (e TokenPurchased) Event() *types.Event {
	return &types.Event{
		Type: TypeTokenPurchased,
		Attributes: map[string]string{
			"deposited": amountString(e.Deposited),
			"minted":    amountString(e.Minted),
			"caller":    callerString(e.Caller),
		},
	}
}

type TokenSold struct {
	Sold     *big.Int
	Returned *big.Int
	Caller   [20]byte
}

func (TokenSold) EventType() string { return TypeTokenSold }

func (e TokenSold) Event() *types.Event {
	return &types.Event{
		Type: TypeTokenSold,
		Attributes: map[string]string{
			"sold":     amountString(e.Sold),
			"returned": amountString(e.Returned),
			"caller":   callerString(e.Caller),
		},
	}
}
