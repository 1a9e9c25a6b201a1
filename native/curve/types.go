package curve

import "math/big"

// State holds the four pool counters that parameterise the bonding curve. The
// base pair is written once at initialisation and never changes; the real pair
// tracks deposited reserve and minted supply. All four are bounded to the
// unsigned 128-bit range.
type State struct {
	BaseSupply  *big.Int
	BaseBalance *big.Int
	RealSupply  *big.Int
	RealBalance *big.Int
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// Copy returns a deep copy so callers can stage updates without mutating the
// persisted snapshot.
func (s *State) Copy() *State {
	if s == nil {
		return nil
	}
	return &State{
		BaseSupply:  cloneBigInt(s.BaseSupply),
		BaseBalance: cloneBigInt(s.BaseBalance),
		RealSupply:  cloneBigInt(s.RealSupply),
		RealBalance: cloneBigInt(s.RealBalance),
	}
}

// VirtualSupply is the instantaneous supply backing the price curve. It is
// derived on every call and never persisted.
func (s *State) VirtualSupply() *big.Int {
	return new(big.Int).Add(cloneBigInt(s.BaseSupply), cloneBigInt(s.RealSupply))
}

// VirtualBalance is the instantaneous reserve backing the price curve.
func (s *State) VirtualBalance() *big.Int {
	return new(big.Int).Add(cloneBigInt(s.BaseBalance), cloneBigInt(s.RealBalance))
}

// SpotPrice reports the marginal VSToken price of one Token at the current
// state. With a connector weight of 1/2 the marginal price is
// 2*virtual_balance/virtual_supply.
func (s *State) SpotPrice() *big.Rat {
	supply := s.VirtualSupply()
	if supply.Sign() == 0 {
		return new(big.Rat)
	}
	balance := new(big.Int).Lsh(s.VirtualBalance(), 1)
	return new(big.Rat).SetFrac(balance, supply)
}
