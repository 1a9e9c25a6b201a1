package curve

import (
	"errors"
	"math/big"

	"bancornode/core/events"
)

var (
	// ErrNotInitialized is returned by Buy and Sell before Initialize has ever
	// succeeded.
	ErrNotInitialized = errors.New("curve engine: curve not initialized")
	// ErrInsufficientBalance is returned by Sell when the caller's ledger
	// entry is missing or smaller than the requested amount.
	ErrInsufficientBalance = errors.New("curve engine: insufficient token balance")
	// ErrAmountOverflow is returned when a counter update would exceed the
	// unsigned 128-bit range.
	ErrAmountOverflow = errors.New("curve engine: amount exceeds unsigned 128-bit range")
	// ErrAmountUnderflow is returned when a counter update would go negative.
	ErrAmountUnderflow = errors.New("curve engine: amount underflow")
	// ErrPrecision is returned when the square-root step cannot produce a
	// finite result, e.g. against a zero virtual balance.
	ErrPrecision = errors.New("curve engine: square root precision failure")

	errNilState      = errors.New("curve engine: state not configured")
	errInvalidAmount = errors.New("curve engine: amount must be a non-negative integer")
)

// engineState is the persistence contract injected into the engine. Reads are
// individual; writes go through Commit so the counters and the touched ledger
// entry land together. A zero balance passed to Commit removes the entry.
type engineState interface {
	CurveGet() (*State, bool, error)
	CurvePut(*State) error
	LedgerGet(addr [20]byte) (*big.Int, bool, error)
	Commit(state *State, addr [20]byte, balance *big.Int) error
}

// Engine is the bonding-curve state machine. Each operation is a synchronous
// all-or-nothing transition: every check and every derived amount is computed
// against a snapshot before a single write is issued. The engine assumes the
// caller serialises mutating operations; it carries no locking of its own.
type Engine struct {
	state   engineState
	emitter events.Emitter
}

// NewEngine creates a curve engine with a no-op emitter. Callers can override
// the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(event events.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(event)
}

func validateAmount(v *big.Int) error {
	if v == nil || v.Sign() < 0 {
		return errInvalidAmount
	}
	if !withinUint128(v) {
		return ErrAmountOverflow
	}
	return nil
}

// Initialize seeds the curve with the supplied reserve amount. The virtual
// supply is derived as reserve*2, the fixed connector-weight-1/2 relation, so
// the initial marginal price is exactly one VSToken per Token. Initializing an
// already initialized curve is a silent no-op, not an error.
func (e *Engine) Initialize(caller [20]byte, reserveAmount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := validateAmount(reserveAmount); err != nil {
		return err
	}
	if _, ok, err := e.state.CurveGet(); err != nil {
		return err
	} else if ok {
		return nil
	}
	baseSupply, err := checkedDouble(reserveAmount)
	if err != nil {
		return err
	}
	st := &State{
		BaseSupply:  baseSupply,
		BaseBalance: cloneBigInt(reserveAmount),
		RealSupply:  big.NewInt(0),
		RealBalance: big.NewInt(0),
	}
	if err := e.state.CurvePut(st); err != nil {
		return err
	}
	e.emit(events.CurveInitialized{
		BaseSupply:  cloneBigInt(st.BaseSupply),
		BaseBalance: cloneBigInt(st.BaseBalance),
		Caller:      caller,
	})
	return nil
}

// Buy exchanges the supplied VSToken amount for newly minted Token and credits
// the caller's ledger entry. It returns the minted amount.
func (e *Engine) Buy(caller [20]byte, vstokenAmount *big.Int) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := validateAmount(vstokenAmount); err != nil {
		return nil, err
	}
	st, ok, err := e.state.CurveGet()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotInitialized
	}

	minted, err := purchaseReturn(st.VirtualSupply(), st.VirtualBalance(), vstokenAmount)
	if err != nil {
		return nil, err
	}

	next := st.Copy()
	if next.RealSupply, err = checkedAdd(st.RealSupply, minted); err != nil {
		return nil, err
	}
	if next.RealBalance, err = checkedAdd(st.RealBalance, vstokenAmount); err != nil {
		return nil, err
	}
	held, _, err := e.state.LedgerGet(caller)
	if err != nil {
		return nil, err
	}
	if held == nil {
		held = big.NewInt(0)
	}
	balance, err := checkedAdd(held, minted)
	if err != nil {
		return nil, err
	}
	if err := e.state.Commit(next, caller, balance); err != nil {
		return nil, err
	}
	e.emit(events.TokenPurchased{
		Deposited: cloneBigInt(vstokenAmount),
		Minted:    cloneBigInt(minted),
		Caller:    caller,
	})
	return minted, nil
}

// Sell burns the supplied Token amount from the caller's ledger entry and
// releases the corresponding VSToken reserve. It returns the released amount.
func (e *Engine) Sell(caller [20]byte, tokenAmount *big.Int) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := validateAmount(tokenAmount); err != nil {
		return nil, err
	}
	st, ok, err := e.state.CurveGet()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotInitialized
	}
	held, _, err := e.state.LedgerGet(caller)
	if err != nil {
		return nil, err
	}
	if held == nil {
		held = big.NewInt(0)
	}
	if held.Cmp(tokenAmount) < 0 {
		return nil, ErrInsufficientBalance
	}

	returned, err := saleReturn(st.VirtualSupply(), st.VirtualBalance(), tokenAmount)
	if err != nil {
		return nil, err
	}

	next := st.Copy()
	if next.RealSupply, err = checkedSub(st.RealSupply, tokenAmount); err != nil {
		return nil, err
	}
	if next.RealBalance, err = checkedSub(st.RealBalance, returned); err != nil {
		return nil, err
	}
	balance := new(big.Int).Sub(held, tokenAmount)
	if err := e.state.Commit(next, caller, balance); err != nil {
		return nil, err
	}
	e.emit(events.TokenSold{
		Sold:     cloneBigInt(tokenAmount),
		Returned: cloneBigInt(returned),
		Caller:   caller,
	})
	return returned, nil
}

// Info returns a copy of the current curve counters. The boolean reports
// whether the curve has been initialized.
func (e *Engine) Info() (*State, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	st, ok, err := e.state.CurveGet()
	if err != nil || !ok {
		return nil, ok, err
	}
	return st.Copy(), true, nil
}

// BalanceOf reports the Token amount held by the supplied account. Missing
// entries read as zero.
func (e *Engine) BalanceOf(addr [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	held, ok, err := e.state.LedgerGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return cloneBigInt(held), nil
}
