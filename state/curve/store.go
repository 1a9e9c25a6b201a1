package curve

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	curveengine "bancornode/native/curve"
	"bancornode/storage"
)

var (
	curveStateKey     = []byte("curve/state")
	curveLedgerPrefix = []byte("curve/ledger/")
)

func ledgerKey(addr [20]byte) []byte {
	buf := make([]byte, len(curveLedgerPrefix)+len(addr))
	copy(buf, curveLedgerPrefix)
	copy(buf[len(curveLedgerPrefix):], addr[:])
	return buf
}

// storedState is the durable layout of the four pool counters. RLP rejects
// negative big integers at encode time, so a corrupted in-memory value can
// never reach disk.
type storedState struct {
	BaseSupply  *big.Int
	BaseBalance *big.Int
	RealSupply  *big.Int
	RealBalance *big.Int
}

// Store persists the curve counters and the per-account ledger in the
// underlying key-value database. It implements the state contract of the
// curve engine.
type Store struct {
	db storage.Database
}

// NewStore constructs a store bound to the provided database.
func NewStore(db storage.Database) *Store {
	return &Store{db: db}
}

func checkCounter(name string, v *big.Int) error {
	if v == nil {
		return fmt.Errorf("curve store: %s counter is nil", name)
	}
	if _, overflow := uint256.FromBig(v); overflow || v.Sign() < 0 {
		return fmt.Errorf("curve store: %s counter out of range", name)
	}
	return nil
}

func validateState(st *curveengine.State) error {
	if st == nil {
		return errors.New("curve store: nil state")
	}
	if err := checkCounter("base supply", st.BaseSupply); err != nil {
		return err
	}
	if err := checkCounter("base balance", st.BaseBalance); err != nil {
		return err
	}
	if err := checkCounter("real supply", st.RealSupply); err != nil {
		return err
	}
	return checkCounter("real balance", st.RealBalance)
}

// CurveGet loads the pool counters. The boolean reports whether the curve has
// ever been initialized.
func (s *Store) CurveGet() (*curveengine.State, bool, error) {
	data, err := s.db.Get(curveStateKey)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var stored storedState
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return nil, false, fmt.Errorf("curve store: decode state: %w", err)
	}
	return &curveengine.State{
		BaseSupply:  stored.BaseSupply,
		BaseBalance: stored.BaseBalance,
		RealSupply:  stored.RealSupply,
		RealBalance: stored.RealBalance,
	}, true, nil
}

// CurvePut persists the pool counters.
func (s *Store) CurvePut(st *curveengine.State) error {
	if err := validateState(st); err != nil {
		return err
	}
	encoded, err := rlp.EncodeToBytes(&storedState{
		BaseSupply:  st.BaseSupply,
		BaseBalance: st.BaseBalance,
		RealSupply:  st.RealSupply,
		RealBalance: st.RealBalance,
	})
	if err != nil {
		return err
	}
	return s.db.Put(curveStateKey, encoded)
}

// LedgerGet loads the Token balance recorded for the supplied account. The
// boolean reports whether an entry exists; a missing entry reads as zero.
func (s *Store) LedgerGet(addr [20]byte) (*big.Int, bool, error) {
	data, err := s.db.Get(ledgerKey(addr))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return big.NewInt(0), false, nil
	}
	if err != nil {
		return nil, false, err
	}
	balance := new(big.Int)
	if err := rlp.DecodeBytes(data, balance); err != nil {
		return nil, false, fmt.Errorf("curve store: decode ledger entry: %w", err)
	}
	return balance, true, nil
}

// Commit persists updated counters together with the touched ledger entry. A
// zero balance removes the entry so fully exited accounts do not accumulate in
// the keyspace.
func (s *Store) Commit(st *curveengine.State, addr [20]byte, balance *big.Int) error {
	if err := checkCounter("ledger balance", balance); err != nil {
		return err
	}
	if err := s.CurvePut(st); err != nil {
		return err
	}
	if balance.Sign() == 0 {
		return s.db.Delete(ledgerKey(addr))
	}
	encoded, err := rlp.EncodeToBytes(balance)
	if err != nil {
		return err
	}
	return s.db.Put(ledgerKey(addr), encoded)
}
