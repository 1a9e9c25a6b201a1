package rpc

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"bancornode/crypto"
	"bancornode/native/curve"
	"bancornode/observability"
)

// signedParams is the common payload of the three mutating curve methods. The
// signature covers method, amount and nonce; the caller identity is recovered
// from it rather than trusted from the request body.
type signedParams struct {
	Amount string `json:"amount"`
	Nonce  uint64 `json:"nonce"`
	Sig    string `json:"sig"`
}

// OperationDigest returns the message hash callers sign when invoking a
// mutating curve method.
func OperationDigest(method string, amount *big.Int, nonce uint64) []byte {
	payload := fmt.Sprintf("bancornode/curve/1|%s|%s|%d", method, amount.String(), nonce)
	return ethcrypto.Keccak256([]byte(payload))
}

func parseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("amount must be a non-negative decimal string")
	}
	return amount, nil
}

// recoverCaller verifies the signature over the method digest and yields the
// signer's 20-byte account identifier. The engine trusts this identifier; all
// authentication lives here at the boundary.
func recoverCaller(method string, amount *big.Int, nonce uint64, sigHex string) ([20]byte, error) {
	var caller [20]byte
	sigHex = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(sigHex), "0x"))
	if sigHex == "" {
		return caller, fmt.Errorf("signature required")
	}
	signature, err := hex.DecodeString(sigHex)
	if err != nil {
		return caller, fmt.Errorf("invalid signature encoding: %w", err)
	}
	if len(signature) != 65 {
		return caller, fmt.Errorf("signature must be 65 bytes, got %d", len(signature))
	}
	pub, err := ethcrypto.SigToPub(OperationDigest(method, amount, nonce), signature)
	if err != nil {
		return caller, fmt.Errorf("signature recovery failed: %w", err)
	}
	copy(caller[:], ethcrypto.PubkeyToAddress(*pub).Bytes())
	return caller, nil
}

// checkNonce enforces strictly increasing nonces per caller so a captured
// request cannot be replayed.
func (s *Server) checkNonce(caller [20]byte, nonce uint64) error {
	if nonce == 0 {
		return fmt.Errorf("nonce must be greater than zero")
	}
	key := hex.EncodeToString(caller[:])
	s.nonceMu.Lock()
	defer s.nonceMu.Unlock()
	if last, ok := s.nonces[key]; ok && nonce <= last {
		return fmt.Errorf("nonce %d already used", nonce)
	}
	s.nonces[key] = nonce
	return nil
}

func (s *Server) decodeAndCheck(req *RPCRequest, method string) ([20]byte, *big.Int, error) {
	var caller [20]byte
	if len(req.Params) != 1 {
		return caller, nil, fmt.Errorf("expected a single params object")
	}
	var payload signedParams
	if err := json.Unmarshal(req.Params[0], &payload); err != nil {
		return caller, nil, fmt.Errorf("invalid params: %w", err)
	}
	amount, err := parseAmount(payload.Amount)
	if err != nil {
		return caller, nil, err
	}
	caller, err = recoverCaller(method, amount, payload.Nonce, payload.Sig)
	if err != nil {
		return caller, nil, err
	}
	if err := s.checkNonce(caller, payload.Nonce); err != nil {
		return caller, nil, err
	}
	return caller, amount, nil
}

func writeEngineError(w http.ResponseWriter, req *RPCRequest, err error) {
	switch {
	case errors.Is(err, curve.ErrNotInitialized):
		writeError(w, http.StatusConflict, req.ID, codeServerError, err.Error(), nil)
	case errors.Is(err, curve.ErrInsufficientBalance),
		errors.Is(err, curve.ErrAmountOverflow),
		errors.Is(err, curve.ErrAmountUnderflow):
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
	case errors.Is(err, curve.ErrPrecision):
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, err.Error(), nil)
	default:
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, err.Error(), nil)
	}
}

func (s *Server) handleCurveInitialize(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	caller, amount, err := s.decodeAndCheck(req, "curve_initialize")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	start := time.Now()
	s.mu.Lock()
	err = s.engine.Initialize(caller, amount)
	s.mu.Unlock()
	observability.Curve().RecordOperation("initialize", err, time.Since(start))
	if err != nil {
		writeEngineError(w, req, err)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{
		"status": "ok",
		"caller": crypto.NewAddress(crypto.BancorPrefix, caller[:]).String(),
	})
}

func (s *Server) handleCurveBuy(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	caller, amount, err := s.decodeAndCheck(req, "curve_buy")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	start := time.Now()
	s.mu.Lock()
	minted, err := s.engine.Buy(caller, amount)
	s.mu.Unlock()
	observability.Curve().RecordOperation("buy", err, time.Since(start))
	if err != nil {
		writeEngineError(w, req, err)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{
		"deposited": amount.String(),
		"minted":    minted.String(),
		"caller":    crypto.NewAddress(crypto.BancorPrefix, caller[:]).String(),
	})
}

func (s *Server) handleCurveSell(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	caller, amount, err := s.decodeAndCheck(req, "curve_sell")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	start := time.Now()
	s.mu.Lock()
	returned, err := s.engine.Sell(caller, amount)
	s.mu.Unlock()
	observability.Curve().RecordOperation("sell", err, time.Since(start))
	if err != nil {
		writeEngineError(w, req, err)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{
		"sold":     amount.String(),
		"returned": returned.String(),
		"caller":   crypto.NewAddress(crypto.BancorPrefix, caller[:]).String(),
	})
}

func (s *Server) handleCurveInfo(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.mu.RLock()
	st, ok, err := s.engine.Info()
	s.mu.RUnlock()
	if err != nil {
		writeEngineError(w, req, err)
		return
	}
	if !ok {
		writeResult(w, req.ID, map[string]interface{}{"initialized": false})
		return
	}
	writeResult(w, req.ID, map[string]interface{}{
		"initialized":    true,
		"baseSupply":     st.BaseSupply.String(),
		"baseBalance":    st.BaseBalance.String(),
		"realSupply":     st.RealSupply.String(),
		"realBalance":    st.RealBalance.String(),
		"virtualSupply":  st.VirtualSupply().String(),
		"virtualBalance": st.VirtualBalance().String(),
		"spotPrice":      st.SpotPrice().FloatString(18),
	})
}

func (s *Server) handleCurveBalance(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "expected a single params object", nil)
		return
	}
	var payload struct {
		Address string `json:"address"`
	}
	if err := json.Unmarshal(req.Params[0], &payload); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	decoded, err := crypto.DecodeAddress(strings.TrimSpace(payload.Address))
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return
	}
	var addr [20]byte
	copy(addr[:], decoded.Bytes())
	s.mu.RLock()
	balance, err := s.engine.BalanceOf(addr)
	s.mu.RUnlock()
	if err != nil {
		writeEngineError(w, req, err)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{
		"address": payload.Address,
		"balance": balance.String(),
	})
}
