package rpc

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"bancornode/crypto"
	"bancornode/native/curve"
	curvestate "bancornode/state/curve"
	"bancornode/storage"
)

func newTestServer(t *testing.T, tokenEnv string) (*Server, *httptest.Server) {
	t.Helper()
	engine := curve.NewEngine()
	engine.SetState(curvestate.NewStore(storage.NewMemDB()))
	server := NewServer(engine, tokenEnv)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return server, ts
}

func signedCall(t *testing.T, key *ecdsa.PrivateKey, method string, amount int64, nonce uint64) []byte {
	t.Helper()
	digest := OperationDigest(method, big.NewInt(amount), nonce)
	sig, err := ethcrypto.Sign(digest, key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	params := signedParams{
		Amount: big.NewInt(amount).String(),
		Nonce:  nonce,
		Sig:    "0x" + hex.EncodeToString(sig),
	}
	raw, err := json.Marshal(params)
	if err != nil {
		t.Fatalf("marshal params: %v", err)
	}
	body, err := json.Marshal(map[string]interface{}{
		"jsonrpc": jsonRPCVersion,
		"method":  method,
		"params":  []json.RawMessage{raw},
		"id":      1,
	})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	return body
}

func post(t *testing.T, url string, body []byte, token string) (*http.Response, RPCResponse) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	var decoded RPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, decoded
}

func resultField(t *testing.T, resp RPCResponse, key string) string {
	t.Helper()
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("result is %T", resp.Result)
	}
	value, _ := result[key].(string)
	return value
}

func TestInitializeAndBuyFlow(t *testing.T) {
	_, ts := newTestServer(t, "")
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	_, resp := post(t, ts.URL, signedCall(t, key, "curve_initialize", 1000, 1), "")
	if resp.Error != nil {
		t.Fatalf("initialize error: %+v", resp.Error)
	}

	_, resp = post(t, ts.URL, signedCall(t, key, "curve_buy", 1000, 2), "")
	if resp.Error != nil {
		t.Fatalf("buy error: %+v", resp.Error)
	}
	if minted := resultField(t, resp, "minted"); minted != "828" {
		t.Fatalf("minted = %s, want 828", minted)
	}

	_, resp = post(t, ts.URL, signedCall(t, key, "curve_sell", 828, 3), "")
	if resp.Error != nil {
		t.Fatalf("sell error: %+v", resp.Error)
	}
	if returned := resultField(t, resp, "returned"); returned != "999" {
		t.Fatalf("returned = %s, want 999", returned)
	}
}

func TestBuyBeforeInitializeConflicts(t *testing.T) {
	_, ts := newTestServer(t, "")
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	httpResp, resp := post(t, ts.URL, signedCall(t, key, "curve_buy", 1000, 1), "")
	if resp.Error == nil {
		t.Fatal("expected error for uninitialized curve")
	}
	if httpResp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", httpResp.StatusCode)
	}
}

func TestSignatureMismatchRejected(t *testing.T) {
	_, ts := newTestServer(t, "")
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	// Sign for one amount, submit another: recovery yields a different caller
	// with no balance, so the sell must fail rather than spend someone's
	// tokens.
	digest := OperationDigest("curve_sell", big.NewInt(5), 1)
	sig, err := ethcrypto.Sign(digest, key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	params, _ := json.Marshal(signedParams{Amount: "500", Nonce: 1, Sig: "0x" + hex.EncodeToString(sig)})
	body, _ := json.Marshal(map[string]interface{}{
		"jsonrpc": jsonRPCVersion,
		"method":  "curve_sell",
		"params":  []json.RawMessage{params},
		"id":      1,
	})
	_, resp := post(t, ts.URL, body, "")
	if resp.Error == nil {
		t.Fatal("tampered request accepted")
	}
}

func TestNonceReplayRejected(t *testing.T) {
	_, ts := newTestServer(t, "")
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	call := signedCall(t, key, "curve_initialize", 1000, 7)
	if _, resp := post(t, ts.URL, call, ""); resp.Error != nil {
		t.Fatalf("first call failed: %+v", resp.Error)
	}
	if _, resp := post(t, ts.URL, call, ""); resp.Error == nil {
		t.Fatal("replayed nonce accepted")
	}
}

func TestBearerTokenEnforced(t *testing.T) {
	t.Setenv("TEST_CURVE_RPC_TOKEN", "secret")
	_, ts := newTestServer(t, "TEST_CURVE_RPC_TOKEN")
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	httpResp, resp := post(t, ts.URL, signedCall(t, key, "curve_initialize", 1000, 1), "")
	if resp.Error == nil || httpResp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("missing token accepted: status=%d err=%+v", httpResp.StatusCode, resp.Error)
	}

	// Queries stay open without a token.
	body, _ := json.Marshal(map[string]interface{}{
		"jsonrpc": jsonRPCVersion, "method": "curve_info", "params": []json.RawMessage{}, "id": 2,
	})
	if _, resp := post(t, ts.URL, body, ""); resp.Error != nil {
		t.Fatalf("unauthenticated query rejected: %+v", resp.Error)
	}

	if _, resp := post(t, ts.URL, signedCall(t, key, "curve_initialize", 1000, 2), "secret"); resp.Error != nil {
		t.Fatalf("authorized call rejected: %+v", resp.Error)
	}
}

func TestCurveInfoAndBalance(t *testing.T) {
	_, ts := newTestServer(t, "")
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	infoReq, _ := json.Marshal(map[string]interface{}{
		"jsonrpc": jsonRPCVersion, "method": "curve_info", "params": []json.RawMessage{}, "id": 1,
	})
	_, resp := post(t, ts.URL, infoReq, "")
	if resp.Error != nil {
		t.Fatalf("info error: %+v", resp.Error)
	}
	result, _ := resp.Result.(map[string]interface{})
	if initialized, _ := result["initialized"].(bool); initialized {
		t.Fatal("curve reported initialized before genesis")
	}

	if _, resp := post(t, ts.URL, signedCall(t, key, "curve_initialize", 1000, 1), ""); resp.Error != nil {
		t.Fatalf("initialize error: %+v", resp.Error)
	}
	if _, resp := post(t, ts.URL, signedCall(t, key, "curve_buy", 1000, 2), ""); resp.Error != nil {
		t.Fatalf("buy error: %+v", resp.Error)
	}

	_, resp = post(t, ts.URL, infoReq, "")
	if got := resultField(t, resp, "virtualSupply"); got != "2828" {
		t.Fatalf("virtualSupply = %s, want 2828", got)
	}
	if got := resultField(t, resp, "virtualBalance"); got != "2000" {
		t.Fatalf("virtualBalance = %s, want 2000", got)
	}

	caller := crypto.NewAddress(crypto.BancorPrefix, ethcrypto.PubkeyToAddress(key.PublicKey).Bytes()).String()
	balanceParams, _ := json.Marshal(map[string]string{"address": caller})
	balanceReq, _ := json.Marshal(map[string]interface{}{
		"jsonrpc": jsonRPCVersion, "method": "curve_balance",
		"params": []json.RawMessage{balanceParams}, "id": 2,
	})
	_, resp = post(t, ts.URL, balanceReq, "")
	if resp.Error != nil {
		t.Fatalf("balance error: %+v", resp.Error)
	}
	if got := resultField(t, resp, "balance"); got != "828" {
		t.Fatalf("balance = %s, want 828", got)
	}
}
