package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"

	"bancornode/rpc"
)

const (
	defaultDuration = 1 * time.Minute
	defaultRate     = 600 // operations per minute
)

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      int           `json:"id"`
}

type rpcError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
	ID      int             `json:"id"`
}

type signedParams struct {
	Amount string `json:"amount"`
	Nonce  uint64 `json:"nonce"`
	Sig    string `json:"sig"`
}

type latencyLog struct {
	mu        sync.Mutex
	latencies []time.Duration
	errors    int
}

func (l *latencyLog) record(d time.Duration, failed bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if failed {
		l.errors++
		return
	}
	l.latencies = append(l.latencies, d)
}

func (l *latencyLog) summarize() (count int, errors int, p50, p95, p99 time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	count = len(l.latencies)
	errors = l.errors
	if count == 0 {
		return
	}
	sorted := append([]time.Duration(nil), l.latencies...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	percentile := func(q float64) time.Duration {
		idx := int(q * float64(len(sorted)-1))
		return sorted[idx]
	}
	return count, errors, percentile(0.50), percentile(0.95), percentile(0.99)
}

func main() {
	var (
		rpcURL       string
		privateHex   string
		authToken    string
		opRate       int
		durationFlag time.Duration
		buyAmount    string
	)
	flag.StringVar(&rpcURL, "rpc", "http://127.0.0.1:8545", "JSON-RPC endpoint")
	flag.StringVar(&privateHex, "key", "", "hex-encoded secp256k1 private key (overrides CURVELOADER_KEY)")
	flag.StringVar(&authToken, "token", "", "bearer token for mutating methods (overrides BANCOR_RPC_TOKEN)")
	flag.IntVar(&opRate, "rate", defaultRate, "target buy operations per minute")
	flag.DurationVar(&durationFlag, "duration", defaultDuration, "load duration")
	flag.StringVar(&buyAmount, "amount", "1000", "VSToken amount per buy")
	flag.Parse()

	if privateHex == "" {
		privateHex = os.Getenv("CURVELOADER_KEY")
	}
	privateHex = strings.TrimSpace(privateHex)
	if privateHex == "" {
		log.Fatal("missing private key: provide --key or CURVELOADER_KEY")
	}
	if authToken == "" {
		authToken = strings.TrimSpace(os.Getenv("BANCOR_RPC_TOKEN"))
	}

	keyBytes, err := hex.DecodeString(strings.TrimPrefix(privateHex, "0x"))
	if err != nil {
		log.Fatalf("decode private key: %v", err)
	}
	key, err := ethcrypto.ToECDSA(keyBytes)
	if err != nil {
		log.Fatalf("parse private key: %v", err)
	}

	amount, ok := new(big.Int).SetString(strings.TrimSpace(buyAmount), 10)
	if !ok || amount.Sign() < 0 {
		log.Fatalf("invalid --amount %q", buyAmount)
	}

	runID := uuid.NewString()
	log.Printf("curveloader run %s: %d ops/min for %s against %s", runID, opRate, durationFlag, rpcURL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	deadline := time.After(durationFlag)

	interval := time.Minute / time.Duration(opRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	client := &http.Client{Timeout: 10 * time.Second}
	tracker := &latencyLog{}
	// Nonces must strictly increase per caller; seed from the wall clock so
	// repeated runs against the same node do not collide.
	nonce := uint64(time.Now().UnixNano())
	reqID := 0

	var wg sync.WaitGroup
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-deadline:
			break loop
		case <-ticker.C:
			nonce++
			reqID++
			wg.Add(1)
			go func(nonce uint64, id int) {
				defer wg.Done()
				digest := rpc.OperationDigest("curve_buy", amount, nonce)
				sig, err := ethcrypto.Sign(digest, key)
				if err != nil {
					tracker.record(0, true)
					return
				}
				params := signedParams{
					Amount: amount.String(),
					Nonce:  nonce,
					Sig:    "0x" + hex.EncodeToString(sig),
				}
				body, err := json.Marshal(rpcRequest{
					JSONRPC: "2.0",
					Method:  "curve_buy",
					Params:  []interface{}{params},
					ID:      id,
				})
				if err != nil {
					tracker.record(0, true)
					return
				}
				req, err := http.NewRequestWithContext(ctx, http.MethodPost, rpcURL, bytes.NewReader(body))
				if err != nil {
					tracker.record(0, true)
					return
				}
				req.Header.Set("Content-Type", "application/json")
				if authToken != "" {
					req.Header.Set("Authorization", "Bearer "+authToken)
				}
				start := time.Now()
				resp, err := client.Do(req)
				took := time.Since(start)
				if err != nil {
					tracker.record(took, true)
					return
				}
				defer resp.Body.Close()
				var decoded rpcResponse
				if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil || decoded.Error != nil {
					tracker.record(took, true)
					return
				}
				tracker.record(took, false)
			}(nonce, reqID)
		}
	}
	wg.Wait()

	count, errors, p50, p95, p99 := tracker.summarize()
	fmt.Printf("run %s complete: %d ok, %d failed\n", runID, count, errors)
	if count > 0 {
		fmt.Printf("latency p50=%s p95=%s p99=%s\n", p50, p95, p99)
	}
}
