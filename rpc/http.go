package rpc

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"

	"bancornode/native/curve"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
)

// Server exposes the curve engine over JSON-RPC. Mutating methods are
// serialised through a single writer lock so the engine never observes
// interleaved state access; queries share a read lock.
type Server struct {
	engine *curve.Engine

	mu        sync.RWMutex
	authToken string

	nonceMu sync.Mutex
	nonces  map[string]uint64
}

// NewServer constructs a server around the provided engine. The bearer token
// protecting mutating methods is read from the environment variable named by
// tokenEnv; an empty token disables bearer auth (development mode).
func NewServer(engine *curve.Engine, tokenEnv string) *Server {
	token := ""
	if tokenEnv = strings.TrimSpace(tokenEnv); tokenEnv != "" {
		token = strings.TrimSpace(os.Getenv(tokenEnv))
	}
	return &Server{
		engine:    engine,
		authToken: token,
		nonces:    make(map[string]uint64),
	}
}

// Handler returns the http.Handler serving the JSON-RPC endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	return mux
}

// Start serves JSON-RPC requests on the supplied address until the listener
// fails.
func (s *Server) Start(addr string) error {
	return http.ListenAndServe(addr, s.Handler())
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) authorized(r *http.Request) bool {
	if s.authToken == "" {
		return true
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	return strings.TrimSpace(strings.TrimPrefix(header, prefix)) == s.authToken
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, nil, codeInvalidRequest, "POST required", nil)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "failed to read request body", nil)
		return
	}
	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON-RPC request", err.Error())
		return
	}

	switch req.Method {
	case "curve_initialize":
		s.requireAuth(w, r, &req, s.handleCurveInitialize)
	case "curve_buy":
		s.requireAuth(w, r, &req, s.handleCurveBuy)
	case "curve_sell":
		s.requireAuth(w, r, &req, s.handleCurveSell)
	case "curve_info":
		s.handleCurveInfo(w, r, &req)
	case "curve_balance":
		s.handleCurveBalance(w, r, &req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
	}
}

type handlerFunc func(http.ResponseWriter, *http.Request, *RPCRequest)

func (s *Server) requireAuth(w http.ResponseWriter, r *http.Request, req *RPCRequest, next handlerFunc) {
	if !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, req.ID, codeUnauthorized, "unauthorized", nil)
		return
	}
	next(w, r, req)
}
