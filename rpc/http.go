package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/net/netutil"

	"cardmarket/core"
	"cardmarket/core/types"
	"cardmarket/native/assets"
	"cardmarket/native/delegation"
	"cardmarket/native/market"
	"cardmarket/observability"
	"cardmarket/services/indexer"
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
	codeRateLimited    = -32020
	codeUnavailable    = -32030

	codeValidation    = -32040
	codeAuthorization = -32041
	codeState         = -32042
	codeArithmetic    = -32043
	codeInsufficiency = -32044
)

// Ledger is the node state the RPC server reads and submits to.
type Ledger interface {
	Apply(ctx context.Context, tx *types.Transaction) (*core.Receipt, error)
	Account(addr [20]byte) (*types.Account, error)
	Holding(owner [20]byte, asset [32]byte) (*delegation.Holding, error)
	Listing(asset [32]byte) (*market.Listing, bool, error)
	Asset(id [32]byte) (*assets.Asset, bool, error)
	Collection(id [32]byte) (*assets.Collection, bool, error)
	Authority() [20]byte
	ChainID() uint64
	Head() (gethcommon.Hash, uint64)
}

// TradeHistory serves the archived trade log.
type TradeHistory interface {
	History(ctx context.Context, asset [32]byte, limit int) ([]indexer.TradeRecord, error)
}

// ServerConfig controls admission for state-changing calls.
type ServerConfig struct {
	JWTSecret          string
	JWTIssuer          string
	RateLimitPerMinute float64
	Burst              int
	MaxConnections     int
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
}

type Server struct {
	ledger  Ledger
	history TradeHistory
	hub     *EventHub
	idem    *IdempotencyStore
	auth    *authenticator
	limiter *sourceLimiter
	cfg     ServerConfig
	logger  *slog.Logger
	metrics *observability.RPCMetrics
	router  chi.Router
}

// NewServer wires the JSON-RPC, websocket, health and metrics endpoints.
// history, hub and idem may be nil; the corresponding features are then
// unavailable.
func NewServer(ledger Ledger, history TradeHistory, hub *EventHub, idem *IdempotencyStore, cfg ServerConfig, logger *slog.Logger) (*Server, error) {
	if ledger == nil {
		return nil, fmt.Errorf("rpc: ledger required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		ledger:  ledger,
		history: history,
		hub:     hub,
		idem:    idem,
		auth:    newAuthenticator(cfg.JWTSecret, cfg.JWTIssuer),
		limiter: newSourceLimiter(cfg.RateLimitPerMinute, cfg.Burst),
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "rpc")),
		metrics: observability.RPC(),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Post("/", s.handle)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	if hub != nil {
		r.Get("/ws/events", s.handleEventsWS)
	}
	s.router = r
	return s, nil
}

// Handler returns the routed, traced HTTP handler.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.router, "cardmarket-rpc")
}

// Serve accepts connections on addr until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	if s.cfg.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, s.cfg.MaxConnections)
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("json-rpc server listening", slog.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
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

func (e *RPCError) Error() string { return e.Message }

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

type handlerFunc func(w http.ResponseWriter, r *http.Request, req *RPCRequest) bool

func (s *Server) methods() map[string]handlerFunc {
	return map[string]handlerFunc{
		"market_sendTransaction": s.handleSendTransaction,
		"market_getListing":      s.handleGetListing,
		"market_listingAddress":  s.handleListingAddress,
		"market_getBalance":      s.handleGetBalance,
		"market_getAccount":      s.handleGetAccount,
		"market_getHolding":      s.handleGetHolding,
		"market_getAsset":        s.handleGetAsset,
		"market_getCollection":   s.handleGetCollection,
		"market_quote":           s.handleQuote,
		"market_history":         s.handleHistory,
		"market_status":          s.handleStatus,
	}
}

// handle decodes a JSON-RPC request and routes it to its method.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()
	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, nil)
		return
	}

	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON", err.Error())
		return
	}
	if req.JSONRPC != jsonRPCVersion || strings.TrimSpace(req.Method) == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "invalid JSON-RPC request", nil)
		return
	}

	handler, ok := s.methods()[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
		s.metrics.Observe("unknown", true, 0)
		return
	}
	started := time.Now()
	ok = handler(w, r, &req)
	s.metrics.Observe(req.Method, !ok, time.Since(started))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	root, seq := s.ledger.Head()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "ok",
		"sequence":  seq,
		"stateRoot": root.Hex(),
	})
}
