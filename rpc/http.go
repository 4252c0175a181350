package rpc

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"melodia/native/marketplace"
	"melodia/native/payments"
	"melodia/native/registry"
	"melodia/native/streaming"
	"melodia/state"
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
	codeNotFound       = -32004
	codeInvalidState   = -32005
	codeForbidden      = -32006
	codeInsufficient   = -32007
	codeNothingToDo    = -32008
)

// Server exposes the marketplace and streaming engines over JSON-RPC 2.0.
// Mutating methods run under a single lock: the shared state store's write
// buffer is committed when the engine call succeeds and discarded otherwise,
// so a failed operation leaves no partial state behind.
type Server struct {
	market      *marketplace.Engine
	stream      *streaming.Engine
	registries  *registry.Set
	collections map[string]*registry.MusicCollection
	store       *state.Store
	log         *slog.Logger
	authToken   string

	mu sync.RWMutex
}

// NewServer wires the engines and their shared store into an RPC surface.
// authToken, when non-empty, is required as a bearer token on every mutating
// method.
func NewServer(market *marketplace.Engine, stream *streaming.Engine, registries *registry.Set, store *state.Store, log *slog.Logger, authToken string) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		market:      market,
		stream:      stream,
		registries:  registries,
		collections: make(map[string]*registry.MusicCollection),
		store:       store,
		log:         log,
		authToken:   strings.TrimSpace(authToken),
	}
}

// AddCollection registers a reference collection with the resolver and makes
// it reachable through the token_* methods. When the store holds a snapshot
// for the collection's address, the token table is restored from it, so
// escrowed listings survive a daemon restart.
func (s *Server) AddCollection(collection *registry.MusicCollection) error {
	if collection == nil {
		return nil
	}
	snapshot, err := s.store.CollectionGet(collection.Address())
	if err != nil {
		return err
	}
	if snapshot != nil {
		if err := collection.RestoreState(snapshot); err != nil {
			return err
		}
	}
	s.registries.Register(collection.Address(), collection)
	s.collections[strings.ToLower(collection.Name())] = collection
	return nil
}

// Handler returns the HTTP handler serving JSON-RPC on /, liveness on
// /health and prometheus metrics on /metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// Start serves until the context is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
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

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: &RPCError{Code: code, Message: message}}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() { _ = reader.Close() }()
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, nil, codeInvalidRequest, "POST required")
		return
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "failed to read request body")
		return
	}
	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON-RPC payload")
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported JSON-RPC version")
		return
	}
	if mutatingMethods[req.Method] && !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, req.ID, codeUnauthorized, "missing or invalid bearer token")
		return
	}
	handler, ok := methodTable[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found: "+req.Method)
		return
	}
	handler(s, w, &req)
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
	supplied := strings.TrimSpace(header[len(prefix):])
	return subtle.ConstantTimeCompare([]byte(supplied), []byte(s.authToken)) == 1
}

// execute runs a mutating engine call under the server lock and commits or
// discards the state write buffer depending on the outcome. Collection token
// tables are snapshotted into the same buffer so custody changes commit
// atomically with the listing and payment state they accompany.
func (s *Server) execute(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := fn(); err != nil {
		s.store.Discard()
		return err
	}
	if err := s.persistCollections(); err != nil {
		s.store.Discard()
		return err
	}
	return s.store.Commit()
}

func (s *Server) persistCollections() error {
	for _, collection := range s.collections {
		snapshot, err := collection.MarshalState()
		if err != nil {
			return err
		}
		if err := s.store.CollectionPut(collection.Address(), snapshot); err != nil {
			return err
		}
	}
	return nil
}

// query runs a read-only engine call under the read lock so concurrent
// queries never observe a write buffer that a failing mutation later
// discards.
func (s *Server) query(fn func() error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn()
}

func decodeParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return errors.New("expected a single parameter object")
	}
	return json.Unmarshal(req.Params[0], out)
}

func errorCode(err error) int {
	switch {
	case errors.Is(err, marketplace.ErrListingNotFound),
		errors.Is(err, marketplace.ErrNonexistentToken),
		errors.Is(err, streaming.ErrNonexistentToken),
		errors.Is(err, marketplace.ErrUnknownCollection),
		errors.Is(err, streaming.ErrUnknownCollection),
		errors.Is(err, registry.ErrUnknownToken):
		return codeNotFound
	case errors.Is(err, marketplace.ErrListingNotActive),
		errors.Is(err, marketplace.ErrTokenAlreadyListed):
		return codeInvalidState
	case errors.Is(err, marketplace.ErrNotListingOwner),
		errors.Is(err, registry.ErrNotTokenOwner),
		errors.Is(err, registry.ErrNotTokenCreator):
		return codeForbidden
	case errors.Is(err, marketplace.ErrInsufficientFunds),
		errors.Is(err, marketplace.ErrInsufficientBalance),
		errors.Is(err, streaming.ErrInsufficientPayment),
		errors.Is(err, streaming.ErrInsufficientBalance):
		return codeInsufficient
	case errors.Is(err, payments.ErrNoPaymentsPending):
		return codeNothingToDo
	case errors.Is(err, marketplace.ErrInvalidPrice),
		errors.Is(err, streaming.ErrInvalidListenCount),
		errors.Is(err, registry.ErrEmptyTokenURI),
		errors.Is(err, registry.ErrMaxRoyaltyExceeded):
		return codeInvalidParams
	}
	return codeServerError
}

func (s *Server) writeEngineError(w http.ResponseWriter, id interface{}, err error) {
	code := errorCode(err)
	status := http.StatusOK
	if code == codeServerError {
		status = http.StatusInternalServerError
		s.log.Error("rpc call failed", "err", err)
	}
	writeError(w, status, id, code, err.Error())
}

type rpcHandler func(*Server, http.ResponseWriter, *RPCRequest)

var methodTable = map[string]rpcHandler{
	"market_createListing":     (*Server).handleCreateListing,
	"market_buy":               (*Server).handleBuy,
	"market_cancel":            (*Server).handleCancel,
	"market_withdraw":          (*Server).handleMarketWithdraw,
	"market_getPending":        (*Server).handleMarketPending,
	"market_getListingByToken": (*Server).handleListingByToken,
	"market_isListed":          (*Server).handleIsListed,
	"market_totals":            (*Server).handleTotals,
	"market_listActive":        (*Server).handleListActive,
	"market_listBySeller":      (*Server).handleListBySeller,
	"stream_recordListens":     (*Server).handleRecordListens,
	"stream_withdraw":          (*Server).handleStreamWithdraw,
	"stream_getPending":        (*Server).handleStreamPending,
	"stream_listenCount":       (*Server).handleListenCount,
	"stream_totalListens":      (*Server).handleTotalListens,
	"stream_topTokens":         (*Server).handleTopTokens,
	"stream_byCreator":         (*Server).handleByCreator,
	"token_mint":               (*Server).handleTokenMint,
	"token_ownerOf":            (*Server).handleTokenOwner,
	"token_updateURI":          (*Server).handleTokenUpdateURI,
	"token_editions":           (*Server).handleTokenEditions,
	"account_get":              (*Server).handleAccountGet,
	"account_credit":           (*Server).handleAccountCredit,
}

var mutatingMethods = map[string]bool{
	"market_createListing": true,
	"market_buy":           true,
	"market_cancel":        true,
	"market_withdraw":      true,
	"stream_recordListens": true,
	"stream_withdraw":      true,
	"token_mint":           true,
	"token_updateURI":      true,
	"account_credit":       true,
}
