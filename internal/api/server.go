// Package api exposes the ledger over HTTP: action submission, account
// registration, read accessors, the action journal and the notification stream.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"token-ledger/internal/domain"
	"token-ledger/internal/host"
	"token-ledger/internal/observability"
	"token-ledger/internal/storage"
)

// Options configures a Server.
type Options struct {
	Executor *host.Executor       // required
	Journal  storage.ActionJournal // optional, enables /v1/journal
	Hub      http.Handler          // optional, served on /ws
	Logger   zerolog.Logger
}

// Server routes HTTP requests to the executor and ledger tables.
type Server struct {
	exec     *host.Executor
	ledger   storage.Ledger
	tables   storage.Tables
	journal  storage.ActionJournal
	hub      http.Handler
	logger   zerolog.Logger
	validate *validator.Validate
	mux      *http.ServeMux
	started  time.Time

	mu      sync.Mutex
	applied int
}

// New creates a Server and registers its routes.
func New(opts Options) *Server {
	s := &Server{
		exec:     opts.Executor,
		ledger:   opts.Executor.Ledger(),
		tables:   opts.Executor.Ledger().Tables(),
		journal:  opts.Journal,
		hub:      opts.Hub,
		logger:   opts.Logger.With().Str("component", "api").Logger(),
		validate: validator.New(),
		mux:      http.NewServeMux(),
		started:  time.Now(),
	}
	s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) routes() {
	// Health check
	s.mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Prometheus metrics
	s.mux.Handle("GET /metrics", observability.Handler())

	s.mux.HandleFunc("GET /status", s.handleStatus)

	s.mux.HandleFunc("POST /v1/actions", s.handleApply)
	s.mux.HandleFunc("POST /v1/accounts", s.handleRegisterAccount)
	s.mux.HandleFunc("GET /v1/tokens", s.handleListTokens)
	s.mux.HandleFunc("GET /v1/tokens/{code}", s.handleGetToken)
	s.mux.HandleFunc("GET /v1/tokens/{code}/supply", s.handleGetSupply)
	s.mux.HandleFunc("GET /v1/accounts/{account}/balances", s.handleListBalances)
	s.mux.HandleFunc("GET /v1/accounts/{account}/balances/{code}", s.handleGetBalance)
	s.mux.HandleFunc("GET /v1/journal", s.handleJournal)
	s.mux.HandleFunc("GET /v1/journal/{trace}", s.handleTrace)

	if s.hub != nil {
		s.mux.Handle("GET /ws", s.hub)
	}
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status        string `json:"status"`
	Uptime        string `json:"uptime"`
	Self          string `json:"self"`
	ActionsServed int    `json:"actions_served"`
	Journal       bool   `json:"journal"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	applied := s.applied
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, StatusResponse{
		Status:        "running",
		Uptime:        time.Since(s.started).Round(time.Second).String(),
		Self:          string(s.exec.Self()),
		ActionsServed: applied,
		Journal:       s.journal != nil,
	})
}

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// statusOf maps a ledger error kind to an HTTP status.
func statusOf(err error) int {
	switch domain.KindOf(err) {
	case domain.ErrInvalidArgument, domain.ErrSymbolMismatch:
		return http.StatusBadRequest
	case domain.ErrUnauthorized:
		return http.StatusUnauthorized
	case domain.ErrNotFound:
		return http.StatusNotFound
	case domain.ErrAlreadyExists:
		return http.StatusConflict
	case domain.ErrSupplyExceeded, domain.ErrOverdrawn:
		return http.StatusUnprocessableEntity
	}
	if errors.Is(err, storage.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Kind: domain.KindName(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
