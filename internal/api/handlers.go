package api

import (
	"context"
	"encoding/json"
	"net/http"

	"token-ledger/internal/domain"
	"token-ledger/internal/storage"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 64 << 10

// ActionRequest is the body of POST /v1/actions.
type ActionRequest struct {
	Account       string          `json:"account" validate:"required,max=64"`
	Name          string          `json:"name" validate:"required,max=32"`
	Authorization []string        `json:"authorization" validate:"required,min=1,dive,required,max=64"`
	Data          json.RawMessage `json:"data" validate:"required"`
}

// AccountRequest is the body of POST /v1/accounts.
type AccountRequest struct {
	Account string `json:"account" validate:"required,max=64"`
}

// TokenResponse describes one token.
type TokenResponse struct {
	Symbol    string        `json:"symbol"`
	Supply    domain.Amount `json:"supply"`
	MaxSupply domain.Amount `json:"max_supply"`
	Issuer    string        `json:"issuer"`
}

// BalanceResponse describes one holding.
type BalanceResponse struct {
	Owner   string        `json:"owner"`
	Balance domain.Amount `json:"balance"`
}

func tokenResponse(st *domain.TokenStats) TokenResponse {
	return TokenResponse{
		Symbol:    st.Supply.Symbol.String(),
		Supply:    st.Supply,
		MaxSupply: st.MaxSupply,
		Issuer:    string(st.Issuer),
	}
}

// decode reads a JSON body into v and validates it.
func (s *Server) decode(r *http.Request, w http.ResponseWriter, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domain.Fail(domain.ErrInvalidArgument, "decode request: %v", err)
	}
	if err := s.validate.Struct(v); err != nil {
		return domain.Fail(domain.ErrInvalidArgument, "validate request: %v", err)
	}
	return nil
}

func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	var req ActionRequest
	if err := s.decode(r, w, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	action := domain.Action{
		Contract: domain.AccountID(req.Account),
		Name:     req.Name,
		Data:     req.Data,
	}
	for _, a := range req.Authorization {
		action.Authorization = append(action.Authorization, domain.AccountID(a))
	}

	receipt, err := s.exec.Apply(r.Context(), action)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.mu.Lock()
	s.applied++
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, receipt)
}

func (s *Server) handleRegisterAccount(w http.ResponseWriter, r *http.Request) {
	var req AccountRequest
	if err := s.decode(r, w, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.exec.RegisterAccount(r.Context(), domain.AccountID(req.Account)); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

func (s *Server) handleListTokens(w http.ResponseWriter, r *http.Request) {
	stats, err := s.tables.Stats.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	tokens := make([]TokenResponse, 0, len(stats))
	for _, st := range stats {
		tokens = append(tokens, tokenResponse(st))
	}
	writeJSON(w, http.StatusOK, tokens)
}

func (s *Server) handleGetToken(w http.ResponseWriter, r *http.Request) {
	var st *domain.TokenStats
	err := s.withSymbol(r, func(ctx context.Context, tables storage.Tables, sym domain.Symbol) (err error) {
		st, err = s.exec.Contract().GetStats(ctx, tables, sym)
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse(st))
}

func (s *Server) handleGetSupply(w http.ResponseWriter, r *http.Request) {
	var supply domain.Amount
	err := s.withSymbol(r, func(ctx context.Context, tables storage.Tables, sym domain.Symbol) (err error) {
		supply, err = s.exec.Contract().GetSupply(ctx, tables, sym)
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]domain.Amount{"supply": supply})
}

func (s *Server) handleListBalances(w http.ResponseWriter, r *http.Request) {
	owner, err := accountID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	balances, err := s.tables.Balances.GetByOwner(r.Context(), owner)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := make([]BalanceResponse, 0, len(balances))
	for _, b := range balances {
		resp = append(resp, BalanceResponse{Owner: string(b.Owner), Balance: b.Amount})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	owner, err := accountID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var amount domain.Amount
	err = s.withSymbol(r, func(ctx context.Context, tables storage.Tables, sym domain.Symbol) (err error) {
		amount, err = s.exec.Contract().GetBalance(ctx, tables, owner, sym)
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceResponse{Owner: string(owner), Balance: amount})
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "action journal disabled", Kind: "unavailable"})
		return
	}

	var (
		records []*domain.ActionRecord
		err     error
	)
	if account := domain.AccountID(r.URL.Query().Get("account")); account != "" {
		if !account.Valid() {
			s.writeError(w, r, domain.Fail(domain.ErrInvalidArgument, "invalid account %q", account))
			return
		}
		records, err = s.journal.GetByAccount(r.Context(), account)
	} else {
		records, err = s.journal.GetAll(r.Context())
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if records == nil {
		records = []*domain.ActionRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleTrace(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "action journal disabled", Kind: "unavailable"})
		return
	}

	records, err := s.journal.GetByTraceID(r.Context(), r.PathValue("trace"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(records) == 0 {
		s.writeError(w, r, domain.Fail(domain.ErrNotFound, "no actions for trace %s", r.PathValue("trace")))
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// withSymbol resolves the {code} path value, "<precision>,<CODE>" or a bare
// code, and runs fn in the same read snapshot.
func (s *Server) withSymbol(r *http.Request, fn func(ctx context.Context, tables storage.Tables, sym domain.Symbol) error) error {
	return s.ledger.View(r.Context(), func(ctx context.Context, tables storage.Tables) error {
		sym, err := s.exec.Contract().ResolveSymbol(ctx, tables, r.PathValue("code"))
		if err != nil {
			return err
		}
		return fn(ctx, tables, sym)
	})
}

func accountID(r *http.Request) (domain.AccountID, error) {
	id := domain.AccountID(r.PathValue("account"))
	if !id.Valid() {
		return "", domain.Fail(domain.ErrInvalidArgument, "invalid account %q", id)
	}
	return id, nil
}

