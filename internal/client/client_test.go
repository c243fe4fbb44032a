package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-ledger/internal/api"
	"token-ledger/internal/domain"
	"token-ledger/internal/host"
	"token-ledger/internal/notify"
	"token-ledger/internal/storage/memory"
)

const self domain.AccountID = "ledger"

// newLedgerServer starts an API server over a memory ledger with alice as
// issuer of 1000.00 TOK.
func newLedgerServer(t *testing.T) (*httptest.Server, *notify.Hub) {
	t.Helper()
	ctx := context.Background()

	hub := notify.NewHub(nil, zerolog.Nop())
	t.Cleanup(hub.Close)

	journal := memory.NewActionJournal()
	exec, err := host.NewExecutor(ctx, host.Options{
		Self:    self,
		Ledger:  memory.NewLedger(),
		Journal: journal,
		Sink:    hub,
		Logger:  zerolog.Nop(),
	})
	require.NoError(t, err)
	for _, a := range []domain.AccountID{self, "alice", "bob"} {
		require.NoError(t, exec.RegisterAccount(ctx, a))
	}

	srv := httptest.NewServer(api.New(api.Options{
		Executor: exec,
		Journal:  journal,
		Hub:      hub,
		Logger:   zerolog.Nop(),
	}).Handler())
	t.Cleanup(srv.Close)

	c := New(srv.URL)
	_, err = c.Apply(ctx, action(domain.ActionCreate, self, domain.CreateArgs{
		Issuer: "alice", MaximumSupply: domain.MustParseAmount("1000.00 TOK"),
	}))
	require.NoError(t, err)
	_, err = c.Apply(ctx, action(domain.ActionIssue, "alice", domain.IssueArgs{
		To: "alice", Quantity: domain.MustParseAmount("100.00 TOK"),
	}))
	require.NoError(t, err)

	return srv, hub
}

func action(name string, auth domain.AccountID, args any) domain.Action {
	raw, err := json.Marshal(args)
	if err != nil {
		panic(err)
	}
	return domain.Action{
		Contract:      self,
		Name:          name,
		Authorization: []domain.AccountID{auth},
		Data:          raw,
	}
}

func transfer(from, to domain.AccountID, qty string) domain.Action {
	return action(domain.ActionTransfer, from, domain.TransferArgs{
		From: from, To: to, Quantity: domain.MustParseAmount(qty), Memo: "test",
	})
}

func TestClient_ApplyAndRead(t *testing.T) {
	srv, _ := newLedgerServer(t)
	ctx := context.Background()
	c := New(srv.URL)

	receipt, err := c.Apply(ctx, transfer("alice", "bob", "30.00 TOK"))
	require.NoError(t, err)
	assert.NotEmpty(t, receipt.TraceID)
	require.Len(t, receipt.Actions, 1)

	bal, err := c.GetBalance(ctx, "bob", "TOK")
	require.NoError(t, err)
	assert.Equal(t, "30.00 TOK", bal.String())

	supply, err := c.GetSupply(ctx, "TOK")
	require.NoError(t, err)
	assert.Equal(t, "100.00 TOK", supply.String())

	tok, err := c.GetToken(ctx, "TOK")
	require.NoError(t, err)
	assert.Equal(t, "alice", tok.Issuer)
	assert.Equal(t, "1000.00 TOK", tok.MaxSupply.String())

	require.NoError(t, c.RegisterAccount(ctx, "carol"))
	_, err = c.Apply(ctx, transfer("bob", "carol", "30.00 TOK"))
	require.NoError(t, err)

	bal, err = c.GetBalance(ctx, "bob", "2,TOK")
	require.NoError(t, err)
	assert.Equal(t, int64(0), bal.Value)

	bal, err = c.GetBalance(ctx, "carol", "2,TOK")
	require.NoError(t, err)
	assert.Equal(t, "30.00 TOK", bal.String())

	records, err := c.GetJournal(ctx, "carol")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, domain.ActionTransfer, records[0].Name)

	records, err = c.GetJournal(ctx, "")
	require.NoError(t, err)
	assert.Len(t, records, 4)
}

func TestClient_Rejections(t *testing.T) {
	srv, _ := newLedgerServer(t)
	ctx := context.Background()
	c := New(srv.URL)

	_, err := c.Apply(ctx, transfer("alice", "bob", "100.01 TOK"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrOverdrawn)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	assert.Equal(t, "overdrawn", apiErr.Kind)

	_, err = c.GetSupply(ctx, "NONE")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = c.RegisterAccount(ctx, "alice")
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestClient_RetriesReads(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"supply": "5.00 TOK"})
	}))
	defer srv.Close()

	c := New(srv.URL, WithRetryDelay(time.Millisecond))
	supply, err := c.GetSupply(context.Background(), "TOK")
	require.NoError(t, err)
	assert.Equal(t, "5.00 TOK", supply.String())
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, WithRetryDelay(time.Millisecond), WithMaxRetries(2))
	_, err := c.GetSupply(context.Background(), "TOK")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries exceeded")
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_DoesNotRetryActions(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(srv.URL, WithRetryDelay(time.Millisecond))
	_, err := c.Apply(context.Background(), transfer("alice", "bob", "1.00 TOK"))
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}
