package token

import (
	"context"
	"slices"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-ledger/internal/domain"
	"token-ledger/internal/storage"
	"token-ledger/internal/storage/memory"
)

const self domain.AccountID = "ledger"

var tok = domain.NewSymbol("TOK", 2)

// fakeEnv is a minimal token.Env over memory tables.
type fakeEnv struct {
	tables     storage.Tables
	auth       []domain.AccountID
	recipients *[]domain.AccountID
	inlines    *[]string
}

func (e *fakeEnv) RequireAuth(account domain.AccountID) error {
	if slices.Contains(e.auth, account) {
		return nil
	}
	return domain.Fail(domain.ErrUnauthorized, "missing authority of %s", account)
}

func (e *fakeEnv) IsAccount(ctx context.Context, account domain.AccountID) (bool, error) {
	return e.tables.Accounts.Exists(ctx, account)
}

func (e *fakeEnv) RequireRecipient(account domain.AccountID) {
	*e.recipients = append(*e.recipients, account)
}

func (e *fakeEnv) Tables() storage.Tables { return e.tables }

func (e *fakeEnv) Inline(actor domain.AccountID, name string, _ any) Env {
	*e.inlines = append(*e.inlines, name+"@"+string(actor))
	return &fakeEnv{
		tables:     e.tables,
		auth:       []domain.AccountID{actor},
		recipients: e.recipients,
		inlines:    e.inlines,
	}
}

type harness struct {
	t        *testing.T
	ctx      context.Context
	ledger   *memory.Ledger
	contract *Contract

	recipients []domain.AccountID
	inlines    []string
}

func newHarness(t *testing.T, accounts ...domain.AccountID) *harness {
	t.Helper()

	h := &harness{
		t:        t,
		ctx:      context.Background(),
		ledger:   memory.NewLedger(),
		contract: New(self, zerolog.Nop()),
	}
	for _, a := range append([]domain.AccountID{self}, accounts...) {
		require.NoError(t, h.ledger.Tables().Accounts.Insert(h.ctx, &domain.Account{ID: a}))
	}
	return h
}

// run executes fn in one atomic unit authorized by auth.
func (h *harness) run(auth domain.AccountID, fn func(ctx context.Context, env Env) error) error {
	h.recipients = nil
	h.inlines = nil
	return h.ledger.Atomic(h.ctx, func(ctx context.Context, tables storage.Tables) error {
		env := &fakeEnv{
			tables:     tables,
			auth:       []domain.AccountID{auth},
			recipients: &h.recipients,
			inlines:    &h.inlines,
		}
		return fn(ctx, env)
	})
}

func (h *harness) create(issuer domain.AccountID, max string) error {
	return h.run(self, func(ctx context.Context, env Env) error {
		return h.contract.Create(ctx, env, domain.CreateArgs{Issuer: issuer, MaximumSupply: domain.MustParseAmount(max)})
	})
}

func (h *harness) issue(auth, to domain.AccountID, qty, memo string) error {
	return h.run(auth, func(ctx context.Context, env Env) error {
		return h.contract.Issue(ctx, env, domain.IssueArgs{To: to, Quantity: domain.MustParseAmount(qty), Memo: memo})
	})
}

func (h *harness) transfer(auth, from, to domain.AccountID, qty, memo string) error {
	return h.run(auth, func(ctx context.Context, env Env) error {
		return h.contract.Transfer(ctx, env, domain.TransferArgs{From: from, To: to, Quantity: domain.MustParseAmount(qty), Memo: memo})
	})
}

func (h *harness) balance(owner domain.AccountID, sym domain.Symbol) int64 {
	h.t.Helper()
	a, err := h.contract.GetBalance(h.ctx, h.ledger.Tables(), owner, sym)
	require.NoError(h.t, err)
	return a.Value
}

func (h *harness) supply(sym domain.Symbol) int64 {
	h.t.Helper()
	a, err := h.contract.GetSupply(h.ctx, h.ledger.Tables(), sym)
	require.NoError(h.t, err)
	return a.Value
}

func TestCreate(t *testing.T) {
	h := newHarness(t, "alice")

	require.NoError(t, h.create("alice", "1000.00 TOK"))

	st, err := h.contract.GetStats(h.ctx, h.ledger.Tables(), tok)
	require.NoError(t, err)
	assert.Equal(t, "0.00 TOK", st.Supply.String())
	assert.Equal(t, "1000.00 TOK", st.MaxSupply.String())
	assert.Equal(t, domain.AccountID("alice"), st.Issuer)

	payer, ok := h.ledger.Stats().Payer(tok)
	require.True(t, ok)
	assert.Equal(t, self, payer)

	balances, err := h.ledger.Tables().Balances.GetBySymbol(h.ctx, tok)
	require.NoError(t, err)
	assert.Empty(t, balances, "create must not touch balances")
}

func TestCreate_Errors(t *testing.T) {
	sym := domain.NewSymbol("TOK", 2)

	tests := []struct {
		name string
		auth domain.AccountID
		max  domain.Amount
		want error
		msg  string
	}{
		{"not contract", "alice", domain.NewAmount(100, sym), domain.ErrUnauthorized, "missing authority"},
		{"lower case code", self, domain.NewAmount(100, domain.NewSymbol("tok", 2)), domain.ErrInvalidArgument, "invalid symbol name"},
		{"empty code", self, domain.NewAmount(100, domain.NewSymbol("", 2)), domain.ErrInvalidArgument, "invalid symbol name"},
		{"precision too large", self, domain.NewAmount(100, domain.NewSymbol("TOK", 19)), domain.ErrInvalidArgument, "invalid symbol name"},
		{"out of range", self, domain.NewAmount(domain.MaxAmount+1, sym), domain.ErrInvalidArgument, "invalid supply"},
		{"zero", self, domain.NewAmount(0, sym), domain.ErrInvalidArgument, "max-supply must be positive"},
		{"negative", self, domain.NewAmount(-5, sym), domain.ErrInvalidArgument, "max-supply must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, "alice")
			err := h.run(tt.auth, func(ctx context.Context, env Env) error {
				return h.contract.Create(ctx, env, domain.CreateArgs{Issuer: "alice", MaximumSupply: tt.max})
			})
			require.ErrorIs(t, err, tt.want)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestCreate_Twice(t *testing.T) {
	h := newHarness(t, "alice")

	require.NoError(t, h.create("alice", "1000.00 TOK"))

	err := h.create("alice", "1000.00 TOK")
	require.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestCreate_SameCodeOtherPrecision(t *testing.T) {
	h := newHarness(t, "alice", "bob")

	require.NoError(t, h.create("alice", "1000.00 TOK"))
	require.NoError(t, h.create("bob", "5.0000 TOK"))

	four := domain.NewSymbol("TOK", 4)
	st, err := h.contract.GetStats(h.ctx, h.ledger.Tables(), four)
	require.NoError(t, err)
	assert.Equal(t, domain.AccountID("bob"), st.Issuer)
	assert.Equal(t, "5.0000 TOK", st.MaxSupply.String())

	// Each symbol keeps its own supply and balances.
	require.NoError(t, h.issue("alice", "alice", "10.00 TOK", ""))
	require.NoError(t, h.issue("bob", "bob", "1.0000 TOK", ""))
	assert.EqualValues(t, 1000, h.supply(tok))
	assert.EqualValues(t, 10000, h.supply(four))
	assert.EqualValues(t, 1000, h.balance("alice", tok))
	assert.EqualValues(t, 0, h.balance("alice", four))
	assert.EqualValues(t, 10000, h.balance("bob", four))
}

func TestUncreatedPrecision_NotFound(t *testing.T) {
	h := newHarness(t, "alice", "bob")
	require.NoError(t, h.create("alice", "1000.00 TOK"))
	require.NoError(t, h.issue("alice", "alice", "100.00 TOK", ""))

	err := h.issue("alice", "alice", "1.000 TOK", "")
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Contains(t, err.Error(), "create token before issue")

	err = h.transfer("alice", "alice", "bob", "1.000 TOK", "")
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = h.contract.GetBalance(h.ctx, h.ledger.Tables(), "alice", domain.NewSymbol("TOK", 3))
	require.ErrorIs(t, err, domain.ErrNotFound)

	assert.EqualValues(t, 10000, h.supply(tok))
	assert.EqualValues(t, 10000, h.balance("alice", tok))
}

func TestResolveSymbol(t *testing.T) {
	h := newHarness(t, "alice")
	require.NoError(t, h.create("alice", "1000.00 TOK"))
	require.NoError(t, h.create("alice", "10 ONE"))
	tables := h.ledger.Tables()

	sym, err := h.contract.ResolveSymbol(h.ctx, tables, "TOK")
	require.NoError(t, err)
	assert.Equal(t, tok, sym)

	sym, err = h.contract.ResolveSymbol(h.ctx, tables, "4,TOK")
	require.NoError(t, err)
	assert.Equal(t, domain.NewSymbol("TOK", 4), sym, "explicit symbols are not checked against stats")

	_, err = h.contract.ResolveSymbol(h.ctx, tables, "NOPE")
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = h.contract.ResolveSymbol(h.ctx, tables, "tok")
	require.ErrorIs(t, err, domain.ErrInvalidArgument)

	require.NoError(t, h.create("alice", "1000.0000 TOK"))
	_, err = h.contract.ResolveSymbol(h.ctx, tables, "TOK")
	require.ErrorIs(t, err, domain.ErrInvalidArgument)

	sym, err = h.contract.ResolveSymbol(h.ctx, tables, "0,ONE")
	require.NoError(t, err)
	assert.Equal(t, domain.NewSymbol("ONE", 0), sym)
}

func TestIssue_ToIssuer(t *testing.T) {
	h := newHarness(t, "alice")
	require.NoError(t, h.create("alice", "1000.00 TOK"))

	require.NoError(t, h.issue("alice", "alice", "100.00 TOK", "mint"))

	assert.EqualValues(t, 10000, h.supply(tok))
	assert.EqualValues(t, 10000, h.balance("alice", tok))
	assert.Empty(t, h.inlines, "no forwarding when issuing to the issuer")
	assert.Empty(t, h.recipients)

	payer, _ := h.ledger.Balances().Payer("alice", tok)
	assert.Equal(t, domain.AccountID("alice"), payer)
}

func TestIssue_ForwardsToRecipient(t *testing.T) {
	h := newHarness(t, "alice", "bob")
	require.NoError(t, h.create("alice", "1000.00 TOK"))
	require.NoError(t, h.issue("alice", "alice", "100.00 TOK", ""))

	require.NoError(t, h.issue("alice", "bob", "50.00 TOK", "airdrop"))

	assert.EqualValues(t, 15000, h.supply(tok))
	assert.EqualValues(t, 10000, h.balance("alice", tok))
	assert.EqualValues(t, 5000, h.balance("bob", tok))
	assert.Equal(t, []string{"transfer@alice"}, h.inlines)
	assert.Equal(t, []domain.AccountID{"alice", "bob"}, h.recipients)
}

func TestIssue_Errors(t *testing.T) {
	tests := []struct {
		name string
		auth domain.AccountID
		to   domain.AccountID
		qty  string
		memo string
		want error
	}{
		{"unknown symbol", "alice", "alice", "1.00 NOPE", "", domain.ErrNotFound},
		{"not issuer", "bob", "bob", "1.00 TOK", "", domain.ErrUnauthorized},
		{"zero", "alice", "alice", "0.00 TOK", "", domain.ErrInvalidArgument},
		{"negative", "alice", "alice", "-1.00 TOK", "", domain.ErrInvalidArgument},
		{"uncreated precision", "alice", "alice", "1.000 TOK", "", domain.ErrNotFound},
		{"exceeds max", "alice", "alice", "1000.01 TOK", "", domain.ErrSupplyExceeded},
		{"memo too long", "alice", "alice", "1.00 TOK", strings.Repeat("m", 257), domain.ErrInvalidArgument},
		{"recipient missing", "alice", "nobody", "1.00 TOK", "", domain.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, "alice", "bob")
			require.NoError(t, h.create("alice", "1000.00 TOK"))

			err := h.issue(tt.auth, tt.to, tt.qty, tt.memo)
			require.ErrorIs(t, err, tt.want)

			// Nothing applied
			assert.EqualValues(t, 0, h.supply(tok))
			assert.EqualValues(t, 0, h.balance("alice", tok))
		})
	}
}

func TestIssue_MemoAtLimit(t *testing.T) {
	h := newHarness(t, "alice")
	require.NoError(t, h.create("alice", "1000.00 TOK"))

	require.NoError(t, h.issue("alice", "alice", "1.00 TOK", strings.Repeat("m", 256)))
}

func TestIssue_UpToMaxSupply(t *testing.T) {
	h := newHarness(t, "alice")
	require.NoError(t, h.create("alice", "10.00 TOK"))

	require.NoError(t, h.issue("alice", "alice", "7.50 TOK", ""))
	require.NoError(t, h.issue("alice", "alice", "2.50 TOK", ""))
	assert.EqualValues(t, 1000, h.supply(tok))

	err := h.issue("alice", "alice", "0.01 TOK", "")
	require.ErrorIs(t, err, domain.ErrSupplyExceeded)
	assert.EqualValues(t, 1000, h.supply(tok))
}

func TestTransfer(t *testing.T) {
	h := newHarness(t, "alice", "bob")
	require.NoError(t, h.create("alice", "1000.00 TOK"))
	require.NoError(t, h.issue("alice", "alice", "100.00 TOK", ""))

	require.NoError(t, h.transfer("alice", "alice", "bob", "30.00 TOK", "rent"))

	assert.EqualValues(t, 7000, h.balance("alice", tok))
	assert.EqualValues(t, 3000, h.balance("bob", tok))
	assert.EqualValues(t, 10000, h.supply(tok), "transfer never changes supply")
	assert.Equal(t, []domain.AccountID{"alice", "bob"}, h.recipients)

	payer, _ := h.ledger.Balances().Payer("bob", tok)
	assert.Equal(t, domain.AccountID("alice"), payer, "sender pays for the new record")
}

func TestTransfer_ExactBalanceErasesRecord(t *testing.T) {
	h := newHarness(t, "alice", "bob")
	require.NoError(t, h.create("alice", "1000.00 TOK"))
	require.NoError(t, h.issue("alice", "alice", "10.00 TOK", ""))

	require.NoError(t, h.transfer("alice", "alice", "bob", "10.00 TOK", ""))

	_, err := h.ledger.Tables().Balances.Get(h.ctx, "alice", tok)
	require.ErrorIs(t, err, storage.ErrNotFound, "record removed at zero")
	assert.EqualValues(t, 0, h.balance("alice", tok), "read accessor reports zero")

	// The internal debit precondition sees the missing record as NotFound.
	err = h.transfer("alice", "alice", "bob", "0.01 TOK", "")
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Contains(t, err.Error(), "no balance object found")
}

func TestTransfer_Errors(t *testing.T) {
	tests := []struct {
		name string
		auth domain.AccountID
		from domain.AccountID
		to   domain.AccountID
		qty  string
		memo string
		want error
	}{
		{"self transfer", "alice", "alice", "alice", "1.00 TOK", "", domain.ErrInvalidArgument},
		{"not sender", "bob", "alice", "bob", "1.00 TOK", "", domain.ErrUnauthorized},
		{"unknown recipient", "alice", "alice", "nobody", "1.00 TOK", "", domain.ErrNotFound},
		{"unknown symbol", "alice", "alice", "bob", "1.00 NOPE", "", domain.ErrNotFound},
		{"zero", "alice", "alice", "bob", "0.00 TOK", "", domain.ErrInvalidArgument},
		{"negative", "alice", "alice", "bob", "-1.00 TOK", "", domain.ErrInvalidArgument},
		{"uncreated precision", "alice", "alice", "bob", "1.0 TOK", "", domain.ErrNotFound},
		{"memo too long", "alice", "alice", "bob", "1.00 TOK", strings.Repeat("x", 300), domain.ErrInvalidArgument},
		{"overdrawn", "alice", "alice", "bob", "100.01 TOK", "", domain.ErrOverdrawn},
		{"no balance", "bob", "bob", "alice", "1.00 TOK", "", domain.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, "alice", "bob")
			require.NoError(t, h.create("alice", "1000.00 TOK"))
			require.NoError(t, h.issue("alice", "alice", "100.00 TOK", ""))

			err := h.transfer(tt.auth, tt.from, tt.to, tt.qty, tt.memo)
			require.ErrorIs(t, err, tt.want)

			assert.EqualValues(t, 10000, h.balance("alice", tok))
			assert.EqualValues(t, 0, h.balance("bob", tok))
		})
	}
}

func TestTransfer_ConservesSupply(t *testing.T) {
	h := newHarness(t, "alice", "bob", "carol")
	require.NoError(t, h.create("alice", "1000000.00 TOK"))
	require.NoError(t, h.issue("alice", "alice", "1000.00 TOK", ""))

	moves := []struct {
		from, to domain.AccountID
		qty      string
	}{
		{"alice", "bob", "250.00 TOK"},
		{"bob", "carol", "100.50 TOK"},
		{"carol", "alice", "0.50 TOK"},
		{"bob", "alice", "149.50 TOK"},
		{"alice", "carol", "900.00 TOK"},
	}
	for _, m := range moves {
		require.NoError(t, h.transfer(m.from, m.from, m.to, m.qty, ""))

		balances, err := h.ledger.Tables().Balances.GetBySymbol(h.ctx, tok)
		require.NoError(t, err)
		var sum int64
		for _, b := range balances {
			require.Positive(t, b.Amount.Value, "zero balances are never stored")
			sum += b.Amount.Value
		}
		assert.Equal(t, h.supply(tok), sum)
	}
}

func TestRoundTrip_IssueThenTransfer(t *testing.T) {
	h := newHarness(t, "alice", "xavier")
	require.NoError(t, h.create("alice", "1000.00 TOK"))
	require.NoError(t, h.issue("alice", "alice", "20.00 TOK", ""))
	before := h.balance("alice", tok)

	require.NoError(t, h.issue("alice", "alice", "5.00 TOK", ""))
	require.NoError(t, h.transfer("alice", "alice", "xavier", "5.00 TOK", ""))

	assert.Equal(t, before, h.balance("alice", tok))
	assert.EqualValues(t, 500, h.balance("xavier", tok))
}

func TestWithdraw_NoEffect(t *testing.T) {
	h := newHarness(t, "alice", "bob")
	require.NoError(t, h.create("alice", "1000.00 TOK"))
	require.NoError(t, h.issue("alice", "alice", "10.00 TOK", ""))

	// Reachable without any authority.
	err := h.run("nobody", func(ctx context.Context, env Env) error {
		return h.contract.Withdraw(ctx, env, domain.TransferArgs{
			From: "alice", To: "bob", Quantity: domain.MustParseAmount("10.00 TOK"),
		})
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1000, h.balance("alice", tok))
	assert.EqualValues(t, 0, h.balance("bob", tok))
}

func TestOnTransferNotification_NoBookkeeping(t *testing.T) {
	h := newHarness(t, "alice")
	require.NoError(t, h.create("alice", "1000.00 TOK"))

	for _, from := range []domain.AccountID{self, "alice"} {
		err := h.run("eosio.token", func(ctx context.Context, env Env) error {
			return h.contract.OnTransferNotification(ctx, env, "eosio.token", domain.TransferArgs{
				From: from, To: self, Quantity: domain.MustParseAmount("1.0000 EOS"),
			})
		})
		require.NoError(t, err)
	}

	balances, err := h.ledger.Tables().Balances.GetByOwner(h.ctx, self)
	require.NoError(t, err)
	assert.Empty(t, balances)
}

func TestGetBalance_UnknownSymbol(t *testing.T) {
	h := newHarness(t, "alice")

	_, err := h.contract.GetBalance(h.ctx, h.ledger.Tables(), "alice", tok)
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = h.contract.GetSupply(h.ctx, h.ledger.Tables(), tok)
	require.ErrorIs(t, err, domain.ErrNotFound)
}
