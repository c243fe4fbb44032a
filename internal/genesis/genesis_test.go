package genesis

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-ledger/internal/domain"
	"token-ledger/internal/host"
	"token-ledger/internal/storage/memory"
)

const doc = `
self: ledger
accounts: [ledger, alice, bob]
actions:
  - account: ledger
    name: create
    authorization: [ledger]
    data:
      issuer: alice
      maximum_supply: "1000.00 TOK"
  - account: ledger
    name: issue
    authorization: [alice]
    data:
      to: bob
      quantity: "40.00 TOK"
      memo: genesis
`

func newExecutor(t *testing.T) *host.Executor {
	t.Helper()
	exec, err := host.NewExecutor(context.Background(), host.Options{
		Self:   "ledger",
		Ledger: memory.NewLedger(),
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)
	return exec
}

func TestParse(t *testing.T) {
	g, err := Parse(strings.NewReader(doc))
	require.NoError(t, err)

	assert.Equal(t, domain.AccountID("ledger"), g.Self)
	assert.Len(t, g.Accounts, 3)
	require.Len(t, g.Actions, 2)
	assert.Equal(t, "issue", g.Actions[1].Name)

	action, err := g.Actions[1].Domain()
	require.NoError(t, err)
	assert.JSONEq(t, `{"to":"bob","quantity":"40.00 TOK","memo":"genesis"}`, string(action.Data))
}

func TestParse_Empty(t *testing.T) {
	g, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, g.Actions)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown field", "self: ledger\nbalances: []\n"},
		{"bad account", "accounts: [Alice]\n"},
		{"missing name", "actions:\n  - account: ledger\n    authorization: [ledger]\n"},
		{"missing authorization", "actions:\n  - account: ledger\n    name: create\n"},
		{"malformed", "accounts: {\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genesis.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	g, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, g.Actions, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestApply(t *testing.T) {
	ctx := context.Background()
	exec := newExecutor(t)
	g, err := Parse(strings.NewReader(doc))
	require.NoError(t, err)

	res, err := Apply(ctx, exec, g, zerolog.Nop())
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, 3, res.Accounts)
	assert.Equal(t, 2, res.Actions)

	tables := exec.Ledger().Tables()
	bal, err := exec.Contract().GetBalance(ctx, tables, "bob", domain.NewSymbol("TOK", 2))
	require.NoError(t, err)
	assert.Equal(t, "40.00 TOK", bal.String())

	supply, err := exec.Contract().GetSupply(ctx, tables, domain.NewSymbol("TOK", 2))
	require.NoError(t, err)
	assert.Equal(t, "40.00 TOK", supply.String())

	// A second run finds tokens and leaves the ledger alone.
	res, err = Apply(ctx, exec, g, zerolog.Nop())
	require.NoError(t, err)
	assert.True(t, res.Skipped)

	supply, err = exec.Contract().GetSupply(ctx, tables, domain.NewSymbol("TOK", 2))
	require.NoError(t, err)
	assert.Equal(t, "40.00 TOK", supply.String())
}

func TestApply_PreRegisteredAccount(t *testing.T) {
	ctx := context.Background()
	exec := newExecutor(t)
	require.NoError(t, exec.RegisterAccount(ctx, "alice"))

	g, err := Parse(strings.NewReader(doc))
	require.NoError(t, err)

	res, err := Apply(ctx, exec, g, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Accounts)
}

func TestApply_SelfMismatch(t *testing.T) {
	exec := newExecutor(t)
	_, err := Apply(context.Background(), exec, &File{Self: "other"}, zerolog.Nop())
	assert.Error(t, err)
}

func TestApply_RejectedAction(t *testing.T) {
	exec := newExecutor(t)
	g := &File{
		Accounts: []domain.AccountID{"ledger", "alice"},
		Actions: []Action{{
			Account:       "ledger",
			Name:          "create",
			Authorization: []domain.AccountID{"alice"},
			Data:          map[string]any{"issuer": "alice", "maximum_supply": "1.00 TOK"},
		}},
	}

	_, err := Apply(context.Background(), exec, g, zerolog.Nop())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}
