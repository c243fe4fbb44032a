// Package genesis bootstraps an empty ledger from a YAML file: it registers
// accounts and applies a list of actions through the executor.
package genesis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"token-ledger/internal/domain"
	"token-ledger/internal/host"
)

// File is the genesis document.
//
//	self: ledger
//	accounts: [ledger, alice, bob]
//	actions:
//	  - account: ledger
//	    name: create
//	    authorization: [ledger]
//	    data: {issuer: alice, maximum_supply: "1000.00 TOK"}
type File struct {
	Self     domain.AccountID   `yaml:"self"`
	Accounts []domain.AccountID `yaml:"accounts"`
	Actions  []Action           `yaml:"actions"`
}

// Action is an action with its arguments written as a YAML mapping.
type Action struct {
	Account       domain.AccountID   `yaml:"account"`
	Name          string             `yaml:"name"`
	Authorization []domain.AccountID `yaml:"authorization"`
	Data          map[string]any     `yaml:"data"`
}

// Result summarizes an applied genesis.
type Result struct {
	Skipped  bool // ledger already held tokens
	Accounts int
	Actions  int
}

// Load reads a genesis file from disk.
func Load(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open genesis: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes and validates a genesis document.
func Parse(r io.Reader) (*File, error) {
	var g File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&g); err != nil {
		if errors.Is(err, io.EOF) {
			return &g, nil
		}
		return nil, fmt.Errorf("decode genesis: %w", err)
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &g, nil
}

// Validate checks account names and action envelopes.
func (g *File) Validate() error {
	if g.Self != "" && !g.Self.Valid() {
		return fmt.Errorf("genesis: invalid self %q", g.Self)
	}
	for _, a := range g.Accounts {
		if !a.Valid() {
			return fmt.Errorf("genesis: invalid account %q", a)
		}
	}
	for i, a := range g.Actions {
		if !a.Account.Valid() {
			return fmt.Errorf("genesis: action %d: invalid account %q", i, a.Account)
		}
		if a.Name == "" {
			return fmt.Errorf("genesis: action %d: missing name", i)
		}
		if len(a.Authorization) == 0 {
			return fmt.Errorf("genesis: action %d: missing authorization", i)
		}
	}
	return nil
}

// Domain converts the action into an executable one, encoding its data as JSON.
func (a Action) Domain() (domain.Action, error) {
	data := a.Data
	if data == nil {
		data = map[string]any{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return domain.Action{}, fmt.Errorf("encode %s data: %w", a.Name, err)
	}
	return domain.Action{
		Contract:      a.Account,
		Name:          a.Name,
		Authorization: a.Authorization,
		Data:          raw,
	}, nil
}

// Apply bootstraps the ledger when it holds no tokens yet. Accounts that
// already exist are skipped; any rejected action aborts the genesis.
func Apply(ctx context.Context, exec *host.Executor, g *File, logger zerolog.Logger) (*Result, error) {
	if g.Self != "" && g.Self != exec.Self() {
		return nil, fmt.Errorf("genesis is for %q, ledger runs as %q", g.Self, exec.Self())
	}

	stats, err := exec.Ledger().Tables().Stats.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("check ledger: %w", err)
	}
	if len(stats) > 0 {
		logger.Info().Int("tokens", len(stats)).Msg("ledger not empty, genesis skipped")
		return &Result{Skipped: true}, nil
	}

	res := &Result{}
	for _, id := range g.Accounts {
		err := exec.RegisterAccount(ctx, id)
		if errors.Is(err, domain.ErrAlreadyExists) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("register %s: %w", id, err)
		}
		res.Accounts++
	}

	for i, a := range g.Actions {
		action, err := a.Domain()
		if err != nil {
			return nil, fmt.Errorf("genesis action %d: %w", i, err)
		}
		if _, err := exec.Apply(ctx, action); err != nil {
			return nil, fmt.Errorf("genesis action %d (%s): %w", i, a.Name, err)
		}
		res.Actions++
	}

	logger.Info().
		Int("accounts", res.Accounts).
		Int("actions", res.Actions).
		Msg("genesis applied")
	return res, nil
}
