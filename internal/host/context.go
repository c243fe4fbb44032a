package host

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"token-ledger/internal/domain"
	"token-ledger/internal/storage"
	"token-ledger/internal/token"
)

// frame is one executed action: the root action or an inline action it sent.
type frame struct {
	contract   domain.AccountID
	name       string
	auth       []domain.AccountID
	data       json.RawMessage
	inline     bool
	recipients []domain.AccountID
}

// Context is the execution environment of one action and its inline actions.
// It implements token.Env.
type Context struct {
	self   domain.AccountID
	tables storage.Tables
	frame  *frame
	trace  *[]*frame // shared by the root action and its inline actions
}

func newContext(self domain.AccountID, tables storage.Tables, action domain.Action) *Context {
	root := &frame{
		contract: action.Contract,
		name:     action.Name,
		auth:     slices.Clone(action.Authorization),
		data:     slices.Clone(action.Data),
	}
	trace := []*frame{root}
	return &Context{
		self:   self,
		tables: tables,
		frame:  root,
		trace:  &trace,
	}
}

// RequireAuth fails unless account is among the action's authorizers.
func (c *Context) RequireAuth(account domain.AccountID) error {
	if slices.Contains(c.frame.auth, account) {
		return nil
	}
	return domain.Fail(domain.ErrUnauthorized, "missing authority of %s", account)
}

// IsAccount reports whether account is registered.
func (c *Context) IsAccount(ctx context.Context, account domain.AccountID) (bool, error) {
	return c.tables.Accounts.Exists(ctx, account)
}

// RequireRecipient adds account to the action's recipients once.
func (c *Context) RequireRecipient(account domain.AccountID) {
	if !slices.Contains(c.frame.recipients, account) {
		c.frame.recipients = append(c.frame.recipients, account)
	}
}

// Tables returns the tables of the enclosing atomic unit.
func (c *Context) Tables() storage.Tables { return c.tables }

// Inline records an action sent by the current one under actor's authority
// and returns its environment.
func (c *Context) Inline(actor domain.AccountID, name string, args any) token.Env {
	data, err := json.Marshal(args)
	if err != nil {
		data = json.RawMessage(fmt.Sprintf("%q", err.Error()))
	}
	f := &frame{
		contract: c.self,
		name:     name,
		auth:     []domain.AccountID{actor},
		data:     data,
		inline:   true,
	}
	*c.trace = append(*c.trace, f)
	return &Context{
		self:   c.self,
		tables: c.tables,
		frame:  f,
		trace:  c.trace,
	}
}

// frames returns the executed actions in execution order.
func (c *Context) frames() []*frame { return *c.trace }

var _ token.Env = (*Context)(nil)
