// Package token implements the accounting core of the fungible-token ledger:
// symbol creation, issuance, transfer and balance bookkeeping.
package token

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"token-ledger/internal/domain"
	"token-ledger/internal/storage"
)

// Contract is the token contract deployed at Self.
type Contract struct {
	self   domain.AccountID
	logger zerolog.Logger
}

// New creates the token contract owned by self.
func New(self domain.AccountID, logger zerolog.Logger) *Contract {
	return &Contract{
		self:   self,
		logger: logger.With().Str("component", "token").Logger(),
	}
}

// Self returns the contract's own account.
func (c *Contract) Self() domain.AccountID { return c.self }

// Create registers a new symbol with a maximum supply. Only the contract
// itself may create symbols.
func (c *Contract) Create(ctx context.Context, env Env, args domain.CreateArgs) error {
	if err := env.RequireAuth(c.self); err != nil {
		return err
	}

	sym := args.MaximumSupply.Symbol
	if !sym.Valid() {
		return domain.Fail(domain.ErrInvalidArgument, "invalid symbol name")
	}
	if !args.MaximumSupply.Valid() {
		return domain.Fail(domain.ErrInvalidArgument, "invalid supply")
	}
	if args.MaximumSupply.Value <= 0 {
		return domain.Fail(domain.ErrInvalidArgument, "max-supply must be positive")
	}

	stats := env.Tables().Stats
	_, err := stats.Get(ctx, sym)
	switch {
	case err == nil:
		return domain.Fail(domain.ErrAlreadyExists, "token with symbol already exists")
	case !errors.Is(err, storage.ErrNotFound):
		return fmt.Errorf("get stats %s: %w", sym, err)
	}

	st := &domain.TokenStats{
		Supply:    domain.NewAmount(0, sym),
		MaxSupply: args.MaximumSupply,
		Issuer:    args.Issuer,
	}
	if err := stats.Insert(ctx, st, c.self); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return domain.Fail(domain.ErrAlreadyExists, "token with symbol already exists")
		}
		return fmt.Errorf("insert stats %s: %w", sym, err)
	}

	c.logger.Info().
		Str("symbol", sym.String()).
		Str("issuer", string(args.Issuer)).
		Str("max_supply", args.MaximumSupply.String()).
		Msg("token created")
	return nil
}

// Issue mints quantity into the issuer's balance and forwards it to `to`
// with an inline transfer when `to` is not the issuer.
func (c *Contract) Issue(ctx context.Context, env Env, args domain.IssueArgs) error {
	sym := args.Quantity.Symbol
	if !sym.Valid() {
		return domain.Fail(domain.ErrInvalidArgument, "invalid symbol name")
	}
	if err := checkMemo(args.Memo); err != nil {
		return err
	}

	tables := env.Tables()
	st, err := c.loadStats(ctx, tables, sym, "token with symbol does not exist, create token before issue")
	if err != nil {
		return err
	}

	if err := env.RequireAuth(st.Issuer); err != nil {
		return err
	}
	if err := checkQuantity(args.Quantity, st, "must issue positive quantity"); err != nil {
		return err
	}
	if args.Quantity.Value > st.Available() {
		return domain.Fail(domain.ErrSupplyExceeded, "quantity exceeds available supply")
	}

	st.Supply, err = st.Supply.Add(args.Quantity)
	if err != nil {
		return err
	}
	if err := tables.Stats.Update(ctx, st); err != nil {
		return fmt.Errorf("update stats %s: %w", sym, err)
	}

	if err := c.credit(ctx, tables, st.Issuer, args.Quantity, st.Issuer); err != nil {
		return err
	}

	c.logger.Info().
		Str("issuer", string(st.Issuer)).
		Str("quantity", args.Quantity.String()).
		Str("supply", st.Supply.String()).
		Msg("tokens issued")

	if args.To != st.Issuer {
		forward := domain.TransferArgs{
			From:     st.Issuer,
			To:       args.To,
			Quantity: args.Quantity,
			Memo:     args.Memo,
		}
		inline := env.Inline(st.Issuer, domain.ActionTransfer, forward)
		return c.transfer(ctx, inline, forward, true)
	}
	return nil
}

// Transfer moves quantity from one account to another and notifies both.
func (c *Contract) Transfer(ctx context.Context, env Env, args domain.TransferArgs) error {
	return c.transfer(ctx, env, args, false)
}

// transfer runs the transfer checks and effects. forwarded marks the
// transfer sent inline by issue; it passes through the same validation.
func (c *Contract) transfer(ctx context.Context, env Env, args domain.TransferArgs, forwarded bool) error {
	if args.From == args.To {
		return domain.Fail(domain.ErrInvalidArgument, "cannot transfer to self")
	}
	if err := env.RequireAuth(args.From); err != nil {
		return err
	}

	ok, err := env.IsAccount(ctx, args.To)
	if err != nil {
		return fmt.Errorf("resolve account %s: %w", args.To, err)
	}
	if !ok {
		return domain.Fail(domain.ErrNotFound, "to account does not exist")
	}

	tables := env.Tables()
	st, err := c.loadStats(ctx, tables, args.Quantity.Symbol, "token with symbol does not exist")
	if err != nil {
		return err
	}

	env.RequireRecipient(args.From)
	env.RequireRecipient(args.To)

	if err := checkQuantity(args.Quantity, st, "must transfer positive quantity"); err != nil {
		return err
	}
	if err := checkMemo(args.Memo); err != nil {
		return err
	}

	if err := c.debit(ctx, tables, args.From, args.Quantity); err != nil {
		return err
	}
	if err := c.credit(ctx, tables, args.To, args.Quantity, args.From); err != nil {
		return err
	}

	c.logger.Info().
		Str("from", string(args.From)).
		Str("to", string(args.To)).
		Str("quantity", args.Quantity.String()).
		Bool("forwarded", forwarded).
		Msg("tokens transferred")
	return nil
}

// Withdraw is reachable but has no ledger effect until a withdrawal policy exists.
func (c *Contract) Withdraw(_ context.Context, _ Env, args domain.TransferArgs) error {
	c.logger.Warn().
		Str("from", string(args.From)).
		Str("to", string(args.To)).
		Str("quantity", args.Quantity.String()).
		Msg("withdraw is not implemented, ignoring")
	return nil
}

// OnTransferNotification handles a transfer of another token contract that
// named this contract as a recipient. Transfers sent by this contract itself
// are ignored; other transfers are observed without bookkeeping.
func (c *Contract) OnTransferNotification(_ context.Context, _ Env, code domain.AccountID, args domain.TransferArgs) error {
	if args.From == c.self {
		return nil
	}

	c.logger.Info().
		Str("contract", string(code)).
		Str("from", string(args.From)).
		Str("to", string(args.To)).
		Str("quantity", args.Quantity.String()).
		Msg("inbound transfer observed, no deposit policy configured")
	return nil
}

// loadStats fetches stats for sym, mapping a missing record to ErrNotFound with msg.
func (c *Contract) loadStats(ctx context.Context, tables storage.Tables, sym domain.Symbol, msg string) (*domain.TokenStats, error) {
	st, err := tables.Stats.Get(ctx, sym)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, domain.Fail(domain.ErrNotFound, "%s", msg)
		}
		return nil, fmt.Errorf("get stats %s: %w", sym, err)
	}
	return st, nil
}

func checkQuantity(q domain.Amount, st *domain.TokenStats, positiveMsg string) error {
	if !q.Valid() {
		return domain.Fail(domain.ErrInvalidArgument, "invalid quantity")
	}
	if q.Value <= 0 {
		return domain.Fail(domain.ErrInvalidArgument, "%s", positiveMsg)
	}
	if q.Symbol != st.Supply.Symbol {
		return domain.Fail(domain.ErrSymbolMismatch, "symbol precision mismatch")
	}
	return nil
}

func checkMemo(memo string) error {
	if len(memo) > domain.MaxMemoLength {
		return domain.Fail(domain.ErrInvalidArgument, "memo has more than %d bytes", domain.MaxMemoLength)
	}
	return nil
}
