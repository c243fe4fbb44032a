package token

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"token-ledger/internal/domain"
	"token-ledger/internal/storage"
)

// debit subtracts value from owner's balance, erasing the record when it
// reaches zero.
func (c *Contract) debit(ctx context.Context, tables storage.Tables, owner domain.AccountID, value domain.Amount) error {
	from, err := tables.Balances.Get(ctx, owner, value.Symbol)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Fail(domain.ErrNotFound, "no balance object found")
		}
		return fmt.Errorf("get balance %s/%s: %w", owner, value.Symbol, err)
	}
	if from.Amount.Value < value.Value {
		return domain.Fail(domain.ErrOverdrawn, "overdrawn balance")
	}

	if from.Amount.Value == value.Value {
		if err := tables.Balances.Delete(ctx, owner, value.Symbol); err != nil {
			return fmt.Errorf("erase balance %s/%s: %w", owner, value.Symbol, err)
		}
		return nil
	}

	from.Amount, err = from.Amount.Sub(value)
	if err != nil {
		return err
	}
	if err := tables.Balances.Update(ctx, from); err != nil {
		return fmt.Errorf("update balance %s/%s: %w", owner, value.Symbol, err)
	}
	return nil
}

// credit adds value to owner's balance, creating the record billed to payer
// when the owner holds none.
func (c *Contract) credit(ctx context.Context, tables storage.Tables, owner domain.AccountID, value domain.Amount, payer domain.AccountID) error {
	to, err := tables.Balances.Get(ctx, owner, value.Symbol)
	if errors.Is(err, storage.ErrNotFound) {
		b := &domain.Balance{Owner: owner, Amount: value}
		if err := tables.Balances.Insert(ctx, b, payer); err != nil {
			return fmt.Errorf("insert balance %s/%s: %w", owner, value.Symbol, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("get balance %s/%s: %w", owner, value.Symbol, err)
	}

	to.Amount, err = to.Amount.Add(value)
	if err != nil {
		return err
	}
	if err := tables.Balances.Update(ctx, to); err != nil {
		return fmt.Errorf("update balance %s/%s: %w", owner, value.Symbol, err)
	}
	return nil
}

// GetStats returns the stats of a symbol. Returns ErrNotFound if never created.
func (c *Contract) GetStats(ctx context.Context, tables storage.Tables, sym domain.Symbol) (*domain.TokenStats, error) {
	return c.loadStats(ctx, tables, sym, "token with symbol does not exist")
}

// GetSupply returns the circulating supply of a symbol.
func (c *Contract) GetSupply(ctx context.Context, tables storage.Tables, sym domain.Symbol) (domain.Amount, error) {
	st, err := c.GetStats(ctx, tables, sym)
	if err != nil {
		return domain.Amount{}, err
	}
	return st.Supply, nil
}

// GetBalance returns owner's holding of a symbol. An account without a
// balance record holds zero; an unknown symbol is ErrNotFound.
func (c *Contract) GetBalance(ctx context.Context, tables storage.Tables, owner domain.AccountID, sym domain.Symbol) (domain.Amount, error) {
	b, err := tables.Balances.Get(ctx, owner, sym)
	if err == nil {
		return b.Amount, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return domain.Amount{}, fmt.Errorf("get balance %s/%s: %w", owner, sym, err)
	}

	st, err := c.GetStats(ctx, tables, sym)
	if err != nil {
		return domain.Amount{}, err
	}
	return domain.NewAmount(0, st.Supply.Symbol), nil
}

// ResolveSymbol parses "<precision>,<CODE>" or a bare code. A bare code
// resolves to its only created symbol: ErrNotFound when none exists,
// ErrInvalidArgument when several precisions share the code.
func (c *Contract) ResolveSymbol(ctx context.Context, tables storage.Tables, text string) (domain.Symbol, error) {
	if strings.Contains(text, ",") {
		return domain.ParseSymbol(text)
	}

	code := domain.SymbolCode(text)
	if !code.Valid() {
		return domain.Symbol{}, domain.Fail(domain.ErrInvalidArgument, "invalid symbol code %q", text)
	}
	list, err := tables.Stats.List(ctx)
	if err != nil {
		return domain.Symbol{}, fmt.Errorf("list stats: %w", err)
	}

	var matches []domain.Symbol
	for _, st := range list {
		if st.Supply.Symbol.Code == code {
			matches = append(matches, st.Supply.Symbol)
		}
	}
	switch len(matches) {
	case 0:
		return domain.Symbol{}, domain.Fail(domain.ErrNotFound, "token with symbol does not exist")
	case 1:
		return matches[0], nil
	default:
		return domain.Symbol{}, domain.Fail(domain.ErrInvalidArgument, "symbol code %s is ambiguous, use <precision>,%s", code, code)
	}
}
