package storage

import (
	"context"

	"token-ledger/internal/domain"
)

// StatsStore provides access to token_stats storage, keyed by symbol
// (code and precision).
type StatsStore interface {
	// Get retrieves stats for a symbol. Returns ErrNotFound if not exists.
	Get(ctx context.Context, sym domain.Symbol) (*domain.TokenStats, error)

	// Insert adds new stats, storage billed to payer. Returns ErrDuplicateKey if the symbol exists.
	Insert(ctx context.Context, s *domain.TokenStats, payer domain.AccountID) error

	// Update replaces the supply of existing stats. Returns ErrNotFound if not exists.
	Update(ctx context.Context, s *domain.TokenStats) error

	// List retrieves all stats ordered by symbol code, then precision.
	List(ctx context.Context) ([]*domain.TokenStats, error)
}

// BalanceStore provides access to balances storage, keyed by (owner, symbol).
type BalanceStore interface {
	// Get retrieves a balance. Returns ErrNotFound if not exists.
	Get(ctx context.Context, owner domain.AccountID, sym domain.Symbol) (*domain.Balance, error)

	// Insert adds a new balance, storage billed to payer. Returns ErrDuplicateKey if exists.
	Insert(ctx context.Context, b *domain.Balance, payer domain.AccountID) error

	// Update replaces the amount of an existing balance. Returns ErrNotFound if not exists.
	Update(ctx context.Context, b *domain.Balance) error

	// Delete erases a balance. Returns ErrNotFound if not exists.
	Delete(ctx context.Context, owner domain.AccountID, sym domain.Symbol) error

	// GetByOwner retrieves all balances of an account, ordered by symbol.
	GetByOwner(ctx context.Context, owner domain.AccountID) ([]*domain.Balance, error)

	// GetBySymbol retrieves all balances of a symbol, ordered by owner.
	GetBySymbol(ctx context.Context, sym domain.Symbol) ([]*domain.Balance, error)
}

// AccountStore provides access to the accounts registry.
type AccountStore interface {
	// Insert registers an account. Returns ErrDuplicateKey if it exists.
	Insert(ctx context.Context, a *domain.Account) error

	// Exists reports whether an account is registered.
	Exists(ctx context.Context, id domain.AccountID) (bool, error)

	// List retrieves all accounts ordered by ID.
	List(ctx context.Context) ([]*domain.Account, error)
}

// Tables groups the ledger tables an action reads and writes.
type Tables struct {
	Stats    StatsStore
	Balances BalanceStore
	Accounts AccountStore
}

// Ledger is the persistent ledger state with an atomic commit boundary.
type Ledger interface {
	// Atomic runs fn against tables that commit together when fn returns nil
	// and roll back otherwise. Calls are serialized per ledger.
	Atomic(ctx context.Context, fn func(ctx context.Context, t Tables) error) error

	// View runs fn against a consistent read snapshot: no atomic unit
	// commits partway through fn. Tables passed to fn are read-only.
	View(ctx context.Context, fn func(ctx context.Context, t Tables) error) error

	// Tables returns tables for single reads outside an atomic unit.
	Tables() Tables
}

// ActionJournal provides access to the append-only action_journal storage.
type ActionJournal interface {
	// InsertBulk adds records atomically. Fails entire batch on duplicate sequence.
	InsertBulk(ctx context.Context, records []*domain.ActionRecord) error

	// GetAll retrieves all records ordered by sequence ASC.
	GetAll(ctx context.Context) ([]*domain.ActionRecord, error)

	// GetByTraceID retrieves the records of one root action and its inline actions.
	GetByTraceID(ctx context.Context, traceID string) ([]*domain.ActionRecord, error)

	// GetByAccount retrieves records authorized by or notifying an account, ordered by sequence ASC.
	GetByAccount(ctx context.Context, account domain.AccountID) ([]*domain.ActionRecord, error)

	// LastSequence returns the highest stored sequence, 0 when empty.
	LastSequence(ctx context.Context) (uint64, error)
}
