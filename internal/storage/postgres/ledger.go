package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"token-ledger/internal/storage"
)

// ledgerLockKey is the advisory lock serializing atomic units across processes.
const ledgerLockKey int64 = 0x6c6564676572 // "ledger"

// Ledger implements storage.Ledger using PostgreSQL transactions.
type Ledger struct {
	pool *Pool
}

// NewLedger creates a new Ledger.
func NewLedger(pool *Pool) *Ledger {
	return &Ledger{pool: pool}
}

// Compile-time interface check.
var _ storage.Ledger = (*Ledger)(nil)

// Atomic runs fn inside a transaction holding the ledger advisory lock.
// The transaction commits when fn returns nil and rolls back otherwise.
func (l *Ledger) Atomic(ctx context.Context, fn func(ctx context.Context, t storage.Tables) error) (err error) {
	defer func(start time.Time) { observe("atomic", start, err) }(time.Now())

	return pgx.BeginFunc(ctx, l.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, ledgerLockKey); err != nil {
			return fmt.Errorf("acquire ledger lock: %w", err)
		}
		return fn(ctx, tablesOf(tx))
	})
}

// View runs fn inside a read-only repeatable-read transaction, so every read
// in fn sees the same committed snapshot.
func (l *Ledger) View(ctx context.Context, fn func(ctx context.Context, t storage.Tables) error) (err error) {
	defer func(start time.Time) { observe("view", start, err) }(time.Now())

	opts := pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}
	return pgx.BeginTxFunc(ctx, l.pool, opts, func(tx pgx.Tx) error {
		return fn(ctx, tablesOf(tx))
	})
}

// Tables returns tables bound to the pool, for single reads outside an atomic unit.
func (l *Ledger) Tables() storage.Tables {
	return tablesOf(l.pool)
}

func tablesOf(db querier) storage.Tables {
	return storage.Tables{
		Stats:    &StatsStore{db: db},
		Balances: &BalanceStore{db: db},
		Accounts: &AccountStore{db: db},
	}
}
