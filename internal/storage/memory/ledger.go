package memory

import (
	"context"
	"sync"

	"token-ledger/internal/storage"
)

// Ledger is an in-memory implementation of storage.Ledger.
// An atomic unit holds the ledger lock exclusively and writes the committed
// tables in place, recording an undo entry per write; readers share the lock
// and so never observe a unit in progress.
type Ledger struct {
	mu       sync.RWMutex
	stats    *StatsStore
	balances *BalanceStore
	accounts *AccountStore
}

// NewLedger creates an empty in-memory ledger.
func NewLedger() *Ledger {
	return &Ledger{
		stats:    NewStatsStore(),
		balances: NewBalanceStore(),
		accounts: NewAccountStore(),
	}
}

// Atomic runs fn with exclusive access and rolls its writes back unless fn
// returns nil.
func (l *Ledger) Atomic(ctx context.Context, fn func(ctx context.Context, t storage.Tables) error) (err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	var undo undoLog
	committed := false
	defer func() {
		if !committed {
			undo.rollback()
		}
	}()

	err = fn(ctx, storage.Tables{
		Stats:    &txStats{store: l.stats, undo: &undo},
		Balances: &txBalances{store: l.balances, undo: &undo},
		Accounts: &txAccounts{store: l.accounts, undo: &undo},
	})
	committed = err == nil
	return err
}

// View runs fn while holding the ledger read lock.
func (l *Ledger) View(ctx context.Context, fn func(ctx context.Context, t storage.Tables) error) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx, storage.Tables{
		Stats:    l.stats,
		Balances: l.balances,
		Accounts: l.accounts,
	})
}

// Tables returns the committed tables; every call waits for a running unit.
func (l *Ledger) Tables() storage.Tables {
	return storage.Tables{
		Stats:    &lockedStats{mu: &l.mu, store: l.stats},
		Balances: &lockedBalances{mu: &l.mu, store: l.balances},
		Accounts: &lockedAccounts{mu: &l.mu, store: l.accounts},
	}
}

// Stats exposes the committed stats store.
func (l *Ledger) Stats() *StatsStore { return l.stats }

// Balances exposes the committed balance store.
func (l *Ledger) Balances() *BalanceStore { return l.balances }

var _ storage.Ledger = (*Ledger)(nil)
