package memory

import (
	"context"
	"sync"

	"token-ledger/internal/domain"
	"token-ledger/internal/storage"
)

// undoLog holds the inverse of each write of an atomic unit.
type undoLog []func()

func (u *undoLog) push(fn func()) { *u = append(*u, fn) }

func (u undoLog) rollback() {
	for i := len(u) - 1; i >= 0; i-- {
		u[i]()
	}
}

// txStats records an undo entry for every successful write.
type txStats struct {
	store *StatsStore
	undo  *undoLog
}

func (t *txStats) Get(ctx context.Context, sym domain.Symbol) (*domain.TokenStats, error) {
	return t.store.Get(ctx, sym)
}

func (t *txStats) List(ctx context.Context) ([]*domain.TokenStats, error) {
	return t.store.List(ctx)
}

func (t *txStats) Insert(ctx context.Context, st *domain.TokenStats, payer domain.AccountID) error {
	if st == nil {
		return storage.ErrInvalidInput
	}
	return t.write(st.Symbol(), func() error { return t.store.Insert(ctx, st, payer) })
}

func (t *txStats) Update(ctx context.Context, st *domain.TokenStats) error {
	if st == nil {
		return storage.ErrInvalidInput
	}
	return t.write(st.Symbol(), func() error { return t.store.Update(ctx, st) })
}

func (t *txStats) write(sym domain.Symbol, fn func() error) error {
	prev, ok := t.store.row(sym)
	if err := fn(); err != nil {
		return err
	}
	t.undo.push(func() { t.store.restore(sym, prev, ok) })
	return nil
}

type txBalances struct {
	store *BalanceStore
	undo  *undoLog
}

func (t *txBalances) Get(ctx context.Context, owner domain.AccountID, sym domain.Symbol) (*domain.Balance, error) {
	return t.store.Get(ctx, owner, sym)
}

func (t *txBalances) GetByOwner(ctx context.Context, owner domain.AccountID) ([]*domain.Balance, error) {
	return t.store.GetByOwner(ctx, owner)
}

func (t *txBalances) GetBySymbol(ctx context.Context, sym domain.Symbol) ([]*domain.Balance, error) {
	return t.store.GetBySymbol(ctx, sym)
}

func (t *txBalances) Insert(ctx context.Context, b *domain.Balance, payer domain.AccountID) error {
	if b == nil {
		return storage.ErrInvalidInput
	}
	return t.write(balanceKey{b.Owner, b.Symbol()}, func() error { return t.store.Insert(ctx, b, payer) })
}

func (t *txBalances) Update(ctx context.Context, b *domain.Balance) error {
	if b == nil {
		return storage.ErrInvalidInput
	}
	return t.write(balanceKey{b.Owner, b.Symbol()}, func() error { return t.store.Update(ctx, b) })
}

func (t *txBalances) Delete(ctx context.Context, owner domain.AccountID, sym domain.Symbol) error {
	return t.write(balanceKey{owner, sym}, func() error { return t.store.Delete(ctx, owner, sym) })
}

func (t *txBalances) write(key balanceKey, fn func() error) error {
	prev, ok := t.store.row(key)
	if err := fn(); err != nil {
		return err
	}
	t.undo.push(func() { t.store.restore(key, prev, ok) })
	return nil
}

type txAccounts struct {
	store *AccountStore
	undo  *undoLog
}

func (t *txAccounts) Insert(ctx context.Context, a *domain.Account) error {
	if err := t.store.Insert(ctx, a); err != nil {
		return err
	}
	id := a.ID
	t.undo.push(func() { t.store.remove(id) })
	return nil
}

func (t *txAccounts) Exists(ctx context.Context, id domain.AccountID) (bool, error) {
	return t.store.Exists(ctx, id)
}

func (t *txAccounts) List(ctx context.Context) ([]*domain.Account, error) {
	return t.store.List(ctx)
}

// lockedStats serializes single calls against atomic units.
type lockedStats struct {
	mu    *sync.RWMutex
	store *StatsStore
}

func (t *lockedStats) Get(ctx context.Context, sym domain.Symbol) (*domain.TokenStats, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.store.Get(ctx, sym)
}

func (t *lockedStats) List(ctx context.Context) ([]*domain.TokenStats, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.store.List(ctx)
}

func (t *lockedStats) Insert(ctx context.Context, st *domain.TokenStats, payer domain.AccountID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.store.Insert(ctx, st, payer)
}

func (t *lockedStats) Update(ctx context.Context, st *domain.TokenStats) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.store.Update(ctx, st)
}

type lockedBalances struct {
	mu    *sync.RWMutex
	store *BalanceStore
}

func (t *lockedBalances) Get(ctx context.Context, owner domain.AccountID, sym domain.Symbol) (*domain.Balance, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.store.Get(ctx, owner, sym)
}

func (t *lockedBalances) GetByOwner(ctx context.Context, owner domain.AccountID) ([]*domain.Balance, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.store.GetByOwner(ctx, owner)
}

func (t *lockedBalances) GetBySymbol(ctx context.Context, sym domain.Symbol) ([]*domain.Balance, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.store.GetBySymbol(ctx, sym)
}

func (t *lockedBalances) Insert(ctx context.Context, b *domain.Balance, payer domain.AccountID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.store.Insert(ctx, b, payer)
}

func (t *lockedBalances) Update(ctx context.Context, b *domain.Balance) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.store.Update(ctx, b)
}

func (t *lockedBalances) Delete(ctx context.Context, owner domain.AccountID, sym domain.Symbol) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.store.Delete(ctx, owner, sym)
}

type lockedAccounts struct {
	mu    *sync.RWMutex
	store *AccountStore
}

func (t *lockedAccounts) Insert(ctx context.Context, a *domain.Account) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.store.Insert(ctx, a)
}

func (t *lockedAccounts) Exists(ctx context.Context, id domain.AccountID) (bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.store.Exists(ctx, id)
}

func (t *lockedAccounts) List(ctx context.Context) ([]*domain.Account, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.store.List(ctx)
}

var (
	_ storage.StatsStore   = (*txStats)(nil)
	_ storage.BalanceStore = (*txBalances)(nil)
	_ storage.AccountStore = (*txAccounts)(nil)
	_ storage.StatsStore   = (*lockedStats)(nil)
	_ storage.BalanceStore = (*lockedBalances)(nil)
	_ storage.AccountStore = (*lockedAccounts)(nil)
)
