package memory

import (
	"context"
	"sort"
	"sync"

	"token-ledger/internal/domain"
	"token-ledger/internal/storage"
)

// balanceKey is the composite key (owner, symbol).
type balanceKey struct {
	owner domain.AccountID
	sym   domain.Symbol
}

type balanceRow struct {
	balance domain.Balance
	payer   domain.AccountID
}

// BalanceStore is an in-memory implementation of storage.BalanceStore.
type BalanceStore struct {
	mu   sync.RWMutex
	rows map[balanceKey]*balanceRow
}

// NewBalanceStore creates a new in-memory balance store.
func NewBalanceStore() *BalanceStore {
	return &BalanceStore{
		rows: make(map[balanceKey]*balanceRow),
	}
}

// Get retrieves a balance. Returns ErrNotFound if not exists.
func (s *BalanceStore) Get(_ context.Context, owner domain.AccountID, sym domain.Symbol) (*domain.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, exists := s.rows[balanceKey{owner, sym}]
	if !exists {
		return nil, storage.ErrNotFound
	}

	balanceCopy := row.balance
	return &balanceCopy, nil
}

// Insert adds a new balance. Returns ErrDuplicateKey if exists.
func (s *BalanceStore) Insert(_ context.Context, b *domain.Balance, payer domain.AccountID) error {
	if b == nil || b.Owner == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := balanceKey{b.Owner, b.Symbol()}
	if _, exists := s.rows[key]; exists {
		return storage.ErrDuplicateKey
	}

	s.rows[key] = &balanceRow{balance: *b, payer: payer}
	return nil
}

// Update replaces the amount of an existing balance. Returns ErrNotFound if not exists.
func (s *BalanceStore) Update(_ context.Context, b *domain.Balance) error {
	if b == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	row, exists := s.rows[balanceKey{b.Owner, b.Symbol()}]
	if !exists {
		return storage.ErrNotFound
	}

	row.balance = *b
	return nil
}

// Delete erases a balance. Returns ErrNotFound if not exists.
func (s *BalanceStore) Delete(_ context.Context, owner domain.AccountID, sym domain.Symbol) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := balanceKey{owner, sym}
	if _, exists := s.rows[key]; !exists {
		return storage.ErrNotFound
	}

	delete(s.rows, key)
	return nil
}

// GetByOwner retrieves all balances of an account, ordered by symbol.
func (s *BalanceStore) GetByOwner(_ context.Context, owner domain.AccountID) ([]*domain.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Balance
	for key, row := range s.rows {
		if key.owner == owner {
			balanceCopy := row.balance
			result = append(result, &balanceCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Symbol().Less(result[j].Symbol())
	})
	return result, nil
}

// GetBySymbol retrieves all balances of a symbol, ordered by owner.
func (s *BalanceStore) GetBySymbol(_ context.Context, sym domain.Symbol) ([]*domain.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Balance
	for key, row := range s.rows {
		if key.sym == sym {
			balanceCopy := row.balance
			result = append(result, &balanceCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Owner < result[j].Owner
	})
	return result, nil
}

// Payer returns the account billed for a balance record.
func (s *BalanceStore) Payer(owner domain.AccountID, sym domain.Symbol) (domain.AccountID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.rows[balanceKey{owner, sym}]
	if !ok {
		return "", false
	}
	return row.payer, true
}

func (s *BalanceStore) row(key balanceKey) (balanceRow, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.rows[key]
	if !ok {
		return balanceRow{}, false
	}
	return *row, true
}

func (s *BalanceStore) restore(key balanceKey, row balanceRow, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !ok {
		delete(s.rows, key)
		return
	}
	s.rows[key] = &row
}

var _ storage.BalanceStore = (*BalanceStore)(nil)
