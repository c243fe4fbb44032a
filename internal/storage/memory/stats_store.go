package memory

import (
	"context"
	"sort"
	"sync"

	"token-ledger/internal/domain"
	"token-ledger/internal/storage"
)

type statsRow struct {
	stats domain.TokenStats
	payer domain.AccountID // storage payer
}

// StatsStore is an in-memory implementation of storage.StatsStore.
type StatsStore struct {
	mu   sync.RWMutex
	rows map[domain.Symbol]*statsRow
}

// NewStatsStore creates a new in-memory stats store.
func NewStatsStore() *StatsStore {
	return &StatsStore{
		rows: make(map[domain.Symbol]*statsRow),
	}
}

// Get retrieves stats for a symbol. Returns ErrNotFound if not exists.
func (s *StatsStore) Get(_ context.Context, sym domain.Symbol) (*domain.TokenStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, exists := s.rows[sym]
	if !exists {
		return nil, storage.ErrNotFound
	}

	statsCopy := row.stats
	return &statsCopy, nil
}

// Insert adds new stats. Returns ErrDuplicateKey if the symbol exists.
func (s *StatsStore) Insert(_ context.Context, st *domain.TokenStats, payer domain.AccountID) error {
	if st == nil || !st.Supply.Symbol.Valid() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sym := st.Symbol()
	if _, exists := s.rows[sym]; exists {
		return storage.ErrDuplicateKey
	}

	s.rows[sym] = &statsRow{stats: *st, payer: payer}
	return nil
}

// Update replaces existing stats. Returns ErrNotFound if not exists.
func (s *StatsStore) Update(_ context.Context, st *domain.TokenStats) error {
	if st == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	row, exists := s.rows[st.Symbol()]
	if !exists {
		return storage.ErrNotFound
	}

	row.stats = *st
	return nil
}

// List retrieves all stats ordered by symbol.
func (s *StatsStore) List(_ context.Context) ([]*domain.TokenStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.TokenStats, 0, len(s.rows))
	for _, row := range s.rows {
		statsCopy := row.stats
		result = append(result, &statsCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Symbol().Less(result[j].Symbol())
	})
	return result, nil
}

// Payer returns the account billed for a stats record.
func (s *StatsStore) Payer(sym domain.Symbol) (domain.AccountID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.rows[sym]
	if !ok {
		return "", false
	}
	return row.payer, true
}

// row returns a copy of the record stored under sym.
func (s *StatsStore) row(sym domain.Symbol) (statsRow, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.rows[sym]
	if !ok {
		return statsRow{}, false
	}
	return *row, true
}

// restore puts back a record captured by row; ok false removes the key.
func (s *StatsStore) restore(sym domain.Symbol, row statsRow, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !ok {
		delete(s.rows, sym)
		return
	}
	s.rows[sym] = &row
}

var _ storage.StatsStore = (*StatsStore)(nil)
