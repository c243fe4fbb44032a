package memory

import (
	"context"
	"sort"
	"sync"

	"token-ledger/internal/domain"
	"token-ledger/internal/storage"
)

// AccountStore is an in-memory implementation of storage.AccountStore.
type AccountStore struct {
	mu   sync.RWMutex
	byID map[domain.AccountID]*domain.Account
}

// NewAccountStore creates a new in-memory account registry.
func NewAccountStore() *AccountStore {
	return &AccountStore{
		byID: make(map[domain.AccountID]*domain.Account),
	}
}

// Insert registers an account. Returns ErrDuplicateKey if it exists.
func (s *AccountStore) Insert(_ context.Context, a *domain.Account) error {
	if a == nil || !a.ID.Valid() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[a.ID]; exists {
		return storage.ErrDuplicateKey
	}

	accountCopy := *a
	s.byID[a.ID] = &accountCopy
	return nil
}

// Exists reports whether an account is registered.
func (s *AccountStore) Exists(_ context.Context, id domain.AccountID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.byID[id]
	return exists, nil
}

// List retrieves all accounts ordered by ID.
func (s *AccountStore) List(_ context.Context) ([]*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Account, 0, len(s.byID))
	for _, a := range s.byID {
		accountCopy := *a
		result = append(result, &accountCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// remove drops an account; used to undo an insert.
func (s *AccountStore) remove(id domain.AccountID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.byID, id)
}

var _ storage.AccountStore = (*AccountStore)(nil)
