package memory

import (
	"context"
	"slices"
	"sync"

	"token-ledger/internal/domain"
	"token-ledger/internal/storage"
)

// ActionJournal is an in-memory implementation of storage.ActionJournal.
type ActionJournal struct {
	mu         sync.RWMutex
	records    []*domain.ActionRecord // ordered by sequence
	bySequence map[uint64]struct{}
}

// NewActionJournal creates a new in-memory action journal.
func NewActionJournal() *ActionJournal {
	return &ActionJournal{
		bySequence: make(map[uint64]struct{}),
	}
}

// InsertBulk adds records atomically. Fails entire batch on duplicate sequence.
func (j *ActionJournal) InsertBulk(_ context.Context, records []*domain.ActionRecord) error {
	if len(records) == 0 {
		return nil
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	// Check for duplicates (both existing and intra-batch)
	seen := make(map[uint64]struct{}, len(records))
	for _, r := range records {
		if r == nil || r.Sequence == 0 {
			return storage.ErrInvalidInput
		}
		if _, exists := j.bySequence[r.Sequence]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := seen[r.Sequence]; exists {
			return storage.ErrDuplicateKey
		}
		seen[r.Sequence] = struct{}{}
	}

	for _, r := range records {
		j.records = append(j.records, copyRecord(r))
		j.bySequence[r.Sequence] = struct{}{}
	}

	slices.SortFunc(j.records, func(a, b *domain.ActionRecord) int {
		switch {
		case a.Sequence < b.Sequence:
			return -1
		case a.Sequence > b.Sequence:
			return 1
		}
		return 0
	})
	return nil
}

// GetAll retrieves all records ordered by sequence ASC.
func (j *ActionJournal) GetAll(_ context.Context) ([]*domain.ActionRecord, error) {
	return j.filter(func(*domain.ActionRecord) bool { return true }), nil
}

// GetByTraceID retrieves the records of one root action and its inline actions.
func (j *ActionJournal) GetByTraceID(_ context.Context, traceID string) ([]*domain.ActionRecord, error) {
	return j.filter(func(r *domain.ActionRecord) bool { return r.TraceID == traceID }), nil
}

// GetByAccount retrieves records authorized by or notifying an account.
func (j *ActionJournal) GetByAccount(_ context.Context, account domain.AccountID) ([]*domain.ActionRecord, error) {
	return j.filter(func(r *domain.ActionRecord) bool {
		return slices.Contains(r.Authorization, account) || slices.Contains(r.Recipients, account)
	}), nil
}

// LastSequence returns the highest stored sequence, 0 when empty.
func (j *ActionJournal) LastSequence(_ context.Context) (uint64, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if len(j.records) == 0 {
		return 0, nil
	}
	return j.records[len(j.records)-1].Sequence, nil
}

func (j *ActionJournal) filter(keep func(*domain.ActionRecord) bool) []*domain.ActionRecord {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var result []*domain.ActionRecord
	for _, r := range j.records {
		if keep(r) {
			result = append(result, copyRecord(r))
		}
	}
	return result
}

func copyRecord(r *domain.ActionRecord) *domain.ActionRecord {
	c := *r
	c.Authorization = slices.Clone(r.Authorization)
	c.Recipients = slices.Clone(r.Recipients)
	c.Data = slices.Clone(r.Data)
	return &c
}

var _ storage.ActionJournal = (*ActionJournal)(nil)
