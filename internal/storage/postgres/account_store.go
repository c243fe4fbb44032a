package postgres

import (
	"context"
	"fmt"
	"time"

	"token-ledger/internal/domain"
	"token-ledger/internal/storage"
)

// AccountStore implements storage.AccountStore using PostgreSQL.
type AccountStore struct {
	db querier
}

// NewAccountStore creates a new AccountStore.
func NewAccountStore(pool *Pool) *AccountStore {
	return &AccountStore{db: pool}
}

// Compile-time interface check.
var _ storage.AccountStore = (*AccountStore)(nil)

// Insert registers an account. Returns ErrDuplicateKey if it exists.
func (s *AccountStore) Insert(ctx context.Context, a *domain.Account) (err error) {
	defer func(start time.Time) { observe("account_insert", start, err) }(time.Now())

	if !a.ID.Valid() {
		return storage.ErrInvalidInput
	}

	_, err = s.db.Exec(ctx, `INSERT INTO accounts (id, created_at) VALUES ($1, $2)`, string(a.ID), a.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// Exists reports whether an account is registered.
func (s *AccountStore) Exists(ctx context.Context, id domain.AccountID) (ok bool, err error) {
	defer func(start time.Time) { observe("account_exists", start, err) }(time.Now())

	err = s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, string(id)).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check account: %w", err)
	}
	return ok, nil
}

// List retrieves all accounts ordered by ID.
func (s *AccountStore) List(ctx context.Context) (_ []*domain.Account, err error) {
	defer func(start time.Time) { observe("account_list", start, err) }(time.Now())

	rows, err := s.db.Query(ctx, `SELECT id, created_at FROM accounts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var result []*domain.Account
	for rows.Next() {
		var (
			id        string
			createdAt int64
		)
		if err := rows.Scan(&id, &createdAt); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		result = append(result, &domain.Account{ID: domain.AccountID(id), CreatedAt: createdAt})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return result, nil
}
