package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"token-ledger/internal/domain"
	"token-ledger/internal/storage"
)

// BalanceStore implements storage.BalanceStore using PostgreSQL.
type BalanceStore struct {
	db querier
}

// NewBalanceStore creates a new BalanceStore.
func NewBalanceStore(pool *Pool) *BalanceStore {
	return &BalanceStore{db: pool}
}

// Compile-time interface check.
var _ storage.BalanceStore = (*BalanceStore)(nil)

// Get retrieves a balance. Returns ErrNotFound if not exists.
func (s *BalanceStore) Get(ctx context.Context, owner domain.AccountID, sym domain.Symbol) (b *domain.Balance, err error) {
	defer func(start time.Time) { observe("balance_get", start, err) }(time.Now())

	query := `
		SELECT owner, code, decimals, amount
		FROM balances
		WHERE owner = $1 AND code = $2 AND decimals = $3
	`

	b, err = scanBalance(s.db.QueryRow(ctx, query, string(owner), string(sym.Code), int16(sym.Precision)))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get balance: %w", err)
	}
	return b, nil
}

// Insert adds a new balance billed to payer. Returns ErrDuplicateKey if exists.
func (s *BalanceStore) Insert(ctx context.Context, b *domain.Balance, payer domain.AccountID) (err error) {
	defer func(start time.Time) { observe("balance_insert", start, err) }(time.Now())

	query := `
		INSERT INTO balances (owner, code, decimals, amount, payer)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err = s.db.Exec(ctx, query,
		string(b.Owner),
		string(b.Amount.Symbol.Code),
		int16(b.Amount.Symbol.Precision),
		b.Amount.Value,
		string(payer),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		if isConstraintError(err) {
			return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
		}
		return fmt.Errorf("insert balance: %w", err)
	}
	return nil
}

// Update replaces the amount of an existing balance. Returns ErrNotFound if not exists.
func (s *BalanceStore) Update(ctx context.Context, b *domain.Balance) (err error) {
	defer func(start time.Time) { observe("balance_update", start, err) }(time.Now())

	query := `
		UPDATE balances
		SET amount = $4, updated_at = NOW()
		WHERE owner = $1 AND code = $2 AND decimals = $3
	`

	sym := b.Symbol()
	tag, err := s.db.Exec(ctx, query, string(b.Owner), string(sym.Code), int16(sym.Precision), b.Amount.Value)
	if err != nil {
		if isConstraintError(err) {
			return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
		}
		return fmt.Errorf("update balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Delete erases a balance. Returns ErrNotFound if not exists.
func (s *BalanceStore) Delete(ctx context.Context, owner domain.AccountID, sym domain.Symbol) (err error) {
	defer func(start time.Time) { observe("balance_delete", start, err) }(time.Now())

	tag, err := s.db.Exec(ctx, `DELETE FROM balances WHERE owner = $1 AND code = $2 AND decimals = $3`,
		string(owner), string(sym.Code), int16(sym.Precision))
	if err != nil {
		return fmt.Errorf("delete balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetByOwner retrieves all balances of an account, ordered by symbol.
func (s *BalanceStore) GetByOwner(ctx context.Context, owner domain.AccountID) ([]*domain.Balance, error) {
	query := `
		SELECT owner, code, decimals, amount
		FROM balances
		WHERE owner = $1
		ORDER BY code, decimals
	`
	return s.queryBalances(ctx, "balance_by_owner", query, string(owner))
}

// GetBySymbol retrieves all balances of a symbol, ordered by owner.
func (s *BalanceStore) GetBySymbol(ctx context.Context, sym domain.Symbol) ([]*domain.Balance, error) {
	query := `
		SELECT owner, code, decimals, amount
		FROM balances
		WHERE code = $1 AND decimals = $2
		ORDER BY owner
	`
	return s.queryBalances(ctx, "balance_by_symbol", query, string(sym.Code), int16(sym.Precision))
}

func (s *BalanceStore) queryBalances(ctx context.Context, op, query string, args ...any) (_ []*domain.Balance, err error) {
	defer func(start time.Time) { observe(op, start, err) }(time.Now())

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query balances: %w", err)
	}
	defer rows.Close()

	var result []*domain.Balance
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan balance: %w", err)
		}
		result = append(result, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate balances: %w", err)
	}
	return result, nil
}

func scanBalance(row pgx.Row) (*domain.Balance, error) {
	var (
		owner    string
		code     string
		decimals int16
		amount   int64
	)
	if err := row.Scan(&owner, &code, &decimals, &amount); err != nil {
		return nil, err
	}
	return &domain.Balance{
		Owner:  domain.AccountID(owner),
		Amount: domain.NewAmount(amount, domain.NewSymbol(code, uint8(decimals))),
	}, nil
}
