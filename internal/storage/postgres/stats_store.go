package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"token-ledger/internal/domain"
	"token-ledger/internal/storage"
)

// StatsStore implements storage.StatsStore using PostgreSQL.
type StatsStore struct {
	db querier
}

// NewStatsStore creates a new StatsStore.
func NewStatsStore(pool *Pool) *StatsStore {
	return &StatsStore{db: pool}
}

// Compile-time interface check.
var _ storage.StatsStore = (*StatsStore)(nil)

// Get retrieves stats for a symbol. Returns ErrNotFound if not exists.
func (s *StatsStore) Get(ctx context.Context, sym domain.Symbol) (st *domain.TokenStats, err error) {
	defer func(start time.Time) { observe("stats_get", start, err) }(time.Now())

	query := `
		SELECT code, decimals, supply, max_supply, issuer
		FROM token_stats
		WHERE code = $1 AND decimals = $2
	`

	st, err = scanStats(s.db.QueryRow(ctx, query, string(sym.Code), int16(sym.Precision)))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token stats: %w", err)
	}
	return st, nil
}

// Insert adds new stats billed to payer. Returns ErrDuplicateKey if the symbol exists.
func (s *StatsStore) Insert(ctx context.Context, st *domain.TokenStats, payer domain.AccountID) (err error) {
	defer func(start time.Time) { observe("stats_insert", start, err) }(time.Now())

	if st.Supply.Symbol != st.MaxSupply.Symbol {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO token_stats (code, decimals, supply, max_supply, issuer, payer)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err = s.db.Exec(ctx, query,
		string(st.Supply.Symbol.Code),
		int16(st.Supply.Symbol.Precision),
		st.Supply.Value,
		st.MaxSupply.Value,
		string(st.Issuer),
		string(payer),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		if isConstraintError(err) {
			return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
		}
		return fmt.Errorf("insert token stats: %w", err)
	}
	return nil
}

// Update replaces the supply of existing stats. Returns ErrNotFound if not exists.
func (s *StatsStore) Update(ctx context.Context, st *domain.TokenStats) (err error) {
	defer func(start time.Time) { observe("stats_update", start, err) }(time.Now())

	query := `
		UPDATE token_stats
		SET supply = $3, updated_at = NOW()
		WHERE code = $1 AND decimals = $2
	`

	sym := st.Symbol()
	tag, err := s.db.Exec(ctx, query, string(sym.Code), int16(sym.Precision), st.Supply.Value)
	if err != nil {
		if isConstraintError(err) {
			return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
		}
		return fmt.Errorf("update token stats: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// List retrieves all stats ordered by symbol code, then precision.
func (s *StatsStore) List(ctx context.Context) (_ []*domain.TokenStats, err error) {
	defer func(start time.Time) { observe("stats_list", start, err) }(time.Now())

	query := `
		SELECT code, decimals, supply, max_supply, issuer
		FROM token_stats
		ORDER BY code, decimals
	`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list token stats: %w", err)
	}
	defer rows.Close()

	var result []*domain.TokenStats
	for rows.Next() {
		st, err := scanStats(rows)
		if err != nil {
			return nil, fmt.Errorf("scan token stats: %w", err)
		}
		result = append(result, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate token stats: %w", err)
	}
	return result, nil
}

func scanStats(row pgx.Row) (*domain.TokenStats, error) {
	var (
		code      string
		decimals  int16
		supply    int64
		maxSupply int64
		issuer    string
	)
	if err := row.Scan(&code, &decimals, &supply, &maxSupply, &issuer); err != nil {
		return nil, err
	}

	sym := domain.NewSymbol(code, uint8(decimals))
	return &domain.TokenStats{
		Supply:    domain.NewAmount(supply, sym),
		MaxSupply: domain.NewAmount(maxSupply, sym),
		Issuer:    domain.AccountID(issuer),
	}, nil
}
