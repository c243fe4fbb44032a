package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"token-ledger/internal/domain"
	"token-ledger/internal/storage/migrations"
)

// setupTestDB starts a PostgreSQL container and applies the embedded ledger
// schema. The cleanup function must be called after tests complete.
func setupTestDB(t *testing.T) (*Pool, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("ledger"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err, "failed to create pool")

	applied, err := migrations.ApplyPostgres(ctx, pool, zerolog.Nop())
	require.NoError(t, err, "failed to apply migrations")
	require.Positive(t, applied)

	cleanup := func() {
		pool.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return pool, cleanup
}

func testSymbol(code string) domain.Symbol { return domain.NewSymbol(code, 2) }

func testStats(code string, supply, max int64) *domain.TokenStats {
	sym := testSymbol(code)
	return &domain.TokenStats{
		Supply:    domain.NewAmount(supply, sym),
		MaxSupply: domain.NewAmount(max, sym),
		Issuer:    "alice",
	}
}

func testBalance(owner domain.AccountID, code string, value int64) *domain.Balance {
	return &domain.Balance{
		Owner:  owner,
		Amount: domain.NewAmount(value, testSymbol(code)),
	}
}
