package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"token-ledger/internal/config"
	"token-ledger/internal/storage"
	chstore "token-ledger/internal/storage/clickhouse"
	"token-ledger/internal/storage/memory"
	"token-ledger/internal/storage/migrations"
	pgstore "token-ledger/internal/storage/postgres"
)

// stores holds the ledger backend and the optional action journal.
type stores struct {
	ledger  storage.Ledger
	journal storage.ActionJournal
	close   func()
}

// openStores connects to the configured backends. With migrate set, the
// schemas are applied first; they are idempotent.
func openStores(ctx context.Context, c *config.Config, migrate bool, logger zerolog.Logger) (*stores, error) {
	if c.UseMemory {
		logger.Warn().Msg("using in-memory storage, state is lost on exit")
		return &stores{
			ledger:  memory.NewLedger(),
			journal: memory.NewActionJournal(),
			close:   func() {},
		}, nil
	}

	// PostgreSQL
	pool, err := pgstore.NewPool(ctx, c.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if migrate {
		applied, err := migrations.ApplyPostgres(ctx, pool, logger)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("postgres migrations: %w", err)
		}
		logger.Info().Int("applied", applied).Msg("postgres schema up to date")
	}

	s := &stores{
		ledger: pgstore.NewLedger(pool),
		close:  pool.Close,
	}
	if c.ClickhouseDSN == "" {
		logger.Warn().Msg("no clickhouse-dsn, action journal disabled")
		return s, nil
	}

	// ClickHouse
	if migrate {
		if err := chstore.EnsureDatabase(ctx, c.ClickhouseDSN); err != nil {
			pool.Close()
			return nil, fmt.Errorf("create clickhouse database: %w", err)
		}
	}
	chConn, err := chstore.NewConn(ctx, c.ClickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to clickhouse: %w", err)
	}
	if migrate {
		applied, err := migrations.ApplyClickhouse(ctx, chConn, logger)
		if err != nil {
			chConn.Close()
			pool.Close()
			return nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		logger.Info().Int("applied", applied).Msg("clickhouse schema up to date")
	}

	s.journal = chstore.NewActionJournal(chConn)
	s.close = func() {
		chConn.Close()
		pool.Close()
	}
	return s, nil
}
