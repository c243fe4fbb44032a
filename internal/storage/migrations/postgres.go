package migrations

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

// migrationLockKey serializes concurrent migrators.
const migrationLockKey int64 = 0x6d696772617465 // "migrate"

const postgresVersionTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version     TEXT PRIMARY KEY,
		applied_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`

// PostgresDB is satisfied by *pgxpool.Pool and the ledger's postgres.Pool.
type PostgresDB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// ApplyPostgres applies the embedded ledger schema. Each file runs in its own
// transaction together with its schema_migrations row, so a file is applied
// exactly once. Returns the number of files applied.
func ApplyPostgres(ctx context.Context, db PostgresDB, logger zerolog.Logger) (int, error) {
	migrations, err := Load(PostgresFS, "postgres")
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, m := range migrations {
		var done bool
		err := pgx.BeginFunc(ctx, db, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, migrationLockKey); err != nil {
				return fmt.Errorf("acquire migration lock: %w", err)
			}
			if _, err := tx.Exec(ctx, postgresVersionTable); err != nil {
				return fmt.Errorf("create schema_migrations: %w", err)
			}

			err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, m.Version).Scan(&done)
			if err != nil || done {
				return err
			}

			for i, stmt := range m.Statements {
				if _, err := tx.Exec(ctx, stmt); err != nil {
					return fmt.Errorf("statement %d: %w", i+1, err)
				}
			}
			_, err = tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, m.Version)
			return err
		})
		if err != nil {
			return applied, fmt.Errorf("apply migration %s: %w", m.Version, err)
		}
		if done {
			logger.Debug().Str("database", "postgres").Str("version", m.Version).Msg("migration already applied")
			continue
		}

		applied++
		logger.Info().
			Str("database", "postgres").
			Str("version", m.Version).
			Int("statements", len(m.Statements)).
			Msg("migration applied")
	}
	return applied, nil
}
