package migrations

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/rs/zerolog"
)

const clickhouseVersionTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version     String,
		applied_at  DateTime64(3) DEFAULT now64(3)
	) ENGINE = MergeTree()
	ORDER BY version`

// ClickhouseDB is satisfied by driver.Conn and the journal's clickhouse.Conn.
type ClickhouseDB interface {
	Exec(ctx context.Context, query string, args ...any) error
	QueryRow(ctx context.Context, query string, args ...any) driver.Row
}

// ApplyClickhouse applies the embedded journal schema to the connection's
// database. ClickHouse has no transactions: a file that fails midway is
// re-run whole, so its statements must be idempotent. Returns the number of
// files applied.
func ApplyClickhouse(ctx context.Context, db ClickhouseDB, logger zerolog.Logger) (int, error) {
	migrations, err := Load(ClickhouseFS, "clickhouse")
	if err != nil {
		return 0, err
	}

	if err := db.Exec(ctx, clickhouseVersionTable); err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}

	applied := 0
	for _, m := range migrations {
		var n uint64
		if err := db.QueryRow(ctx, `SELECT count() FROM schema_migrations WHERE version = ?`, m.Version).Scan(&n); err != nil {
			return applied, fmt.Errorf("check migration %s: %w", m.Version, err)
		}
		if n > 0 {
			logger.Debug().Str("database", "clickhouse").Str("version", m.Version).Msg("migration already applied")
			continue
		}

		for i, stmt := range m.Statements {
			if err := db.Exec(ctx, stmt); err != nil {
				return applied, fmt.Errorf("apply migration %s statement %d: %w", m.Version, i+1, err)
			}
		}
		if err := db.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, m.Version); err != nil {
			return applied, fmt.Errorf("record migration %s: %w", m.Version, err)
		}

		applied++
		logger.Info().
			Str("database", "clickhouse").
			Str("version", m.Version).
			Int("statements", len(m.Statements)).
			Msg("migration applied")
	}
	return applied, nil
}
