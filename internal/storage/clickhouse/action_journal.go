package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"token-ledger/internal/domain"
	"token-ledger/internal/storage"
)

// ActionJournal implements storage.ActionJournal using ClickHouse.
// MergeTree does not enforce uniqueness, so sequences are checked before insert.
type ActionJournal struct {
	conn *Conn
}

// NewActionJournal creates a new ActionJournal.
func NewActionJournal(conn *Conn) *ActionJournal {
	return &ActionJournal{conn: conn}
}

// Compile-time interface check.
var _ storage.ActionJournal = (*ActionJournal)(nil)

const journalColumns = `
	sequence, trace_id, digest, contract, name, is_inline,
	authorizers, data, recipients, applied_at
`

// InsertBulk adds records atomically. Fails entire batch on duplicate sequence.
func (j *ActionJournal) InsertBulk(ctx context.Context, records []*domain.ActionRecord) (err error) {
	if len(records) == 0 {
		return nil
	}
	defer func(start time.Time) { observe("journal_insert", start, err) }(time.Now())

	// Check for intra-batch duplicates
	seen := make(map[uint64]struct{}, len(records))
	for _, r := range records {
		if r == nil || r.Sequence == 0 {
			return storage.ErrInvalidInput
		}
		if _, exists := seen[r.Sequence]; exists {
			return storage.ErrDuplicateKey
		}
		seen[r.Sequence] = struct{}{}
	}

	// Check for duplicates against existing rows
	for _, r := range records {
		exists, err := j.exists(ctx, r.Sequence)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := j.conn.PrepareBatch(ctx, `INSERT INTO action_journal (`+journalColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range records {
		var inline uint8
		if r.Inline {
			inline = 1
		}
		err = batch.Append(
			r.Sequence,
			r.TraceID,
			r.Digest,
			string(r.Contract),
			r.Name,
			inline,
			accountStrings(r.Authorization),
			string(r.Data),
			accountStrings(r.Recipients),
			r.AppliedAt,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetAll retrieves all records ordered by sequence ASC.
func (j *ActionJournal) GetAll(ctx context.Context) ([]*domain.ActionRecord, error) {
	return j.query(ctx, "journal_all", `
		SELECT `+journalColumns+`
		FROM action_journal
		ORDER BY sequence ASC
	`)
}

// GetByTraceID retrieves the records of one root action and its inline actions.
func (j *ActionJournal) GetByTraceID(ctx context.Context, traceID string) ([]*domain.ActionRecord, error) {
	return j.query(ctx, "journal_by_trace", `
		SELECT `+journalColumns+`
		FROM action_journal
		WHERE trace_id = ?
		ORDER BY sequence ASC
	`, traceID)
}

// GetByAccount retrieves records authorized by or notifying an account, ordered by sequence ASC.
func (j *ActionJournal) GetByAccount(ctx context.Context, account domain.AccountID) ([]*domain.ActionRecord, error) {
	return j.query(ctx, "journal_by_account", `
		SELECT `+journalColumns+`
		FROM action_journal
		WHERE has(authorizers, ?) OR has(recipients, ?)
		ORDER BY sequence ASC
	`, string(account), string(account))
}

// LastSequence returns the highest stored sequence, 0 when empty.
func (j *ActionJournal) LastSequence(ctx context.Context) (seq uint64, err error) {
	defer func(start time.Time) { observe("journal_last_sequence", start, err) }(time.Now())

	if err := j.conn.QueryRow(ctx, `SELECT max(sequence) FROM action_journal`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("query last sequence: %w", err)
	}
	return seq, nil
}

func (j *ActionJournal) query(ctx context.Context, op, query string, args ...any) (_ []*domain.ActionRecord, err error) {
	defer func(start time.Time) { observe(op, start, err) }(time.Now())

	rows, err := j.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query action journal: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// exists checks if a record with the given sequence exists.
func (j *ActionJournal) exists(ctx context.Context, sequence uint64) (bool, error) {
	var count uint64
	err := j.conn.QueryRow(ctx, `SELECT count() FROM action_journal WHERE sequence = ?`, sequence).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanRecords(rows driver.Rows) ([]*domain.ActionRecord, error) {
	var result []*domain.ActionRecord
	for rows.Next() {
		var (
			r           domain.ActionRecord
			contract    string
			inline      uint8
			authorizers []string
			data        string
			recipients  []string
		)
		err := rows.Scan(
			&r.Sequence,
			&r.TraceID,
			&r.Digest,
			&contract,
			&r.Name,
			&inline,
			&authorizers,
			&data,
			&recipients,
			&r.AppliedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan action record: %w", err)
		}
		r.Contract = domain.AccountID(contract)
		r.Inline = inline == 1
		r.Authorization = accountIDs(authorizers)
		r.Data = []byte(data)
		r.Recipients = accountIDs(recipients)
		result = append(result, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate action records: %w", err)
	}
	return result, nil
}

func accountStrings(ids []domain.AccountID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

func accountIDs(ss []string) []domain.AccountID {
	if len(ss) == 0 {
		return nil
	}
	out := make([]domain.AccountID, len(ss))
	for i, s := range ss {
		out[i] = domain.AccountID(s)
	}
	return out
}
