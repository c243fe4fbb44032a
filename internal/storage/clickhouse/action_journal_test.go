package clickhouse

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-ledger/internal/domain"
	"token-ledger/internal/storage"
	"token-ledger/internal/storage/migrations"
)

func testRecord(seq uint64, trace string, name string, auth []domain.AccountID, recipients []domain.AccountID) *domain.ActionRecord {
	return &domain.ActionRecord{
		Sequence:      seq,
		TraceID:       trace,
		Digest:        "digest",
		Contract:      "ledger",
		Name:          name,
		Authorization: auth,
		Data:          json.RawMessage(`{"memo":"x"}`),
		Recipients:    recipients,
		AppliedAt:     1700000000000 + int64(seq),
	}
}

func TestActionJournal(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	journal := NewActionJournal(conn)

	last, err := journal.LastSequence(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, last)

	issue := testRecord(1, "t1", domain.ActionIssue, []domain.AccountID{"alice"}, nil)
	forward := testRecord(2, "t1", domain.ActionTransfer, []domain.AccountID{"alice"}, []domain.AccountID{"alice", "bob"})
	forward.Inline = true
	transfer := testRecord(3, "t2", domain.ActionTransfer, []domain.AccountID{"bob"}, []domain.AccountID{"bob", "carol"})

	require.NoError(t, journal.InsertBulk(ctx, []*domain.ActionRecord{issue, forward}))
	require.NoError(t, journal.InsertBulk(ctx, []*domain.ActionRecord{transfer}))

	t.Run("GetAll", func(t *testing.T) {
		all, err := journal.GetAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.EqualValues(t, 1, all[0].Sequence)
		assert.True(t, all[1].Inline)
		assert.Equal(t, []domain.AccountID{"alice", "bob"}, all[1].Recipients)
		assert.JSONEq(t, `{"memo":"x"}`, string(all[2].Data))
		assert.Nil(t, all[0].Recipients)
	})

	t.Run("GetByTraceID", func(t *testing.T) {
		records, err := journal.GetByTraceID(ctx, "t1")
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, domain.ActionIssue, records[0].Name)
	})

	t.Run("GetByAccount", func(t *testing.T) {
		bob, err := journal.GetByAccount(ctx, "bob")
		require.NoError(t, err)
		require.Len(t, bob, 2)
		assert.EqualValues(t, 2, bob[0].Sequence)
		assert.EqualValues(t, 3, bob[1].Sequence)

		nobody, err := journal.GetByAccount(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, nobody)
	})

	t.Run("LastSequence", func(t *testing.T) {
		last, err := journal.LastSequence(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 3, last)
	})

	t.Run("Duplicates", func(t *testing.T) {
		err := journal.InsertBulk(ctx, []*domain.ActionRecord{testRecord(3, "t3", "transfer", nil, nil)})
		require.ErrorIs(t, err, storage.ErrDuplicateKey)

		err = journal.InsertBulk(ctx, []*domain.ActionRecord{
			testRecord(4, "t4", "transfer", nil, nil),
			testRecord(4, "t4", "transfer", nil, nil),
		})
		require.ErrorIs(t, err, storage.ErrDuplicateKey)

		err = journal.InsertBulk(ctx, []*domain.ActionRecord{testRecord(0, "t0", "transfer", nil, nil)})
		require.ErrorIs(t, err, storage.ErrInvalidInput)

		all, err := journal.GetAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 3, "rejected batches leave nothing behind")
	})

	t.Run("MigrationsApplyOnce", func(t *testing.T) {
		applied, err := migrations.ApplyClickhouse(ctx, conn, zerolog.Nop())
		require.NoError(t, err)
		assert.Zero(t, applied)

		all, err := journal.GetAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})
}
