package migrations

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmbedded(t *testing.T) {
	pg, err := Load(PostgresFS, "postgres")
	require.NoError(t, err)
	require.Len(t, pg, 1)
	assert.Equal(t, "001_ledger.sql", pg[0].Version)
	require.Len(t, pg[0].Statements, 4)
	assert.Contains(t, pg[0].Statements[0], "CREATE TABLE IF NOT EXISTS accounts")
	assert.Contains(t, pg[0].Statements[3], "CREATE INDEX IF NOT EXISTS idx_balances_code")

	ch, err := Load(ClickhouseFS, "clickhouse")
	require.NoError(t, err)
	require.Len(t, ch, 1)
	assert.Equal(t, "001_action_journal.sql", ch[0].Version)
	require.Len(t, ch[0].Statements, 1)
	assert.Contains(t, ch[0].Statements[0], "CREATE TABLE IF NOT EXISTS action_journal")
	assert.NotContains(t, ch[0].Statements[0], "--")
}

func TestLoad_OrdersAndSkipsEmpty(t *testing.T) {
	fsys := fstest.MapFS{
		"m/002_b.sql":   {Data: []byte("CREATE TABLE b (x INT);")},
		"m/001_a.sql":   {Data: []byte("CREATE TABLE a (x INT);")},
		"m/003_c.sql":   {Data: []byte("-- nothing yet\n")},
		"m/README.md":   {Data: []byte("not sql;")},
		"m/sub/004.sql": {Data: []byte("CREATE TABLE d (x INT);")},
	}

	migrations, err := Load(fsys, "m")
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, "001_a.sql", migrations[0].Version)
	assert.Equal(t, "002_b.sql", migrations[1].Version)

	_, err = Load(fsys, "missing")
	assert.Error(t, err)
}

func TestSplitStatements(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "line comments",
			input: "-- first\nCREATE TABLE a (x UInt8) ENGINE = Memory;\n\nCREATE TABLE b (y UInt8) ENGINE = Memory;\n",
			want: []string{
				"CREATE TABLE a (x UInt8) ENGINE = Memory",
				"CREATE TABLE b (y UInt8) ENGINE = Memory",
			},
		},
		{
			name:  "semicolon in string",
			input: "INSERT INTO t VALUES ('a;b'); SELECT 1",
			want:  []string{"INSERT INTO t VALUES ('a;b')", "SELECT 1"},
		},
		{
			name:  "doubled quote",
			input: "SELECT 'it''s; fine';",
			want:  []string{"SELECT 'it''s; fine'"},
		},
		{
			name:  "backslash escape",
			input: `SELECT 'a\';b';`,
			want:  []string{`SELECT 'a\';b'`},
		},
		{
			name:  "block comment",
			input: "SELECT /* x; y */ 1;",
			want:  []string{"SELECT   1"},
		},
		{
			name:  "dash inside string",
			input: "SELECT '--not a comment';",
			want:  []string{"SELECT '--not a comment'"},
		},
		{
			name:  "quoted identifier",
			input: `CREATE TABLE "odd;name" (x INT);`,
			want:  []string{`CREATE TABLE "odd;name" (x INT)`},
		},
		{
			name:  "only comments",
			input: "-- a\n/* b */\n",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, splitStatements(tt.input))
		})
	}
}
