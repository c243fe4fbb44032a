package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("LEDGER_USE_MEMORY", "true")

	c, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, "ledger", c.Self)
	assert.Equal(t, "eosio.token", c.TokenContract)
	assert.Equal(t, ":8080", c.HTTPAddr)
	assert.Equal(t, "info", c.LogLevel)
	assert.Equal(t, "json", c.LogFormat)
	assert.True(t, c.UseMemory)
}

func TestLoad_RequiresPostgresUnlessMemory(t *testing.T) {
	_, err := Load(New(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres-dsn")

	t.Setenv("LEDGER_POSTGRES_DSN", "postgres://test@localhost/ledger")
	c, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, "postgres://test@localhost/ledger", c.PostgresDSN)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
self: bank
use-memory: true
log-format: console
genesis: genesis.yaml
`), 0o600))

	c, err := Load(New(), path)
	require.NoError(t, err)
	assert.Equal(t, "bank", c.Self)
	assert.Equal(t, "console", c.LogFormat)
	assert.Equal(t, "genesis.yaml", c.Genesis)
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	t.Setenv("LEDGER_USE_MEMORY", "true")
	t.Setenv("LEDGER_SELF", "fromenv")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--self", "fromflag", "--http-addr", ":9999"}))

	v := New()
	require.NoError(t, BindFlags(v, fs))

	c, err := Load(v, "")
	require.NoError(t, err)
	assert.Equal(t, "fromflag", c.Self)
	assert.Equal(t, ":9999", c.HTTPAddr)
	assert.Equal(t, "info", c.LogLevel, "unset flags keep defaults")
}

func TestValidate(t *testing.T) {
	base := Config{
		Self: "ledger", TokenContract: "eosio.token", UseMemory: true,
		HTTPAddr: ":8080", LogLevel: "info", LogFormat: "json",
	}
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }},
		{"invalid self", func(c *Config) { c.Self = "Not Valid" }},
		{"empty self", func(c *Config) { c.Self = "" }},
		{"invalid token contract", func(c *Config) { c.TokenContract = "UPPER" }},
		{"no storage", func(c *Config) { c.UseMemory = false }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			require.Error(t, c.Validate())
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(`
# comment
LEDGER_ENVFILE_EXISTING=override
LEDGER_ENVFILE_NEW="value"
not a pair
`), 0o600))

	t.Setenv("LEDGER_ENVFILE_EXISTING", "keep")
	t.Cleanup(func() { os.Unsetenv("LEDGER_ENVFILE_NEW") })

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "keep", os.Getenv("LEDGER_ENVFILE_EXISTING"))
	assert.Equal(t, "value", os.Getenv("LEDGER_ENVFILE_NEW"))

	require.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")))
}
