// Package config loads ledger service settings from flags, LEDGER_*
// environment variables, an optional .env file and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"token-ledger/internal/domain"
)

// EnvPrefix prefixes every environment variable read by the service.
const EnvPrefix = "LEDGER"

// Config keys, also used as flag names.
const (
	KeySelf          = "self"
	KeyTokenContract = "token-contract"
	KeyPostgresDSN   = "postgres-dsn"
	KeyClickhouseDSN = "clickhouse-dsn"
	KeyUseMemory     = "use-memory"
	KeyHTTPAddr      = "http-addr"
	KeyLogLevel      = "log-level"
	KeyLogFormat     = "log-format"
	KeyGenesis       = "genesis"
)

// Config holds the service settings.
type Config struct {
	Self          string `mapstructure:"self" validate:"required"`
	TokenContract string `mapstructure:"token-contract" validate:"required"`
	PostgresDSN   string `mapstructure:"postgres-dsn"`
	ClickhouseDSN string `mapstructure:"clickhouse-dsn"`
	UseMemory     bool   `mapstructure:"use-memory"`
	HTTPAddr      string `mapstructure:"http-addr" validate:"required"`
	LogLevel      string `mapstructure:"log-level" validate:"oneof=trace debug info warn error"`
	LogFormat     string `mapstructure:"log-format" validate:"oneof=json console"`
	Genesis       string `mapstructure:"genesis"`
}

var defaults = map[string]any{
	KeySelf:          "ledger",
	KeyTokenContract: "eosio.token",
	KeyPostgresDSN:   "",
	KeyClickhouseDSN: "",
	KeyUseMemory:     false,
	KeyHTTPAddr:      ":8080",
	KeyLogLevel:      "info",
	KeyLogFormat:     "json",
	KeyGenesis:       "",
}

// New returns a viper instance with defaults and LEDGER_* environment
// binding (LEDGER_POSTGRES_DSN for postgres-dsn).
func New() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// RegisterFlags adds the service flags to fs. Flag defaults are left empty
// so unset flags fall through to env, file and defaults.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String(KeySelf, "", "Account the token contract is deployed at")
	fs.String(KeyTokenContract, "", "External token contract whose transfers reach the inbound hook")
	fs.String(KeyPostgresDSN, "", "PostgreSQL connection string")
	fs.String(KeyClickhouseDSN, "", "ClickHouse connection string for the action journal")
	fs.Bool(KeyUseMemory, false, "Use in-memory storage instead of PostgreSQL")
	fs.String(KeyHTTPAddr, "", "HTTP API address (default :8080)")
	fs.String(KeyLogLevel, "", "Log level: trace, debug, info, warn, error")
	fs.String(KeyLogFormat, "", "Log format: json or console")
	fs.String(KeyGenesis, "", "Genesis YAML applied when the ledger is empty")
}

// BindFlags binds the flags of fs that were set on the command line.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	var err error
	fs.Visit(func(f *pflag.Flag) {
		if _, known := defaults[f.Name]; known && err == nil {
			err = v.BindPFlag(f.Name, f)
		}
	})
	return err
}

// Load reads file (if set) into v and returns the validated configuration.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	c := new(Config)
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

var validate = validator.New()

// Validate checks field formats and storage requirements.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if !domain.AccountID(c.Self).Valid() {
		return fmt.Errorf("invalid config: self %q is not a valid account", c.Self)
	}
	if !domain.AccountID(c.TokenContract).Valid() {
		return fmt.Errorf("invalid config: token-contract %q is not a valid account", c.TokenContract)
	}
	if !c.UseMemory && c.PostgresDSN == "" {
		return errors.New("invalid config: --postgres-dsn is required (use --use-memory for in-memory storage)")
	}
	return nil
}

// LoadEnvFile sets variables from a KEY=VALUE file without overriding
// variables already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil // File doesn't exist, use system env vars
		}
		return fmt.Errorf("read env file: %w", err)
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"`)

		// Don't override existing env vars
		if _, set := os.LookupEnv(key); !set {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("set %s: %w", key, err)
			}
		}
	}
	return nil
}
