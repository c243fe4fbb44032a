// Package main provides the ledger service CLI:
// - serve: HTTP API, websocket notifications and metrics over the ledger
// - migrate: apply the PostgreSQL and ClickHouse schemas
// - verify: check supply conservation and optionally replay the journal
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"token-ledger/internal/config"
)

var cmdMain = &cobra.Command{
	Use:   "ledger",
	Short: "Fungible token ledger service",
	Run:   printUsageAndExit1,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
	SilenceUsage: true,
}

var flagMain struct {
	ConfigFile string
	EnvFile    string
}

// cfg is populated by loadConfig before any subcommand runs.
var cfg *config.Config

func init() {
	cmdMain.PersistentFlags().StringVarP(&flagMain.ConfigFile, "config", "c", "", "YAML config file")
	cmdMain.PersistentFlags().StringVar(&flagMain.EnvFile, "env-file", ".env", "KEY=VALUE file loaded into the environment")
	config.RegisterFlags(cmdMain.PersistentFlags())

	cmdMain.AddCommand(cmdServe, cmdMigrate, cmdVerify)
}

func main() {
	if err := cmdMain.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func printUsageAndExit1(cmd *cobra.Command, args []string) {
	_ = cmd.Usage()
	os.Exit(1)
}

func loadConfig(cmd *cobra.Command) error {
	if err := config.LoadEnvFile(flagMain.EnvFile); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}

	v := config.New()
	if err := config.BindFlags(v, cmd.Flags()); err != nil {
		return fmt.Errorf("bind flags: %w", err)
	}

	c, err := config.Load(v, flagMain.ConfigFile)
	if err != nil {
		return err
	}
	cfg = c
	return nil
}

// newLogger builds the service logger from the configured level and format.
func newLogger(c *config.Config) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("parse log level: %w", err)
	}

	var w io.Writer = os.Stderr
	if strings.EqualFold(c.LogFormat, "console") {
		w = &zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
			FormatLevel: func(i interface{}) string {
				if ll, ok := i.(string); ok {
					return strings.ToUpper(ll)
				}
				return "????"
			},
		}
	}

	return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
}
