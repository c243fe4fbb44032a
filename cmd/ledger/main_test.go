package main

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-ledger/internal/config"
)

func TestNewLogger(t *testing.T) {
	logger, err := newLogger(&config.Config{LogLevel: "warn", LogFormat: "console"})
	require.NoError(t, err)
	assert.Equal(t, zerolog.WarnLevel, logger.GetLevel())

	logger, err = newLogger(&config.Config{LogLevel: "debug", LogFormat: "json"})
	require.NoError(t, err)
	assert.Equal(t, zerolog.DebugLevel, logger.GetLevel())

	_, err = newLogger(&config.Config{LogLevel: "loud", LogFormat: "json"})
	assert.Error(t, err)
}

func TestOpenStores_Memory(t *testing.T) {
	s, err := openStores(context.Background(), &config.Config{UseMemory: true}, true, zerolog.Nop())
	require.NoError(t, err)
	defer s.close()

	assert.NotNil(t, s.ledger)
	assert.NotNil(t, s.journal)

	stats, err := s.ledger.Tables().Stats.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, stats)
}

func TestCommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range cmdMain.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["serve"])
	assert.True(t, names["migrate"])
	assert.True(t, names["verify"])
	assert.True(t, names["client"])

	assert.NotNil(t, cmdMain.PersistentFlags().Lookup(config.KeyPostgresDSN))
	assert.NotNil(t, cmdVerify.Flags().Lookup("replay"))
}
