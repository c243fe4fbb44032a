package main

import (
	"github.com/spf13/cobra"
)

var cmdMigrate = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the PostgreSQL and ClickHouse schemas",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		if cfg.UseMemory {
			logger.Info().Msg("in-memory storage has no schema, nothing to migrate")
			return nil
		}

		s, err := openStores(cmd.Context(), cfg, true, logger)
		if err != nil {
			return err
		}
		defer s.close()

		logger.Info().Bool("journal", s.journal != nil).Msg("migrations complete")
		return nil
	},
}
