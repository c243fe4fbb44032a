package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"token-ledger/internal/domain"
	"token-ledger/internal/verification"
)

var flagVerify struct {
	Replay bool
}

var cmdVerify = &cobra.Command{
	Use:   "verify",
	Short: "Check supply conservation, optionally replaying the action journal",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}

		s, err := openStores(ctx, cfg, false, logger)
		if err != nil {
			return err
		}
		defer s.close()

		type check struct {
			name string
			v    verification.Verifier
		}
		checks := []check{
			{"conservation", verification.NewConservationVerifier(s.ledger)},
		}
		if flagVerify.Replay {
			checks = append(checks, check{"replay", verification.NewReplayVerifier(verification.ReplayVerifierOptions{
				Self:          domain.AccountID(cfg.Self),
				TokenContract: domain.AccountID(cfg.TokenContract),
				Ledger:        s.ledger,
				Journal:       s.journal,
				Logger:        logger,
			})})
		}

		failed := false
		for _, c := range checks {
			report, err := c.v.Verify(ctx)
			if err != nil {
				return fmt.Errorf("%s: %w", c.name, err)
			}

			logger.Info().
				Int("symbols", report.Symbols).
				Int("balances", report.Balances).
				Int("actions", report.Actions).
				Int("divergences", len(report.Divergences)).
				Str("check", c.name).
				Msg("verification finished")
			for _, d := range report.Divergences {
				fmt.Fprintln(cmd.OutOrStdout(), d.String())
			}
			if !report.OK() {
				failed = true
			}
		}

		if failed {
			return fmt.Errorf("ledger verification failed")
		}
		fmt.Fprintln(cmd.OutOrStdout(), "ledger verified")
		return nil
	},
}

func init() {
	cmdVerify.Flags().BoolVar(&flagVerify.Replay, "replay", false, "Replay the action journal into a fresh ledger and compare")
}
