package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"token-ledger/internal/api"
	"token-ledger/internal/domain"
	"token-ledger/internal/genesis"
	"token-ledger/internal/host"
	"token-ledger/internal/notify"
)

// shutdownTimeout bounds the graceful shutdown of the HTTP server.
const shutdownTimeout = 30 * time.Second

var cmdServe = &cobra.Command{
	Use:   "serve",
	Short: "Run the ledger HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	s, err := openStores(ctx, cfg, true, logger)
	if err != nil {
		return err
	}
	defer s.close()

	hub := notify.NewHub(nil, logger)
	defer hub.Close()

	exec, err := host.NewExecutor(ctx, host.Options{
		Self:          domain.AccountID(cfg.Self),
		TokenContract: domain.AccountID(cfg.TokenContract),
		Ledger:        s.ledger,
		Journal:       s.journal,
		Sink:          hub,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	// The contract account itself must be resolvable.
	if err := exec.RegisterAccount(ctx, exec.Self()); err != nil && !errors.Is(err, domain.ErrAlreadyExists) {
		return err
	}

	if cfg.Genesis != "" {
		g, err := genesis.Load(cfg.Genesis)
		if err != nil {
			return err
		}
		if _, err := genesis.Apply(ctx, exec, g, logger); err != nil {
			return err
		}
	}

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: api.New(api.Options{
			Executor: exec,
			Journal:  s.journal,
			Hub:      hub,
			Logger:   logger,
		}).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Str("self", cfg.Self).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("initiating graceful shutdown")
	case err, ok := <-errCh:
		if ok {
			return err
		}
	}

	// Close websocket subscribers first; Shutdown does not wait for hijacked connections.
	hub.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
		return err
	}

	logger.Info().Msg("shutdown complete")
	return nil
}
