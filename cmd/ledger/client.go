package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"token-ledger/internal/client"
	"token-ledger/internal/config"
	"token-ledger/internal/domain"
)

var flagClient struct {
	Server string
	Auth   []string
}

// cmdClient groups commands that talk to a running server. They only need
// the server URL, so the service config is not loaded.
var cmdClient = &cobra.Command{
	Use:   "client",
	Short: "Talk to a running ledger server",
	Run:   printUsageAndExit1,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.LoadEnvFile(flagMain.EnvFile)
	},
}

var cmdClientApply = &cobra.Command{
	Use:   "apply <contract> <action> <json-data>",
	Short: "Submit an action",
	Example: `  ledger client apply ledger create '{"issuer":"alice","maximum_supply":"1000.00 TOK"}' --auth ledger
  ledger client apply ledger transfer '{"from":"alice","to":"bob","quantity":"1.00 TOK","memo":""}' --auth alice`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !json.Valid([]byte(args[2])) {
			return fmt.Errorf("action data is not valid JSON")
		}
		action := domain.Action{
			Contract: domain.AccountID(args[0]),
			Name:     args[1],
			Data:     json.RawMessage(args[2]),
		}
		for _, a := range flagClient.Auth {
			action.Authorization = append(action.Authorization, domain.AccountID(a))
		}

		receipt, err := client.New(flagClient.Server).Apply(cmd.Context(), action)
		if err != nil {
			return err
		}
		return printJSON(cmd, receipt)
	},
}

var cmdClientRegister = &cobra.Command{
	Use:   "register <account>",
	Short: "Register an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := client.New(flagClient.Server).RegisterAccount(cmd.Context(), domain.AccountID(args[0])); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "registered %s\n", args[0])
		return nil
	},
}

var cmdClientBalance = &cobra.Command{
	Use:   "balance <account> <symbol>",
	Short: "Show the balance of an account",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		bal, err := client.New(flagClient.Server).GetBalance(cmd.Context(), domain.AccountID(args[0]), args[1])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), bal.String())
		return nil
	},
}

var cmdClientSupply = &cobra.Command{
	Use:   "supply <symbol>",
	Short: "Show the circulating supply of a symbol",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		supply, err := client.New(flagClient.Server).GetSupply(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), supply.String())
		return nil
	},
}

var cmdClientWatch = &cobra.Command{
	Use:   "watch [account]",
	Short: "Stream notifications, for one account or all",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var account domain.AccountID
		if len(args) == 1 {
			account = domain.AccountID(args[0])
		}

		logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
		sub, err := client.Subscribe(cmd.Context(), flagClient.Server, account, nil, logger)
		if err != nil {
			return err
		}
		defer sub.Close()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		enc := json.NewEncoder(cmd.OutOrStdout())
		for {
			select {
			case <-sigCh:
				return nil
			case n, ok := <-sub.Notifications():
				if !ok {
					return nil
				}
				if err := enc.Encode(n); err != nil {
					return err
				}
			}
		}
	},
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	cmdClient.PersistentFlags().StringVarP(&flagClient.Server, "server", "s", "http://localhost:8080", "Ledger server URL")
	cmdClientApply.Flags().StringSliceVarP(&flagClient.Auth, "auth", "a", nil, "Authorizing accounts")
	cmdClientApply.MarkFlagRequired("auth")

	cmdClient.AddCommand(cmdClientApply, cmdClientRegister, cmdClientBalance, cmdClientSupply, cmdClientWatch)
	cmdMain.AddCommand(cmdClient)
}
