package commands

// Root command for Cobra CLI
// Loads configuration and sets up logging before any subcommand runs
// Registers all subcommands (bot, scan, targets)

import (
	"fmt"

	"arb-stalker/internal/infra/config"
	"arb-stalker/internal/infra/log"

	"github.com/spf13/cobra"
)

// cfg is loaded once in PersistentPreRunE and read by the subcommands.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "arb-stalker",
	Short: "Arbitrum address stalker - Telegram bot that reports new transactions of tracked addresses",
	Long: `arb-stalker lets each Telegram chat register addresses under an alias and
polls Etherscan once a minute, sending a message for every new transaction.`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.LoadConfig(cmd.Flags())
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := log.Setup(loaded.App.LogDir, loaded.App.LogLevel); err != nil {
			return fmt.Errorf("failed to set up logging: %w", err)
		}
		cfg = loaded
		return nil
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	config.RegisterFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(botCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(targetsCmd)
}
