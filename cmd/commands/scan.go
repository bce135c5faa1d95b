package commands

// Command to run a single scan pass and exit
// Useful from an external scheduler or to catch up after downtime

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"arb-stalker/bots_monitor"
	"arb-stalker/internal/clients_api/telegram"
	"arb-stalker/internal/features/stalker"
	"arb-stalker/internal/infra/log"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one scan pass and exit",
	RunE:  runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	if err := cfg.ValidateBot(); err != nil {
		log.LogError("Invalid configuration", zap.Error(err))
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, err := newStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to store: %w", err)
	}
	defer st.Close()

	explorer, closeExplorer, err := newExplorer(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create explorer: %w", err)
	}
	defer closeExplorer()

	bot, err := telegram.NewBot(cfg.Telegram.BotToken, "")
	if err != nil {
		return err
	}

	service := stalker.NewService(st, explorer, telegram.NewSender(bot, cfg.Telegram.MessagesPerSecond), stalker.Options{
		TxURLPrefix: cfg.App.TxURLPrefix,
	})

	report, err := bots_monitor.RunScanPass(ctx, service)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "block %d: %d targets scanned, %d notifications sent, %d dropped, %d failed\n",
		report.Block, report.Scanned, report.Notified, report.Dropped, report.Failed)
	return nil
}
