package commands

// Command to run the full bot
// Starts the Telegram command handler, the scan monitor and the optional metrics server
// Implements graceful shutdown for proper termination

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"arb-stalker/bots_monitor"
	"arb-stalker/internal/clients_api/telegram"
	"arb-stalker/internal/features/stalker"
	"arb-stalker/internal/infra/log"
	"arb-stalker/internal/infra/metrics"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run the Telegram bot with the per-minute scan",
	Long:  `Run the complete bot: chat commands (/start, /add, /remove, /list) and the scan that notifies chats about new transactions every minute.`,
	RunE:  runBot,
}

func runBot(cmd *cobra.Command, args []string) error {
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
		log.LogError("Failed to initialize bot", zap.Error(err))
		return err
	}
	sender := telegram.NewSender(bot, cfg.Telegram.MessagesPerSecond)

	service := stalker.NewService(st, explorer, sender, stalker.Options{
		TxURLPrefix: cfg.App.TxURLPrefix,
	})

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		bots_monitor.RunCommandHandler(ctx, bot, service, cfg.Telegram.UpdatesTimeoutSecs)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := bots_monitor.RunScanMonitor(ctx, service); err != nil {
			log.LogError("Scan monitor failed", zap.Error(err))
			cancel()
		}
	}()

	if cfg.App.MetricsAddr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := metrics.Serve(ctx, cfg.App.MetricsAddr, st.Ping); err != nil {
				log.LogError("Metrics server failed", zap.Error(err))
			}
		}()
	}

	log.LogSuccess("Bot is running", zap.String("status", "active"), zap.String("username", bot.Self.UserName))

	<-ctx.Done()
	log.LogInfo("Shutdown signal received, gracefully stopping...")
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.LogSuccess("Bot stopped gracefully")
	case <-time.After(10 * time.Second):
		log.LogWarn("Timeout waiting for monitors to stop, forcing shutdown")
	}

	return nil
}
