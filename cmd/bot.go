package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/psds-microservice/support-bridge/internal/application"
	"github.com/psds-microservice/support-bridge/internal/config"
	"github.com/psds-microservice/support-bridge/internal/telegram"
	"github.com/spf13/cobra"
)

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run the support bridge bot (long polling)",
	RunE:  runBot,
}

func runBot(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if cfg.TelegramToken == "" {
		return errors.New("config: TELEGRAM_TOKEN is required")
	}
	logger, err := application.NewLogger(cfg)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logger.Sync()

	tr := telegram.NewClient(cfg.TelegramToken, "")
	bot, err := application.New(cfg, tr, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return bot.Run(ctx)
}
