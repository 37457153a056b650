package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/robfig/cron/v3"

	"tondealbot/internal/bot"
	"tondealbot/internal/config"
	"tondealbot/internal/notify"
	"tondealbot/internal/payments"
	"tondealbot/internal/scanner"
	"tondealbot/internal/source"
	"tondealbot/internal/storage"
	"tondealbot/internal/ton"
)

func main() {
	slog.Info("Starting TON NFT deal bot...")
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Critical error loading configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Critical error initializing Postgres", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		slog.Error("Critical error initializing Telegram bot", "error", err)
		os.Exit(1)
	}

	notifier := notify.New(api)
	tonClient := ton.NewClient(cfg.TonAPIBase, cfg.TonAPIToken, cfg.FetchTimeout)
	paySvc := payments.New(store, tonClient, notifier, cfg.PaymentCheckInterval)
	adapters := source.FromConfig(cfg)
	scan := scanner.New(store, store, notifier, adapters, cfg)
	tgBot := bot.New(api, store, paySvc, cfg.AdminUserID)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		tgBot.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		paySvc.Watch(ctx)
	}()

	var cronRunner *cron.Cron
	if cfg.ScannerCron != "" {
		cronRunner = cron.New()
		if _, err := cronRunner.AddFunc(cfg.ScannerCron, func() { scan.RunCycle(ctx) }); err != nil {
			slog.Error("Invalid SCANNER_CRON expression", "cron", cfg.ScannerCron, "error", err)
			os.Exit(1)
		}
		slog.Info("Scanner scheduled by cron", "cron", cfg.ScannerCron)
		cronRunner.Start()
	} else {
		wg.Add(1)
		go func() {
			defer wg.Done()
			scan.Run(ctx)
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh
	slog.Info("Received signal, shutting down gracefully...", "signal", sig)

	cancel()
	if cronRunner != nil {
		<-cronRunner.Stop().Done()
	}
	wg.Wait()
	slog.Info("Bot stopped.")
}
