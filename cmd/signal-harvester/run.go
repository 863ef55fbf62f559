package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"

	"github.com/Minionjack/Trade-info-scraper/audit"
	"github.com/Minionjack/Trade-info-scraper/config"
	"github.com/Minionjack/Trade-info-scraper/ingest"
	"github.com/Minionjack/Trade-info-scraper/notify"
	"github.com/Minionjack/Trade-info-scraper/portal"
	"github.com/Minionjack/Trade-info-scraper/scheduler"
	"github.com/Minionjack/Trade-info-scraper/storage"
)

func newRunCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Poll the dashboard and store new signals until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(true)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger := newLogger(os.Stdout, cfg.LogLevel)
			slog.SetDefault(logger)

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return runHarvester(ctx, cfg, logger)
		},
	}
}

func runHarvester(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	st, err := storage.Open(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	client := portal.New(cfg.LoginURL, cfg.DashboardURL, cfg.FetchTimeout())
	client.UserAgent = cfg.UserAgent
	client.MaxPageBytes = cfg.MaxPageBytes
	client.Log = logger

	assets := portal.NewAssetClient(cfg.AssetTimeout(), cfg.UserAgent)
	assets.MaxBytes = cfg.MaxAssetBytes
	aud := audit.NewCSV(cfg.AuditPath)

	var notifier ingest.Notifier
	if cfg.NotificationsEnabled() {
		api, err := notify.NewBotAPI(cfg.TelegramToken, tgbotapi.APIEndpoint, cfg.NotifyTimeout())
		if err != nil {
			return fmt.Errorf("create telegram api: %w", err)
		}
		notifier = notify.NewTelegram(api, cfg.ChatID)
	}

	loop := &ingest.Loop{
		Log: logger,
		Connector: portalConnector{
			client: client,
			creds:  portal.Credentials{Email: cfg.Email, Password: cfg.Password},
		},
		Assets:   assets,
		Store:    st,
		Audit:    aud,
		Notifier: notifier,
		Cfg: ingest.Config{
			PollInterval:     cfg.PollInterval(),
			ReconnectBackoff: cfg.ReconnectBackoff(),
			ConnectTimeout:   cfg.ConnectTimeout(),
			FetchTimeout:     cfg.FetchTimeout(),
			AssetTimeout:     cfg.AssetTimeout(),
			ImageDir:         cfg.ImageDir,
		},
	}

	if cfg.StatsSchedule != "" {
		sched := scheduler.New(statsReport{log: logger, store: st, notifier: notifier}, schedulerLogger{log: logger})
		if err := sched.Start(ctx, scheduleSettings{spec: cfg.StatsSchedule, tz: cfg.Timezone}); err != nil {
			return fmt.Errorf("start stats schedule: %w", err)
		}
		defer sched.Stop()
		logger.Info("stats report scheduled", "schedule", cfg.StatsSchedule, "timezone", cfg.Timezone, "next", sched.Next())
	}

	logger.Info("started", "dashboard", cfg.DashboardURL, "db", cfg.DBPath, "audit", aud.Path(), "notifications", notifier != nil)
	if err := loop.Run(ctx); err != nil {
		return err
	}
	logger.Info("shutdown")
	return nil
}
