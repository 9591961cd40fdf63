package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"listing-watch/config"
	"listing-watch/notify"
	"listing-watch/scraper"
	"listing-watch/scraper/browser"
	"listing-watch/scraper/static"
	"listing-watch/services"
	"listing-watch/storage"
	"listing-watch/utils"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Close()

	site, err := cfg.Site()
	if err != nil {
		return err
	}
	policy, err := services.ParseIdentityPolicy(cfg.IdentityPolicy)
	if err != nil {
		return err
	}

	logger.Info("=== Listing watch starting ===")
	logger.Info("Config: source %s | fetch %s | store %s | identity %s | interval %v (advisory)",
		site.Name, cfg.FetchMode, cfg.StoreBackend, policy, cfg.ScrapingInterval)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to open listing store: %v", err)
		return err
	}
	defer store.Close()

	p := &services.Pipeline{
		Site:         site,
		Fetcher:      newFetcher(cfg, logger),
		Store:        store,
		Notifier:     newNotifier(cfg, logger),
		Recipient:    cfg.RecipientEmail,
		Policy:       policy,
		SnapshotPath: cfg.CSVSnapshotPath,
		Logger:       logger,
	}

	summary, err := p.Run(ctx)
	if err != nil {
		logger.Error("Run failed: %v", err)
		return err
	}

	logger.Info("Done. %d considered, %d new", summary.Considered, summary.New)
	return nil
}

func newLogger(cfg *config.Config) (*utils.Logger, error) {
	opts := utils.LogOptions{
		Level: utils.ParseLevel(cfg.LogLevel),
		JSON:  cfg.LogFormat == "json",
	}
	if cfg.FluentHost != "" {
		client, err := utils.NewFluentClient(cfg.FluentHost, cfg.FluentPort, cfg.FluentTagPrefix)
		if err != nil {
			return nil, err
		}
		opts.Fluent = client
	}
	return utils.NewLoggerWithOptions(opts), nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *utils.Logger) (storage.ListingStore, error) {
	if cfg.StoreBackend == "memory" {
		logger.Warn("Using in-memory store: nothing will be remembered after this run")
		return storage.NewMemoryStore(), nil
	}
	return storage.NewPostgresStore(ctx, cfg.DSN(), cfg.DBConnectAttempts, logger)
}

func newFetcher(cfg *config.Config, logger *utils.Logger) scraper.PageFetcher {
	if cfg.FetchMode == "static" {
		return static.New(cfg, logger)
	}
	return browser.New(cfg, logger)
}

func newNotifier(cfg *config.Config, logger *utils.Logger) notify.Notifier {
	if cfg.NotifyMode == "log" {
		return notify.NewLogNotifier(logger)
	}
	if !cfg.SMTPConfigured() {
		logger.Warn("EMAIL_USER, EMAIL_PASSWORD or RECIPIENT_EMAIL missing: digests will only be logged")
		return notify.NewLogNotifier(logger)
	}
	return notify.NewSMTPNotifier(notify.SMTPConfig{
		Host:     cfg.EmailHost,
		Port:     cfg.EmailPort,
		User:     cfg.EmailUser,
		Password: cfg.EmailPassword,
	}, logger)
}
