package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/torrenbaker/nba-rebound-tracker/internal/config"
	"github.com/torrenbaker/nba-rebound-tracker/internal/logger"
	"github.com/torrenbaker/nba-rebound-tracker/internal/nba"
	"github.com/torrenbaker/nba-rebound-tracker/internal/scanner"
	"github.com/torrenbaker/nba-rebound-tracker/internal/server"
	"github.com/torrenbaker/nba-rebound-tracker/internal/store"
	"github.com/torrenbaker/nba-rebound-tracker/internal/telegram"
	"github.com/torrenbaker/nba-rebound-tracker/internal/tracker"
)

var configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	st := store.New()

	nbaClient := nba.NewClient(
		cfg.NBA.APIBaseURL,
		cfg.NBA.Timeout,
		cfg.NBA.MaxRetries,
		cfg.NBA.RetryDelayBase,
	)

	sc := scanner.New(cfg.Tracker.Lookahead)

	var notifier tracker.Notifier
	if cfg.Telegram.Enabled {
		telegramClient, err := telegram.NewClient(
			cfg.Telegram.BotToken,
			cfg.Telegram.ChatID,
			cfg.Telegram.MaxRetries,
			cfg.Telegram.RetryDelayBase,
		)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		notifier = telegramClient
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	trk := tracker.New(st, nbaClient, sc, cfg.Tracker.PollInterval, notifier)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	srv := server.New(st, trk)
	httpServer := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: srv.Router(cfg.Server.CORSOrigins),
	}

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	go func() {
		logger.Info("Read API listening on %s (poll interval: %v, lookahead: %d)",
			cfg.Server.ListenAddr, cfg.Tracker.PollInterval, cfg.Tracker.Lookahead)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server failed: %v", err)
		}
	}()

	<-ctx.Done()

	trk.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed: %v", err)
	}

	logger.Info("Service stopped")
}
