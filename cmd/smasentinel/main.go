package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/quantfold/smasentinel/internal/chart"
	"github.com/quantfold/smasentinel/internal/config"
	"github.com/quantfold/smasentinel/internal/dispatch"
	"github.com/quantfold/smasentinel/internal/logger"
	"github.com/quantfold/smasentinel/internal/monitor"
	"github.com/quantfold/smasentinel/internal/provider"
	"github.com/quantfold/smasentinel/internal/storage"
	"github.com/quantfold/smasentinel/internal/subscribers"
	"github.com/quantfold/smasentinel/internal/telegram"
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

	store, err := storage.New(cfg.Storage.MaxAlerts, cfg.Storage.DBPath)
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()

	registry, err := subscribers.New(store)
	if err != nil {
		logger.Fatal("Failed to initialize subscriber registry: %v", err)
	}

	priceClient := provider.NewClient(
		cfg.Provider.BaseURL,
		cfg.Provider.Symbol,
		cfg.Provider.Timeout,
		cfg.Provider.CacheTTL,
		cfg.Provider.MaxRetries,
	)

	renderer := chart.NewRenderer(cfg.Provider.Symbol, cfg.Monitor.SMAPeriods)

	var telegramClient *telegram.Client
	if cfg.Telegram.Enabled {
		telegramClient, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Provider.Symbol, 3, 0)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	var transport dispatch.Transport
	if telegramClient != nil {
		transport = telegramClient
	} else {
		transport = logTransport{}
	}
	dispatcher := dispatch.New(transport, renderer, cfg.Provider.Symbol)

	monitorConfig := monitor.Config{
		CheckInterval:  cfg.CheckInterval(),
		Periods:        cfg.Monitor.SMAPeriods,
		MinHistoryDays: cfg.Provider.MinHistoryDays,
		BackoffInitial: cfg.Monitor.BackoffInitial,
		BackoffMax:     cfg.Monitor.BackoffMax,
		MaxRetries:     cfg.Monitor.MaxRetries,
		RestoreState:   cfg.Monitor.RestoreState,
	}
	svc := monitor.New(priceClient, dispatcher, registry, store, renderer, monitorConfig)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	if telegramClient != nil {
		telegramClient.ListenForCommands(ctx, svc)
	}

	svc.Run(ctx)
	logger.Info("Service stopped")
}

// logTransport stands in for Telegram when notifications are disabled.
type logTransport struct{}

func (logTransport) Send(chatID int64, text string, image []byte) error {
	logger.Info("Alert for chat %d (%d image bytes): %s", chatID, len(image), text)
	return nil
}
