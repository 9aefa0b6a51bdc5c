package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Steez431/SLC-PAYMENTBOT/internal/access"
	"github.com/Steez431/SLC-PAYMENTBOT/internal/config"
	"github.com/Steez431/SLC-PAYMENTBOT/internal/metrics"
	"github.com/Steez431/SLC-PAYMENTBOT/internal/server"
	"github.com/Steez431/SLC-PAYMENTBOT/internal/solscan"
	"github.com/Steez431/SLC-PAYMENTBOT/internal/storage"
	"github.com/Steez431/SLC-PAYMENTBOT/internal/telegram"
)

func main() {
	// Load .env file
	envErr := godotenv.Load()

	// Load config
	cfg := config.Load()

	// Setup logger
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(log)

	if envErr != nil {
		log.Debug("no .env file found")
	}

	if err := cfg.Validate(); err != nil {
		log.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// Initialize storage
	store, err := openStore(cfg, log)
	if err != nil {
		log.Error("init storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	stats := store.Stats()
	log.Info("storage initialized",
		"driver", cfg.StoreDriver,
		"members", stats.Members,
		"wallets", stats.Wallets,
		"seen_tx", stats.Seen,
	)

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	m.Members.Set(float64(stats.Members))

	// Initialize Solscan client
	ledger := solscan.NewClient(cfg.SolscanBaseURL, cfg.SolscanAPIKey, cfg.SolscanRPS)
	log.Info("solscan client initialized", "base_url", cfg.SolscanBaseURL)

	// Initialize telegram bot
	bot, err := telegram.New(cfg, log)
	if err != nil {
		log.Error("init telegram bot", "error", err)
		os.Exit(1)
	}
	log.Info("telegram bot initialized")

	actions := access.NewActions(store, bot, m, cfg.AccessTTL, log)
	scanner := access.NewScanner(access.ScannerConfig{
		ReceivingWallet: cfg.ReceivingWallet,
		MinLamports:     cfg.MinLamports,
		MemoMarker:      cfg.MemoMarker,
		Limit:           cfg.ScanLimit,
		Interval:        cfg.PollInterval,
	}, store, ledger, actions, m, log)
	sweeper := access.NewSweeper(store, actions, cfg.AccessTTL, cfg.IsWhitelisted, m, log)
	commands := telegram.NewCommands(cfg, store, bot, m, log)

	// Create context with cancellation
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var wg sync.WaitGroup
	run := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	if cfg.HTTPPort > 0 {
		ops := server.New(reg, log)
		run(func() {
			if err := ops.Start(ctx, cfg.HTTPPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("ops server", "error", err)
			}
		})
	}

	run(func() { scanner.Start(ctx) })
	run(func() { sweeper.Start(ctx) })

	log.Info("starting bot polling...")
	run(func() { bot.Start(ctx, commands) })

	<-ctx.Done()
	log.Info("shutting down...")
	wg.Wait()
}

// openStore migrates the legacy data file if needed, opens the configured
// backend and writes the state once so the data file exists
func openStore(cfg *config.Config, log *slog.Logger) (*storage.Store, error) {
	var backend storage.Backend

	switch cfg.StoreDriver {
	case "sqlite":
		b, err := storage.NewSQLiteBackend(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		imported, err := storage.ImportFile(b, cfg.DataFile)
		if err != nil {
			log.Warn("import data file into sqlite", "from", cfg.DataFile, "error", err)
		} else if imported {
			log.Info("imported data file into sqlite", "from", cfg.DataFile, "to", cfg.SQLitePath)
		}
		backend = b
	default:
		migrated, err := storage.MigrateLegacy(cfg.DataFile, cfg.LegacyDataFile)
		if err != nil {
			log.Warn("migrate legacy data file", "from", cfg.LegacyDataFile, "to", cfg.DataFile, "error", err)
		} else if migrated {
			log.Info("migrated legacy data file", "from", cfg.LegacyDataFile, "to", cfg.DataFile)
		}

		b, err := storage.NewFileBackend(cfg.DataFile)
		if err != nil {
			return nil, err
		}
		log.Info("using data file", "path", b.Path())
		backend = b
	}

	store, err := storage.Open(backend, cfg.SeenTxLimit)
	if err != nil {
		backend.Close()
		return nil, err
	}

	if err := store.Save(); err != nil {
		log.Warn("initial save", "error", err)
	}
	return store, nil
}
