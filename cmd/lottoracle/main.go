package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rewired-gh/lottoracle/internal/config"
	"github.com/rewired-gh/lottoracle/internal/dhlottery"
	"github.com/rewired-gh/lottoracle/internal/logger"
	"github.com/rewired-gh/lottoracle/internal/markov"
	"github.com/rewired-gh/lottoracle/internal/scheduler"
	"github.com/rewired-gh/lottoracle/internal/server"
	"github.com/rewired-gh/lottoracle/internal/storage"
	"github.com/rewired-gh/lottoracle/internal/telegram"
	"github.com/rewired-gh/lottoracle/internal/updater"
)

var (
	configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")
	once       = flag.String("once", "", "Run a single action and exit: update or generate")
	importPath = flag.String("import", "", "CSV history to copy into the configured store before starting")
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Setup logging with level support
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	// Initialize storage
	store, err := storage.Open(cfg.Storage.Driver, cfg.Storage.Path)
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()
	logger.Info("Using %s draw store at %s", cfg.Storage.Driver, cfg.Storage.Path)

	if *importPath != "" {
		n, err := storage.Copy(store, storage.NewFileStore(*importPath))
		if err != nil {
			logger.Fatal("Failed to import %s: %v", *importPath, err)
		}
		logger.Info("Imported %d draws from %s", n, *importPath)
	}

	// Initialize lottery site client
	lotteryClient := dhlottery.NewClient(
		cfg.Lottery.URL,
		cfg.Lottery.Timeout,
		dhlottery.ClientConfig{
			MaxRetries:     cfg.Lottery.MaxRetries,
			RetryDelayBase: cfg.Lottery.RetryDelayBase,
		},
	)

	// Initialize generator
	gen := markov.NewGenerator(store, markov.Options{
		ShortPolicy: markov.ShortPolicy(cfg.Generator.ShortPolicy),
		MaxAttempts: cfg.Generator.MaxAttempts,
		Backoff:     cfg.Generator.Backoff,
	})
	if cfg.Generator.Seed != 0 {
		gen.WithRand(rand.New(rand.NewPCG(cfg.Generator.Seed, cfg.Generator.Seed)))
		logger.Debug("Generator seeded with %d", cfg.Generator.Seed)
	}

	// Initialize Telegram client
	var telegramClient *telegram.Client
	var notifier updater.Notifier
	var reporter updater.FailureReporter
	if cfg.Telegram.Enabled {
		telegramClient, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		notifier = telegramClient
		reporter = telegramClient
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	upd := updater.New(lotteryClient, store, notifier)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	if *once != "" {
		if err := runOnce(ctx, *once, upd, gen, telegramClient); err != nil {
			logger.Fatal("%s failed: %v", *once, err)
		}
		return
	}

	// Start scheduled updates
	sched := scheduler.New(logger.Component("scheduler"))
	if cfg.Updater.Enabled {
		job := upd.Job(ctx, reporter)
		if err := sched.AddJob(cfg.Updater.Schedule, job); err != nil {
			logger.Fatal("Failed to schedule draw updates: %v", err)
		}
		if cfg.Updater.RunOnStart {
			if err := sched.RunNow(job); err != nil {
				logger.Error("Initial draw update failed: %v", err)
			}
		}
		sched.Start()
		defer sched.Stop()
	} else {
		logger.Debug("Scheduled draw updates disabled")
	}

	// Start HTTP API
	if cfg.Server.Enabled {
		srv := server.New(server.Config{
			Log:       logger.Component("server"),
			Addr:      cfg.Server.Addr,
			Generator: gen,
			Updater:   upd,
			Store:     store,
		})
		go func() {
			if err := srv.Start(); err != nil {
				logger.Error("HTTP server failed: %v", err)
				cancel()
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("Failed to shut down HTTP server: %v", err)
			}
		}()
	}

	// Start Telegram command listener
	if telegramClient != nil && cfg.Telegram.Commands {
		go func() {
			if err := telegramClient.ListenForCommands(ctx, gen, store); err != nil && ctx.Err() == nil {
				logger.Error("Telegram listener stopped: %v", err)
			}
		}()
	}

	logger.Info("Service started")
	<-ctx.Done()
	logger.Info("Service stopped")
}

// runOnce performs a single action and prints its result as JSON.
// A generated suggestion is also sent to Telegram when tg is set.
func runOnce(ctx context.Context, action string, upd *updater.Updater, gen *markov.Generator, tg *telegram.Client) error {
	var result interface{}
	switch action {
	case "update":
		r, err := upd.Run(ctx)
		if err != nil {
			return err
		}
		result = r
	case "generate":
		s, err := gen.Generate(ctx)
		if err != nil {
			return err
		}
		if tg != nil {
			if err := tg.SendSuggestion(s); err != nil {
				logger.Warn("Failed to send suggestion to Telegram: %v", err)
			}
		}
		result = s
	default:
		return fmt.Errorf("unknown action %q (want update or generate)", action)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
