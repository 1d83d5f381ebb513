package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gatewatch/internal/config"
	"gatewatch/internal/event"
	"gatewatch/internal/ingest"
	"gatewatch/internal/logparse"
	"gatewatch/internal/store"
	"gatewatch/internal/tailer"
	"gatewatch/pkg/models"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	configPath := flag.String("config", "/etc/gatewatch/ingest.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadIngestConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := initLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting gatewatch-ingest",
		zap.String("log_file", cfg.LogFile),
		zap.String("database", cfg.MongoDB.Database))

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("Received signal, shutting down", zap.String("signal", sig.String()))
		cancel()

		// Give 30 seconds for graceful shutdown
		time.Sleep(30 * time.Second)
		logger.Error("Forced shutdown after timeout")
		os.Exit(1)
	}()

	// Create MongoDB store
	st, err := store.NewStore(
		cfg.MongoDB.URI,
		cfg.MongoDB.Database,
		cfg.MongoDB.CertificateKeyFile,
		cfg.MongoDB.MaxPoolSize,
		cfg.MongoDB.TTLDays,
		logger,
	)
	if err != nil {
		logger.Fatal("Failed to create store", zap.Error(err))
	}

	// Create event bus
	bus := event.NewBus(logger, cfg.BusBuffer)
	go bus.Start()
	defer bus.Stop()

	// Create ingest pipeline
	pipeline := ingest.NewPipeline(
		st,
		bus,
		cfg.Batching.MaxSize,
		cfg.Batching.MaxWait,
		cfg.Batching.QueueSize,
		logger,
	)

	// Create tailer. A missing log file is fatal: the ingestion subsystem
	// must not start against a path that does not exist.
	classifier := logparse.NewClassifier(logger)
	t, err := tailer.New(
		cfg.LogFile,
		cfg.StateFile,
		cfg.PollInterval,
		classifier,
		func(ev models.LogEvent) { pipeline.Enqueue(ev) },
		logger,
	)
	if err != nil {
		logger.Fatal("Failed to create tailer", zap.Error(err))
	}

	// Start pipeline in background
	go func() {
		if err := pipeline.Start(ctx); err != nil && err != context.Canceled {
			logger.Error("Pipeline failed", zap.Error(err))
		}
	}()

	// Start tailer (blocks until context is cancelled)
	if err := t.Start(ctx); err != nil && err != context.Canceled {
		logger.Error("Tailer failed", zap.Error(err))
		os.Exit(1)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := st.Close(shutdownCtx); err != nil {
		logger.Error("Failed to close MongoDB connection", zap.Error(err))
	}

	logger.Info("Ingest stopped gracefully")
}

// initLogger creates a configured zap logger
func initLogger(level string, format string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	var loggerConfig zap.Config
	if format == "json" {
		loggerConfig = zap.NewProductionConfig()
	} else {
		loggerConfig = zap.NewDevelopmentConfig()
	}

	loggerConfig.Level = zap.NewAtomicLevelAt(zapLevel)

	return loggerConfig.Build()
}
