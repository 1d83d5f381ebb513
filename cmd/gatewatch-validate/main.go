package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"gatewatch/internal/config"
	"gatewatch/internal/event"
	"gatewatch/internal/images"
	"gatewatch/internal/ocr"
	"gatewatch/internal/orchestrator"
	"gatewatch/internal/store"
	"gatewatch/pkg/models"
	"gatewatch/pkg/mtls"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"
)

func main() {
	configPath := flag.String("config", "/etc/gatewatch/validate.yaml", "Path to configuration file")
	scanID := flag.String("scan", "", "Validate a single scan by id")
	batch := flag.Bool("batch", false, "Validate pending scans in batch mode")
	limit := flag.Int("limit", 0, "Batch limit (0 uses the configured default)")
	all := flag.Bool("all", false, "Include already-validated scans in the batch")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadValidateConfig(*configPath)
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

	if *scanID == "" && !*batch {
		fmt.Fprintln(os.Stderr, "Either -scan <id> or -batch is required")
		os.Exit(2)
	}

	ctx := context.Background()

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
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := st.Close(closeCtx); err != nil {
			logger.Error("Failed to close MongoDB connection", zap.Error(err))
		}
	}()

	// Load OCR service TLS configuration when configured
	var tlsConfig *tls.Config
	if cfg.OCR.ClientCert != "" {
		tlsConfig, err = mtls.LoadClientTLSConfig(
			cfg.OCR.CACert,
			cfg.OCR.ClientCert,
			cfg.OCR.ClientKey,
			cfg.OCR.ServerName,
		)
		if err != nil {
			logger.Fatal("Failed to load OCR TLS config", zap.Error(err))
		}
	}

	// The OCR engine is created once and shared; model load on the service
	// side is expensive and submissions are bounded by its concurrency.
	engine := ocr.NewClient(
		cfg.OCR.URL,
		tlsConfig,
		cfg.OCR.Timeout,
		cfg.OCR.MaxRetries,
		cfg.OCR.Concurrency,
		logger,
	)

	var resolver images.Resolver
	if cfg.Images.Root != "" {
		resolver = images.NewFileResolver(cfg.Images.Root)
	} else {
		resolver = images.NewHTTPResolver(cfg.Images.BaseURL, cfg.Images.Timeout)
	}

	// Create event bus
	bus := event.NewBus(logger, cfg.BusBuffer)
	go bus.Start()
	defer bus.Stop()

	// Batch throttle: ten scans per burst, then the cooldown spacing.
	limiter := rate.NewLimiter(rate.Every(cfg.Batch.Cooldown/10), 10)

	orch := orchestrator.New(engine, resolver, bus, limiter, logger)

	if *scanID != "" {
		runSingle(ctx, orch, st, *scanID, logger)
		return
	}

	runBatch(ctx, orch, st, cfg, *limit, *all, logger)
}

func runSingle(ctx context.Context, orch *orchestrator.Orchestrator, st *store.Store, scanID string, logger *zap.Logger) {
	rec, err := st.GetScan(ctx, scanID)
	if err != nil {
		logger.Fatal("Failed to fetch scan", zap.Error(err))
	}

	v, err := orch.ValidateScan(ctx, *rec)
	if err != nil {
		logger.Fatal("Validation failed", zap.Error(err))
	}

	if err := st.SaveValidation(ctx, v); err != nil {
		logger.Error("Failed to save validation", zap.Error(err))
	}

	printJSON(v)
}

func runBatch(ctx context.Context, orch *orchestrator.Orchestrator, st *store.Store, cfg *config.ValidateConfig, limit int, all bool, logger *zap.Logger) {
	if limit <= 0 {
		limit = cfg.Batch.Limit
	}

	recs, err := st.ListScans(ctx, limit, all)
	if err != nil {
		logger.Fatal("Failed to list scans", zap.Error(err))
	}
	if len(recs) == 0 {
		logger.Info("No pending scans to validate")
		return
	}

	summary := orch.ValidateBatch(ctx, recs, orchestrator.BatchOptions{Limit: limit},
		func(ctx context.Context, v *models.ScanValidation) {
			if err := st.SaveValidation(ctx, v); err != nil {
				logger.Error("Failed to save validation",
					zap.String("scan_id", v.ScanID),
					zap.Error(err))
			}
		})

	printJSON(summary)
}

func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to marshal result: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
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
