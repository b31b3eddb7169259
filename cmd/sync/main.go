package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/joho/godotenv"

	"github.com/dvloznov/budget-sync/internal/actual"
	"github.com/dvloznov/budget-sync/internal/akahu"
	"github.com/dvloznov/budget-sync/internal/budgetsync"
	"github.com/dvloznov/budget-sync/internal/config"
	"github.com/dvloznov/budget-sync/internal/ingest"
	"github.com/dvloznov/budget-sync/internal/logger"
	"github.com/dvloznov/budget-sync/internal/mapping"
	"github.com/dvloznov/budget-sync/internal/watermark"
)

func main() {
	// LOAD ENV
	_ = godotenv.Load()

	// Initialize structured logger
	log := logger.New()

	// Parse CLI flags
	mappingFile := flag.String("mapping", "", "Path to the account mapping file (default: MAPPING_FILE env)")
	watermarkFile := flag.String("watermarks", "", "Path to the watermark file (default: WATERMARK_FILE env)")
	dryRun := flag.Bool("dry-run", false, "Dry run mode - fetch and transform without importing")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Error: invalid configuration")
	}
	if *mappingFile == "" {
		*mappingFile = cfg.MappingFile
	}
	if *watermarkFile == "" {
		*watermarkFile = cfg.WatermarkFile
	}

	// Create context with timeout so the CLI doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	// Add logger to context
	ctx = logger.WithContext(ctx, log)

	log.Info().
		Str("mapping_file", *mappingFile).
		Bool("dry_run", *dryRun).
		Msg("Starting budget sync")

	mappingData, err := mapping.Load(*mappingFile)
	if err != nil {
		log.Fatal().Err(err).Str("path", *mappingFile).Msg("Failed to load account mapping")
	}
	if len(mappingData.Mapping) == 0 {
		log.Fatal().Str("path", *mappingFile).Msg("Account mapping is empty; run map-accounts first")
	}

	source := akahu.NewClient(cfg.AkahuEndpoint, cfg.AkahuUserToken, cfg.AkahuAppToken)

	destination, err := actual.NewClient(actual.Config{
		ServerURL:     cfg.ActualServerURL,
		Password:      cfg.ActualPassword,
		EncryptionKey: cfg.ActualEncryptionKey,
		SyncID:        cfg.ActualSyncID,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize destination client")
	}
	defer destination.Shutdown(context.Background())

	if err := destination.DownloadBudget(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to download budget")
	}

	watermarks := watermark.NewFileStore(*watermarkFile, cfg.StartDate)
	ingester := ingest.NewEngine(source, time.Duration(cfg.LookbackDays)*24*time.Hour)
	engine := budgetsync.NewEngine(source, destination, ingester, watermarks, *dryRun)
	orchestrator := budgetsync.NewOrchestrator(engine, source, destination)

	summary, err := orchestrator.Run(ctx, mappingData.Mapping)
	if err != nil {
		log.Fatal().Err(err).Msg("Sync failed")
	}

	log.Info().
		Str("run_id", summary.RunID).
		Int("accounts", len(summary.Results)).
		Int("failures", summary.Failures).
		Int("transactions", summary.TotalTransactions()).
		Msg("Sync finished")

	fmt.Println("Sync completed successfully.")
}
