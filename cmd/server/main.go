package main

import (
	"context"
	"flag"
	"time"

	"github.com/joho/godotenv"

	"github.com/dvloznov/budget-sync/internal/actual"
	"github.com/dvloznov/budget-sync/internal/akahu"
	"github.com/dvloznov/budget-sync/internal/budgetsync"
	"github.com/dvloznov/budget-sync/internal/config"
	"github.com/dvloznov/budget-sync/internal/domain"
	"github.com/dvloznov/budget-sync/internal/ingest"
	"github.com/dvloznov/budget-sync/internal/logger"
	"github.com/dvloznov/budget-sync/internal/mapping"
	"github.com/dvloznov/budget-sync/internal/watermark"
	"github.com/dvloznov/budget-sync/internal/webhook"
)

// orchestratedSyncer reloads the mapping on every run so edits made while
// the server is up take effect without a restart. The webhook relay shares
// the same loader.
type orchestratedSyncer struct {
	orchestrator *budgetsync.Orchestrator
	load         func() ([]mapping.Entry, error)
}

func (s *orchestratedSyncer) Sync(ctx context.Context) (domain.RunSummary, error) {
	entries, err := s.load()
	if err != nil {
		return domain.RunSummary{}, err
	}
	return s.orchestrator.Run(ctx, entries)
}

func main() {
	// LOAD ENV
	_ = godotenv.Load()

	// Initialize structured logger
	log := logger.New()

	// Parse CLI flags
	mappingFile := flag.String("mapping", "", "Path to the account mapping file (default: MAPPING_FILE env)")
	watermarkFile := flag.String("watermarks", "", "Path to the watermark file (default: WATERMARK_FILE env)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Error: invalid configuration")
	}
	if err := cfg.RequireWebhook(); err != nil {
		log.Fatal().Err(err).Msg("Error: invalid configuration")
	}
	if *mappingFile == "" {
		*mappingFile = cfg.MappingFile
	}
	if *watermarkFile == "" {
		*watermarkFile = cfg.WatermarkFile
	}

	loadEntries := func() ([]mapping.Entry, error) {
		f, err := mapping.Load(*mappingFile)
		if err != nil {
			return nil, err
		}
		return f.Mapping, nil
	}

	// Fail fast on an unreadable mapping file before serving traffic.
	entries, err := loadEntries()
	if err != nil {
		log.Fatal().Err(err).Str("path", *mappingFile).Msg("Failed to load account mapping")
	}
	if len(entries) == 0 {
		log.Warn().Str("path", *mappingFile).Msg("Account mapping is empty; syncs will process nothing until it is populated")
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

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	if err := destination.DownloadBudget(logger.WithContext(ctx, log)); err != nil {
		cancel()
		log.Fatal().Err(err).Msg("Failed to download budget")
	}
	cancel()

	watermarks := watermark.NewFileStore(*watermarkFile, cfg.StartDate)
	ingester := ingest.NewEngine(source, time.Duration(cfg.LookbackDays)*24*time.Hour)
	engine := budgetsync.NewEngine(source, destination, ingester, watermarks, false)
	orchestrator := budgetsync.NewOrchestrator(engine, source, destination)

	syncer := &orchestratedSyncer{orchestrator: orchestrator, load: loadEntries}
	relay := budgetsync.NewWebhookRelay(destination, loadEntries)

	server, err := webhook.NewServer(log, cfg.AkahuPublicKey, syncer, relay)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize webhook server")
	}

	if err := server.Run(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("Webhook server stopped")
	}
}
