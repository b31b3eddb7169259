package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/joho/godotenv"

	"github.com/dvloznov/budget-sync/internal/actual"
	"github.com/dvloznov/budget-sync/internal/akahu"
	"github.com/dvloznov/budget-sync/internal/config"
	"github.com/dvloznov/budget-sync/internal/domain"
	"github.com/dvloznov/budget-sync/internal/logger"
	"github.com/dvloznov/budget-sync/internal/mapgen"
	"github.com/dvloznov/budget-sync/internal/mapping"
)

func main() {
	// LOAD ENV
	_ = godotenv.Load()

	// Initialize structured logger
	log := logger.New()

	// Parse CLI flags
	mappingFile := flag.String("mapping", "", "Path to the account mapping file (default: MAPPING_FILE env)")
	threshold := flag.Float64("threshold", mapgen.DefaultThreshold, "Minimum name similarity for an automatic pairing")
	useLLM := flag.Bool("use-llm", false, "Ask Gemini to pair the accounts fuzzy matching could not")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Error: invalid configuration")
	}
	if *mappingFile == "" {
		*mappingFile = cfg.MappingFile
	}
	if *useLLM && cfg.GeminiAPIKey == "" {
		log.Fatal().Msg("Error: --use-llm requires GEMINI_API_KEY")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	existing, err := mapping.Load(*mappingFile)
	if err != nil {
		log.Fatal().Err(err).Str("path", *mappingFile).Msg("Failed to load existing mapping")
	}

	source := akahu.NewClient(cfg.AkahuEndpoint, cfg.AkahuUserToken, cfg.AkahuAppToken)
	akahuAccounts, err := source.ListAccounts(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list Akahu accounts")
	}
	sourceAccounts := make([]domain.Account, 0, len(akahuAccounts))
	for _, a := range akahuAccounts {
		sourceAccounts = append(sourceAccounts, a.ToDomain())
	}

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
	destAccounts, err := destination.GetAccounts(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list destination accounts")
	}

	// Existing pairings are kept verbatim; only unpaired accounts are fed
	// to the matchers.
	mappedSource := map[string]bool{}
	mappedDest := map[string]bool{}
	for _, e := range existing.Mapping {
		mappedSource[e.AkahuID] = true
		mappedDest[e.ActualAccountID] = true
	}
	unmappedSource := filterUnmapped(sourceAccounts, mappedSource)
	unmappedDest := filterUnmapped(destAccounts, mappedDest)

	entries := existing.Mapping
	byID := accountsByID(append(sourceAccounts, destAccounts...))

	proposals := mapgen.Candidates(unmappedSource, unmappedDest, *threshold)
	for _, p := range proposals {
		log.Info().
			Str("akahu", p.Source.Name).
			Str("actual", p.Destination.Name).
			Float64("score", p.Score).
			Msg("Fuzzy match")
		entries = append(entries, newEntry(p.Source, p.Destination))
		mappedSource[p.Source.ID] = true
		mappedDest[p.Destination.ID] = true
	}

	if *useLLM {
		unmappedSource = filterUnmapped(unmappedSource, mappedSource)
		unmappedDest = filterUnmapped(unmappedDest, mappedDest)
		if len(unmappedSource) > 0 && len(unmappedDest) > 0 {
			pairings, err := mapgen.ProposeWithModel(ctx, unmappedSource, unmappedDest)
			if err != nil {
				log.Fatal().Err(err).Msg("Model pairing failed")
			}
			for _, p := range pairings {
				if mappedSource[p.SourceID] || mappedDest[p.DestinationID] {
					continue
				}
				log.Info().
					Str("akahu", byID[p.SourceID].Name).
					Str("actual", byID[p.DestinationID].Name).
					Float64("confidence", p.Confidence).
					Msg("Model match")
				entries = append(entries, newEntry(byID[p.SourceID], byID[p.DestinationID]))
				mappedSource[p.SourceID] = true
				mappedDest[p.DestinationID] = true
			}
		}
	}

	for _, a := range sourceAccounts {
		if !mappedSource[a.ID] {
			log.Warn().Str("akahu", a.Name).Msg("No match found; pair this account by hand")
		}
	}

	out := &mapping.File{
		AkahuAccounts:  refreshRefs(existing.AkahuAccounts, sourceAccounts),
		ActualAccounts: refreshRefs(existing.ActualAccounts, destAccounts),
		Mapping:        entries,
	}
	if err := mapping.Save(*mappingFile, out); err != nil {
		log.Fatal().Err(err).Str("path", *mappingFile).Msg("Failed to save mapping")
	}

	log.Info().
		Str("path", *mappingFile).
		Int("pairings", len(entries)).
		Msg("Mapping saved; review the modes before syncing")
	fmt.Println("Mapping file updated.")
}

// newEntry defaults to imported mode; tracked and skipped are set by hand
// when reviewing the file.
func newEntry(source, dest domain.Account) mapping.Entry {
	return mapping.Entry{
		AkahuID:           source.ID,
		AkahuName:         source.Name,
		ActualAccountID:   dest.ID,
		ActualAccountName: dest.Name,
		Mode:              mapping.ModeImported,
	}
}

func filterUnmapped(accounts []domain.Account, mapped map[string]bool) []domain.Account {
	var out []domain.Account
	for _, a := range accounts {
		if !mapped[a.ID] {
			out = append(out, a)
		}
	}
	return out
}

func accountsByID(accounts []domain.Account) map[string]domain.Account {
	byID := make(map[string]domain.Account, len(accounts))
	for _, a := range accounts {
		byID[a.ID] = a
	}
	return byID
}

// refreshRefs rewrites the account snapshot from the live lists, keeping
// the first-loaded date of accounts already present.
func refreshRefs(existing []mapping.AccountRef, live []domain.Account) []mapping.AccountRef {
	firstLoaded := make(map[string]string, len(existing))
	for _, ref := range existing {
		firstLoaded[ref.ID] = ref.DateFirstLoaded
	}
	today := time.Now().UTC().Format("2006-01-02")

	refs := make([]mapping.AccountRef, 0, len(live))
	for _, a := range live {
		date := firstLoaded[a.ID]
		if date == "" {
			date = today
		}
		refs = append(refs, mapping.AccountRef{ID: a.ID, Name: a.Name, DateFirstLoaded: date})
	}
	return refs
}
