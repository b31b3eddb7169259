package budgetsync

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dvloznov/budget-sync/internal/akahu"
	"github.com/dvloznov/budget-sync/internal/domain"
	"github.com/dvloznov/budget-sync/internal/logger"
	"github.com/dvloznov/budget-sync/internal/mapping"
)

// Orchestrator drives a full run: validate the mapping against both live
// account lists, then hand every entry to the engine, tracked accounts
// first, strictly one at a time.
type Orchestrator struct {
	engine      *Engine
	source      SourceService
	destination DestinationService
}

// NewOrchestrator creates an orchestrator around an engine.
func NewOrchestrator(engine *Engine, source SourceService, destination DestinationService) *Orchestrator {
	return &Orchestrator{engine: engine, source: source, destination: destination}
}

// Run processes every mapping entry and returns the run summary. It
// returns an error only when the live account lists cannot be fetched,
// which makes mapping validation impossible; per-account failures are
// caught, logged and recorded in the summary instead.
func (o *Orchestrator) Run(ctx context.Context, entries []mapping.Entry) (domain.RunSummary, error) {
	log := logger.FromContext(ctx)

	summary := domain.RunSummary{
		RunID:   uuid.NewString(),
		Started: o.engine.now().UTC(),
	}
	log = log.With().Str("run_id", summary.RunID).Logger()
	ctx = logger.WithContext(ctx, log)

	sourceAccounts, err := o.source.ListAccounts(ctx)
	if err != nil {
		return summary, fmt.Errorf("orchestrator: listing source accounts: %w", err)
	}
	destinationAccounts, err := o.destination.GetAccounts(ctx)
	if err != nil {
		return summary, fmt.Errorf("orchestrator: listing destination accounts: %w", err)
	}

	valid := mapping.Validate(ctx, entries, toDomainAccounts(sourceAccounts), destinationAccounts)
	log.Info().
		Int("configured", len(entries)).
		Int("validated", len(valid)).
		Msg("Validated account mapping against live account lists")

	var tracked, imported []mapping.Entry
	for _, e := range valid {
		switch e.Mode {
		case mapping.ModeTracked:
			tracked = append(tracked, e)
		case mapping.ModeImported:
			imported = append(imported, e)
		}
	}

	// Tracked accounts first: balance corrections are reported before
	// transaction volume.
	for _, e := range tracked {
		summary.Results = append(summary.Results, o.process(ctx, e, o.engine.ReconcileTracked))
	}
	for _, e := range imported {
		summary.Results = append(summary.Results, o.process(ctx, e, o.engine.SyncImported))
	}

	for _, r := range summary.Results {
		if r.Failed() {
			summary.Failures++
		}
	}
	summary.Finished = o.engine.now().UTC()

	log.Info().
		Int("accounts", len(summary.Results)).
		Int("failures", summary.Failures).
		Int("transactions", summary.TotalTransactions()).
		Int64("total_amount", summary.TotalAmount()).
		Msg("Sync run completed")

	return summary, nil
}

// process isolates one account: any error is caught here, logged and
// folded into the result instead of propagating to the run loop.
func (o *Orchestrator) process(ctx context.Context, entry mapping.Entry, step func(context.Context, mapping.Entry) (domain.AccountResult, error)) domain.AccountResult {
	log := logger.FromContext(ctx)

	res, err := step(ctx, entry)
	if err != nil {
		res.Error = err.Error()
		log.Error().Err(err).
			Str("akahu_id", entry.AkahuID).
			Str("actual_account_id", entry.ActualAccountID).
			Str("display_name", entry.DisplayName()).
			Msg("Account sync failed; continuing with remaining accounts")
	}
	return res
}

func toDomainAccounts(accounts []akahu.Account) []domain.Account {
	out := make([]domain.Account, len(accounts))
	for i, a := range accounts {
		out[i] = a.ToDomain()
	}
	return out
}
