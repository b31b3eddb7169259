// Package budgetsync is the reconciliation engine: it moves transactions
// from Akahu into Actual Budget for imported accounts and corrects
// balances with adjustment entries for tracked accounts. One account's
// failure never stops the rest of a run.
package budgetsync

import (
	"context"
	"errors"
	"time"

	"github.com/dvloznov/budget-sync/internal/domain"
	"github.com/dvloznov/budget-sync/internal/logger"
	"github.com/dvloznov/budget-sync/internal/mapping"
	"github.com/dvloznov/budget-sync/internal/transform"
)

// Engine reconciles one mapping entry at a time.
type Engine struct {
	source      SourceService
	destination DestinationService
	ingester    Ingester
	watermarks  WatermarkStore
	dryRun      bool
	now         func() time.Time
}

// NewEngine wires the engine to its collaborators. With dryRun set, every
// write to the destination and to the watermark store is logged instead of
// performed.
func NewEngine(source SourceService, destination DestinationService, ingester Ingester, watermarks WatermarkStore, dryRun bool) *Engine {
	return &Engine{
		source:      source,
		destination: destination,
		ingester:    ingester,
		watermarks:  watermarks,
		dryRun:      dryRun,
		now:         time.Now,
	}
}

// SyncImported runs the imported-account path for one mapping entry:
// fetch since the watermark, transform, import, then advance the
// watermark. The watermark moves to the time the fetch started, and only
// after the import succeeded; an empty window leaves it untouched so
// late-settling source transactions are not skipped past.
func (e *Engine) SyncImported(ctx context.Context, entry mapping.Entry) (domain.AccountResult, error) {
	log := logger.FromContext(ctx).With().
		Str("akahu_id", entry.AkahuID).
		Str("actual_account_id", entry.ActualAccountID).
		Str("display_name", entry.DisplayName()).
		Logger()
	res := domain.AccountResult{
		SourceAccountID:      entry.AkahuID,
		DestinationAccountID: entry.ActualAccountID,
		DisplayName:          entry.DisplayName(),
		Mode:                 string(mapping.ModeImported),
	}

	since, err := e.watermarks.Get(entry.AkahuID)
	if err != nil {
		return res, err
	}

	fetchStart := e.now().UTC()
	txs, err := e.ingester.FetchSince(ctx, entry.AkahuID, since)
	if err != nil {
		return res, err
	}
	if len(txs) == 0 {
		log.Info().Msg("No new transactions; watermark left unchanged")
		return res, nil
	}

	entries := make([]domain.NormalizedEntry, 0, len(txs))
	for _, tx := range txs {
		normalized, err := transform.Normalize(tx, entry.ActualAccountID)
		if err != nil {
			var terr *transform.TransformError
			if errors.As(err, &terr) {
				log.Warn().Err(err).Str("transaction_id", tx.ID).Msg("Dropping transaction that failed to normalize")
				res.TransformFailures++
				continue
			}
			return res, err
		}
		entries = append(entries, normalized)
	}
	if len(entries) == 0 {
		log.Warn().Int("dropped", res.TransformFailures).Msg("Every transaction in the window failed to normalize; nothing to import")
		return res, nil
	}

	if e.dryRun {
		log.Info().Int("transactions", len(entries)).Msg("[DRY RUN] Would import transactions and advance watermark")
		return res, nil
	}

	result, err := e.destination.ImportTransactions(ctx, entry.ActualAccountID, entries)
	if err != nil {
		return res, &ImportError{AccountID: entry.ActualAccountID, Err: err}
	}

	res.Transactions = len(entries)
	for _, en := range entries {
		res.TotalAmount += en.Amount
	}

	// Import is committed; advance the watermark to the fetch start so
	// anything that settled mid-run is picked up next time.
	if err := e.watermarks.Set(entry.AkahuID, fetchStart); err != nil {
		// The import already happened; the next run re-fetches the same
		// window and the destination deduplicates on imported_id.
		return res, err
	}

	log.Info().
		Int("transactions", len(entries)).
		Int("added", result.Added).
		Int("updated", result.Updated).
		Int("skipped", result.Skipped).
		Int("transform_failures", res.TransformFailures).
		Time("watermark", fetchStart).
		Msg("Imported transactions and advanced watermark")

	return res, nil
}

// ReconcileTracked runs the tracked-account path for one mapping entry:
// compare balances and, when they differ, import exactly one adjustment
// entry closing the gap.
func (e *Engine) ReconcileTracked(ctx context.Context, entry mapping.Entry) (domain.AccountResult, error) {
	log := logger.FromContext(ctx).With().
		Str("akahu_id", entry.AkahuID).
		Str("actual_account_id", entry.ActualAccountID).
		Str("display_name", entry.DisplayName()).
		Logger()
	res := domain.AccountResult{
		SourceAccountID:      entry.AkahuID,
		DestinationAccountID: entry.ActualAccountID,
		DisplayName:          entry.DisplayName(),
		Mode:                 string(mapping.ModeTracked),
	}

	account, err := e.source.GetAccount(ctx, entry.AkahuID)
	if err != nil {
		return res, &ReconciliationError{AccountID: entry.AkahuID, Err: err}
	}
	sourceBalance := account.ToDomain().Balance

	destinationBalance, err := e.destination.GetAccountBalance(ctx, entry.ActualAccountID)
	if err != nil {
		return res, &ReconciliationError{AccountID: entry.ActualAccountID, Err: err}
	}

	if sourceBalance == destinationBalance {
		log.Info().Int64("balance", sourceBalance).Msg("Balances match; no adjustment needed")
		return res, nil
	}

	adjustment := transform.NewAdjustment(entry.ActualAccountID, sourceBalance, destinationBalance, e.now())

	if e.dryRun {
		log.Info().
			Int64("source_balance", sourceBalance).
			Int64("destination_balance", destinationBalance).
			Int64("adjustment", adjustment.Amount).
			Msg("[DRY RUN] Would import balance adjustment")
		return res, nil
	}

	if _, err := e.destination.ImportTransactions(ctx, entry.ActualAccountID, []domain.NormalizedEntry{adjustment}); err != nil {
		return res, &ImportError{AccountID: entry.ActualAccountID, Err: err}
	}

	res.Adjusted = true
	res.Transactions = 1
	res.TotalAmount = adjustment.Amount

	log.Info().
		Int64("source_balance", sourceBalance).
		Int64("destination_balance", destinationBalance).
		Int64("adjustment", adjustment.Amount).
		Msg("Imported balance adjustment")

	// Confirmation read; a lingering difference is reported, not retried.
	if confirmed, err := e.destination.GetAccountBalance(ctx, entry.ActualAccountID); err != nil {
		log.Debug().Err(err).Msg("Could not re-read balance after adjustment")
	} else if confirmed != sourceBalance {
		log.Warn().
			Int64("source_balance", sourceBalance).
			Int64("destination_balance", confirmed).
			Msg("Balance still differs after adjustment")
	}

	return res, nil
}
