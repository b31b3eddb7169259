package mapping

import (
	"context"

	"github.com/dvloznov/budget-sync/internal/domain"
	"github.com/dvloznov/budget-sync/internal/logger"
)

// Validate filters the entries down to the ones the run can act on:
// skipped entries, entries referencing accounts absent from either live
// account list, and duplicate pairings are dropped with a warning. None of
// these are errors; the remaining entries are processed. At most one
// active entry survives per source account and per destination account.
func Validate(ctx context.Context, entries []Entry, sourceAccounts, destinationAccounts []domain.Account) []Entry {
	log := logger.FromContext(ctx)

	sourceByID := make(map[string]domain.Account, len(sourceAccounts))
	for _, a := range sourceAccounts {
		sourceByID[a.ID] = a
	}
	destByID := make(map[string]domain.Account, len(destinationAccounts))
	for _, a := range destinationAccounts {
		destByID[a.ID] = a
	}

	seenSource := make(map[string]bool)
	seenDest := make(map[string]bool)

	valid := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Mode == ModeSkipped {
			continue
		}
		if e.Mode != ModeImported && e.Mode != ModeTracked {
			log.Warn().
				Str("akahu_id", e.AkahuID).
				Str("mode", string(e.Mode)).
				Msg("Dropping mapping entry with unknown mode")
			continue
		}
		if _, ok := sourceByID[e.AkahuID]; !ok {
			log.Warn().
				Str("akahu_id", e.AkahuID).
				Str("display_name", e.DisplayName()).
				Msg("Dropping mapping entry: source account not in live account list")
			continue
		}
		dest, ok := destByID[e.ActualAccountID]
		if !ok {
			log.Warn().
				Str("actual_account_id", e.ActualAccountID).
				Str("display_name", e.DisplayName()).
				Msg("Dropping mapping entry: destination account not in live account list")
			continue
		}
		if dest.Closed {
			log.Warn().
				Str("actual_account_id", e.ActualAccountID).
				Str("display_name", e.DisplayName()).
				Msg("Dropping mapping entry: destination account is closed")
			continue
		}
		if seenSource[e.AkahuID] {
			log.Warn().
				Str("akahu_id", e.AkahuID).
				Msg("Dropping duplicate mapping entry for source account")
			continue
		}
		if seenDest[e.ActualAccountID] {
			log.Warn().
				Str("actual_account_id", e.ActualAccountID).
				Msg("Dropping duplicate mapping entry for destination account")
			continue
		}
		seenSource[e.AkahuID] = true
		seenDest[e.ActualAccountID] = true
		valid = append(valid, e)
	}

	return valid
}
