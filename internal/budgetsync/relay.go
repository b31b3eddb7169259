package budgetsync

import (
	"context"
	"fmt"

	"github.com/dvloznov/budget-sync/internal/domain"
	"github.com/dvloznov/budget-sync/internal/logger"
	"github.com/dvloznov/budget-sync/internal/mapping"
	"github.com/dvloznov/budget-sync/internal/transform"
)

// WebhookRelay imports single transactions pushed by the source ledger's
// webhook, outside the windowed sync. It reuses the same transform and
// idempotency key, so a webhook delivery followed by the next scheduled
// run cannot duplicate the transaction.
type WebhookRelay struct {
	destination DestinationService
	load        func() ([]mapping.Entry, error)
}

// NewWebhookRelay creates a relay. load returns the current mapping
// entries and is called on every delivery, so mapping edits take effect
// without a restart. Only imported-mode entries are relayed; tracked and
// skipped accounts are ignored.
func NewWebhookRelay(destination DestinationService, load func() ([]mapping.Entry, error)) *WebhookRelay {
	return &WebhookRelay{destination: destination, load: load}
}

// ImportWebhookTransaction imports one pushed transaction. Transactions
// for unmapped accounts are ignored, not errors: the webhook fires for
// every account the token can see.
func (r *WebhookRelay) ImportWebhookTransaction(ctx context.Context, tx domain.ExternalTransaction) error {
	log := logger.FromContext(ctx)

	entries, err := r.load()
	if err != nil {
		return fmt.Errorf("relay: loading mapping: %w", err)
	}

	var entry mapping.Entry
	found := false
	for _, e := range entries {
		if e.Mode == mapping.ModeImported && e.AkahuID == tx.AccountID {
			entry = e
			found = true
			break
		}
	}
	if !found {
		log.Info().
			Str("akahu_id", tx.AccountID).
			Str("transaction_id", tx.ID).
			Msg("Ignoring webhook transaction for unmapped account")
		return nil
	}

	normalized, err := transform.Normalize(tx, entry.ActualAccountID)
	if err != nil {
		return err
	}
	if _, err := r.destination.ImportTransactions(ctx, entry.ActualAccountID, []domain.NormalizedEntry{normalized}); err != nil {
		return &ImportError{AccountID: entry.ActualAccountID, Err: err}
	}

	log.Info().
		Str("transaction_id", tx.ID).
		Str("actual_account_id", entry.ActualAccountID).
		Msg("Imported webhook transaction")
	return nil
}
