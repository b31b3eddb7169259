// Package ingest drives cursor pagination against the source ledger and
// materializes the complete transaction set for a sync window.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/budget-sync/internal/akahu"
	"github.com/dvloznov/budget-sync/internal/domain"
	"github.com/dvloznov/budget-sync/internal/logger"
)

// DefaultLookback is how far before the stored watermark the fetch window
// starts. Akahu settles some transactions late; the overlap re-fetches
// them and the destination's imported_id dedup drops the repeats.
const DefaultLookback = 7 * 24 * time.Hour

// Source lists one page of transactions for an account.
type Source interface {
	ListTransactions(ctx context.Context, accountID string, opts akahu.ListOptions) (*akahu.TransactionPage, error)
}

// IngestionError reports a failed or malformed page fetch. It aborts the
// whole account's sync for the run; the watermark is left untouched.
type IngestionError struct {
	AccountID string
	Err       error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingest account %s: %v", e.AccountID, e.Err)
}

func (e *IngestionError) Unwrap() error { return e.Err }

// Engine accumulates all pages of a windowed transaction listing.
type Engine struct {
	source   Source
	lookback time.Duration
	now      func() time.Time
}

// NewEngine creates an engine. lookback <= 0 selects DefaultLookback.
func NewEngine(source Source, lookback time.Duration) *Engine {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	return &Engine{source: source, lookback: lookback, now: time.Now}
}

// FetchSince returns every transaction for the account in the window
// [since - lookback, now], in server page order. Any page failing to fetch
// or arriving without an items field yields an IngestionError and no
// partial result.
func (e *Engine) FetchSince(ctx context.Context, accountID string, since time.Time) ([]domain.ExternalTransaction, error) {
	log := logger.FromContext(ctx)

	start := since.Add(-e.lookback)
	end := e.now().UTC()

	var all []domain.ExternalTransaction
	cursor := ""
	pages := 0
	for {
		page, err := e.source.ListTransactions(ctx, accountID, akahu.ListOptions{
			Start:  start,
			End:    end,
			Cursor: cursor,
		})
		if err != nil {
			return nil, &IngestionError{AccountID: accountID, Err: err}
		}
		if page.Items == nil {
			return nil, &IngestionError{AccountID: accountID, Err: fmt.Errorf("page %d has no items field", pages)}
		}
		all = append(all, *page.Items...)
		pages++

		if page.Cursor == nil || page.Cursor.Next == nil || *page.Cursor.Next == "" {
			break
		}
		cursor = *page.Cursor.Next
	}

	log.Info().
		Str("account_id", accountID).
		Time("window_start", start).
		Time("window_end", end).
		Int("pages", pages).
		Int("transactions", len(all)).
		Msg("Finished reading transactions from Akahu")

	return all, nil
}
