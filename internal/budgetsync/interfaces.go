package budgetsync

import (
	"context"
	"time"

	"github.com/dvloznov/budget-sync/internal/akahu"
	"github.com/dvloznov/budget-sync/internal/domain"
)

// SourceService is the slice of the Akahu API the engine needs.
// This interface enables mocking and testing of source ledger operations.
type SourceService interface {
	// ListAccounts returns all accounts visible to the user token.
	ListAccounts(ctx context.Context) ([]akahu.Account, error)

	// GetAccount returns one account with its current balance.
	GetAccount(ctx context.Context, accountID string) (*akahu.Account, error)
}

// DestinationService is the slice of the Actual Budget API the engine
// needs. ImportTransactions must be idempotent on each entry's ImportedID.
type DestinationService interface {
	// GetAccounts lists the budget's accounts, balances in minor units.
	GetAccounts(ctx context.Context) ([]domain.Account, error)

	// GetAccountBalance returns one account's balance in minor units.
	GetAccountBalance(ctx context.Context, accountID string) (int64, error)

	// ImportTransactions posts a batch; the server deduplicates on
	// imported_id.
	ImportTransactions(ctx context.Context, accountID string, entries []domain.NormalizedEntry) (domain.ImportResult, error)
}

// Ingester materializes the full transaction set for an account since a
// watermark.
type Ingester interface {
	FetchSince(ctx context.Context, accountID string, since time.Time) ([]domain.ExternalTransaction, error)
}

// WatermarkStore reads and advances per-account sync watermarks.
type WatermarkStore interface {
	Get(accountID string) (time.Time, error)
	Set(accountID string, ts time.Time) error
}
