// Package domain holds the value types shared across the sync engine.
package domain

import (
	"encoding/json"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Account is a ledger account as seen by the engine. Balance is in minor
// currency units (cents) regardless of which ledger it came from.
type Account struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Closed  bool   `json:"closed"`
	Balance int64  `json:"balance"`
}

// ExternalTransaction is a raw transaction record from the source ledger.
// Amount is in source currency units (dollars), signed: money in is
// positive. Raw carries the untouched payload for fields the engine does
// not interpret.
type ExternalTransaction struct {
	ID          string          `json:"_id"`
	AccountID   string          `json:"_account"`
	Date        time.Time       `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Raw         json.RawMessage `json:"-"`
}

// NormalizedEntry is a destination-ledger-ready transaction. Amount is in
// minor currency units with the destination's sign convention applied.
// ImportedID is the idempotency key the destination deduplicates on; it is
// empty only for entries that carry their own derived key semantics.
type NormalizedEntry struct {
	AccountID  string     `json:"account"`
	Date       civil.Date `json:"date"`
	Amount     int64      `json:"amount"`
	Payee      string     `json:"payee_name"`
	Notes      string     `json:"notes,omitempty"`
	ImportedID string     `json:"imported_id,omitempty"`
	Cleared    bool       `json:"cleared"`
}

// ImportResult summarizes one destination import call.
type ImportResult struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

// AccountResult records the outcome of one mapping entry in a run.
type AccountResult struct {
	SourceAccountID      string `json:"source_account_id"`
	DestinationAccountID string `json:"destination_account_id"`
	DisplayName          string `json:"display_name,omitempty"`
	Mode                 string `json:"mode"`

	// Transactions is the number of entries sent to the destination;
	// TotalAmount is their signed sum in minor units.
	Transactions      int   `json:"transactions"`
	TotalAmount       int64 `json:"total_amount"`
	TransformFailures int   `json:"transform_failures,omitempty"`
	Adjusted          bool  `json:"adjusted,omitempty"`

	Error string `json:"error,omitempty"`
}

// Failed reports whether this account's processing ended in an error.
func (r AccountResult) Failed() bool { return r.Error != "" }

// RunSummary aggregates the outcome of one full sync run.
type RunSummary struct {
	RunID    string          `json:"run_id"`
	Started  time.Time       `json:"started"`
	Finished time.Time       `json:"finished"`
	Results  []AccountResult `json:"results"`
	Failures int             `json:"failures"`
}

// TotalTransactions sums the imported entry counts across all accounts.
func (s RunSummary) TotalTransactions() int {
	total := 0
	for _, r := range s.Results {
		total += r.Transactions
	}
	return total
}

// TotalAmount sums the signed minor-unit totals across all accounts.
func (s RunSummary) TotalAmount() int64 {
	var total int64
	for _, r := range s.Results {
		total += r.TotalAmount
	}
	return total
}
