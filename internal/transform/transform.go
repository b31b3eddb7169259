// Package transform converts raw Akahu transactions into Actual-ready
// entries and builds the synthetic balance-adjustment entries used for
// tracked accounts. Everything here is pure: no I/O, no clocks except the
// timestamp callers pass in.
package transform

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/budget-sync/internal/domain"
)

// AdjustmentPayee is the sentinel payee on balance-adjustment entries.
const AdjustmentPayee = "Balance Adjustment"

// adjustmentNamespace seeds the deterministic UUIDv5 keys for adjustment
// entries so a re-run on the same day at the same delta cannot import a
// second adjustment.
var adjustmentNamespace = uuid.MustParse("b51ccd78-3f3b-4c86-9e5f-2b7a64c0d1aa")

var hundred = decimal.NewFromInt(100)

// maxMinorUnits bounds the cents value so the int64 conversion is exact.
var maxMinorUnits = decimal.NewFromInt(1<<62 - 1)

// TransformError reports a source transaction that cannot be normalized.
// The entry is dropped and counted; the rest of the batch continues.
type TransformError struct {
	TransactionID string
	Reason        string
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transform transaction %q: %s", e.TransactionID, e.Reason)
}

// Normalize converts one Akahu transaction into a destination entry for
// the given Actual account.
//
// Amount: the source amount (dollars, money in positive) is converted to
// minor units and the sign is flipped exactly once, here and nowhere else,
// to match the destination's import convention.
//
// ImportedID is the Akahu transaction id verbatim. It is the sole
// idempotency mechanism: the same source transaction always produces the
// same key, so reimports never duplicate.
func Normalize(tx domain.ExternalTransaction, destinationAccountID string) (domain.NormalizedEntry, error) {
	if tx.ID == "" {
		return domain.NormalizedEntry{}, &TransformError{TransactionID: tx.ID, Reason: "missing transaction id"}
	}
	if tx.Date.IsZero() {
		return domain.NormalizedEntry{}, &TransformError{TransactionID: tx.ID, Reason: "missing date"}
	}

	cents := tx.Amount.Mul(hundred).Round(0)
	if cents.Abs().GreaterThan(maxMinorUnits) {
		return domain.NormalizedEntry{}, &TransformError{
			TransactionID: tx.ID,
			Reason:        fmt.Sprintf("amount %s out of range", tx.Amount),
		}
	}

	return domain.NormalizedEntry{
		AccountID:  destinationAccountID,
		Date:       civil.DateOf(tx.Date.UTC()),
		Amount:     -cents.IntPart(),
		Payee:      tx.Description,
		Notes:      "Akahu transaction: " + tx.Description,
		ImportedID: tx.ID,
		Cleared:    true,
	}, nil
}

// NewAdjustment builds the single entry that brings a tracked account's
// destination balance in line with the source. Both balances are in minor
// units; the entry's amount is their difference, unflipped. The imported
// id is derived from account, date and delta, so the destination drops a
// repeat of the same correction.
func NewAdjustment(destinationAccountID string, sourceBalance, destinationBalance int64, at time.Time) domain.NormalizedEntry {
	delta := sourceBalance - destinationBalance
	date := civil.DateOf(at.UTC())
	key := uuid.NewSHA1(adjustmentNamespace,
		[]byte(fmt.Sprintf("adjustment:%s:%s:%d", destinationAccountID, date, delta)))

	return domain.NormalizedEntry{
		AccountID: destinationAccountID,
		Date:      date,
		Amount:    delta,
		Payee:     AdjustmentPayee,
		Notes: fmt.Sprintf("Adjusted from %s to %s to reconcile tracking account.",
			formatMinor(destinationBalance), formatMinor(sourceBalance)),
		ImportedID: key.String(),
		Cleared:    true,
	}
}

func formatMinor(v int64) string {
	return decimal.New(v, -2).StringFixed(2)
}
