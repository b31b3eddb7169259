package budgetsync

import "fmt"

// ImportError reports a destination import call that was rejected. The
// account's watermark is left untouched so the next run retries the same
// window.
type ImportError struct {
	AccountID string
	Err       error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("import into account %s: %v", e.AccountID, e.Err)
}

func (e *ImportError) Unwrap() error { return e.Err }

// ReconciliationError reports a failed balance fetch or comparison on a
// tracked account. It aborts that account's check only.
type ReconciliationError struct {
	AccountID string
	Err       error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("reconcile account %s: %v", e.AccountID, e.Err)
}

func (e *ReconciliationError) Unwrap() error { return e.Err }
