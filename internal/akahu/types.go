package akahu

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/budget-sync/internal/domain"
)

// Account is an Akahu account as returned by GET /accounts.
type Account struct {
	ID      string  `json:"_id"`
	Name    string  `json:"name"`
	Status  string  `json:"status"`
	Balance Balance `json:"balance"`
}

// Balance carries the current balance in source currency units.
type Balance struct {
	Current  decimal.Decimal `json:"current"`
	Currency string          `json:"currency"`
}

// ToDomain converts the account to the engine's shape, with the balance in
// minor units.
func (a Account) ToDomain() domain.Account {
	return domain.Account{
		ID:      a.ID,
		Name:    a.Name,
		Closed:  a.Status == "INACTIVE",
		Balance: a.Balance.Current.Mul(decimal.NewFromInt(100)).Round(0).IntPart(),
	}
}

// ListOptions narrows a transaction listing to a time window and carries
// the continuation cursor between pages.
type ListOptions struct {
	Start  time.Time
	End    time.Time
	Cursor string
}

// TransactionPage is one page of a paginated transaction listing. Items is
// a pointer so a response missing the field entirely can be told apart
// from an empty page.
type TransactionPage struct {
	Items  *[]domain.ExternalTransaction `json:"items"`
	Cursor *PageCursor                   `json:"cursor"`
}

// PageCursor holds the continuation cursor; Next is nil on the last page.
type PageCursor struct {
	Next *string `json:"next"`
}
