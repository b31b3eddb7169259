// Package akahu is a client for the Akahu bank-aggregation API, the source
// ledger of the sync.
package akahu

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/dvloznov/budget-sync/internal/httpx"
)

// Client talks to the Akahu REST API. Requests authenticate with the user
// token as a bearer token plus the app token in the X-Akahu-ID header.
type Client struct {
	endpoint  string
	userToken string
	appToken  string
	client    *http.Client
}

// NewClient creates a client for the given API endpoint, e.g.
// "https://api.akahu.io/v1".
func NewClient(endpoint, userToken, appToken string) *Client {
	return &Client{
		endpoint:  endpoint,
		userToken: userToken,
		appToken:  appToken,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

// doRequest does an authenticated GET and returns body bytes.
func (c *Client) doRequest(ctx context.Context, path string, query url.Values) ([]byte, error) {
	u := c.endpoint + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.userToken)
	req.Header.Set("X-Akahu-ID", c.appToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("akahu api error %d: %s", resp.StatusCode, httpx.Truncate(body, 512))
	}
	return body, nil
}

// ListAccounts returns all accounts visible to the user token.
func (c *Client) ListAccounts(ctx context.Context) ([]Account, error) {
	body, err := c.doRequest(ctx, "/accounts", nil)
	if err != nil {
		return nil, fmt.Errorf("ListAccounts: %w", err)
	}
	var out struct {
		Items []Account `json:"items"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("ListAccounts: decoding response: %w", err)
	}
	return out.Items, nil
}

// GetAccount returns a single account, including its current balance.
func (c *Client) GetAccount(ctx context.Context, accountID string) (*Account, error) {
	body, err := c.doRequest(ctx, "/accounts/"+url.PathEscape(accountID), nil)
	if err != nil {
		return nil, fmt.Errorf("GetAccount %s: %w", accountID, err)
	}
	var out struct {
		Item *Account `json:"item"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("GetAccount %s: decoding response: %w", accountID, err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("GetAccount %s: response has no item", accountID)
	}
	return out.Item, nil
}

// ListTransactions returns one page of transactions for the account within
// the window in opts. Callers follow Cursor.Next until it is nil.
func (c *Client) ListTransactions(ctx context.Context, accountID string, opts ListOptions) (*TransactionPage, error) {
	query := url.Values{}
	if !opts.Start.IsZero() {
		query.Set("start", opts.Start.UTC().Format(time.RFC3339))
	}
	if !opts.End.IsZero() {
		query.Set("end", opts.End.UTC().Format(time.RFC3339))
	}
	if opts.Cursor != "" {
		query.Set("cursor", opts.Cursor)
	}

	body, err := c.doRequest(ctx, "/accounts/"+url.PathEscape(accountID)+"/transactions", query)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions %s: %w", accountID, err)
	}
	var page TransactionPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("ListTransactions %s: decoding response: %w", accountID, err)
	}
	return &page, nil
}
