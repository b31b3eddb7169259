// Package actual is a client for the Actual Budget server's HTTP API, the
// destination ledger of the sync. The server deduplicates imported
// transactions on their imported_id, which is what makes re-running a sync
// window safe.
package actual

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/dvloznov/budget-sync/internal/domain"
	"github.com/dvloznov/budget-sync/internal/httpx"
)

// Config carries the connection settings for one budget file.
type Config struct {
	ServerURL     string
	Password      string
	EncryptionKey string
	SyncID        string
	Timeout       time.Duration
}

// Client talks to an Actual Budget server for a single budget file
// identified by its sync id.
type Client struct {
	cfg    Config
	base   string
	client *http.Client
}

// NewClient validates the config and returns a client. DownloadBudget must
// be called before any other operation so the server has the budget file
// loaded.
func NewClient(cfg Config) (*Client, error) {
	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("actual: server URL is required")
	}
	if cfg.SyncID == "" {
		return nil, fmt.Errorf("actual: sync id is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		cfg:    cfg,
		base:   cfg.ServerURL + "/v1/budgets/" + url.PathEscape(cfg.SyncID),
		client: &http.Client{Timeout: timeout},
	}, nil
}

func (c *Client) doRequest(ctx context.Context, method, u string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Api-Key", c.cfg.Password)
	if c.cfg.EncryptionKey != "" {
		req.Header.Set("Budget-Encryption-Password", c.cfg.EncryptionKey)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("actual api error %d: %s", resp.StatusCode, httpx.Truncate(data, 512))
	}
	return data, nil
}

// DownloadBudget asks the server to load the budget file for this sync id.
func (c *Client) DownloadBudget(ctx context.Context) error {
	if _, err := c.doRequest(ctx, http.MethodGet, c.base, nil); err != nil {
		return fmt.Errorf("DownloadBudget: %w", err)
	}
	return nil
}

// GetAccounts lists the budget's accounts with balances in minor units.
func (c *Client) GetAccounts(ctx context.Context) ([]domain.Account, error) {
	body, err := c.doRequest(ctx, http.MethodGet, c.base+"/accounts", nil)
	if err != nil {
		return nil, fmt.Errorf("GetAccounts: %w", err)
	}
	var out struct {
		Data []domain.Account `json:"data"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("GetAccounts: decoding response: %w", err)
	}
	return out.Data, nil
}

// GetAccountBalance returns the account's current balance in minor units.
func (c *Client) GetAccountBalance(ctx context.Context, accountID string) (int64, error) {
	body, err := c.doRequest(ctx, http.MethodGet, c.base+"/accounts/"+url.PathEscape(accountID)+"/balance", nil)
	if err != nil {
		return 0, fmt.Errorf("GetAccountBalance %s: %w", accountID, err)
	}
	var out struct {
		Data int64 `json:"data"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, fmt.Errorf("GetAccountBalance %s: decoding response: %w", accountID, err)
	}
	return out.Data, nil
}

// ImportTransactions posts a batch of entries to the account. The server
// matches entries on imported_id, so resubmitting a batch updates or skips
// rather than duplicating.
func (c *Client) ImportTransactions(ctx context.Context, accountID string, entries []domain.NormalizedEntry) (domain.ImportResult, error) {
	payload := struct {
		Transactions []domain.NormalizedEntry `json:"transactions"`
	}{Transactions: entries}

	body, err := c.doRequest(ctx, http.MethodPost, c.base+"/accounts/"+url.PathEscape(accountID)+"/transactions/import", payload)
	if err != nil {
		return domain.ImportResult{}, fmt.Errorf("ImportTransactions %s: %w", accountID, err)
	}
	var out struct {
		Data struct {
			Added   []string `json:"added"`
			Updated []string `json:"updated"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return domain.ImportResult{}, fmt.Errorf("ImportTransactions %s: decoding response: %w", accountID, err)
	}
	return domain.ImportResult{
		Added:   len(out.Data.Added),
		Updated: len(out.Data.Updated),
		Skipped: len(entries) - len(out.Data.Added) - len(out.Data.Updated),
	}, nil
}

// Shutdown releases client-side resources. The server keeps the budget
// loaded; there is nothing to tear down remotely.
func (c *Client) Shutdown(ctx context.Context) error {
	c.client.CloseIdleConnections()
	return nil
}
