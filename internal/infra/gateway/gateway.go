// Package gateway is the HTTP client for the server of record.
//
// Error taxonomy matters more than transport detail here: a transport
// failure or timeout means "treat the terminal as offline" and is
// reported as domain.ErrUnreachable; a structured non-2xx response is
// a business rejection (domain.ErrRejected) and is never retried.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tillsync/tillsync/internal/domain"
)

// Client talks to the remote transaction API.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a gateway client with a bounded per-request timeout.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// HealthURL returns the endpoint the connectivity prober should poll.
func (c *Client) HealthURL() string {
	return c.baseURL + "/health"
}

// ─── Wire types ─────────────────────────────────────────────────────────────

type errorBody struct {
	Error string `json:"error"`
}

type batchRequest struct {
	Transactions []*domain.Transaction `json:"transactions"`
}

type batchResponse struct {
	Results []domain.SyncResult `json:"results"`
}

// ─── Operations ─────────────────────────────────────────────────────────────

// Submit sends a single transaction to POST /transactions.
func (c *Client) Submit(ctx context.Context, tx *domain.Transaction) error {
	resp, err := c.post(ctx, "/transactions", tx)
	if err != nil {
		return fmt.Errorf("submit %s: %w", tx.ID, domain.ErrUnreachable)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	// Non-2xx with a structured error is a business rejection; the
	// sale would fail the same way on every retry.
	var eb errorBody
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(body, &eb); err == nil && eb.Error != "" {
		return fmt.Errorf("submit %s: %s: %w", tx.ID, eb.Error, domain.ErrRejected)
	}
	if resp.StatusCode >= 500 {
		// Server fell over without a structured verdict; treat like a
		// transport failure so the sale is queued, not lost.
		return fmt.Errorf("submit %s: status %d: %w", tx.ID, resp.StatusCode, domain.ErrUnreachable)
	}
	return fmt.Errorf("submit %s: status %d: %w", tx.ID, resp.StatusCode, domain.ErrRejected)
}

// SubmitBatch sends queued transactions to POST /transactions/sync and
// returns one verdict per submitted id. The request is keyed by id so
// the server can deduplicate retried submissions.
func (c *Client) SubmitBatch(ctx context.Context, txs []*domain.Transaction) ([]domain.SyncResult, error) {
	resp, err := c.post(ctx, "/transactions/sync", batchRequest{Transactions: txs})
	if err != nil {
		return nil, fmt.Errorf("batch sync: %w", domain.ErrUnreachable)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("batch sync: status %d: %w", resp.StatusCode, domain.ErrUnreachable)
	}

	var br batchResponse
	if err := json.NewDecoder(resp.Body).Decode(&br); err != nil {
		return nil, fmt.Errorf("batch sync: decode response: %w", domain.ErrUnreachable)
	}
	return br.Results, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.http.Do(req)
}
