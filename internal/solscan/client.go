package solscan

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

var ErrNotFound = errors.New("not found")

// Client is a Solscan public API client
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a new Solscan client. rps bounds the request rate;
// values <= 0 disable pacing.
func NewClient(baseURL, apiKey string, rps float64) *Client {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter: rate.NewLimiter(limit, 1),
	}
}

func (c *Client) doRequest(ctx context.Context, method, path string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("token", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, truncate(string(data), 200))
	}

	return data, nil
}

// RecentTransactions returns up to limit most recent transactions touching address
func (c *Client) RecentTransactions(ctx context.Context, address string, limit int) ([]TxSummary, error) {
	q := url.Values{}
	q.Set("account", address)
	q.Set("limit", strconv.Itoa(limit))

	data, err := c.doRequest(ctx, http.MethodGet, "/account/transactions?"+q.Encode())
	if err != nil {
		return nil, err
	}

	txs, err := decodeSummaries(data)
	if err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	return txs, nil
}

// TransactionDetail returns the full detail of one transaction
func (c *Client) TransactionDetail(ctx context.Context, signature string) (*TxDetail, error) {
	data, err := c.doRequest(ctx, http.MethodGet, "/transaction/"+url.PathEscape(signature))
	if err != nil {
		return nil, err
	}

	detail, err := ParseDetail(signature, data)
	if err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	return detail, nil
}

// decodeSummaries accepts either a bare array or an object wrapping the
// array in "data".
func decodeSummaries(data []byte) ([]TxSummary, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var txs []TxSummary
		if err := json.Unmarshal(trimmed, &txs); err != nil {
			return nil, err
		}
		return txs, nil
	}

	var wrapped struct {
		Data []TxSummary `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, err
	}
	return wrapped.Data, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
