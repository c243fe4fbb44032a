// Package client is a Go client for the ledger HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"token-ledger/internal/domain"
	"token-ledger/internal/host"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 500 * time.Millisecond
	DefaultMaxDelay    = 5 * time.Second
	DefaultBackoffMult = 2.0
)

// Client talks to a ledger server.
type Client struct {
	baseURL     string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
}

// Option configures Client.
type Option func(*Client)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts for reads.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

// New creates a client for the server at baseURL (e.g. http://localhost:8080).
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a rejection reported by the server.
type APIError struct {
	Status  int
	Kind    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ledger API %d: %s", e.Status, e.Message)
}

// Unwrap maps the reported kind back to its domain error, so callers can
// use errors.Is(err, domain.ErrOverdrawn).
func (e *APIError) Unwrap() error {
	for _, kind := range domain.Kinds {
		if domain.KindName(kind) == e.Kind {
			return kind
		}
	}
	return nil
}

// Apply submits an action and returns its receipt. Actions are not retried:
// a lost response may still have been committed.
func (c *Client) Apply(ctx context.Context, action domain.Action) (*host.Receipt, error) {
	var receipt host.Receipt
	if err := c.do(ctx, http.MethodPost, "/v1/actions", action, &receipt, 0); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// RegisterAccount registers an account.
func (c *Client) RegisterAccount(ctx context.Context, id domain.AccountID) error {
	return c.do(ctx, http.MethodPost, "/v1/accounts", map[string]domain.AccountID{"account": id}, nil, 0)
}

// Token is the server's view of one token.
type Token struct {
	Symbol    string        `json:"symbol"`
	Supply    domain.Amount `json:"supply"`
	MaxSupply domain.Amount `json:"max_supply"`
	Issuer    string        `json:"issuer"`
}

// GetToken retrieves the stats of a symbol, given as "<precision>,<CODE>" or
// a bare code naming a single created symbol.
func (c *Client) GetToken(ctx context.Context, symbol string) (*Token, error) {
	var tok Token
	if err := c.get(ctx, "/v1/tokens/"+url.PathEscape(symbol), &tok); err != nil {
		return nil, err
	}
	return &tok, nil
}

// GetSupply retrieves the circulating supply of a symbol.
func (c *Client) GetSupply(ctx context.Context, symbol string) (domain.Amount, error) {
	var resp struct {
		Supply domain.Amount `json:"supply"`
	}
	if err := c.get(ctx, "/v1/tokens/"+url.PathEscape(symbol)+"/supply", &resp); err != nil {
		return domain.Amount{}, err
	}
	return resp.Supply, nil
}

// GetBalance retrieves the balance of owner in a symbol (zero when none is held).
func (c *Client) GetBalance(ctx context.Context, owner domain.AccountID, symbol string) (domain.Amount, error) {
	var resp struct {
		Balance domain.Amount `json:"balance"`
	}
	path := "/v1/accounts/" + url.PathEscape(string(owner)) + "/balances/" + url.PathEscape(symbol)
	if err := c.get(ctx, path, &resp); err != nil {
		return domain.Amount{}, err
	}
	return resp.Balance, nil
}

// GetJournal retrieves journal records, filtered by account when set.
func (c *Client) GetJournal(ctx context.Context, account domain.AccountID) ([]*domain.ActionRecord, error) {
	path := "/v1/journal"
	if account != "" {
		path += "?account=" + url.QueryEscape(string(account))
	}
	var records []*domain.ActionRecord
	if err := c.get(ctx, path, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (c *Client) get(ctx context.Context, path string, result any) error {
	return c.do(ctx, http.MethodGet, path, nil, result, c.maxRetries)
}

// do performs a request with retries and exponential backoff. Only transport
// failures, 429 and 5xx are retried; API rejections are returned at once.
func (c *Client) do(ctx context.Context, method, path string, in, result any, retries int) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			// Exponential backoff
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			lastErr = decodeError(resp.StatusCode, respBody)
			continue
		}
		if resp.StatusCode >= http.StatusBadRequest {
			return decodeError(resp.StatusCode, respBody)
		}

		if result != nil {
			if err := json.Unmarshal(respBody, result); err != nil {
				return fmt.Errorf("unmarshal response: %w", err)
			}
		}
		return nil
	}

	if retries == 0 {
		return lastErr
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func decodeError(status int, body []byte) error {
	var resp struct {
		Error string `json:"error"`
		Kind  string `json:"kind"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || resp.Error == "" {
		return &APIError{Status: status, Kind: "unknown", Message: strings.TrimSpace(string(body))}
	}
	return &APIError{Status: status, Kind: resp.Kind, Message: resp.Error}
}
