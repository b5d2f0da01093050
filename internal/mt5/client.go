package mt5

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

var (
	// ErrUpstreamUnavailable covers network failures and non-2xx responses
	// from the provider. Callers decide whether the failure is fatal.
	ErrUpstreamUnavailable = errors.New("mt5 provider unavailable")

	// ErrQuotaExceeded is returned when the provider rejects a deploy for
	// billing or quota reasons (HTTP 402).
	ErrQuotaExceeded = errors.New("mt5 provider quota exceeded")
)

// Client talks to the MT5 bridge provisioning and data API.
// All configuration is injected at construction; there are no package-level
// endpoints or credentials.
type Client struct {
	baseURL     string
	apiToken    string
	httpClient  *http.Client
	statusCache *statusCache
}

// NewClient creates an MT5 bridge client. statusTTL bounds how long a
// deployment-status response may be served from cache.
func NewClient(baseURL, apiToken string, timeout, statusTTL time.Duration) (*Client, error) {
	cache, err := newStatusCache(statusTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create status cache: %w", err)
	}

	return &Client{
		baseURL:     baseURL,
		apiToken:    apiToken,
		httpClient:  &http.Client{Timeout: timeout},
		statusCache: cache,
	}, nil
}

// GetDeploymentStatus fetches the deployment and connection state of an
// account. Recent results are served from cache.
func (c *Client) GetDeploymentStatus(ctx context.Context, externalID string) (*DeploymentStatus, error) {
	if status, ok := c.statusCache.get(externalID); ok {
		return status, nil
	}

	var status DeploymentStatus
	path := fmt.Sprintf("/users/current/accounts/%s", url.PathEscape(externalID))
	if err := c.do(ctx, http.MethodGet, path, nil, &status); err != nil {
		return nil, err
	}

	c.statusCache.set(externalID, &status)
	return &status, nil
}

// InvalidateStatus drops any cached deployment status for the account.
// Called after a redeploy so the next check sees the fresh state.
func (c *Client) InvalidateStatus(externalID string) {
	c.statusCache.del(externalID)
}

// GetAccountInfo fetches live balance and equity. Only meaningful when the
// account is DEPLOYED; callers tolerate failure by zero-filling.
func (c *Client) GetAccountInfo(ctx context.Context, externalID string) (*AccountInfo, error) {
	var info AccountInfo
	path := fmt.Sprintf("/users/current/accounts/%s/account-information", url.PathEscape(externalID))
	if err := c.do(ctx, http.MethodGet, path, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// GetDealHistory fetches historical deals in [start, end). Callers tolerate
// failure by treating history as empty.
func (c *Client) GetDealHistory(ctx context.Context, externalID string, start, end time.Time) ([]Deal, error) {
	var deals []Deal
	path := fmt.Sprintf("/users/current/accounts/%s/history-deals/time/%s/%s",
		url.PathEscape(externalID),
		url.PathEscape(start.UTC().Format(time.RFC3339)),
		url.PathEscape(end.UTC().Format(time.RFC3339)),
	)
	if err := c.do(ctx, http.MethodGet, path, nil, &deals); err != nil {
		return nil, err
	}
	return deals, nil
}

// CreateDeployment provisions a new MT5 deployment and returns its external
// id. A 402 from the provider surfaces as ErrQuotaExceeded.
func (c *Client) CreateDeployment(ctx context.Context, nickname string) (string, error) {
	payload := map[string]string{"name": nickname}

	var created struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/users/current/accounts", payload, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

// Redeploy asks the provider to redeploy an existing account
func (c *Client) Redeploy(ctx context.Context, externalID string) error {
	path := fmt.Sprintf("/users/current/accounts/%s/deploy", url.PathEscape(externalID))
	if err := c.do(ctx, http.MethodPost, path, nil, nil); err != nil {
		return err
	}
	c.statusCache.del(externalID)
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("auth-token", c.apiToken)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading response: %v", ErrUpstreamUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusPaymentRequired:
		return fmt.Errorf("%w: %s", ErrQuotaExceeded, string(respBody))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("%w: status %d: %s", ErrUpstreamUnavailable, resp.StatusCode, string(respBody))
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%w: decoding response: %v", ErrUpstreamUnavailable, err)
	}
	return nil
}
