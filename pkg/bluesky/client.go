// Package bluesky is a minimal AT Protocol client for reading post records.
package bluesky

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/iconidentify/vidembed/internal/domain"
)

const defaultServiceURL = "https://bsky.social"

// Config holds client settings.
type Config struct {
	// ServiceURL is the PDS or AppView answering com.atproto.repo.getRecord.
	ServiceURL    string
	UserAgent     string
	RetryAttempts uint
	RetryDelay    time.Duration
}

// Client fetches post records from the Bluesky network.
type Client struct {
	serviceURL string
	userAgent  string
	attempts   uint
	delay      time.Duration
	httpClient *http.Client
}

// NewClient creates a new client. A nil httpClient gets a 10 second timeout.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	if cfg.ServiceURL == "" {
		cfg.ServiceURL = defaultServiceURL
	}
	if cfg.RetryAttempts == 0 {
		cfg.RetryAttempts = 1
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		serviceURL: strings.TrimRight(cfg.ServiceURL, "/"),
		userAgent:  cfg.UserAgent,
		attempts:   cfg.RetryAttempts,
		delay:      cfg.RetryDelay,
		httpClient: httpClient,
	}
}

// GetPost fetches an app.bsky.feed.post record by repository (handle or DID)
// and record key. A missing record returns domain.ErrPostNotFound; transport
// failures and unexpected statuses return domain.ErrUpstreamUnavailable.
func (c *Client) GetPost(ctx context.Context, repo, rkey string) (*domain.PostRecord, error) {
	q := url.Values{}
	q.Set("repo", repo)
	q.Set("collection", domain.PostCollection)
	q.Set("rkey", rkey)
	endpoint := c.serviceURL + "/xrpc/com.atproto.repo.getRecord?" + q.Encode()

	resp, err := retry.DoWithData(
		func() (*getRecordResponse, error) {
			return c.getRecord(ctx, endpoint)
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRetryable),
	)
	if err != nil {
		return nil, err
	}

	return resp.toDomain()
}

func (c *Client) getRecord(ctx context.Context, endpoint string) (*getRecordResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: send request: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", domain.ErrUpstreamUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var xerr xrpcError
		_ = json.Unmarshal(respBody, &xerr)
		if resp.StatusCode == http.StatusNotFound || xerr.Error == "RecordNotFound" {
			return nil, domain.ErrPostNotFound
		}
		return nil, &apiError{status: resp.StatusCode, detail: xerr.describe(respBody)}
	}

	var result getRecordResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("%w: unmarshal response: %v", domain.ErrUpstreamUnavailable, err)
	}
	return &result, nil
}

type xrpcError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (e xrpcError) describe(raw []byte) string {
	if e.Error == "" {
		return string(raw)
	}
	if e.Message == "" {
		return e.Error
	}
	return e.Error + ": " + e.Message
}

// apiError is a non-2xx XRPC answer other than a missing record.
type apiError struct {
	status int
	detail string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%s: API error (status %d): %s", domain.ErrUpstreamUnavailable, e.status, e.detail)
}

func (e *apiError) Is(target error) bool {
	return target == domain.ErrUpstreamUnavailable
}

// isRetryable retries transport failures, 429 and 5xx. A 4xx such as
// InvalidRequest for an unknown handle answers the same on every attempt.
func isRetryable(err error) bool {
	if !retry.IsRecoverable(err) || errors.Is(err, domain.ErrPostNotFound) {
		return false
	}
	var ae *apiError
	if errors.As(err, &ae) {
		return ae.status == http.StatusTooManyRequests || ae.status >= 500
	}
	return !errors.Is(err, context.Canceled)
}
