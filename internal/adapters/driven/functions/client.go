// Package functions invokes deployed sync functions over HTTP so a run can be
// driven against a remote deployment.
package functions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/petjet/petjet-sync/internal/core/domain"
	"github.com/petjet/petjet-sync/internal/core/ports/driving"
)

// Verify interface compliance
var _ driving.SyncInvoker = (*Client)(nil)

// DefaultTimeout covers one chunk including its upstream retries.
const DefaultTimeout = 5 * time.Minute

const functionsPath = "/functions/v1/"

// Config holds function client configuration.
type Config struct {
	BaseURL    string
	APIKey     string // Sent as a bearer token when set
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client implements driving.SyncInvoker against POST /functions/v1/{function}.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient creates a function client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: functions base URL is required", domain.ErrInvalidInput)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    httpClient,
	}, nil
}

type errorBody struct {
	Error string `json:"error"`
}

// Invoke runs one chunk of syncType on the remote deployment.
//
// A 500 carrying a failure envelope is returned together with an error, the
// same way the in-process controller reports a chunk-fatal failure.
func (c *Client) Invoke(ctx context.Context, syncType domain.SyncType, req domain.InvocationRequest) (*domain.InvocationResponse, error) {
	function := syncType.FunctionName()
	if function == "" {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownSyncType, syncType)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode invocation: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+functionsPath+function, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: invoke %s: %w", domain.ErrServiceUnavailable, function, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s response: %w", domain.ErrServiceUnavailable, function, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		var out domain.InvocationResponse
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("decode %s response: %w", function, err)
		}
		return &out, nil

	case resp.StatusCode == http.StatusInternalServerError:
		var out domain.InvocationResponse
		if err := json.Unmarshal(raw, &out); err == nil && out.Progress.NextOffset != nil {
			return &out, fmt.Errorf("%s: %w: %s", function, domain.ErrBatchFailed, out.Error)
		}
	}

	return nil, fmt.Errorf("%s: %w", function, statusError(resp.StatusCode, raw))
}

// statusError maps a non-success status back to the domain error the server translated.
func statusError(status int, raw []byte) error {
	var body errorBody
	_ = json.Unmarshal(raw, &body)
	msg := body.Error
	if msg == "" {
		msg = http.StatusText(status)
	}

	var sentinel error
	switch status {
	case http.StatusBadRequest:
		sentinel = domain.ErrInvalidInput
	case http.StatusNotFound:
		sentinel = domain.ErrUnknownSyncType
	case http.StatusConflict:
		sentinel = domain.ErrStaleResumeToken
	case http.StatusPreconditionFailed:
		sentinel = domain.ErrMissingCredentials
	case http.StatusTooManyRequests:
		sentinel = domain.ErrRateLimited
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		sentinel = domain.ErrServiceUnavailable
	default:
		return fmt.Errorf("unexpected status %d: %s", status, msg)
	}
	if errors.Is(sentinel, domain.ErrServiceUnavailable) || errors.Is(sentinel, domain.ErrRateLimited) {
		return fmt.Errorf("%w: %s", sentinel, msg)
	}
	return domain.Permanent(fmt.Errorf("%w: %s", sentinel, msg))
}
