// Package flightapi looks up airline and airport reference data from a
// flight-search REST API authenticated with OAuth2 client credentials.
package flightapi

import (
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

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"github.com/petjet/petjet-sync/internal/core/domain"
	"github.com/petjet/petjet-sync/internal/core/ports/driven"
)

// Verify interface compliance
var (
	_ driven.FlightDataProvider = (*Client)(nil)
	_ driven.Preflighter        = (*Client)(nil)
)

const (
	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRequestsPerSecond keeps well below the provider's test-tier quota.
	DefaultRequestsPerSecond = 5.0

	tokenPath    = "/v1/security/oauth2/token"
	airlinesPath = "/v1/reference-data/airlines"
	locationPath = "/v1/reference-data/locations"
)

// Config holds flight API client configuration.
type Config struct {
	BaseURL           string
	ClientID          string
	ClientSecret      string
	Timeout           time.Duration
	RequestsPerSecond float64
	HTTPClient        *http.Client
}

// Client implements driven.FlightDataProvider.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  *TokenCache
	limiter *rate.Limiter
	ready   bool
}

// NewClient creates a flight API client. Missing credentials are not an
// error here; Preflight reports them before any sync work starts.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = DefaultRequestsPerSecond
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		baseURL: baseURL,
		http:    httpClient,
		tokens: NewTokenCache(&clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     baseURL + tokenPath,
			AuthStyle:    oauth2.AuthStyleInParams,
		}),
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		ready:   baseURL != "" && cfg.ClientID != "" && cfg.ClientSecret != "",
	}
}

// Preflight fails with domain.ErrMissingCredentials when the client is not configured.
func (c *Client) Preflight(ctx context.Context) error {
	if !c.ready {
		return fmt.Errorf("%w: flight API base URL, client ID and client secret are required", domain.ErrMissingCredentials)
	}
	return nil
}

// Ping verifies credentials by fetching a token.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.Preflight(ctx); err != nil {
		return err
	}
	_, err := c.token(ctx)
	return err
}

type airlineResponse struct {
	Data []struct {
		IATACode     string `json:"iataCode"`
		ICAOCode     string `json:"icaoCode"`
		BusinessName string `json:"businessName"`
		CommonName   string `json:"commonName"`
	} `json:"data"`
}

// Airline returns reference data for an IATA carrier code.
func (c *Client) Airline(ctx context.Context, iataCode string) (*domain.Airline, error) {
	var resp airlineResponse
	q := url.Values{"airlineCodes": {iataCode}}
	if err := c.get(ctx, airlinesPath, q, &resp); err != nil {
		return nil, fmt.Errorf("airline %s: %w", iataCode, err)
	}
	if len(resp.Data) == 0 {
		return nil, domain.Permanent(fmt.Errorf("airline %s: %w", iataCode, domain.ErrNotFound))
	}

	d := resp.Data[0]
	name := d.CommonName
	if name == "" {
		name = d.BusinessName
	}
	return &domain.Airline{
		IATACode: d.IATACode,
		ICAOCode: d.ICAOCode,
		Name:     name,
		Active:   true,
	}, nil
}

type locationResponse struct {
	Data []struct {
		IATACode string `json:"iataCode"`
		Name     string `json:"name"`
		Address  struct {
			CityName    string `json:"cityName"`
			CountryCode string `json:"countryCode"`
		} `json:"address"`
		GeoCode struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"geoCode"`
		TimeZoneOffset string `json:"timeZoneOffset"`
	} `json:"data"`
}

// Airport returns reference data for an IATA airport code.
func (c *Client) Airport(ctx context.Context, iataCode string) (*domain.Airport, error) {
	var resp locationResponse
	q := url.Values{"subType": {"AIRPORT"}, "keyword": {iataCode}}
	if err := c.get(ctx, locationPath, q, &resp); err != nil {
		return nil, fmt.Errorf("airport %s: %w", iataCode, err)
	}

	for _, d := range resp.Data {
		if !strings.EqualFold(d.IATACode, iataCode) {
			continue
		}
		return &domain.Airport{
			IATACode:  d.IATACode,
			Name:      d.Name,
			City:      d.Address.CityName,
			Country:   d.Address.CountryCode,
			Latitude:  d.GeoCode.Latitude,
			Longitude: d.GeoCode.Longitude,
			Timezone:  d.TimeZoneOffset,
		}, nil
	}
	return nil, domain.Permanent(fmt.Errorf("airport %s: %w", iataCode, domain.ErrNotFound))
}

func (c *Client) token(ctx context.Context) (*oauth2.Token, error) {
	tok, err := c.tokens.Token(ctx)
	if err == nil {
		return tok, nil
	}
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil && re.Response.StatusCode < 500 && re.Response.StatusCode != http.StatusTooManyRequests {
		return nil, domain.Permanent(fmt.Errorf("%w: token request rejected: %w", domain.ErrMissingCredentials, err))
	}
	return nil, fmt.Errorf("%w: token request: %w", domain.ErrServiceUnavailable, err)
}

// get performs an authenticated GET and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	if err := c.Preflight(ctx); err != nil {
		return domain.Permanent(err)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	tok, err := c.token(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return domain.Permanent(err)
	}
	tok.SetAuthHeader(req)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.tokens.Invalidate()
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return classify(resp, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.Permanent(fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// APIError is a non-2xx response from the flight API.
type APIError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("flight API error %d: %s", e.StatusCode, e.Message)
}

// classify maps 429 and 5xx (and a 401 that invalidated the token) to
// retryable errors and every other status to a permanent one.
func classify(resp *http.Response, body []byte) error {
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
		apiErr.RetryAfter = time.Duration(secs) * time.Second
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", domain.ErrRateLimited, apiErr)
	case resp.StatusCode >= 500, resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: %w", domain.ErrServiceUnavailable, apiErr)
	case resp.StatusCode == http.StatusNotFound:
		return domain.Permanent(fmt.Errorf("%w: %w", domain.ErrNotFound, apiErr))
	default:
		return domain.Permanent(apiErr)
	}
}
