// Package ai produces pet-travel policy documents with the Anthropic Messages API.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/petjet/petjet-sync/internal/core/domain"
	"github.com/petjet/petjet-sync/internal/core/ports/driven"
)

// Ensure Analyzer implements PolicyAnalyzer
var (
	_ driven.PolicyAnalyzer = (*Analyzer)(nil)
	_ driven.Preflighter    = (*Analyzer)(nil)
)

const (
	// DefaultModel is used when no model is configured.
	DefaultModel = "claude-sonnet-4-5"

	// DefaultMaxTokens bounds a single policy answer.
	DefaultMaxTokens = 2048

	defaultTimeout = 90 * time.Second
)

// Config holds analyzer configuration.
type Config struct {
	APIKey     string
	Model      string
	BaseURL    string
	MaxTokens  int64
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Analyzer implements driven.PolicyAnalyzer using Anthropic models.
type Analyzer struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	ready     bool
}

// NewAnalyzer creates a policy analyzer. A missing API key is reported by
// Preflight rather than here so the other sync types keep working.
func NewAnalyzer(cfg Config) *Analyzer {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(timeout),
		// Retries belong to the sync engine's retrier.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	return &Analyzer{
		client:    anthropic.NewClient(opts...),
		model:     model,
		maxTokens: maxTokens,
		ready:     cfg.APIKey != "",
	}
}

// Model returns the model name being used
func (a *Analyzer) Model() string {
	return a.model
}

// Preflight fails with domain.ErrMissingCredentials when no API key is configured.
func (a *Analyzer) Preflight(ctx context.Context) error {
	if !a.ready {
		return fmt.Errorf("%w: ANTHROPIC_API_KEY is not set", domain.ErrMissingCredentials)
	}
	return nil
}

// Ping verifies the API key with a minimal request.
func (a *Analyzer) Ping(ctx context.Context) error {
	if err := a.Preflight(ctx); err != nil {
		return err
	}
	_, err := a.complete(ctx, "Reply with OK.", "ping", 1)
	return err
}

// AnalyzeAirline returns the pet policy for one airline.
func (a *Analyzer) AnalyzeAirline(ctx context.Context, airline domain.WorkItem) (*domain.PetPolicy, error) {
	text, err := a.complete(ctx, airlineSystemPrompt, airlinePrompt(airline), a.maxTokens)
	if err != nil {
		return nil, fmt.Errorf("analyze airline %s: %w", airline.ID, err)
	}

	var policy domain.PetPolicy
	if err := decodeJSON(text, &policy); err != nil {
		return nil, fmt.Errorf("analyze airline %s: %w", airline.ID, err)
	}
	policy.AirlineID = airline.ID
	return &policy, nil
}

type countryAnswer struct {
	Countries []domain.CountryPolicy `json:"countries"`
}

// AnalyzeCountries returns import policies for several countries in one request.
func (a *Analyzer) AnalyzeCountries(ctx context.Context, countries []domain.WorkItem) (map[string]domain.CountryPolicy, error) {
	if len(countries) == 0 {
		return map[string]domain.CountryPolicy{}, nil
	}

	text, err := a.complete(ctx, countrySystemPrompt, countriesPrompt(countries), a.maxTokens*int64(len(countries)))
	if err != nil {
		return nil, fmt.Errorf("analyze countries: %w", err)
	}

	var answer countryAnswer
	if err := decodeJSON(text, &answer); err != nil {
		return nil, fmt.Errorf("analyze countries: %w", err)
	}

	out := make(map[string]domain.CountryPolicy, len(answer.Countries))
	for _, p := range answer.Countries {
		code := strings.ToUpper(strings.TrimSpace(p.CountryCode))
		if code == "" {
			continue
		}
		p.CountryCode = code
		out[code] = p
	}
	return out, nil
}

// complete sends one user message and returns the concatenated text blocks.
func (a *Analyzer) complete(ctx context.Context, system, prompt string, maxTokens int64) (string, error) {
	if err := a.Preflight(ctx); err != nil {
		return "", domain.Permanent(err)
	}

	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: maxTokens,
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", classify(err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String(), nil
}

// classify maps API failures onto retryable and permanent errors.
func classify(err error) error {
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("%w: %w", domain.ErrServiceUnavailable, err)
	}

	switch status := apiErr.StatusCode; {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", domain.ErrRateLimited, err)
	case status >= 500:
		return fmt.Errorf("%w: %w", domain.ErrServiceUnavailable, err)
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return domain.Permanent(fmt.Errorf("%w: %w", domain.ErrMissingCredentials, err))
	default:
		return domain.Permanent(err)
	}
}

// decodeJSON extracts the outermost JSON object from a model answer,
// tolerating surrounding prose or code fences.
func decodeJSON(text string, out any) error {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return errors.New("no JSON object in model response")
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), out); err != nil {
		return fmt.Errorf("decode model response: %w", err)
	}
	return nil
}
