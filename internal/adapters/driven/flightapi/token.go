package flightapi

import (
	"context"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// TokenCache holds the current access token for the client-credentials flow.
// Expiry is checked on every use; an expired or missing token is fetched again.
type TokenCache struct {
	cfg *clientcredentials.Config

	mu    sync.Mutex
	token *oauth2.Token
}

// NewTokenCache creates an empty cache for the given credentials.
func NewTokenCache(cfg *clientcredentials.Config) *TokenCache {
	return &TokenCache{cfg: cfg}
}

// Token returns a valid access token, fetching a new one when needed.
func (c *TokenCache) Token(ctx context.Context) (*oauth2.Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token.Valid() {
		return c.token, nil
	}
	tok, err := c.cfg.Token(ctx)
	if err != nil {
		return nil, err
	}
	c.token = tok
	return tok, nil
}

// Invalidate drops the cached token so the next call fetches a new one.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	c.token = nil
	c.mu.Unlock()
}
