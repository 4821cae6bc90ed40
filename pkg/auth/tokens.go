// Package auth implements bearer-credential handling for the API client:
// a token-pair store and a request executor that transparently refreshes
// an expired access token exactly once per attempt.
package auth

import "sync"

// TokenPair holds the current access and refresh tokens. The access token
// lifetime is opaque to this layer: it is used until the server rejects it.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// IsZero returns true if no credentials are stored.
func (p TokenPair) IsZero() bool {
	return p.AccessToken == "" && p.RefreshToken == ""
}

// Credentials is the process-wide credential store. It is mutated by
// login, by a successful refresh, and erased by logout or a failed
// refresh. Safe for concurrent use.
type Credentials struct {
	mu   sync.RWMutex
	pair TokenPair
}

// NewCredentials creates an empty credential store.
func NewCredentials() *Credentials {
	return &Credentials{}
}

// Set stores a new token pair (login or successful refresh).
func (c *Credentials) Set(pair TokenPair) {
	c.mu.Lock()
	c.pair = pair
	c.mu.Unlock()
}

// Get returns the current token pair.
func (c *Credentials) Get() TokenPair {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pair
}

// Clear erases the stored token pair (logout or failed refresh).
func (c *Credentials) Clear() {
	c.mu.Lock()
	c.pair = TokenPair{}
	c.mu.Unlock()
}

// HasRefreshToken reports whether a refresh token is available.
func (c *Credentials) HasRefreshToken() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pair.RefreshToken != ""
}
