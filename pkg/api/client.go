// Package api provides the request facade composing the response cache,
// in-flight registry, cooldown store, and authenticated executor into one
// call path for every outbound request.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Gimer0x/code-api-client/pkg/auth"
	"github.com/Gimer0x/code-api-client/pkg/cache"
	"github.com/Gimer0x/code-api-client/pkg/cooldown"
	"github.com/Gimer0x/code-api-client/pkg/inflight"
	"github.com/Gimer0x/code-api-client/pkg/logging"
)

// Prometheus metrics for facade operations.
var (
	apiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "api_requests_total",
		Help: "Total API requests by endpoint and outcome",
	}, []string{"endpoint", "status"})

	apiRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "api_request_duration_seconds",
		Help:    "API request duration in seconds by endpoint",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})
)

// DefaultCacheTTL is how long successful GET responses are served from
// memory before a fresh network call is made.
const DefaultCacheTTL = 10 * time.Second

// DefaultRefreshPath is the backend's token refresh endpoint.
const DefaultRefreshPath = "/auth/refresh"

// Config holds the client configuration.
type Config struct {
	// BaseURL of the backend, e.g. "https://api.example.com" (required).
	BaseURL string

	// HTTPClient performs the actual exchanges. Timeouts belong here,
	// not in the coordination layer. Defaults to a 30s-timeout client.
	HTTPClient *http.Client

	// CooldownKV is the durable medium for rate-limit cooldown records.
	// Defaults to an in-memory medium; pass cooldown.NewRedisKV to make
	// cooldowns survive the process.
	CooldownKV cooldown.KV

	// CacheTTL for successful GET responses. Defaults to DefaultCacheTTL.
	CacheTTL time.Duration

	// RefreshPath is the token refresh endpoint path.
	// Defaults to DefaultRefreshPath.
	RefreshPath string

	// DefaultCooldown and MaxCooldown tune the cooldown store; zero
	// values keep the store's own defaults.
	DefaultCooldown time.Duration
	MaxCooldown     time.Duration
}

// DefaultConfig returns a safe default configuration for baseURL.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		CacheTTL:    DefaultCacheTTL,
		RefreshPath: DefaultRefreshPath,
	}
}

// Client is the single entry point for talking to the backend. All shared
// state (cache, in-flight registry, cooldown store, token pair) lives on
// the instance, so independent clients do not interfere.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	cache       *cache.Store
	inflight    *inflight.Registry
	cooldowns   *cooldown.Store
	credentials *auth.Credentials
	executor    *auth.Executor
	cacheTTL    time.Duration
	logger      zerolog.Logger
}

// New creates a new API client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", cfg.BaseURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	cacheTTL := cfg.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = DefaultCacheTTL
	}

	refreshPath := cfg.RefreshPath
	if refreshPath == "" {
		refreshPath = DefaultRefreshPath
	}

	kv := cfg.CooldownKV
	if kv == nil {
		kv = cooldown.NewMemoryKV()
	}

	var cooldownOpts []cooldown.Option
	if cfg.DefaultCooldown > 0 {
		cooldownOpts = append(cooldownOpts, cooldown.WithDefaultWait(cfg.DefaultCooldown))
	}
	if cfg.MaxCooldown > 0 {
		cooldownOpts = append(cooldownOpts, cooldown.WithMaxWait(cfg.MaxCooldown))
	}

	logger := logging.NewLogger("api-client")

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	credentials := auth.NewCredentials()

	return &Client{
		baseURL:     baseURL,
		httpClient:  httpClient,
		cache:       cache.NewStore(),
		inflight:    inflight.NewRegistry(),
		cooldowns:   cooldown.NewStore(kv, logger, cooldownOpts...),
		credentials: credentials,
		executor:    auth.NewExecutor(credentials, httpClient, baseURL+refreshPath, logger),
		cacheTTL:    cacheTTL,
		logger:      logger,
	}, nil
}

// SetTokens stores the token pair obtained from a login.
func (c *Client) SetTokens(pair auth.TokenPair) {
	c.credentials.Set(pair)
}

// ClearTokens erases the stored token pair (logout).
func (c *Client) ClearTokens() {
	c.credentials.Clear()
}

// Tokens returns the currently stored token pair.
func (c *Client) Tokens() auth.TokenPair {
	return c.credentials.Get()
}

// Do performs a request against path and returns the raw JSON response.
//
// The call path, in order: compute the request key; serve a fresh cached
// entry (GET only); refuse locally if the endpoint is in cooldown; then
// delegate to the in-flight registry so concurrent identical calls share
// one dispatch. A 429 records a cooldown and fails without retry; a 2xx
// clears any cooldown and, for GET, populates the cache.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body interface{}) (json.RawMessage, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
	}

	// One endpoint identity for the cache, the cooldown store, and the
	// outbound URL: /courses/ and /courses must not diverge.
	path = normalizeEndpoint(path)

	key := cache.NewKey(method, path, query, payload)

	if key.Method == http.MethodGet {
		if entry, err := c.cache.Get(key); err == nil {
			c.logger.Debug().
				Str("endpoint", path).
				Dur("ttl", entry.TTL()).
				Msg("Serving cached response")
			apiRequestsTotal.WithLabelValues(path, "cache_hit").Inc()
			return entry.Data, nil
		}
	}

	blocked, remaining, err := c.cooldowns.IsBlocked(ctx, path)
	if err != nil {
		// A broken cooldown medium must not take the client down;
		// admission control fails open.
		c.logger.Warn().Err(err).Str("endpoint", path).Msg("Cooldown check failed")
	}
	if blocked {
		apiRequestsTotal.WithLabelValues(path, "cooldown").Inc()
		return nil, &RateLimitedError{Endpoint: path, RetryAfter: remaining}
	}

	// The dispatch serves every caller that joins it, so it must not die
	// with the first one: a caller abandoning interest never aborts the
	// shared exchange or its cache/cooldown updates. The HTTP client's
	// own timeout still bounds the detached call.
	dispatchCtx := context.WithoutCancel(ctx)

	result, err := c.inflight.GetOrStart(key.String(), func() (interface{}, error) {
		return c.dispatch(dispatchCtx, key, payload)
	})
	if err != nil {
		return nil, err
	}

	data, _ := result.(json.RawMessage)
	return data, nil
}

// dispatch executes one network exchange for key and applies the
// side effects: cooldown recording on 429, cooldown clearing and cache
// population on success.
func (c *Client) dispatch(ctx context.Context, key cache.Key, payload []byte) (json.RawMessage, error) {
	endpoint := key.Path

	startTime := time.Now()
	defer func() {
		apiRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	req, err := c.newRequest(ctx, key, payload)
	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("method", key.Method).
		Msg("Dispatching request")

	resp, err := c.executor.Do(req)
	if err != nil {
		if errors.Is(err, auth.ErrAuthRequired) {
			apiRequestsTotal.WithLabelValues(endpoint, "auth_error").Inc()
			return nil, &AuthorizationError{Err: err}
		}
		apiRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("Request failed")
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		apiRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return nil, &TransportError{Err: fmt.Errorf("read response body: %w", err)}
	}

	apiRequestsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", resp.StatusCode)).Inc()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		wait := cooldown.RetryAfterWait(resp.Header.Get("Retry-After"))
		effective, cdErr := c.cooldowns.SetCooldown(ctx, endpoint, wait)
		if cdErr != nil {
			c.logger.Warn().Err(cdErr).Str("endpoint", endpoint).Msg("Failed to record cooldown")
		}
		return nil, &RateLimitedError{Endpoint: endpoint, RetryAfter: effective}

	case resp.StatusCode == http.StatusUnauthorized:
		// The executor already spent its single refresh+retry.
		c.credentials.Clear()
		return nil, &AuthorizationError{Err: fmt.Errorf("request rejected with status 401")}

	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Msg("Request error")
		return nil, newResponseError(resp.StatusCode, data)
	}

	// Success: the endpoint is healthy again, release any embargo.
	if err := c.cooldowns.Clear(ctx, endpoint); err != nil {
		c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Failed to clear cooldown")
	}

	if key.Method == http.MethodGet {
		c.cache.Put(key, data, c.cacheTTL)
	} else {
		// A successful mutation makes any cached read of the same
		// endpoint stale.
		c.cache.Invalidate(cache.NewKey(http.MethodGet, endpoint, nil, nil))
	}

	return data, nil
}

// normalizeEndpoint folds equivalent path spellings into one endpoint
// identity.
func normalizeEndpoint(path string) string {
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	return path
}

// newRequest builds the outbound HTTP request for key.
func (c *Client) newRequest(ctx context.Context, key cache.Key, payload []byte) (*http.Request, error) {
	requestURL := c.baseURL + key.Path
	if len(key.Query) > 0 {
		requestURL += "?" + key.Query.Encode()
	}

	var body io.Reader
	if len(payload) > 0 {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, key.Method, requestURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if len(payload) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

// newResponseError builds a ResponseError from the server payload,
// falling back to a generic message when the body carries none.
func newResponseError(statusCode int, data []byte) *ResponseError {
	respErr := &ResponseError{StatusCode: statusCode}

	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Code    string `json:"code"`
	}
	if err := json.Unmarshal(data, &payload); err == nil {
		respErr.Code = payload.Code
		if payload.Error != "" {
			respErr.Message = payload.Error
		} else {
			respErr.Message = payload.Message
		}
	}

	if respErr.Message == "" {
		respErr.Message = http.StatusText(statusCode)
	}

	return respErr
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodGet, path, query, nil)
}

// GetJSON performs a GET request and decodes the response into v.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, v interface{}) error {
	data, err := c.Get(ctx, path, query)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Post performs a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body interface{}) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodPost, path, nil, body)
}

// Put performs a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body interface{}) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodPut, path, nil, body)
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodDelete, path, nil, nil)
}

// InvalidateCache drops the cached response for a GET of path, if any.
func (c *Client) InvalidateCache(path string, query url.Values) {
	c.cache.Invalidate(cache.NewKey(http.MethodGet, normalizeEndpoint(path), query, nil))
}
