package auth

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Gimer0x/code-api-client/pkg/inflight"
)

var (
	authRefreshesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "api_auth_refreshes_total",
		Help: "Total number of token refresh calls issued",
	})

	authRefreshFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "api_auth_refresh_failures_total",
		Help: "Total number of failed token refreshes",
	})

	authRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "api_auth_retries_total",
		Help: "Total number of requests retried after a token refresh",
	})
)

// ErrAuthRequired is returned when no usable credentials remain: the
// refresh token is missing or the refresh itself was rejected. The stored
// token pair is cleared before this error surfaces.
var ErrAuthRequired = errors.New("authorization required")

// refreshKey is the in-flight registry key shared by all concurrent 401s,
// so the refresh endpoint is called at most once per expiry event.
const refreshKey = "token-refresh"

// Doer performs a single HTTP request/response exchange.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Executor dispatches requests with a bearer credential attached. On a
// 401 response it performs exactly one credential refresh followed by one
// retry; whatever the retried attempt returns is terminal, so an expired
// refresh token can never cause a refresh loop.
type Executor struct {
	credentials *Credentials
	httpClient  Doer
	refreshURL  string
	refreshes   *inflight.Registry
	logger      zerolog.Logger
}

// NewExecutor creates an authenticated request executor. refreshURL is the
// absolute URL of the token refresh endpoint.
func NewExecutor(credentials *Credentials, httpClient Doer, refreshURL string, logger zerolog.Logger) *Executor {
	if credentials == nil {
		panic("credential store cannot be nil")
	}
	if httpClient == nil {
		panic("http client cannot be nil")
	}

	return &Executor{
		credentials: credentials,
		httpClient:  httpClient,
		refreshURL:  refreshURL,
		refreshes:   inflight.NewRegistry(),
		logger:      logger,
	}
}

// Do dispatches req with the current access token attached. On any
// non-401 response (success or error) the response is returned as-is.
// On a 401 with a refresh token available, the token pair is refreshed
// (shared across concurrent 401s) and the request retried once.
func (e *Executor) Do(req *http.Request) (*http.Response, error) {
	resp, err := e.attempt(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	if !e.credentials.HasRefreshToken() {
		// Nothing to refresh with; the 401 is terminal.
		return resp, nil
	}

	e.logger.Debug().
		Str("endpoint", req.URL.Path).
		Msg("Access token rejected - refreshing")

	// Discard the 401 body before retrying.
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if _, err := e.refreshes.GetOrStart(refreshKey, func() (interface{}, error) {
		return nil, e.refresh(req)
	}); err != nil {
		return nil, err
	}

	authRetriesTotal.Inc()
	return e.attempt(req)
}

// attempt clones req, attaches the current access token if any, and
// dispatches it. The clone keeps the original replayable for the retry.
func (e *Executor) attempt(req *http.Request) (*http.Response, error) {
	attempt := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("replay request body: %w", err)
		}
		attempt.Body = body
	}

	if token := e.credentials.Get().AccessToken; token != "" {
		attempt.Header.Set("Authorization", "Bearer "+token)
	}

	return e.httpClient.Do(attempt)
}

// refresh exchanges the current refresh token for a new token pair. On any
// failure the stored credentials are erased and ErrAuthRequired surfaces:
// the caller must re-authenticate.
func (e *Executor) refresh(origin *http.Request) error {
	authRefreshesTotal.Inc()

	payload, err := json.Marshal(map[string]string{
		"refresh_token": e.credentials.Get().RefreshToken,
	})
	if err != nil {
		return fmt.Errorf("marshal refresh payload: %w", err)
	}

	req, err := http.NewRequestWithContext(origin.Context(), http.MethodPost, e.refreshURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		authRefreshFailuresTotal.Inc()
		e.credentials.Clear()
		return fmt.Errorf("%w: refresh call failed: %v", ErrAuthRequired, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		authRefreshFailuresTotal.Inc()
		e.credentials.Clear()
		e.logger.Warn().
			Int("status", resp.StatusCode).
			Msg("Token refresh rejected - credentials cleared")
		return fmt.Errorf("%w: refresh rejected with status %d", ErrAuthRequired, resp.StatusCode)
	}

	var pair TokenPair
	if err := json.NewDecoder(resp.Body).Decode(&pair); err != nil {
		authRefreshFailuresTotal.Inc()
		e.credentials.Clear()
		return fmt.Errorf("%w: decode refresh response: %v", ErrAuthRequired, err)
	}

	if pair.AccessToken == "" {
		authRefreshFailuresTotal.Inc()
		e.credentials.Clear()
		return fmt.Errorf("%w: refresh response missing access token", ErrAuthRequired)
	}

	e.credentials.Set(pair)
	e.logger.Info().Msg("Token pair refreshed")

	return nil
}
