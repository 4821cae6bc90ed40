// Package cooldown implements per-endpoint rate-limit embargoes. After a
// 429 response, the affected endpoint is refused locally until the
// recorded cooldown passes or a later success clears it. Records live in
// a durable key-value medium so the embargo survives a process restart.
package cooldown

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// Defaults for cooldown durations.
const (
	// DefaultWait is used when the server supplies no usable retry hint.
	DefaultWait = 60 * time.Second

	// MaxWait caps any cooldown so a misbehaving Retry-After hint cannot
	// lock an endpoint out indefinitely.
	MaxWait = 5 * time.Minute
)

// keyPrefix namespaces cooldown records in the shared KV medium.
const keyPrefix = "cooldown:"

// Store records and checks per-endpoint cooldowns.
type Store struct {
	kv          KV
	defaultWait time.Duration
	maxWait     time.Duration
	logger      zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithDefaultWait overrides the fallback cooldown duration.
func WithDefaultWait(d time.Duration) Option {
	return func(s *Store) { s.defaultWait = d }
}

// WithMaxWait overrides the cooldown ceiling.
func WithMaxWait(d time.Duration) Option {
	return func(s *Store) { s.maxWait = d }
}

// NewStore creates a cooldown store on the given KV medium.
func NewStore(kv KV, logger zerolog.Logger, opts ...Option) *Store {
	if kv == nil {
		panic("kv medium cannot be nil")
	}

	s := &Store{
		kv:          kv,
		defaultWait: DefaultWait,
		maxWait:     MaxWait,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsBlocked reports whether endpoint is under an active cooldown and, if
// so, how long remains. An expired or unreadable persisted record is
// treated as absent and removed.
func (s *Store) IsBlocked(ctx context.Context, endpoint string) (bool, time.Duration, error) {
	value, err := s.kv.Read(ctx, storageKey(endpoint))
	if err != nil {
		if err == ErrNotFound {
			return false, 0, nil
		}
		return false, 0, fmt.Errorf("read cooldown record: %w", err)
	}

	end, err := parseRecord(value)
	if err != nil {
		s.logger.Warn().
			Str("endpoint", endpoint).
			Str("value", value).
			Msg("Discarding malformed cooldown record")
		_ = s.kv.Delete(ctx, storageKey(endpoint))
		return false, 0, nil
	}

	remaining := time.Until(end)
	if remaining <= 0 {
		// Expired record: treat as absent, clean up eagerly.
		_ = s.kv.Delete(ctx, storageKey(endpoint))
		return false, 0, nil
	}

	cooldownBlocksTotal.Inc()
	s.logger.Warn().
		Str("endpoint", endpoint).
		Dur("remaining", remaining).
		Msg("Endpoint in cooldown - refusing request locally")

	return true, remaining, nil
}

// SetCooldown records a cooldown for endpoint ending wait from now and
// returns the effective wait of the active embargo. A non-positive wait
// falls back to the default; any wait is clamped to the ceiling. The
// recorded end is monotonic: a concurrent writer never shortens an
// already recorded cooldown, though a later 429 may extend it.
func (s *Store) SetCooldown(ctx context.Context, endpoint string, wait time.Duration) (time.Duration, error) {
	if wait <= 0 {
		wait = s.defaultWait
	}
	if wait > s.maxWait {
		s.logger.Warn().
			Str("endpoint", endpoint).
			Dur("hint", wait).
			Dur("ceiling", s.maxWait).
			Msg("Clamping excessive cooldown hint")
		wait = s.maxWait
	}

	end := time.Now().Add(wait)

	if value, err := s.kv.Read(ctx, storageKey(endpoint)); err == nil {
		if existing, perr := parseRecord(value); perr == nil && existing.After(end) {
			// Keep the longer embargo.
			return time.Until(existing), nil
		}
	}

	if err := s.kv.Write(ctx, storageKey(endpoint), formatRecord(end)); err != nil {
		return 0, fmt.Errorf("write cooldown record: %w", err)
	}

	cooldownsSetTotal.Inc()
	s.logger.Info().
		Str("endpoint", endpoint).
		Dur("wait", wait).
		Time("until", end).
		Msg("Cooldown recorded")

	return wait, nil
}

// Clear removes any cooldown record for endpoint. Called on the first
// successful response from the endpoint; success always clears,
// regardless of a pending concurrent cooldown write.
func (s *Store) Clear(ctx context.Context, endpoint string) error {
	if err := s.kv.Delete(ctx, storageKey(endpoint)); err != nil {
		return fmt.Errorf("delete cooldown record: %w", err)
	}
	cooldownClearsTotal.Inc()
	return nil
}

// RetryAfterWait converts a Retry-After header value (delay in seconds)
// into a duration. Returns 0 for an absent or insane value, which makes
// SetCooldown fall back to its default.
func RetryAfterWait(header string) time.Duration {
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// storageKey builds the KV key for an endpoint's cooldown record.
func storageKey(endpoint string) string {
	return keyPrefix + endpoint
}

// formatRecord encodes a cooldown end as milliseconds since the epoch.
func formatRecord(end time.Time) string {
	return strconv.FormatInt(end.UnixMilli(), 10)
}

// parseRecord decodes a persisted cooldown end timestamp.
func parseRecord(value string) (time.Time, error) {
	millis, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cooldown record: %w", err)
	}
	return time.UnixMilli(millis), nil
}
