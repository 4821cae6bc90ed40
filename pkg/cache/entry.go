package cache

import (
	"encoding/json"
	"time"
)

// Entry represents a cached successful response body.
type Entry struct {
	// Data is the JSON response payload, returned to hits unmodified.
	Data json.RawMessage `json:"data"`

	// ExpiresAt is when the entry becomes stale.
	ExpiresAt time.Time `json:"expires_at"`

	// StoredAt is when the entry was written.
	StoredAt time.Time `json:"stored_at"`
}

// IsExpired returns true if the entry has passed its expiry.
func (e *Entry) IsExpired() bool {
	return !time.Now().Before(e.ExpiresAt)
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.ExpiresAt)
	if ttl < 0 {
		return 0
	}
	return ttl
}
