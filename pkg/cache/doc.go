// Package cache implements the short-lived response cache used by the API
// client for idempotent read calls.
//
// Entries are keyed by request identity (method, path, query, and a body
// fingerprint for non-GET methods) and carry an absolute expiry. Expiry is
// lazy: an expired entry is treated as a miss on read and evicted then,
// not by a background sweeper.
//
// Only successful GET responses are ever stored. The store rejects keys
// for other methods so the invariant holds no matter who calls Put.
package cache
