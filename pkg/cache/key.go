package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// Key identifies "the same logical call" for caching and deduplication.
// Two requests with equal keys are interchangeable: same method, same
// resolved path, same query parameters, and for non-GET methods the same
// body content.
type Key struct {
	// Method is the HTTP method (e.g. "GET", "POST").
	Method string

	// Path is the resolved request path (e.g. "/courses/42/lessons").
	Path string

	// Query holds the query parameters.
	Query url.Values

	// BodyHash is the hex-encoded SHA-256 of the request body.
	// Empty for GET requests and for requests without a body.
	BodyHash string
}

// NewKey builds a Key for the given request line. The body is fingerprinted
// only for non-GET methods; GET identity is method + path + query alone.
func NewKey(method, path string, query url.Values, body []byte) Key {
	k := Key{
		Method: strings.ToUpper(method),
		Path:   path,
		Query:  query,
	}

	if k.Method != http.MethodGet && len(body) > 0 {
		sum := sha256.Sum256(body)
		k.BodyHash = hex.EncodeToString(sum[:])
	}

	return k
}

// String generates a deterministic key string.
// Format: req:METHOD:path:query1=val1:query2=val2[:bodyhash]
//
// Example:
//
//	req:GET:/courses:page=2:sort=title
func (k Key) String() string {
	parts := []string{"req", k.Method, strings.TrimSuffix(k.Path, "/")}

	// Query params sorted for determinism
	if len(k.Query) > 0 {
		queryKeys := make([]string, 0, len(k.Query))
		for key := range k.Query {
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for _, key := range queryKeys {
			// Repeated parameters each contribute to the identity:
			// ?tag=a and ?tag=a&tag=b are different calls.
			for _, value := range k.Query[key] {
				parts = append(parts, fmt.Sprintf("%s=%s", key, value))
			}
		}
	}

	if k.BodyHash != "" {
		parts = append(parts, k.BodyHash)
	}

	return strings.Join(parts, ":")
}
