package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// KeyPrefix namespaces all cache keys in Redis.
const KeyPrefix = "api"

// CacheKey identifies a cached GET response.
type CacheKey struct {
	// Endpoint is the request path relative to the base URL (e.g., "/uspolicy/documents")
	Endpoint string

	// QueryParams are the query parameters (e.g., {"page": "2", "size": "10"})
	QueryParams url.Values

	// Principal separates responses per caller; see Fingerprint. Empty for anonymous calls.
	Principal string
}

// String generates a deterministic cache key string.
// Format: api:endpoint:query1=val1:query2=val2:sub=principal
//
// Example:
//
//	api:items:page=2:size=10:sort_by=name,date:sub=3f2a9c0e17b4d5a6
func (k CacheKey) String() string {
	parts := []string{KeyPrefix}

	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	// Query params sorted for determinism; all values kept in order
	if len(k.QueryParams) > 0 {
		queryKeys := make([]string, 0, len(k.QueryParams))
		for key := range k.QueryParams {
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for _, key := range queryKeys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, strings.Join(k.QueryParams[key], ",")))
		}
	}

	if k.Principal != "" {
		parts = append(parts, "sub="+k.Principal)
	}

	return strings.Join(parts, ":")
}

// indexKey names the set that lists every key stored for k's endpoint.
func (k CacheKey) indexKey() string {
	return KeyPrefix + "-index:" + strings.Trim(k.Endpoint, "/")
}

// Fingerprint derives a principal from a bearer token without storing the token.
// Returns "" for an empty token.
func Fingerprint(token string) string {
	if token == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:8])
}
