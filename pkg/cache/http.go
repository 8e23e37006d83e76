package cache

import (
	"net/http"
	"time"
)

const (
	// DefaultTTL is the fallback TTL when no expires header is present
	DefaultTTL = 5 * time.Minute
)

// NewEntry builds a CacheEntry from a response's status, headers and body.
// The body slice is copied.
func NewEntry(statusCode int, headers http.Header, body []byte) *CacheEntry {
	entry := &CacheEntry{
		Status:   statusCode,
		Header:   headers.Clone(),
		Body:     append([]byte(nil), body...),
		ETag:     headers.Get("ETag"),
		StoredAt: time.Now(),
		Expires:  parseExpires(headers),
	}

	if lastModStr := headers.Get("Last-Modified"); lastModStr != "" {
		if lastMod, err := http.ParseTime(lastModStr); err == nil {
			entry.LastModified = lastMod
		}
	}

	return entry
}

// parseExpires parses the Expires header.
// Returns the parsed expiration time, or current time + DefaultTTL if missing or invalid.
func parseExpires(headers http.Header) time.Time {
	expiresStr := headers.Get("Expires")
	if expiresStr == "" {
		return time.Now().Add(DefaultTTL)
	}

	expires, err := http.ParseTime(expiresStr)
	if err != nil {
		return time.Now().Add(DefaultTTL)
	}

	if expires.Before(time.Now()) {
		// Already expired - use minimal TTL
		return time.Now()
	}

	return expires
}

// AddConditionalHeaders sets If-None-Match (preferred) or If-Modified-Since
// on headers from the cache entry.
func AddConditionalHeaders(headers http.Header, entry *CacheEntry) {
	if entry == nil || headers == nil {
		return
	}

	if entry.ETag != "" {
		headers.Set("If-None-Match", entry.ETag)
	} else if !entry.LastModified.IsZero() {
		headers.Set("If-Modified-Since", entry.LastModified.UTC().Format(http.TimeFormat))
	}
}
