package cache

import (
	"net/http"
	"time"
)

// CacheEntry is a stored GET response together with the validators needed to
// revalidate it against the backend.
type CacheEntry struct {
	Status int         `json:"status"`
	Header http.Header `json:"header,omitempty"`
	Body   []byte      `json:"body"`

	ETag         string    `json:"etag,omitempty"`
	LastModified time.Time `json:"last_modified,omitempty"`

	// Principal is the credential fingerprint the response was fetched with.
	// The manager refuses to hand an entry to a different principal.
	Principal string `json:"principal,omitempty"`

	StoredAt time.Time `json:"stored_at"`
	Expires  time.Time `json:"expires"`
}

// Revalidatable reports whether the entry carries a validator the backend can
// check with If-None-Match or If-Modified-Since.
func (e *CacheEntry) Revalidatable() bool {
	return e != nil && (e.ETag != "" || !e.LastModified.IsZero())
}

// IsExpired reports whether the entry is past its expiry.
func (e *CacheEntry) IsExpired() bool {
	return !time.Now().Before(e.Expires)
}

// TTL is the remaining lifetime, never negative.
func (e *CacheEntry) TTL() time.Duration {
	if ttl := time.Until(e.Expires); ttl > 0 {
		return ttl
	}
	return 0
}

// Extend pushes the expiry out to expires. It never shortens the entry and
// reports whether anything changed.
func (e *CacheEntry) Extend(expires time.Time) bool {
	if !expires.After(e.Expires) {
		return false
	}
	e.Expires = expires
	return true
}
