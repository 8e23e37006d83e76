// Package session supplies bearer tokens to the API client from session state
// owned by the caller. The client never stores tokens itself; it asks a
// TokenProvider at call time.
package session

import (
	"context"
	"sync"
	"time"
)

// Session is the externally owned session record. The JSON shape matches
// what the front-end keeps as data.session.
type Session struct {
	// AccessToken is the bearer token sent to the backend.
	AccessToken string `json:"accessToken"`

	// ExpiresAt is when the session stops being valid (zero means no expiry).
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
}

// IsExpired reports whether the session has a deadline that has passed.
func (s Session) IsExpired() bool {
	return !s.ExpiresAt.IsZero() && time.Now().After(s.ExpiresAt)
}

// TokenProvider returns the current bearer token.
// An empty token with a nil error means no session is present.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// TokenProviderFunc adapts a function to TokenProvider.
type TokenProviderFunc func(ctx context.Context) (string, error)

// Token calls f(ctx).
func (f TokenProviderFunc) Token(ctx context.Context) (string, error) {
	return f(ctx)
}

// StaticToken always returns the same token.
type StaticToken string

// Token returns the static token.
func (s StaticToken) Token(context.Context) (string, error) {
	return string(s), nil
}

// Holder keeps the current session in memory. It is safe for concurrent use.
type Holder struct {
	mu      sync.RWMutex
	current *Session
}

// NewHolder creates an empty Holder.
func NewHolder() *Holder {
	return &Holder{}
}

// Set replaces the current session.
func (h *Holder) Set(s Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.current = &s
}

// Clear removes the current session.
func (h *Holder) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.current = nil
}

// Current returns the current session, if any.
func (h *Holder) Current() (Session, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.current == nil {
		return Session{}, false
	}
	return *h.current, true
}

// Token returns the access token of the current session, or "" when there is
// no session or it has expired.
func (h *Holder) Token(context.Context) (string, error) {
	s, ok := h.Current()
	if !ok || s.IsExpired() {
		return "", nil
	}
	return s.AccessToken, nil
}
