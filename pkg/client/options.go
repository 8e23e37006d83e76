package client

import (
	"context"
	"net/url"
	"time"
)

// AuthMode controls whether a call carries the bearer token.
type AuthMode int

const (
	// AuthDefault uses the operation's default (see each helper).
	AuthDefault AuthMode = iota

	// AuthBearer attaches "Authorization: Bearer <token>".
	AuthBearer

	// AuthNone sends no Authorization header.
	AuthNone
)

func (m AuthMode) enabled(operationDefault bool) bool {
	switch m {
	case AuthBearer:
		return true
	case AuthNone:
		return false
	default:
		return operationDefault
	}
}

// RedirectMode controls whether 3xx responses are followed.
type RedirectMode int

const (
	// RedirectDefault follows redirects, except in FetchDataWithRedirect.
	RedirectDefault RedirectMode = iota

	// RedirectFollow follows redirects automatically.
	RedirectFollow

	// RedirectManual returns 3xx responses to the caller unchanged.
	// Combine with ValidateStatus to accept them.
	RedirectManual
)

// Navigator moves the caller's browsing context to a new location. It is the
// injected replacement for assigning window.location in a browser.
type Navigator interface {
	Navigate(ctx context.Context, location string) error
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, location string) error

// Navigate calls f(ctx, location).
func (f NavigatorFunc) Navigate(ctx context.Context, location string) error {
	return f(ctx, location)
}

// RequestOptions tunes a single call. A nil *RequestOptions means defaults.
type RequestOptions struct {
	// Headers are set on the request after the defaults and the
	// Authorization header, so they override both.
	Headers map[string]string

	// Query holds extra query parameters. Keys the operation sets itself,
	// such as the paging keys of FetchPagedData, take precedence.
	Query url.Values

	// Timeout bounds the call; zero leaves the client timeout and ctx in charge.
	Timeout time.Duration

	// Auth overrides whether the bearer token is attached.
	Auth AuthMode

	// MetricLabel replaces the endpoint in the endpoint label of the request
	// metrics. Set it when endpoints carry caller-chosen path segments.
	MetricLabel string

	// Redirects overrides redirect following. Ignored by FetchDataWithRedirect,
	// which always handles redirects itself.
	Redirects RedirectMode

	// ValidateStatus decides which status codes count as success.
	// Defaults to 2xx. Ignored by FetchDataWithRedirect (2xx or 302).
	ValidateStatus func(status int) bool

	// Navigator overrides the client's Navigator for this call.
	Navigator Navigator
}

func (o *RequestOptions) orDefault() *RequestOptions {
	if o == nil {
		return &RequestOptions{}
	}
	return o
}

// IsSuccess accepts 2xx status codes.
func IsSuccess(status int) bool {
	return status >= 200 && status < 300
}

// IsSuccessOrFound accepts 2xx status codes and 302 Found.
func IsSuccessOrFound(status int) bool {
	return IsSuccess(status) || status == 302
}
