package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Sternrassler/uspolicy-client/pkg/pagination"
)

// FetchPagedData issues an authenticated GET for one page of endpoint and
// decodes the body into T. The query carries page and size, plus sort_by
// (comma-joined) and sort_direction when supplied.
func FetchPagedData[T any](ctx context.Context, c *Client, endpoint string, paged pagination.PagedRequest, opts *RequestOptions) (T, error) {
	const failMsg = "Error fetching data"

	var zero T
	if err := paged.Validate(); err != nil {
		c.logger.Error().Err(err).Str("endpoint", endpoint).Msg(failMsg)
		return zero, err
	}

	resp, err := c.do(ctx, call{
		method:   http.MethodGet,
		endpoint: endpoint,
		query:    paged.Values(),
		auth:     true,
		failMsg:  failMsg,
	}, opts)
	if err != nil {
		return zero, err
	}

	return decode[T](c, resp, http.MethodGet, endpoint, failMsg)
}

// FetchData issues a GET for endpoint and decodes the body into T.
// No Authorization header is sent unless opts.Auth is AuthBearer.
func FetchData[T any](ctx context.Context, c *Client, endpoint string, opts *RequestOptions) (T, error) {
	const failMsg = "Error fetching data"

	resp, err := c.do(ctx, call{
		method:   http.MethodGet,
		endpoint: endpoint,
		auth:     false,
		failMsg:  failMsg,
	}, opts)
	if err != nil {
		var zero T
		return zero, err
	}

	return decode[T](c, resp, http.MethodGet, endpoint, failMsg)
}

// FetchDataWithRedirect issues an authenticated GET without following
// redirects. 2xx responses are decoded and returned. A 302 carrying a Location
// header is handed to the Navigator instead, and the result is nil.
// endpoint may be an absolute URL outside the base URL.
func FetchDataWithRedirect[T any](ctx context.Context, c *Client, endpoint string, opts *RequestOptions) (*T, error) {
	const failMsg = "Error handling request with redirect"

	opts = opts.orDefault()
	resp, err := c.do(ctx, call{
		method:   http.MethodGet,
		endpoint: endpoint,
		auth:     true,
		manual:   true,
		accept:   IsSuccessOrFound,
		failMsg:  failMsg,
	}, opts)
	if err != nil {
		return nil, err
	}

	location := resp.Header.Get(HeaderLocation)
	c.logger.Debug().
		Str("endpoint", endpoint).
		Int("status", resp.StatusCode).
		Interface("headers", resp.Header).
		Str("location", location).
		Msg("Response received")

	if resp.StatusCode == http.StatusFound && location != "" {
		navigator := opts.Navigator
		if navigator == nil {
			navigator = c.navigator
		}
		if navigator == nil {
			err := fmt.Errorf("%w: %s", ErrNoNavigator, location)
			c.logger.Error().Err(err).Str("endpoint", endpoint).Msg(failMsg)
			apiErrorsTotal.WithLabelValues(http.MethodGet).Inc()
			return nil, err
		}

		c.logger.Info().Str("endpoint", endpoint).Str("location", location).Msg("Redirecting")
		apiRedirectsTotal.Inc()
		if err := navigator.Navigate(ctx, location); err != nil {
			c.logger.Error().Err(err).Str("location", location).Msg(failMsg)
			apiErrorsTotal.WithLabelValues(http.MethodGet).Inc()
			return nil, err
		}
		return nil, nil
	}

	out, err := decode[T](c, resp, http.MethodGet, endpoint, failMsg)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// PostData issues a POST with body encoded as JSON and decodes the response into T.
// No Authorization header is sent unless opts.Auth is AuthBearer.
func PostData[T any](ctx context.Context, c *Client, endpoint string, body interface{}, opts *RequestOptions) (T, error) {
	const failMsg = "Error making POST request"

	resp, err := c.do(ctx, call{
		method:   http.MethodPost,
		endpoint: endpoint,
		body:     body,
		auth:     false,
		failMsg:  failMsg,
	}, opts)
	if err != nil {
		var zero T
		return zero, err
	}

	return decode[T](c, resp, http.MethodPost, endpoint, failMsg)
}

// DeleteData issues an authenticated DELETE and decodes the response into T.
func DeleteData[T any](ctx context.Context, c *Client, endpoint string, opts *RequestOptions) (T, error) {
	const failMsg = "Error making DELETE request"

	resp, err := c.do(ctx, call{
		method:   http.MethodDelete,
		endpoint: endpoint,
		auth:     true,
		failMsg:  failMsg,
	}, opts)
	if err != nil {
		var zero T
		return zero, err
	}

	return decode[T](c, resp, http.MethodDelete, endpoint, failMsg)
}

// decode parses a response body into T. An empty body yields the zero value;
// string and []byte targets receive the raw body.
func decode[T any](c *Client, resp *Response, method, endpoint, failMsg string) (T, error) {
	var out T

	switch target := any(&out).(type) {
	case *[]byte:
		*target = append([]byte(nil), resp.Body...)
		return out, nil
	case *string:
		*target = string(resp.Body)
		return out, nil
	}

	if len(bytes.TrimSpace(resp.Body)) == 0 {
		return out, nil
	}

	if err := json.Unmarshal(resp.Body, &out); err != nil {
		err = fmt.Errorf("decode response: %w", err)
		c.logger.Error().Err(err).
			Str("method", method).
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Msg(failMsg)
		apiErrorsTotal.WithLabelValues(method).Inc()
		var zero T
		return zero, err
	}

	return out, nil
}
