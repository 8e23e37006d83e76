// Package client provides the API client facade: a pre-configured HTTP client
// plus request helpers that attach bearer tokens, build pagination queries and
// follow or intercept redirects.
package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/uspolicy-client/pkg/cache"
	"github.com/Sternrassler/uspolicy-client/pkg/logging"
	"github.com/Sternrassler/uspolicy-client/pkg/session"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for API client operations.
var (
	apiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "api_requests_total",
		Help: "Total backend requests by method, endpoint and status",
	}, []string{"method", "endpoint", "status"})

	apiRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "api_request_duration_seconds",
		Help:    "Backend request duration in seconds by method and endpoint",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"method", "endpoint"})

	apiErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "api_errors_total",
		Help: "Total failed backend calls by method",
	}, []string{"method"})

	apiRedirectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "api_redirects_total",
		Help: "Total navigations performed after a 302 response",
	})
)

// Header names set by the client.
const (
	HeaderAuthorization = "Authorization"
	HeaderContentType   = "Content-Type"
	HeaderRequestID     = "X-Request-ID"
	HeaderLocation      = "Location"
)

// DefaultUserAgent identifies the client to the backend.
const DefaultUserAgent = "uspolicy-client/0.1.0"

// Client is the API client facade. It is safe for concurrent use.
type Client struct {
	rest      *resty.Client // follows redirects
	manual    *resty.Client // hands 3xx responses back unchanged
	tokens    session.TokenProvider
	navigator Navigator
	cache     *cache.Manager
	config    Config
	logger    zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is the backend root; relative endpoints resolve against it (REQUIRED)
	BaseURL string

	// Headers are sent with every request
	Headers map[string]string

	// Timeout bounds each request (0 disables the client-level timeout)
	Timeout time.Duration

	// UserAgent header value
	UserAgent string

	// Tokens supplies the bearer token for authenticated calls (REQUIRED)
	Tokens session.TokenProvider

	// Navigator handles 302 responses in FetchDataWithRedirect (optional)
	Navigator Navigator

	// Cache enables ETag revalidation of GET responses (optional)
	Cache *cache.Manager

	// Transport replaces the underlying http.RoundTripper (optional)
	Transport http.RoundTripper

	// Logger overrides the component logger (optional)
	Logger *zerolog.Logger

	// Debug logs full request/response dumps at debug level
	Debug bool
}

// DefaultConfig returns the default configuration for baseURL.
func DefaultConfig(baseURL string, tokens session.TokenProvider) Config {
	return Config{
		BaseURL: baseURL,
		Headers: map[string]string{
			HeaderContentType: "application/json",
		},
		Timeout:   30 * time.Second,
		UserAgent: DefaultUserAgent,
		Tokens:    tokens,
	}
}

// New creates a new API client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}

	u, err := url.Parse(cfg.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("base url must be an absolute http(s) url (got %q)", cfg.BaseURL)
	}

	if cfg.Tokens == nil {
		return nil, fmt.Errorf("token provider is required")
	}

	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("timeout must be >= 0 (got %s)", cfg.Timeout)
	}

	logger := log.With().Str("component", "api-client").Logger()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	manual := newResty(cfg, logger).
		SetRedirectPolicy(resty.RedirectPolicyFunc(func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}))

	return &Client{
		rest:      newResty(cfg, logger),
		manual:    manual,
		tokens:    cfg.Tokens,
		navigator: cfg.Navigator,
		cache:     cfg.Cache,
		config:    cfg,
		logger:    logger,
	}, nil
}

func newResty(cfg Config, logger zerolog.Logger) *resty.Client {
	rc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetLogger(logging.Resty(logger)).
		SetDebug(cfg.Debug).
		OnRequestLog(logging.RedactRequestLog).
		OnResponseLog(logging.RedactResponseLog)

	if len(cfg.Headers) > 0 {
		rc.SetHeaders(cfg.Headers)
	}
	if cfg.UserAgent != "" {
		rc.SetHeader("User-Agent", cfg.UserAgent)
	}
	if cfg.Transport != nil {
		rc.SetTransport(cfg.Transport)
	}

	return rc
}

// Response is a backend response as seen by the helpers.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte

	// FromCache is true when the body was served from cache after a 304.
	FromCache bool
}

// call describes one helper invocation before per-call options are applied.
type call struct {
	method   string
	endpoint string
	query    url.Values
	body     interface{}

	auth   bool           // operation default for bearer auth
	manual bool           // always hand back 3xx responses
	accept func(int) bool // forced status predicate, overrides options

	failMsg string // logged on failure
}

// Do sends a request with the facade's auth, header and status handling and
// returns the raw response. The typed helpers are built on it.
func (c *Client) Do(ctx context.Context, method, endpoint string, body interface{}, opts *RequestOptions) (*Response, error) {
	return c.do(ctx, call{
		method:   method,
		endpoint: endpoint,
		body:     body,
		auth:     false,
		failMsg:  "Error making request",
	}, opts)
}

func (c *Client) do(ctx context.Context, cl call, opts *RequestOptions) (*Response, error) {
	opts = opts.orDefault()

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	rc := c.rest
	if cl.manual || opts.Redirects == RedirectManual {
		rc = c.manual
	}

	accept := cl.accept
	if accept == nil {
		accept = opts.ValidateStatus
	}
	if accept == nil {
		accept = IsSuccess
	}

	req := rc.R().SetContext(ctx)
	req.SetHeader(HeaderRequestID, uuid.NewString())

	label := cl.endpoint
	if opts.MetricLabel != "" {
		label = opts.MetricLabel
	}

	// Step 1: Authorization
	if opts.Auth.enabled(cl.auth) {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			c.logger.Error().Err(err).
				Str("method", cl.method).
				Str("endpoint", cl.endpoint).
				Msg("Token lookup failed")
			apiErrorsTotal.WithLabelValues(cl.method).Inc()
			return nil, fmt.Errorf("session token: %w", err)
		}
		if token == "" {
			c.logger.Warn().
				Str("method", cl.method).
				Str("endpoint", cl.endpoint).
				Msg("No session token; sending request without credentials")
		}
		req.SetHeader(HeaderAuthorization, strings.TrimSpace("Bearer "+token))
	}

	// Step 2: Caller headers win over defaults and auth
	if len(opts.Headers) > 0 {
		req.SetHeaders(opts.Headers)
	}
	requestID := req.Header.Get(HeaderRequestID)

	// Step 3: Query parameters; the operation's own keys replace caller values
	query := url.Values{}
	for key, values := range opts.Query {
		query[key] = append([]string(nil), values...)
	}
	for key, values := range cl.query {
		query[key] = append([]string(nil), values...)
	}
	if len(query) > 0 {
		req.SetQueryParamsFromValues(query)
	}

	// Step 4: Conditional request from cache
	var (
		cacheKey    cache.CacheKey
		cachedEntry *cache.CacheEntry
	)
	useCache := c.cache != nil && cl.method == http.MethodGet
	if useCache {
		cacheKey = cache.CacheKey{
			Endpoint:    cl.endpoint,
			QueryParams: query,
			Principal:   principal(req.Header.Get(HeaderAuthorization)),
		}
		entry, err := c.cache.Get(ctx, cacheKey)
		if err != nil && err != cache.ErrCacheMiss {
			c.logger.Warn().Err(err).Str("endpoint", cl.endpoint).Msg("Cache get error")
		}
		if entry.Revalidatable() {
			cachedEntry = entry
			cache.AddConditionalHeaders(req.Header, entry)
			cache.ConditionalRequestsSent.Inc()
			c.logger.Debug().
				Str("endpoint", cl.endpoint).
				Str("etag", entry.ETag).
				Msg("Making conditional request")
		}
	}

	if cl.body != nil {
		req.SetBody(cl.body)
	}

	// Step 5: Execute
	c.logger.Debug().
		Str("method", cl.method).
		Str("endpoint", cl.endpoint).
		Str("request_id", requestID).
		Msg("Executing request")

	startTime := time.Now()
	resp, err := req.Execute(cl.method, cl.endpoint)
	apiRequestDuration.WithLabelValues(cl.method, label).Observe(time.Since(startTime).Seconds())

	if err != nil {
		c.logger.Error().Err(err).
			Str("method", cl.method).
			Str("endpoint", cl.endpoint).
			Str("request_id", requestID).
			Msg(cl.failMsg)
		apiErrorsTotal.WithLabelValues(cl.method).Inc()
		apiRequestsTotal.WithLabelValues(cl.method, label, "network_error").Inc()
		return nil, err
	}

	result := &Response{
		StatusCode: resp.StatusCode(),
		Header:     resp.Header(),
		Body:       resp.Body(),
	}
	apiRequestsTotal.WithLabelValues(cl.method, label, strconv.Itoa(result.StatusCode)).Inc()

	// Step 6: 304 Not Modified is served from cache
	if result.StatusCode == http.StatusNotModified && cachedEntry != nil {
		cache.NotModifiedResponses.Inc()
		c.logger.Debug().Str("endpoint", cl.endpoint).Msg("304 Not Modified - using cache")

		if expiresStr := result.Header.Get("Expires"); expiresStr != "" {
			if newExpires, err := http.ParseTime(expiresStr); err == nil {
				if err := c.cache.Refresh(ctx, cacheKey, newExpires); err != nil {
					c.logger.Warn().Err(err).Msg("Failed to update cache TTL")
				}
			}
		}

		return &Response{
			StatusCode: cachedEntry.Status,
			Header:     cachedEntry.Header,
			Body:       cachedEntry.Body,
			FromCache:  true,
		}, nil
	}

	// Step 7: Status validation
	if !accept(result.StatusCode) {
		reqErr := &RequestError{
			Method:     cl.method,
			URL:        requestURL(resp, cl.endpoint),
			StatusCode: result.StatusCode,
			Status:     resp.Status(),
			Body:       result.Body,
		}
		c.logger.Error().Err(reqErr).
			Str("method", cl.method).
			Str("endpoint", cl.endpoint).
			Int("status", result.StatusCode).
			Str("request_id", requestID).
			Msg(cl.failMsg)
		apiErrorsTotal.WithLabelValues(cl.method).Inc()
		return nil, reqErr
	}

	// Step 8: Store revalidatable responses; writes drop what was cached for the endpoint
	switch {
	case useCache && result.StatusCode == http.StatusOK:
		if entry := cache.NewEntry(result.StatusCode, result.Header, result.Body); entry.Revalidatable() {
			if err := c.cache.Set(ctx, cacheKey, entry); err != nil {
				c.logger.Warn().Err(err).Msg("Failed to cache response")
			}
		}
	case c.cache != nil && isWrite(cl.method):
		removed, err := c.cache.Invalidate(ctx, cl.endpoint)
		if err != nil {
			c.logger.Warn().Err(err).Str("endpoint", cl.endpoint).Msg("Failed to invalidate cache")
		} else if removed > 0 {
			c.logger.Debug().Str("endpoint", cl.endpoint).Int("removed", removed).Msg("Cache invalidated")
		}
	}

	return result, nil
}

// principal fingerprints the credential in an Authorization header value, so
// cache entries follow whatever credential was actually sent.
func principal(authorization string) string {
	credential := strings.TrimSpace(authorization)
	if scheme, rest, ok := strings.Cut(credential, " "); ok && strings.EqualFold(scheme, "Bearer") {
		credential = strings.TrimSpace(rest)
	} else if strings.EqualFold(credential, "Bearer") {
		credential = ""
	}
	return cache.Fingerprint(credential)
}

func isWrite(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}

// requestURL reports the final URL of the request, falling back to the endpoint.
func requestURL(resp *resty.Response, endpoint string) string {
	if resp.RawResponse != nil && resp.RawResponse.Request != nil && resp.RawResponse.Request.URL != nil {
		return resp.RawResponse.Request.URL.String()
	}
	return endpoint
}

// BaseURL returns the configured backend root.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.rest.GetClient().CloseIdleConnections()
	c.manual.GetClient().CloseIdleConnections()
	return nil
}
