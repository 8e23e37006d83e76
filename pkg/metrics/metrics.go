// Package metrics exposes the Prometheus registry shared by the API client.
// All metrics are defined in their respective packages (client, cache)
// to maintain modularity and avoid circular dependencies.
//
// This package provides the scrape handler and a reference for all metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the API client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer collects everything registered on Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler returns the scrape handler for Gatherer.
func Handler() http.Handler {
	return HandlerFor(Gatherer)
}

// HandlerFor returns a scrape handler for a custom gatherer.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - api_requests_total{method, endpoint, status} (Counter): Requests by method, endpoint and HTTP status ("network_error" on transport failure)
//   - api_request_duration_seconds{method, endpoint} (Histogram): Request duration
//   - api_errors_total{method} (Counter): Failed helper calls (rejected status, transport, decode, token lookup)
//   - api_redirects_total (Counter): Navigations after a 302 in FetchDataWithRedirect
//
// The endpoint label is RequestOptions.MetricLabel when set; the proxy uses
// "/api/proxy/*path" for every forwarded call.
//
// Cache Metrics (pkg/cache):
//   - api_cache_hits_total{layer="redis"} (Counter): Cache hits by layer
//   - api_cache_misses_total (Counter): Cache misses
//   - api_cache_size_bytes{layer="redis"} (Gauge): Bytes written to cache
//   - api_304_responses_total (Counter): 304 Not Modified responses served from cache
//   - api_conditional_requests_total (Counter): Conditional requests sent with If-None-Match
//   - api_cache_errors_total{operation} (Counter): Cache operation errors
//   - api_cache_invalidations_total (Counter): Entries dropped after writes to their endpoint
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(api_cache_hits_total[5m])) /
//   (sum(rate(api_cache_hits_total[5m])) + sum(rate(api_cache_misses_total[5m])))
//
//   # Request Error Rate
//   rate(api_errors_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(api_request_duration_seconds_bucket[5m]))
//
//   # 304 Response Rate
//   rate(api_304_responses_total[5m]) / rate(api_requests_total{method="GET"}[5m])
