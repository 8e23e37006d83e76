// Package cache provides an optional Redis-backed response cache for GET
// requests, used only for conditional revalidation.
//
// The backend always stays authoritative: a cached entry is never returned
// without asking the server first. The client sends If-None-Match (ETag) or
// If-Modified-Since (Last-Modified) and serves the cached body only when the
// server answers 304 Not Modified.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	manager := cache.NewManager(redisClient)
//
//	key := cache.CacheKey{
//		Endpoint:    "/items",
//		QueryParams: url.Values{"page": []string{"2"}, "size": []string{"10"}},
//		Principal:   cache.Fingerprint(token),
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if err == cache.ErrCacheMiss {
//		// Nothing to revalidate
//	}
//
// # Conditional Requests
//
//	if entry.Revalidatable() {
//		cache.AddConditionalHeaders(req.Header, entry)
//	}
//
// Responses from different callers never share entries: the Principal field is
// a SHA-256 fingerprint of the credential sent with the request, and Get treats
// an entry stored for another principal as a miss.
//
// # Invalidation
//
// Every entry is indexed under its endpoint. After a successful write the
// client drops all variants of that endpoint:
//
//	removed, err := manager.Invalidate(ctx, "/items/7")
//
// # Metrics
//
//   - api_cache_hits_total{layer="redis"} - Cache hits
//   - api_cache_misses_total - Cache misses
//   - api_cache_size_bytes{layer="redis"} - Bytes written
//   - api_304_responses_total - 304 responses served from cache
//   - api_conditional_requests_total - Conditional requests sent
//   - api_cache_errors_total{operation} - Cache operation errors
//   - api_cache_invalidations_total - Entries dropped by Invalidate
package cache
