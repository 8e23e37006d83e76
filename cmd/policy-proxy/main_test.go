package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/uspolicy-client/internal/testutil"
	"github.com/Sternrassler/uspolicy-client/pkg/client"
	"github.com/Sternrassler/uspolicy-client/pkg/session"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// sessionTokens derives the bearer token from the session id in the context.
var sessionTokens = session.TokenProviderFunc(func(ctx context.Context) (string, error) {
	if id, ok := session.IDFromContext(ctx); ok {
		return "tok-" + id, nil
	}
	return "", nil
})

func setupProxy(t *testing.T, redisClient *redis.Client) (*testutil.MockAPI, http.Handler) {
	t.Helper()

	mock := testutil.NewMockAPI()
	t.Cleanup(mock.Close)

	logger := zerolog.Nop()
	cfg := client.DefaultConfig(mock.URL(), sessionTokens)
	cfg.Logger = &logger
	apiClient, err := client.New(cfg)
	if err != nil {
		t.Fatalf("Failed to create API client: %v", err)
	}

	return mock, newServer(apiClient, redisClient, logger).routes([]string{"http://localhost:3000"})
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	_, h := setupProxy(t, nil)

	w := serve(h, httptest.NewRequest("GET", "/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if w.Body.String() != "OK" {
		t.Errorf("Expected body 'OK', got %s", w.Body.String())
	}
}

func TestReadyEndpoint(t *testing.T) {
	t.Run("ready_without_redis", func(t *testing.T) {
		_, h := setupProxy(t, nil)

		w := serve(h, httptest.NewRequest("GET", "/ready", nil))
		if w.Code != http.StatusOK {
			t.Errorf("Expected status 200, got %d", w.Code)
		}
	})

	t.Run("not_ready_redis_down", func(t *testing.T) {
		redisClient := redis.NewClient(&redis.Options{
			Addr:        "127.0.0.1:1",
			MaxRetries:  -1,
			DialTimeout: 200 * time.Millisecond,
		})
		defer redisClient.Close()

		_, h := setupProxy(t, redisClient)

		w := serve(h, httptest.NewRequest("GET", "/ready", nil))
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("Expected status 503, got %d", w.Code)
		}
	})
}

func TestMetricsEndpoint(t *testing.T) {
	mock, h := setupProxy(t, nil)
	mock.SetResponse("/uspolicy/documents", testutil.NewJSONResponse(`[]`))

	// Observe at least one request so the client vectors are populated
	serve(h, httptest.NewRequest("GET", "/api/documents", nil))

	w := serve(h, httptest.NewRequest("GET", "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	body := w.Body.String()
	if !strings.Contains(body, "# HELP") || !strings.Contains(body, "# TYPE") {
		t.Error("Expected Prometheus format metrics output")
	}
	if !strings.Contains(body, "api_requests_total") {
		t.Error("Expected metrics output to contain api_requests_total")
	}
}

func TestDocumentsEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		response   testutil.MockResponse
		wantStatus int
		wantBody   string
	}{
		{
			name:       "success",
			response:   testutil.NewJSONResponse(`[{"id":"p1","title":"Plan","source_url":"https://example.com/p1.pdf"}]`),
			wantStatus: http.StatusOK,
			wantBody:   `[{"id":"p1","title":"Plan","source_url":"https://example.com/p1.pdf"}]`,
		},
		{
			name:       "upstream failure keeps status",
			response:   testutil.NewErrorResponse(http.StatusInternalServerError, "scan failed"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"error":"scan failed"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, h := setupProxy(t, nil)
			mock.SetResponse("/uspolicy/documents", tt.response)

			w := serve(h, httptest.NewRequest("GET", "/api/documents", nil))
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if got := strings.TrimSpace(w.Body.String()); got != tt.wantBody {
				t.Errorf("body = %s, want %s", got, tt.wantBody)
			}
		})
	}
}

func TestDocumentsEndpoint_BackendDown(t *testing.T) {
	mock, h := setupProxy(t, nil)
	mock.Close()

	w := serve(h, httptest.NewRequest("GET", "/api/documents", nil))
	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", w.Code)
	}
}

func TestChatEndpoint(t *testing.T) {
	tests := []struct {
		name          string
		body          string
		wantStatus    int
		wantUpstreams int
	}{
		{"valid", `{"message":"summary?","documentId":"p1"}`, http.StatusOK, 1},
		{"invalid json", `{"message":`, http.StatusBadRequest, 0},
		{"missing document", `{"message":"summary?"}`, http.StatusBadRequest, 0},
		{"missing message", `{"documentId":"p1"}`, http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, h := setupProxy(t, nil)
			mock.SetResponse("POST /uspolicy/chat", testutil.NewJSONResponse(`{"response":"answer"}`))

			req := httptest.NewRequest("POST", "/api/chat", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := serve(h, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if mock.RequestCount() != tt.wantUpstreams {
				t.Errorf("backend requests = %d, want %d", mock.RequestCount(), tt.wantUpstreams)
			}
			if tt.wantStatus == http.StatusOK {
				var resp map[string]string
				if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp["response"] != "answer" {
					t.Errorf("body = %s", w.Body.String())
				}
			}
		})
	}
}

func TestProxyGet_Paged(t *testing.T) {
	mock, h := setupProxy(t, nil)
	mock.SetResponse("GET /items", testutil.NewJSONResponse(`[{"id":1}]`))

	req := httptest.NewRequest("GET", "/api/proxy/items?page=2&size=10&sort_by=name,date&sort_direction=asc&q=x", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: "abc"})
	w := serve(h, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if w.Body.String() != `[{"id":1}]` {
		t.Errorf("body = %s", w.Body.String())
	}

	upstream, _ := mock.LastRequest()
	if want := "page=2&q=x&size=10&sort_by=name%2Cdate&sort_direction=asc"; upstream.RawQuery != want {
		t.Errorf("upstream query = %q, want %q", upstream.RawQuery, want)
	}
	if got := upstream.Header.Get("Authorization"); got != "Bearer tok-abc" {
		t.Errorf("Authorization = %q, want %q", got, "Bearer tok-abc")
	}
}

func TestProxyGet_InvalidPage(t *testing.T) {
	mock, h := setupProxy(t, nil)

	w := serve(h, httptest.NewRequest("GET", "/api/proxy/items?page=-1", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if mock.RequestCount() != 0 {
		t.Error("invalid page request reached the backend")
	}
}

func TestProxyGet_Redirect(t *testing.T) {
	mock, h := setupProxy(t, nil)
	mock.SetResponse("/profile", testutil.NewRedirectResponse("https://sso.example.com/login"))

	w := serve(h, httptest.NewRequest("GET", "/api/proxy/profile", nil))

	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", w.Code)
	}
	if got := w.Header().Get("Location"); got != "https://sso.example.com/login" {
		t.Errorf("Location = %q", got)
	}
	if mock.RequestCount() != 1 {
		t.Errorf("backend requests = %d, the redirect must not be followed server-side", mock.RequestCount())
	}

	upstream, _ := mock.LastRequest()
	if got := upstream.Header.Get("Authorization"); got != "Bearer" {
		t.Errorf("Authorization without session = %q, want %q", got, "Bearer")
	}
}

func TestProxyGet_Plain(t *testing.T) {
	mock, h := setupProxy(t, nil)
	mock.SetResponse("/profile", testutil.NewJSONResponse(`{"name":"x"}`))

	req := httptest.NewRequest("GET", "/api/proxy/profile?fields=name", nil)
	req.Header.Set(client.HeaderRequestID, "req-7")
	w := serve(h, req)

	if w.Code != http.StatusOK || w.Body.String() != `{"name":"x"}` {
		t.Errorf("response = %d %s", w.Code, w.Body.String())
	}

	upstream, _ := mock.LastRequest()
	if upstream.RawQuery != "fields=name" {
		t.Errorf("upstream query = %q", upstream.RawQuery)
	}
	if got := upstream.Header.Get(client.HeaderRequestID); got != "req-7" {
		t.Errorf("X-Request-ID = %q, want forwarded req-7", got)
	}
}

func TestProxyPost(t *testing.T) {
	mock, h := setupProxy(t, nil)
	mock.SetResponse("POST /items", testutil.MockResponse{
		StatusCode: http.StatusCreated,
		Body:       `{"id":5,"name":"x"}`,
	})

	req := httptest.NewRequest("POST", "/api/proxy/items", strings.NewReader(`{"name":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	w := serve(h, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	upstream, _ := mock.LastRequest()
	if got := strings.TrimSpace(string(upstream.Body)); got != `{"name":"x"}` {
		t.Errorf("upstream body = %s", got)
	}
	if got := upstream.Header.Get("Authorization"); got != "" {
		t.Errorf("POST is unauthenticated by default, got %q", got)
	}
}

func TestProxyPost_InvalidJSON(t *testing.T) {
	mock, h := setupProxy(t, nil)

	w := serve(h, httptest.NewRequest("POST", "/api/proxy/items", strings.NewReader(`not json`)))
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if mock.RequestCount() != 0 {
		t.Error("invalid body reached the backend")
	}
}

func TestProxyDelete(t *testing.T) {
	tests := []struct {
		name       string
		response   testutil.MockResponse
		wantStatus int
	}{
		{"deleted with body", testutil.NewJSONResponse(`{"deleted":true}`), http.StatusOK},
		{"no content", testutil.MockResponse{StatusCode: http.StatusNoContent}, http.StatusNoContent},
		{"not found", testutil.NewErrorResponse(http.StatusNotFound, "missing"), http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, h := setupProxy(t, nil)
			mock.SetResponse("DELETE /items/5", tt.response)

			req := httptest.NewRequest("DELETE", "/api/proxy/items/5", nil)
			req.AddCookie(&http.Cookie{Name: sessionCookie, Value: "s1"})
			w := serve(h, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}

			upstream, _ := mock.LastRequest()
			if got := upstream.Header.Get("Authorization"); got != "Bearer tok-s1" {
				t.Errorf("Authorization = %q, want %q", got, "Bearer tok-s1")
			}
		})
	}
}

// seriesCount reports how many series the named metric family holds.
func seriesCount(t *testing.T, family string) int {
	t.Helper()

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather() failed: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == family {
			return len(mf.GetMetric())
		}
	}
	return 0
}

func TestProxy_MetricSeriesIndependentOfPath(t *testing.T) {
	mock, h := setupProxy(t, nil)

	send := func(method, path string) {
		mock.SetResponse(method+" "+path, testutil.NewJSONResponse(`{}`))
		req := httptest.NewRequest(method, "/api/proxy"+path, nil)
		if w := serve(h, req); w.Code != http.StatusOK {
			t.Fatalf("%s %s status = %d, want 200", method, path, w.Code)
		}
	}

	// First call per method may create its series
	send(http.MethodDelete, "/records/0")
	send(http.MethodGet, "/records/0")
	durations := seriesCount(t, "api_request_duration_seconds")
	totals := seriesCount(t, "api_requests_total")

	for i := 1; i <= 25; i++ {
		send(http.MethodDelete, fmt.Sprintf("/records/%d", i))
		send(http.MethodGet, fmt.Sprintf("/records/%d/versions/%d", i, i*7))
	}

	if got := seriesCount(t, "api_request_duration_seconds"); got != durations {
		t.Errorf("api_request_duration_seconds series grew from %d to %d across distinct proxy paths", durations, got)
	}
	if got := seriesCount(t, "api_requests_total"); got != totals {
		t.Errorf("api_requests_total series grew from %d to %d across distinct proxy paths", totals, got)
	}
}

func TestCORS(t *testing.T) {
	_, h := setupProxy(t, nil)

	req := httptest.NewRequest("OPTIONS", "/api/documents", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := serve(h, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}

	req = httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("Origin", "http://evil.example.com")
	w = serve(h, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("disallowed origin got Access-Control-Allow-Origin = %q", got)
	}
}

func TestNoRoute(t *testing.T) {
	_, h := setupProxy(t, nil)

	w := serve(h, httptest.NewRequest("GET", "/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestNewAPIClient(t *testing.T) {
	cfg := &Config{BackendURL: "http://localhost:9999", Timeout: 5 * time.Second, CacheEnabled: true}

	c, err := newAPIClient(cfg, nil)
	if err != nil {
		t.Fatalf("newAPIClient() failed: %v", err)
	}
	if c.BaseURL() != cfg.BackendURL {
		t.Errorf("BaseURL() = %q", c.BaseURL())
	}

	cfg.BackendURL = "not a url"
	if _, err := newAPIClient(cfg, nil); err == nil {
		t.Error("expected error for invalid backend url")
	}
}
