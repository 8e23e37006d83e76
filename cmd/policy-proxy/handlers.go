package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Sternrassler/uspolicy-client/pkg/client"
	"github.com/Sternrassler/uspolicy-client/pkg/metrics"
	"github.com/Sternrassler/uspolicy-client/pkg/pagination"
	"github.com/Sternrassler/uspolicy-client/pkg/policy"
	"github.com/Sternrassler/uspolicy-client/pkg/session"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	// sessionCookie carries the id of the caller's Redis-stored session
	sessionCookie = "session_id"

	// defaultPageSize applies when a paged proxy call omits size
	defaultPageSize = 20
)

// server holds the handler dependencies.
type server struct {
	api    *client.Client
	redis  *redis.Client // nil when Redis is disabled
	logger zerolog.Logger
}

func newServer(api *client.Client, redisClient *redis.Client, logger zerolog.Logger) *server {
	return &server{api: api, redis: redisClient, logger: logger}
}

// routes builds the gin engine.
func (s *server) routes(allowedOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(s.requestLogger(), gin.Recovery(), corsMiddleware(allowedOrigins), sessionFromCookie())

	r.GET("/health", s.health)
	r.GET("/ready", s.ready)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/api")
	{
		api.GET("/documents", s.listDocuments)
		api.POST("/chat", s.chat)

		proxy := api.Group("/proxy")
		proxy.GET("/*path", s.proxyGet)
		proxy.POST("/*path", s.proxyPost)
		proxy.DELETE("/*path", s.proxyDelete)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":  "route not found",
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		})
	})

	return r
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", client.HeaderRequestID},
		ExposeHeaders:    []string{client.HeaderRequestID},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	for _, origin := range allowedOrigins {
		origin = strings.TrimSpace(origin)
		if origin == "*" {
			cfg.AllowOrigins = nil
			cfg.AllowAllOrigins = true
			break
		}
		if origin != "" {
			cfg.AllowOrigins = append(cfg.AllowOrigins, origin)
		}
	}
	if !cfg.AllowAllOrigins && len(cfg.AllowOrigins) == 0 {
		cfg.AllowAllOrigins = true
	}

	return cors.New(cfg)
}

// sessionFromCookie puts the session id from the cookie into the request
// context, where session.RedisStore looks it up.
func sessionFromCookie() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id, err := c.Cookie(sessionCookie); err == nil && id != "" {
			c.Request = c.Request.WithContext(session.WithID(c.Request.Context(), id))
		}
		c.Next()
	}
}

func (s *server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("ip", c.ClientIP()).
			Msg("Request handled")
	}
}

func (s *server) health(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

// ready reports whether Redis, when configured, is reachable.
func (s *server) ready(c *gin.Context) {
	if s.redis != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := s.redis.Ping(ctx).Err(); err != nil {
			s.logger.Warn().Err(err).Msg("Readiness check failed")
			c.String(http.StatusServiceUnavailable, "Redis unavailable")
			return
		}
	}
	c.String(http.StatusOK, "OK")
}

func (s *server) listDocuments(c *gin.Context) {
	docs, err := policy.ListDocuments(c.Request.Context(), s.api, requestOptions(c))
	if err != nil {
		s.upstreamError(c, err)
		return
	}
	c.JSON(http.StatusOK, docs)
}

func (s *server) chat(c *gin.Context) {
	var req policy.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}

	resp, err := policy.Chat(c.Request.Context(), s.api, req, requestOptions(c))
	if errors.Is(err, policy.ErrMissingMessage) || errors.Is(err, policy.ErrMissingDocument) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		s.upstreamError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// proxyGet forwards a GET. With a page query it is a paged fetch; otherwise
// a 302 from the backend is turned into a browser redirect.
func (s *server) proxyGet(c *gin.Context) {
	endpoint := c.Param("path")
	query := c.Request.URL.Query()
	opts := proxyOptions(c)

	if query.Has(pagination.ParamPage) {
		paged, err := pagination.FromValues(query, defaultPageSize)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		for _, key := range []string{pagination.ParamPage, pagination.ParamSize, pagination.ParamSortBy, pagination.ParamSortDirection} {
			query.Del(key)
		}
		opts.Query = query

		body, err := client.FetchPagedData[json.RawMessage](c.Request.Context(), s.api, endpoint, paged, opts)
		if err != nil {
			s.upstreamError(c, err)
			return
		}
		writeJSON(c, http.StatusOK, body)
		return
	}

	opts.Query = query
	opts.Navigator = client.NavigatorFunc(func(_ context.Context, location string) error {
		c.Redirect(http.StatusFound, location)
		return nil
	})

	body, err := client.FetchDataWithRedirect[json.RawMessage](c.Request.Context(), s.api, endpoint, opts)
	if err != nil {
		s.upstreamError(c, err)
		return
	}
	if body == nil {
		// Navigator already wrote the redirect
		return
	}
	writeJSON(c, http.StatusOK, *body)
}

func (s *server) proxyPost(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}

	var payload interface{}
	if len(raw) > 0 {
		if !json.Valid(raw) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
			return
		}
		payload = json.RawMessage(raw)
	}

	opts := proxyOptions(c)
	opts.Query = c.Request.URL.Query()

	body, err := client.PostData[json.RawMessage](c.Request.Context(), s.api, c.Param("path"), payload, opts)
	if err != nil {
		s.upstreamError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, body)
}

func (s *server) proxyDelete(c *gin.Context) {
	opts := proxyOptions(c)
	opts.Query = c.Request.URL.Query()

	body, err := client.DeleteData[json.RawMessage](c.Request.Context(), s.api, c.Param("path"), opts)
	if err != nil {
		s.upstreamError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, body)
}

// requestOptions forwards the caller's request id to the backend.
func requestOptions(c *gin.Context) *client.RequestOptions {
	opts := &client.RequestOptions{}
	if id := c.GetHeader(client.HeaderRequestID); id != "" {
		opts.Headers = map[string]string{client.HeaderRequestID: id}
	}
	return opts
}

// proxyMetricLabel stands in for the caller-chosen path in request metrics.
const proxyMetricLabel = "/api/proxy/*path"

func proxyOptions(c *gin.Context) *client.RequestOptions {
	opts := requestOptions(c)
	opts.MetricLabel = proxyMetricLabel
	return opts
}

// upstreamError answers with the backend's status for rejected 4xx/5xx calls,
// 504 for timeouts and 502 for everything else.
func (s *server) upstreamError(c *gin.Context, err error) {
	status := http.StatusBadGateway
	message := err.Error()

	if upstream, ok := client.StatusCode(err); ok && upstream >= http.StatusBadRequest {
		status = upstream
		if msg := policy.Message(err); msg != "" {
			message = msg
		}
	} else if errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusGatewayTimeout
	}

	s.logger.Warn().Err(err).
		Str("path", c.Request.URL.Path).
		Int("status", status).
		Msg("Backend request failed")

	c.JSON(status, gin.H{"error": message})
}

// writeJSON writes a raw JSON body; an empty body becomes 204.
func writeJSON(c *gin.Context, status int, body json.RawMessage) {
	if len(body) == 0 {
		c.Status(http.StatusNoContent)
		return
	}
	c.Data(status, "application/json; charset=utf-8", body)
}
