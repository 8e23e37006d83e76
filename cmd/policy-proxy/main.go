// Command policy-proxy is a backend-for-frontend in front of the document-chat
// backend. It resolves the caller's bearer token from a Redis session and
// forwards requests through the API client.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/uspolicy-client/pkg/cache"
	"github.com/Sternrassler/uspolicy-client/pkg/client"
	"github.com/Sternrassler/uspolicy-client/pkg/logging"
	"github.com/Sternrassler/uspolicy-client/pkg/session"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	logging.Setup(cfg.Logging())
	logger := logging.NewLogger("policy-proxy")

	if cfg.Logging().Level != logging.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup Redis
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := redisClient.Ping(ctx).Err()
		cancel()
		if err != nil {
			logger.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("Failed to connect to Redis")
		}
		logger.Info().Str("addr", cfg.RedisAddr).Msg("Connected to Redis")
	} else {
		logger.Warn().Msg("Redis disabled; requests carry no session token and nothing is cached")
	}

	apiClient, err := newAPIClient(cfg, redisClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create API client")
	}
	defer apiClient.Close()

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      newServer(apiClient, redisClient, logger).routes(cfg.AllowedOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("addr", srv.Addr).
			Str("backend", cfg.BackendURL).
			Bool("cache", cfg.CacheEnabled && redisClient != nil).
			Msg("Starting policy proxy")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}
}

// newAPIClient builds the backend client. With Redis, tokens come from the
// caller's session and GET responses are revalidated from cache.
func newAPIClient(cfg *Config, redisClient *redis.Client) (*client.Client, error) {
	var tokens session.TokenProvider = session.StaticToken("")
	if redisClient != nil {
		tokens = session.NewRedisStore(redisClient)
	}

	clientCfg := client.DefaultConfig(cfg.BackendURL, tokens)
	clientCfg.Timeout = cfg.Timeout
	if redisClient != nil && cfg.CacheEnabled {
		clientCfg.Cache = cache.NewManager(redisClient)
	}

	return client.New(clientCfg)
}
