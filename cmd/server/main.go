package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tablewise/backend/internal/cache"
	"github.com/tablewise/backend/internal/config"
	"github.com/tablewise/backend/internal/db"
	httpapi "github.com/tablewise/backend/internal/http"
	"github.com/tablewise/backend/internal/queue"
	"github.com/tablewise/backend/internal/service"
	"github.com/tablewise/backend/internal/source"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	logger := log.Level(level).With().Str("service", "tablewise-backend").Logger()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	store, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect db")
	}
	defer store.Close()

	var metricsSource source.Source
	if cfg.MetricsSourceURL == "" {
		metricsSource = source.Store{Store: store}
		logger.Info().Msg("using store-backed metrics source")
	} else {
		metricsSource = source.HTTP{BaseURL: cfg.MetricsSourceURL}
		logger.Info().Str("url", cfg.MetricsSourceURL).Msg("using HTTP metrics source")
	}

	var resultCache cache.Cache
	if cfg.CacheBackend == "redis" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Warn().Err(err).Msg("redis unreachable, falling back to memory cache")
			resultCache = cache.NewMemory(cfg.CacheTTL)
		} else {
			resultCache = cache.NewRedis(client, cfg.CacheTTL, logger)
			logger.Info().Str("addr", cfg.RedisAddr).Msg("using redis result cache")
		}
	} else {
		resultCache = cache.NewMemory(cfg.CacheTTL)
	}

	analytics := &service.Analytics{
		Source:       metricsSource,
		Cache:        resultCache,
		Logger:       logger,
		QueryTimeout: cfg.QueryTimeout,
	}

	var publisher *queue.Publisher
	if cfg.AMQPURL != "" {
		publisher = &queue.Publisher{URL: cfg.AMQPURL, Logger: logger}
		consumer := queue.Consumer{URL: cfg.AMQPURL, Cache: resultCache, Logger: logger}
		go consumer.Run(ctx)
	}

	router := httpapi.Router(cfg, store, analytics, resultCache, publisher, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	stop()

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShutdown)
	logger.Info().Msg("server stopped")
}
