package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/image-proxy/internal/api/handlers/image"
	"github.com/aliskhannn/image-proxy/internal/api/router"
	"github.com/aliskhannn/image-proxy/internal/api/server"
	"github.com/aliskhannn/image-proxy/internal/cache"
	"github.com/aliskhannn/image-proxy/internal/config"
	"github.com/aliskhannn/image-proxy/internal/engine"
	"github.com/aliskhannn/image-proxy/internal/fetcher"
	"github.com/aliskhannn/image-proxy/internal/infra/kafka/consumer"
	"github.com/aliskhannn/image-proxy/internal/infra/kafka/producer"
	"github.com/aliskhannn/image-proxy/internal/kafka/handlers/warm"
	"github.com/aliskhannn/image-proxy/internal/proxy"
	"github.com/aliskhannn/image-proxy/internal/storage/file"
)

func main() {
	configPath := flag.String("config", envOr("CONFIG_PATH", "./config/config.yaml"), "path to the YAML config file")
	flag.Parse()

	// Context & signals: used for graceful shutdown on system interrupts.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize logger and load application configuration.
	zlog.Init()
	cfg := config.MustLoad(*configPath)

	defaultFormat, err := engine.ParseFormat(cfg.Server.DefaultFormat)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("invalid default format")
	}

	// Retry strategy for Kafka calls.
	strategy := retry.Strategy{
		Attempts: cfg.Retry.Attempts,
		Delay:    cfg.Retry.Delay,
		Backoff:  cfg.Retry.Backoff,
	}

	// Rendered image cache, shared by every request.
	imageCache, err := cache.New(cfg.Cache.Capacity)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to create cache")
	}

	// Source fetchers: http(s) always, s3 when object storage is configured.
	web := fetcher.NewHTTP(fetcher.HTTPOptions{
		Timeout:      cfg.Fetcher.Timeout,
		MaxBytes:     cfg.Fetcher.MaxBytes,
		UserAgent:    cfg.Fetcher.UserAgent,
		RetryMax:     cfg.Fetcher.RetryMax,
		RetryWaitMin: cfg.Fetcher.RetryWaitMin,
		RetryWaitMax: cfg.Fetcher.RetryWaitMax,
	})
	sources := fetcher.NewRouter().Handle(web, "http", "https")

	if cfg.Storage.Enabled {
		storage, err := file.NewStorage(cfg.Storage.Endpoint, cfg.Storage.AccessKey, cfg.Storage.SecretKey, cfg.Storage.UseSSL, cfg.Fetcher.MaxBytes)
		if err != nil {
			zlog.Logger.Fatal().Err(err).Msg("failed to connect to storage")
		}
		if err := storage.Ping(ctx, cfg.Storage.Buckets...); err != nil {
			zlog.Logger.Fatal().Err(err).Msg("failed to check storage buckets")
		}
		sources.Handle(storage, file.Scheme)
	}

	// Transform engine and the request coordinator.
	factory := engine.NewFactory(engine.Options{
		JPEGQuality:      cfg.Engine.JPEGQuality,
		MaxSourcePixels:  cfg.Engine.MaxSourcePixels,
		Watermark:        engine.NewMark(cfg.Engine.WatermarkText),
		WatermarkOpacity: cfg.Engine.WatermarkOpacity,
	})
	coordinator := proxy.New(imageCache, sources, factory, proxy.Options{SingleFlight: cfg.Cache.SingleFlight})

	// Optional warm-up queue.
	var (
		p  *producer.Producer
		c  *consumer.Consumer
		wg sync.WaitGroup
	)
	var imgHandler *image.Handler
	if cfg.Kafka.Enabled {
		p = producer.New(&cfg.Kafka, strategy)
		c = consumer.New(&cfg.Kafka, strategy, warm.NewHandler(coordinator, defaultFormat))

		wg.Add(1)
		go c.Consume(ctx, &wg)

		imgHandler = image.NewHandler(coordinator, imageCache, p, defaultFormat, cfg.Server.CacheMaxAge)
	} else {
		imgHandler = image.NewHandler(coordinator, imageCache, nil, defaultFormat, cfg.Server.CacheMaxAge)
	}

	// Start HTTP server in a separate goroutine.
	r := router.Setup(imgHandler)
	s := server.New(cfg.Server.HTTPPort, r)
	go func() {
		zlog.Logger.Info().Str("addr", cfg.Server.HTTPPort).Msg("starting server")
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Block until context is canceled (SIGINT/SIGTERM).
	<-ctx.Done()
	zlog.Logger.Info().Msg("context done")

	// Wait for Kafka consumer goroutine to finish.
	wg.Wait()

	// Graceful shutdown with timeout for HTTP server.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	zlog.Logger.Info().Msg("shutting down server")
	if err := s.Shutdown(shutdownCtx); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to shutdown server")
	}
	if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
		zlog.Logger.Info().Msg("timeout exceeded, forcing shutdown")
	}

	// Close Kafka producer and consumer clients.
	if p != nil {
		if err := p.Client.Close(); err != nil {
			zlog.Logger.Error().Err(err).Msg("failed to close kafka producer client")
		}
	}
	if c != nil {
		if err := c.Client.Close(); err != nil {
			zlog.Logger.Error().Err(err).Msg("failed to close kafka consumer client")
		}
	}

	stats := imageCache.Stats()
	zlog.Logger.Info().
		Uint64("hits", stats.Hits).
		Uint64("misses", stats.Misses).
		Uint64("evictions", stats.Evictions).
		Msg("cache stats at shutdown")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
