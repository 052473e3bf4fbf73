package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dunamismax/pixelresize/internal/api"
	"github.com/dunamismax/pixelresize/internal/config"
	"github.com/dunamismax/pixelresize/internal/logging"
	"github.com/dunamismax/pixelresize/internal/pipeline"
	"github.com/dunamismax/pixelresize/internal/queue"
	"github.com/dunamismax/pixelresize/internal/ratelimit"
	"github.com/dunamismax/pixelresize/internal/storage"
	"github.com/dunamismax/pixelresize/internal/store"
	"github.com/dunamismax/pixelresize/internal/telemetry"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()
	logger := logging.New("api", cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TraceConfig{
		ServiceName:  "pixelresize-api",
		Exporter:     cfg.Tracing.Exporter,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		OTLPInsecure: cfg.Tracing.OTLPInsecure,
		SampleRatio:  cfg.Tracing.SampleRatio,
		Renderer:     pipeline.RendererName(),
	}, logger.Named("tracing"))
	if err != nil {
		logger.Error("tracing setup failed", "err", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown failed", "err", err)
		}
	}()

	if err := pipeline.Startup(); err != nil {
		logger.Error("renderer startup failed", "err", err)
		os.Exit(1)
	}
	defer pipeline.Shutdown()

	deps := api.Dependencies{
		Sessions: store.NewMemorySessionStore(cfg.Session.TTL),
		Blobs:    store.NewMemoryBlobStore(),
		Exports:  store.NewMemoryExportStore(),
	}

	if cfg.Queue.Enabled() {
		redisClient := redis.NewClient(cfg.Queue.RedisOptions())
		defer redisClient.Close()

		sessions, err := store.NewRedisSessionStore(redisClient, cfg.Session.TTL, "")
		if err != nil {
			logger.Error("session store setup failed", "err", err)
			os.Exit(1)
		}
		deps.Sessions = sessions

		limiter, err := ratelimit.NewRedisTokenBucket(redisClient, cfg.RateLimit.Capacity, cfg.RateLimit.Window, "")
		if err != nil {
			logger.Error("rate limiter setup failed", "err", err)
			os.Exit(1)
		}
		deps.RateLimiter = limiter

		queueClient := queue.NewClient(cfg.Queue.RedisClientOpt(), cfg.Queue.Name)
		defer func() {
			if err := queueClient.Close(); err != nil {
				logger.Warn("queue client close failed", "err", err)
			}
		}()
		deps.Queue = queueClient
		logger.Info("redis backends enabled", "addr", cfg.Queue.RedisAddr, "queue", cfg.Queue.Name)
	}

	if cfg.Storage.Enabled() {
		blobs, err := storage.NewClient(storage.Config{
			Endpoint: cfg.Storage.Endpoint,
			Access:   cfg.Storage.AccessKey,
			Secret:   cfg.Storage.SecretKey,
			Bucket:   cfg.Storage.Bucket,
			UseSSL:   cfg.Storage.UseSSL,
		})
		if err != nil {
			logger.Error("object storage setup failed", "err", err)
			os.Exit(1)
		}
		if err := blobs.EnsureBucket(ctx); err != nil {
			logger.Error("object storage bucket check failed", "bucket", blobs.Bucket(), "err", err)
			os.Exit(1)
		}
		deps.Blobs = blobs
	} else if deps.Queue != nil {
		logger.Warn("async exports need MINIO_ENDPOINT; sources uploaded to this process are invisible to workers")
	}

	if cfg.Database.DSN != "" {
		exports, err := store.NewPostgresExportStore(ctx, cfg.Database.DSN)
		if err != nil {
			logger.Error("export store setup failed", "err", err)
			os.Exit(1)
		}
		defer exports.Close()
		deps.Exports = exports
	}

	app, err := api.NewServer(logger.Named("http"), deps, api.Settings{
		Export:                cfg.Export,
		MaxUploadBytes:        cfg.API.MaxUploadBytes,
		MaxPixels:             cfg.Limits.MaxOutputPixels,
		RateLimitUserIDHeader: cfg.RateLimit.UserIDHeader,
		PresignTTL:            cfg.Storage.PresignTTL,
	})
	if err != nil {
		logger.Error("api setup failed", "err", err)
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:         cfg.API.Addr,
		Handler:      app.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", cfg.API.Addr, "renderer", pipeline.RendererName(), "output_format", cfg.Export.OutputFormat)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", "err", err)
	}
}
