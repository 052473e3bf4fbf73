package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dunamismax/pixelresize/internal/config"
	"github.com/dunamismax/pixelresize/internal/logging"
	"github.com/dunamismax/pixelresize/internal/pipeline"
	"github.com/dunamismax/pixelresize/internal/storage"
	"github.com/dunamismax/pixelresize/internal/store"
	"github.com/dunamismax/pixelresize/internal/telemetry"
	"github.com/dunamismax/pixelresize/internal/webhook"
	"github.com/dunamismax/pixelresize/internal/worker"
)

func main() {
	cfg := config.Load()
	logger := logging.New("worker", cfg.Log)

	if !cfg.Queue.Enabled() || !cfg.Storage.Enabled() {
		logger.Error("worker needs REDIS_ADDR and MINIO_ENDPOINT")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TraceConfig{
		ServiceName:  "pixelresize-worker",
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

	var exports store.ExportStore = store.NewMemoryExportStore()
	if cfg.Database.DSN != "" {
		pg, err := store.NewPostgresExportStore(ctx, cfg.Database.DSN)
		if err != nil {
			logger.Error("export store setup failed", "err", err)
			os.Exit(1)
		}
		defer pg.Close()
		exports = pg
	}

	webhookClient := webhook.NewClient(webhook.Config{
		SigningSecret:  cfg.Webhook.SigningSecret,
		Timeout:        cfg.Webhook.Timeout,
		MaxAttempts:    cfg.Webhook.MaxAttempts,
		InitialBackoff: cfg.Webhook.InitialBackoff,
		MaxBackoff:     cfg.Webhook.MaxBackoff,
	})

	srv, err := worker.NewServer(logger, cfg.Queue, cfg.Worker, worker.Dependencies{
		Blobs:      blobs,
		Webhooks:   webhookClient,
		Exports:    exports,
		PresignTTL: cfg.Storage.PresignTTL,
		MaxPixels:  cfg.Limits.MaxOutputPixels,
	})
	if err != nil {
		logger.Error("worker setup failed", "err", err)
		os.Exit(1)
	}

	metricsServer := &http.Server{
		Addr:              cfg.Worker.MetricsAddr,
		Handler:           srv.MetricsHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server failed", "err", err)
		}
	}()

	logger.Info("starting worker",
		"concurrency", cfg.Worker.Concurrency,
		"max_active_jobs", cfg.Worker.MaxActiveJobs,
		"queue", cfg.Queue.Name,
		"redis", cfg.Queue.RedisAddr,
		"renderer", pipeline.RendererName(),
	)

	if err := srv.Start(); err != nil {
		logger.Error("worker failed", "err", err)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("shutting down")
	srv.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)
}
