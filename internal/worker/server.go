package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dunamismax/pixelresize/internal/config"
	"github.com/dunamismax/pixelresize/internal/domain"
	"github.com/dunamismax/pixelresize/internal/logging"
	"github.com/dunamismax/pixelresize/internal/pipeline"
	"github.com/dunamismax/pixelresize/internal/queue"
	"github.com/dunamismax/pixelresize/internal/store"
	"github.com/dunamismax/pixelresize/internal/webhook"
	"github.com/hashicorp/go-hclog"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	statusFailed    = "failed"
	statusSucceeded = "succeeded"
)

type Server struct {
	logger      hclog.Logger
	server      *asynq.Server
	sem         chan struct{}
	processor   *pipeline.Processor
	notifier    webhookSender
	exportStore store.ExportStore
	presigner   presigner
	presignTTL  time.Duration
	metrics     *metrics
	tracer      trace.Tracer
}

type webhookSender interface {
	Send(ctx context.Context, endpoint, event string, payload any) error
}

type blobStorage interface {
	pipeline.BlobReader
	pipeline.BlobWriter
}

// presigner is implemented by object stores that can hand out direct
// download links.
type presigner interface {
	PresignedGetURL(ctx context.Context, objectKey, filename string, expiry time.Duration) (string, error)
}

// Dependencies are the backends an export worker uses. Webhooks and
// Exports may be nil. MaxPixels caps the render target; zero disables it.
type Dependencies struct {
	Blobs      blobStorage
	Webhooks   *webhook.Client
	Exports    store.ExportStore
	PresignTTL time.Duration
	MaxPixels  int64
}

func NewServer(logger hclog.Logger, queueCfg config.QueueConfig, workerCfg config.WorkerConfig, deps Dependencies) (*Server, error) {
	if deps.Blobs == nil {
		return nil, fmt.Errorf("object storage is required")
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	processor, err := pipeline.NewProcessor(
		pipeline.ObjectStoreFetcher{Storage: deps.Blobs},
		nil,
		pipeline.ObjectStoreEmitter{Storage: deps.Blobs},
	)
	if err != nil {
		return nil, fmt.Errorf("initialize export processor: %w", err)
	}
	processor.WithMaxPixels(deps.MaxPixels)

	s := &Server{
		logger: logger,
		server: asynq.NewServer(
			queueCfg.RedisClientOpt(),
			asynq.Config{
				Concurrency: workerCfg.Concurrency,
				Queues: map[string]int{
					queueCfg.Name: 1,
				},
				Logger:   logging.AsynqLogger{Logger: logger.Named("asynq")},
				LogLevel: asynq.InfoLevel,
				ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
					retried, _ := asynq.GetRetryCount(ctx)
					maxRetry, _ := asynq.GetMaxRetry(ctx)
					logger.Warn("task failed", "type", task.Type(), "retry", retried, "max_retry", maxRetry, "err", err)
				}),
			},
		),
		sem:         make(chan struct{}, max(1, workerCfg.MaxActiveJobs)),
		processor:   processor,
		exportStore: deps.Exports,
		presignTTL:  deps.PresignTTL,
		metrics:     newMetrics(),
		tracer:      otel.Tracer("pixelresize/worker"),
	}
	if deps.Webhooks != nil {
		s.notifier = deps.Webhooks
	}
	if p, ok := deps.Blobs.(presigner); ok && deps.PresignTTL > 0 {
		s.presigner = p
	}
	return s, nil
}

// Start begins consuming tasks in the background; pair it with Shutdown.
func (s *Server) Start() error {
	return s.server.Start(s.handler())
}

func (s *Server) handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TypeExportImage, s.handleExportImage)
	return mux
}

func (s *Server) Shutdown() {
	s.server.Shutdown()
}

func (s *Server) MetricsHandler() http.Handler {
	return s.metrics.Handler()
}

func (s *Server) handleExportImage(ctx context.Context, task *asynq.Task) error {
	startedAt := time.Now()
	outcome := statusFailed

	payload, err := queue.ParseExportImagePayload(task)
	if err != nil {
		return fmt.Errorf("parse payload: %v: %w", err, asynq.SkipRetry)
	}
	format := string(payload.Options.OutputFormat)

	ctx, span := s.tracer.Start(ctx, "worker.export_image", trace.WithSpanKind(trace.SpanKindConsumer))
	span.SetAttributes(
		attribute.String("export.id", payload.ExportID),
		attribute.String("session.id", payload.Session.ID),
		attribute.String("export.format", format),
		attribute.String("export.target", payload.Session.State.Target.String()),
	)
	defer span.End()
	defer func() {
		s.metrics.exportDuration.WithLabelValues(format, outcome).Observe(time.Since(startedAt).Seconds())
		s.metrics.exportsTotal.WithLabelValues(format, outcome).Inc()
	}()

	s.sem <- struct{}{}
	s.metrics.activeExports.Inc()
	defer func() {
		<-s.sem
		s.metrics.activeExports.Dec()
	}()

	s.logger.Debug("exporting", "export_id", payload.ExportID, "session_id", payload.Session.ID, "target", payload.Session.State.Target, "format", format)

	out, err := s.processor.Export(ctx, pipeline.Request{
		ExportID:   payload.ExportID,
		SourceType: pipeline.SourceTypeObjectStore,
		Session:    payload.Session,
		Options:    payload.Options,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "export failed")
		s.dispatchWebhook(ctx, payload, webhook.EventExportFailed, map[string]any{
			"export_id":    payload.ExportID,
			"session_id":   payload.Session.ID,
			"status":       statusFailed,
			"requested_at": payload.RequestedAt,
			"failed_at":    time.Now().UTC(),
			"error":        err.Error(),
		})
		if isPermanent(err) {
			return fmt.Errorf("export: %w: %w", err, asynq.SkipRetry)
		}
		return fmt.Errorf("export: %w", err)
	}

	s.logger.Info("export stored", "export_id", payload.ExportID, "object_key", out.Path, "bytes", out.Bytes)
	s.metrics.outputBytesTotal.Add(float64(out.Bytes))
	s.metrics.pixelsRenderedTotal.Add(float64(out.Width * out.Height))
	s.recordExport(ctx, out, time.Since(startedAt))

	completed := map[string]any{
		"export_id":    payload.ExportID,
		"session_id":   payload.Session.ID,
		"status":       statusSucceeded,
		"notice":       out.Notice,
		"requested_at": payload.RequestedAt,
		"completed_at": time.Now().UTC(),
		"output":       out,
	}
	if url := s.downloadURL(ctx, out); url != "" {
		completed["download_url"] = url
	}
	if err := s.dispatchWebhook(ctx, payload, webhook.EventExportCompleted, completed); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "webhook dispatch failed")
		if isPermanent(err) {
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		return err
	}

	outcome = statusSucceeded
	span.SetStatus(codes.Ok, "exported")
	return nil
}

func (s *Server) downloadURL(ctx context.Context, out pipeline.Output) string {
	if s.presigner == nil {
		return ""
	}
	url, err := s.presigner.PresignedGetURL(ctx, out.Path, out.Filename, s.presignTTL)
	if err != nil {
		s.logger.Warn("presign export failed", "export_id", out.ExportID, "object_key", out.Path, "err", err)
		return ""
	}
	return url
}

// isPermanent reports errors that a retry cannot fix.
func isPermanent(err error) bool {
	for _, target := range []error{domain.ErrNoImage, domain.ErrInvalidTarget, domain.ErrUnsupportedFormat, pipeline.ErrDecode, store.ErrBlobNotFound, webhook.ErrRejected} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (s *Server) dispatchWebhook(ctx context.Context, payload queue.ExportImagePayload, event string, body map[string]any) error {
	if payload.WebhookURL == "" || s.notifier == nil {
		return nil
	}

	if err := s.notifier.Send(ctx, payload.WebhookURL, event, body); err != nil {
		s.logger.Warn("webhook delivery failed", "export_id", payload.ExportID, "event", event, "err", err)
		return fmt.Errorf("dispatch webhook: %w", err)
	}
	return nil
}

func (s *Server) recordExport(ctx context.Context, out pipeline.Output, computeDuration time.Duration) {
	if s.exportStore == nil {
		return
	}

	if computeDuration < time.Millisecond {
		computeDuration = time.Millisecond
	}

	record := domain.ExportRecord{
		ID:          out.ExportID,
		SessionID:   out.SessionID,
		Format:      out.Format,
		Quality:     out.Quality,
		Width:       out.Width,
		Height:      out.Height,
		SourceBytes: out.SourceBytes,
		OutputBytes: out.Bytes,
		ObjectKey:   out.Path,
		ComputeTime: computeDuration,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.exportStore.CreateExportRecord(ctx, record); err != nil {
		s.logger.Warn("export record write failed", "export_id", out.ExportID, "err", err)
	}
}
