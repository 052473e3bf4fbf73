package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dunamismax/pixelresize/internal/domain"
	"github.com/dunamismax/pixelresize/internal/pipeline"
	"github.com/dunamismax/pixelresize/internal/queue"
	"github.com/dunamismax/pixelresize/internal/store"
	"github.com/hashicorp/go-hclog"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	HeaderNotice = "X-Pixelresize-Notice"

	defaultMaxUploadBytes = 32 << 20
)

type Server struct {
	logger                hclog.Logger
	sessions              store.SessionStore
	blobs                 store.BlobStore
	exports               store.ExportStore
	queueClient           exportEnqueuer
	rateLimiter           RateLimiter
	rateLimitUserIDHeader string
	processor             *pipeline.Processor
	presignTTL            time.Duration
	options               domain.ExportOptions
	maxUploadBytes        int64
	maxPixels             int64
	metrics               *metrics
	tracer                trace.Tracer
	mux                   *http.ServeMux
}

type exportEnqueuer interface {
	EnqueueExportImage(ctx context.Context, payload queue.ExportImagePayload) (*asynq.TaskInfo, error)
}

// Dependencies are the backends a Server talks to. Exports, Queue and
// RateLimiter may be nil.
type Dependencies struct {
	Sessions    store.SessionStore
	Blobs       store.BlobStore
	Exports     store.ExportStore
	Queue       exportEnqueuer
	RateLimiter RateLimiter
	Renderer    pipeline.Renderer
}

// Settings tune a Server. MaxPixels bounds decoded uploads and export
// targets; zero disables it.
type Settings struct {
	Export                domain.ExportOptions
	MaxUploadBytes        int64
	MaxPixels             int64
	RateLimitUserIDHeader string
	// PresignTTL enables download links on export status when the blob
	// store can presign.
	PresignTTL time.Duration
}

type presigner interface {
	PresignedGetURL(ctx context.Context, objectKey, filename string, expiry time.Duration) (string, error)
}

func NewServer(logger hclog.Logger, deps Dependencies, settings Settings) (*Server, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if deps.Sessions == nil || deps.Blobs == nil {
		return nil, errors.New("session store and blob store are required")
	}
	if err := settings.Export.Validate(); err != nil {
		return nil, fmt.Errorf("export options: %w", err)
	}
	if settings.MaxUploadBytes <= 0 {
		settings.MaxUploadBytes = defaultMaxUploadBytes
	}
	if settings.RateLimitUserIDHeader == "" {
		settings.RateLimitUserIDHeader = "X-User-ID"
	}

	processor, err := pipeline.NewProcessor(
		pipeline.ObjectStoreFetcher{Storage: deps.Blobs},
		deps.Renderer,
		pipeline.BufferEmitter{},
	)
	if err != nil {
		return nil, fmt.Errorf("initialize export processor: %w", err)
	}
	processor.WithMaxPixels(settings.MaxPixels)

	s := &Server{
		logger:                logger,
		sessions:              deps.Sessions,
		blobs:                 deps.Blobs,
		exports:               deps.Exports,
		queueClient:           deps.Queue,
		rateLimiter:           deps.RateLimiter,
		rateLimitUserIDHeader: settings.RateLimitUserIDHeader,
		processor:             processor,
		presignTTL:            settings.PresignTTL,
		options:               settings.Export,
		maxUploadBytes:        settings.MaxUploadBytes,
		maxPixels:             settings.MaxPixels,
		metrics:               newMetrics(),
		tracer:                otel.Tracer("pixelresize/api"),
		mux:                   http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.withTracing(s.metrics.withHTTPMetrics(s.withRateLimit(s.mux)))
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.Handle("GET /metrics", s.metrics.metricsHandler())
	s.mux.HandleFunc("GET /v1/config", s.handleConfig)

	s.mux.HandleFunc("POST /v1/sessions", s.handleCreateSession)
	s.mux.HandleFunc("GET /v1/sessions/{id}", s.handleGetSession)
	s.mux.HandleFunc("PUT /v1/sessions/{id}/image", s.handleUploadImage)
	s.mux.HandleFunc("PATCH /v1/sessions/{id}/dimensions", s.handleSetDimension)
	s.mux.HandleFunc("PUT /v1/sessions/{id}/aspect-lock", s.handleSetAspectLock)
	s.mux.HandleFunc("PUT /v1/sessions/{id}/quality", s.handleSetQuality)
	s.mux.HandleFunc("POST /v1/sessions/{id}/export", s.handleExport)
	s.mux.HandleFunc("POST /v1/sessions/{id}/exports", s.handleEnqueueExport)
	s.mux.HandleFunc("GET /v1/sessions/{id}/exports/{export_id}", s.handleExportStatus)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"renderer": pipeline.RendererName(),
	})
}

func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"export":           s.options,
		"filename":         s.options.OutputFormat.Filename(),
		"async_exports":    s.queueClient != nil,
		"max_upload_bytes": s.maxUploadBytes,
	})
}

func decodeJSON(r *http.Request, into any) error {
	const maxBodyBytes = 1 << 20
	limited := io.LimitReader(r.Body, maxBodyBytes)
	decoder := json.NewDecoder(limited)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(into); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return errors.New("invalid JSON body: multiple JSON values are not allowed")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
