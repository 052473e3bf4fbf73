package config

import (
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/dunamismax/pixelresize/internal/domain"
	"github.com/dunamismax/pixelresize/internal/logging"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

type Config struct {
	API       APIConfig
	Queue     QueueConfig
	Worker    WorkerConfig
	Storage   StorageConfig
	Database  DatabaseConfig
	Session   SessionConfig
	RateLimit RateLimitConfig
	Tracing   TracingConfig
	Webhook   WebhookConfig
	Export    domain.ExportOptions
	Limits    LimitsConfig
	Log       logging.Config
}

type APIConfig struct {
	Addr           string
	MaxUploadBytes int64
}

type QueueConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Name          string
}

// Enabled reports whether a Redis server was configured at all.
func (q QueueConfig) Enabled() bool {
	return strings.TrimSpace(q.RedisAddr) != ""
}

func (q QueueConfig) RedisClientOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     q.RedisAddr,
		Password: q.RedisPassword,
		DB:       q.RedisDB,
	}
}

func (q QueueConfig) RedisOptions() *redis.Options {
	return &redis.Options{
		Addr:     q.RedisAddr,
		Password: q.RedisPassword,
		DB:       q.RedisDB,
	}
}

type WorkerConfig struct {
	Concurrency   int
	MaxActiveJobs int
	MetricsAddr   string
}

type StorageConfig struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	Bucket     string
	UseSSL     bool
	PresignTTL time.Duration
}

func (s StorageConfig) Enabled() bool {
	return strings.TrimSpace(s.Endpoint) != ""
}

type DatabaseConfig struct {
	DSN string
}

type SessionConfig struct {
	TTL time.Duration
}

type RateLimitConfig struct {
	Capacity     int
	Window       time.Duration
	UserIDHeader string
}

// LimitsConfig bounds the memory a single decode or render may claim.
type LimitsConfig struct {
	MaxOutputPixels int64
}

type TracingConfig struct {
	Exporter     string
	OTLPEndpoint string
	OTLPInsecure bool
	SampleRatio  float64
}

type WebhookConfig struct {
	SigningSecret  string
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func Load() Config {
	defaultWorkerSlots := max(1, runtime.NumCPU()/2)

	return Config{
		API: APIConfig{
			Addr:           env("PIXELRESIZE_API_ADDR", ":8080"),
			MaxUploadBytes: int64(envInt("PIXELRESIZE_MAX_UPLOAD_MB", 32)) << 20,
		},
		Queue: QueueConfig{
			RedisAddr:     env("REDIS_ADDR", ""),
			RedisPassword: env("REDIS_PASSWORD", ""),
			RedisDB:       envInt("REDIS_DB", 0),
			Name:          env("ASYNC_QUEUE", "default"),
		},
		Worker: WorkerConfig{
			Concurrency:   envInt("WORKER_CONCURRENCY", max(2, runtime.NumCPU())),
			MaxActiveJobs: envInt("WORKER_MAX_ACTIVE_JOBS", defaultWorkerSlots),
			MetricsAddr:   env("WORKER_METRICS_ADDR", ":9091"),
		},
		Storage: StorageConfig{
			Endpoint:   env("MINIO_ENDPOINT", ""),
			AccessKey:  env("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey:  env("MINIO_SECRET_KEY", "minioadmin"),
			Bucket:     env("MINIO_BUCKET", "pixelresize"),
			UseSSL:     envBool("MINIO_USE_SSL", false),
			PresignTTL: envDuration("EXPORT_URL_TTL", 24*time.Hour),
		},
		Database: DatabaseConfig{
			DSN: env("POSTGRES_DSN", ""),
		},
		Session: SessionConfig{
			TTL: envDuration("SESSION_TTL", time.Hour),
		},
		RateLimit: RateLimitConfig{
			Capacity:     envInt("RATE_LIMIT_CAPACITY", 60),
			Window:       envDuration("RATE_LIMIT_WINDOW", time.Minute),
			UserIDHeader: env("RATE_LIMIT_USER_HEADER", "X-User-ID"),
		},
		Tracing: TracingConfig{
			Exporter:     env("OTEL_TRACES_EXPORTER", "none"),
			OTLPEndpoint: env("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			OTLPInsecure: envBool("OTEL_EXPORTER_OTLP_INSECURE", true),
			SampleRatio:  envFloat("OTEL_TRACES_SAMPLER_ARG", 1),
		},
		Webhook: WebhookConfig{
			SigningSecret:  env("WEBHOOK_SIGNING_SECRET", ""),
			Timeout:        envDuration("WEBHOOK_TIMEOUT", 10*time.Second),
			MaxAttempts:    envInt("WEBHOOK_MAX_ATTEMPTS", 3),
			InitialBackoff: envDuration("WEBHOOK_INITIAL_BACKOFF", time.Second),
			MaxBackoff:     envDuration("WEBHOOK_MAX_BACKOFF", 10*time.Second),
		},
		Export: loadExportOptions(),
		Limits: LimitsConfig{
			MaxOutputPixels: envInt64("PIXELRESIZE_MAX_PIXELS", domain.DefaultMaxPixels),
		},
		Log: logging.Config{
			Level: env("LOG_LEVEL", "info"),
			JSON:  envBool("LOG_JSON", false),
		},
	}
}

// loadExportOptions starts from the enhanced exporter; PIXELRESIZE_VARIANT=minimal
// switches to the plain PNG exporter before individual overrides apply.
func loadExportOptions() domain.ExportOptions {
	opts := domain.EnhancedOptions()
	if strings.EqualFold(env("PIXELRESIZE_VARIANT", "enhanced"), "minimal") {
		opts = domain.MinimalOptions()
	}

	opts.EnableQualitySlider = envBool("PIXELRESIZE_QUALITY_SLIDER", opts.EnableQualitySlider)
	opts.EnableSizeEstimate = envBool("PIXELRESIZE_SIZE_ESTIMATE", opts.EnableSizeEstimate)
	if format, err := domain.ParseOutputFormat(env("PIXELRESIZE_OUTPUT_FORMAT", string(opts.OutputFormat))); err == nil {
		opts.OutputFormat = format
	}
	return opts
}

func env(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	return value
}

func envInt(key string, fallback int) int {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envInt64(key string, fallback int64) int64 {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func envBool(key string, fallback bool) bool {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envFloat(key string, fallback float64) float64 {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func envDuration(key string, fallback time.Duration) time.Duration {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
