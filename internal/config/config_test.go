package config

import (
	"testing"
	"time"

	"github.com/dunamismax/pixelresize/internal/domain"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PIXELRESIZE_API_ADDR", "REDIS_ADDR", "MINIO_ENDPOINT", "SESSION_TTL", "PIXELRESIZE_VARIANT"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.API.Addr != ":8080" {
		t.Fatalf("expected :8080, got %s", cfg.API.Addr)
	}
	if cfg.Queue.Enabled() {
		t.Fatal("expected redis to be disabled without REDIS_ADDR")
	}
	if cfg.Storage.Enabled() {
		t.Fatal("expected object storage to be disabled without MINIO_ENDPOINT")
	}
	if cfg.Export != domain.EnhancedOptions() {
		t.Fatalf("expected enhanced export options, got %+v", cfg.Export)
	}
	if cfg.Session.TTL != time.Hour {
		t.Fatalf("expected 1h session ttl, got %s", cfg.Session.TTL)
	}
}

func TestLoadMinimalVariantWithOverride(t *testing.T) {
	t.Setenv("PIXELRESIZE_VARIANT", "minimal")
	t.Setenv("PIXELRESIZE_SIZE_ESTIMATE", "true")

	cfg := Load()
	if cfg.Export.OutputFormat != domain.FormatPNG {
		t.Fatalf("expected png, got %s", cfg.Export.OutputFormat)
	}
	if cfg.Export.EnableQualitySlider {
		t.Fatal("expected quality slider off for minimal variant")
	}
	if !cfg.Export.EnableSizeEstimate {
		t.Fatal("expected size estimate override to apply")
	}
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("REDIS_DB", "two")
	t.Setenv("SESSION_TTL", "-5m")
	t.Setenv("PIXELRESIZE_OUTPUT_FORMAT", "gif")
	t.Setenv("MINIO_USE_SSL", "maybe")

	cfg := Load()
	if cfg.Queue.RedisDB != 0 {
		t.Fatalf("expected fallback redis db, got %d", cfg.Queue.RedisDB)
	}
	if cfg.Session.TTL != time.Hour {
		t.Fatalf("expected fallback ttl, got %s", cfg.Session.TTL)
	}
	if cfg.Export.OutputFormat != domain.FormatJPEG {
		t.Fatalf("expected fallback jpeg, got %s", cfg.Export.OutputFormat)
	}
	if cfg.Storage.UseSSL {
		t.Fatal("expected fallback ssl=false")
	}
}

func TestLoadTracingAndPresign(t *testing.T) {
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.25")
	t.Setenv("EXPORT_URL_TTL", "15m")

	cfg := Load()
	if cfg.Tracing.SampleRatio != 0.25 {
		t.Fatalf("expected sample ratio 0.25, got %f", cfg.Tracing.SampleRatio)
	}
	if cfg.Storage.PresignTTL != 15*time.Minute {
		t.Fatalf("expected 15m presign ttl, got %s", cfg.Storage.PresignTTL)
	}

	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "half")
	t.Setenv("EXPORT_URL_TTL", "-1s")
	cfg = Load()
	if cfg.Tracing.SampleRatio != 1 || cfg.Storage.PresignTTL != 24*time.Hour {
		t.Fatalf("expected fallbacks, got ratio=%f ttl=%s", cfg.Tracing.SampleRatio, cfg.Storage.PresignTTL)
	}
}

func TestLoadPixelLimit(t *testing.T) {
	t.Setenv("PIXELRESIZE_MAX_PIXELS", "")
	if got := Load().Limits.MaxOutputPixels; got != domain.DefaultMaxPixels {
		t.Fatalf("expected default %d, got %d", domain.DefaultMaxPixels, got)
	}

	t.Setenv("PIXELRESIZE_MAX_PIXELS", "1000000")
	if got := Load().Limits.MaxOutputPixels; got != 1_000_000 {
		t.Fatalf("expected 1000000, got %d", got)
	}

	t.Setenv("PIXELRESIZE_MAX_PIXELS", "lots")
	if got := Load().Limits.MaxOutputPixels; got != domain.DefaultMaxPixels {
		t.Fatalf("expected fallback %d, got %d", domain.DefaultMaxPixels, got)
	}
}
