package pipeline

import (
	"context"
	"testing"

	"github.com/dunamismax/pixelresize/internal/domain"
)

func BenchmarkExportJPEG(b *testing.B) {
	benchmarkExport(b, domain.EnhancedOptions())
}

func BenchmarkExportPNG(b *testing.B) {
	benchmarkExport(b, domain.MinimalOptions())
}

func benchmarkExport(b *testing.B, opts domain.ExportOptions) {
	processor, err := NewProcessor(&staticFetcher{data: buildTestPNG(b, 1920, 1080)}, nil, BufferEmitter{})
	if err != nil {
		b.Fatalf("new processor: %v", err)
	}

	session := loadedSession(b, "bench", 1920, 1080)
	session.State = session.State.SetDimension(domain.AxisWidth, 640)
	req := Request{Session: session, Options: opts}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := processor.Export(context.Background(), req); err != nil {
			b.Fatalf("export: %v", err)
		}
	}
}
