package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dunamismax/pixelresize/internal/domain"
)

const (
	SourceTypeLocalFile   = "local_file"
	SourceTypeObjectStore = "object_store"

	SuccessNotice = "Image resized successfully"
)

var ErrUnsupportedSourceType = errors.New("unsupported source_type")

// Request is a snapshot of one session taken when the export was asked for.
type Request struct {
	ExportID   string
	SourceType string
	Session    domain.Session
	Options    domain.ExportOptions
}

type Output struct {
	ExportID    string              `json:"export_id,omitempty"`
	SessionID   string              `json:"session_id"`
	Filename    string              `json:"filename"`
	Format      domain.OutputFormat `json:"format"`
	ContentType string              `json:"content_type"`
	Path        string              `json:"path,omitempty"`
	Bytes       int                 `json:"bytes"`
	SourceBytes int                 `json:"source_bytes"`
	Width       int                 `json:"width"`
	Height      int                 `json:"height"`
	Quality     int                 `json:"quality,omitempty"`
	Notice      string              `json:"notice"`
	Data        []byte              `json:"-"`
}

type Fetcher interface {
	Fetch(ctx context.Context, req Request) ([]byte, error)
}

type Emitter interface {
	Emit(ctx context.Context, req Request, data []byte, out Output) (Output, error)
}

type Processor struct {
	fetcher   Fetcher
	renderer  Renderer
	emitter   Emitter
	maxPixels int64
}

func NewProcessor(fetcher Fetcher, renderer Renderer, emitter Emitter) (*Processor, error) {
	if fetcher == nil || emitter == nil {
		return nil, errors.New("fetcher and emitter are required")
	}
	if renderer == nil {
		r, err := NewRenderer()
		if err != nil {
			return nil, fmt.Errorf("build renderer: %w", err)
		}
		renderer = r
	}
	return &Processor{fetcher: fetcher, renderer: renderer, emitter: emitter}, nil
}

// NewLocalProcessor reads sources from disk and writes results into outputDir.
func NewLocalProcessor(outputDir string) (*Processor, error) {
	return NewProcessor(LocalFileFetcher{}, nil, LocalFileEmitter{OutputDir: outputDir})
}

// WithMaxPixels caps the target area Export will render. Zero removes the cap.
func (p *Processor) WithMaxPixels(limit int64) *Processor {
	p.maxPixels = limit
	return p
}

// Admit reports whether session could be exported right now without
// touching any backend.
func (p *Processor) Admit(session domain.Session) error {
	if err := session.Exportable(); err != nil {
		return err
	}
	if target := session.State.Target; target.Exceeds(p.maxPixels) {
		return fmt.Errorf("%w: %s exceeds %d pixels", domain.ErrInvalidTarget, target, p.maxPixels)
	}
	return nil
}

// Export renders the snapshot in req. A session without an image yields
// domain.ErrNoImage before anything is fetched or emitted.
func (p *Processor) Export(ctx context.Context, req Request) (Output, error) {
	if err := p.Admit(req.Session); err != nil {
		return Output{}, err
	}
	if err := req.Options.Validate(); err != nil {
		return Output{}, err
	}

	sourceBytes, err := p.fetcher.Fetch(ctx, req)
	if err != nil {
		return Output{}, fmt.Errorf("fetch stage: %w", err)
	}

	select {
	case <-ctx.Done():
		return Output{}, ctx.Err()
	default:
	}

	state := req.Session.State
	format := req.Options.OutputFormat
	quality := req.Options.EncodeQuality(state)

	data, err := p.renderer.Render(ctx, sourceBytes, state.Target, format, quality)
	if err != nil {
		return Output{}, fmt.Errorf("render stage target=%s format=%s: %w", state.Target, format, err)
	}

	out := Output{
		ExportID:    req.ExportID,
		SessionID:   req.Session.ID,
		Filename:    format.Filename(),
		Format:      format,
		ContentType: format.ContentType(),
		Bytes:       len(data),
		SourceBytes: len(sourceBytes),
		Width:       state.Target.Width,
		Height:      state.Target.Height,
		Quality:     quality,
		Notice:      SuccessNotice,
	}

	written, err := p.emitter.Emit(ctx, req, data, out)
	if err != nil {
		return Output{}, fmt.Errorf("emit stage: %w", err)
	}
	return written, nil
}

type LocalFileFetcher struct{}

func (LocalFileFetcher) Fetch(ctx context.Context, req Request) ([]byte, error) {
	if !strings.EqualFold(req.SourceType, SourceTypeLocalFile) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSourceType, req.SourceType)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	path := req.Session.Source.ObjectKey
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input file %s: %w", path, err)
	}
	return data, nil
}

type LocalFileEmitter struct {
	OutputDir string
}

func (e LocalFileEmitter) Emit(_ context.Context, _ Request, data []byte, out Output) (Output, error) {
	if strings.TrimSpace(e.OutputDir) == "" {
		return Output{}, errors.New("output directory is required")
	}
	if err := os.MkdirAll(e.OutputDir, 0o755); err != nil {
		return Output{}, fmt.Errorf("create output dir: %w", err)
	}

	fullPath := filepath.Join(e.OutputDir, out.Filename)
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return Output{}, fmt.Errorf("write output file: %w", err)
	}

	out.Path = fullPath
	return out, nil
}

// BufferEmitter hands the encoded bytes back to the caller, which streams
// them as a download.
type BufferEmitter struct{}

func (BufferEmitter) Emit(_ context.Context, _ Request, data []byte, out Output) (Output, error) {
	out.Data = data
	return out, nil
}

func sanitizePathToken(in string) string {
	in = strings.TrimSpace(in)
	if in == "" {
		return "unknown"
	}

	var b strings.Builder
	b.Grow(len(in))
	for _, r := range in {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
