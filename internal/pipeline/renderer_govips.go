//go:build govips && cgo

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/dunamismax/pixelresize/internal/domain"
)

// libvips can be started once and stopped once per process.
var vipsRuntime struct {
	sync.Mutex
	running bool
	stopped bool
}

// Startup boots libvips. Call Shutdown once, on process exit.
func Startup() error {
	vipsRuntime.Lock()
	defer vipsRuntime.Unlock()
	switch {
	case vipsRuntime.running:
		return nil
	case vipsRuntime.stopped:
		return errors.New("libvips cannot be restarted after shutdown")
	}

	vips.LoggingSettings(nil, vips.LogLevelWarning)
	vips.Startup(&vips.Config{
		MaxCacheMem:  64 << 20,
		MaxCacheSize: 50,
	})
	vipsRuntime.running = true
	return nil
}

func Shutdown() {
	vipsRuntime.Lock()
	defer vipsRuntime.Unlock()
	if !vipsRuntime.running {
		return
	}
	vips.Shutdown()
	vipsRuntime.running = false
	vipsRuntime.stopped = true
}

func NewRenderer() (Renderer, error) {
	return vipsRenderer{}, nil
}

func RendererName() string {
	return "libvips"
}

type vipsRenderer struct{}

func (vipsRenderer) Render(ctx context.Context, source []byte, target domain.Dimensions, format domain.OutputFormat, quality int) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if !target.Positive() {
		return nil, domain.ErrInvalidTarget
	}

	img, err := vips.NewImageFromBuffer(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	defer img.Close()

	if err := img.AutoRotate(); err != nil {
		return nil, fmt.Errorf("auto-rotate: %w", err)
	}
	if err := img.ThumbnailWithSize(target.Width, target.Height, vips.InterestingNone, vips.SizeForce); err != nil {
		return nil, fmt.Errorf("resize image: %w", err)
	}

	return exportVipsImage(img, format, quality)
}

func exportVipsImage(img *vips.ImageRef, format domain.OutputFormat, quality int) ([]byte, error) {
	switch format {
	case domain.FormatJPEG:
		if img.HasAlpha() {
			if err := img.Flatten(&vips.Color{}); err != nil {
				return nil, fmt.Errorf("flatten alpha: %w", err)
			}
		}
		params := vips.NewJpegExportParams()
		params.Quality = encodeQuality(quality)
		data, _, err := img.ExportJpeg(params)
		if err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
		return data, nil
	case domain.FormatPNG:
		data, _, err := img.ExportPng(vips.NewPngExportParams())
		if err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, format)
	}
}
