package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/disintegration/imageorient"
	"github.com/dunamismax/pixelresize/internal/domain"
	"golang.org/x/image/draw"
)

type stdRenderer struct {
	scaler draw.Scaler
}

func (r stdRenderer) Render(ctx context.Context, source []byte, target domain.Dimensions, format domain.OutputFormat, quality int) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if !target.Positive() {
		return nil, domain.ErrInvalidTarget
	}

	src, _, err := imageorient.Decode(bytes.NewReader(source))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	return encodeImage(scaleTo(src, target, r.scaler), format, quality)
}

// scaleTo draws the whole of src onto a fresh surface of exactly target.
func scaleTo(src image.Image, target domain.Dimensions, scaler draw.Scaler) *image.RGBA {
	if scaler == nil {
		scaler = draw.CatmullRom
	}
	dst := image.NewRGBA(image.Rect(0, 0, target.Width, target.Height))
	scaler.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

func encodeImage(img image.Image, format domain.OutputFormat, quality int) ([]byte, error) {
	var buf bytes.Buffer

	switch format {
	case domain.FormatJPEG:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: encodeQuality(quality)}); err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
	case domain.FormatPNG:
		encoder := png.Encoder{CompressionLevel: png.DefaultCompression}
		if err := encoder.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, format)
	}

	return buf.Bytes(), nil
}
