package pipeline

import (
	"context"

	"github.com/dunamismax/pixelresize/internal/domain"
)

// Renderer scales a source image to exactly target and encodes it.
// quality is ignored for lossless formats.
type Renderer interface {
	Render(ctx context.Context, source []byte, target domain.Dimensions, format domain.OutputFormat, quality int) ([]byte, error)
}

func encodeQuality(quality int) int {
	if quality <= 0 {
		return domain.DefaultQuality
	}
	return domain.ClampQuality(quality)
}
