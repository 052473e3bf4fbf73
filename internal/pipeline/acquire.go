package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/disintegration/imageorient"
	"github.com/dunamismax/pixelresize/internal/domain"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	ErrNotImage = errors.New("input is not an image")
	ErrDecode   = errors.New("decode image")
	// ErrSourceTooLarge wraps ErrDecode.
	ErrSourceTooLarge = fmt.Errorf("%w: source exceeds pixel limit", ErrDecode)
)

// SourceImage is a decoded upload together with the bytes it came from.
type SourceImage struct {
	Image       image.Image
	Data        []byte
	Format      string
	ContentType string
	Original    domain.Dimensions
}

func IsImageType(declared string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(declared)), "image/")
}

// Acquire checks the declared MIME type and decodes the image, applying
// any EXIF orientation so the reported size matches what a viewer shows.
// The header is read first so sources over maxPixels are never decoded;
// maxPixels <= 0 disables that check.
func Acquire(declaredType string, data []byte, maxPixels int64) (SourceImage, error) {
	if !IsImageType(declaredType) {
		return SourceImage{}, fmt.Errorf("%w: declared type %q", ErrNotImage, declaredType)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return SourceImage{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if header := (domain.Dimensions{Width: cfg.Width, Height: cfg.Height}); header.Exceeds(maxPixels) {
		return SourceImage{}, fmt.Errorf("%w: %s over %d", ErrSourceTooLarge, header, maxPixels)
	}

	img, format, err := imageorient.Decode(bytes.NewReader(data))
	if err != nil {
		return SourceImage{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	bounds := img.Bounds()
	original := domain.Dimensions{Width: bounds.Dx(), Height: bounds.Dy()}
	if !original.Positive() {
		return SourceImage{}, fmt.Errorf("%w: empty image %s", ErrDecode, original)
	}

	return SourceImage{
		Image:       img,
		Data:        data,
		Format:      format,
		ContentType: strings.ToLower(strings.TrimSpace(declaredType)),
		Original:    original,
	}, nil
}

// DeclaredType guesses the MIME type of a local file from its extension,
// falling back to content sniffing.
func DeclaredType(filename string, head []byte) string {
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); byExt != "" {
		if mediaType, _, err := mime.ParseMediaType(byExt); err == nil {
			return mediaType
		}
		return byExt
	}
	sniffed := http.DetectContentType(head)
	if mediaType, _, err := mime.ParseMediaType(sniffed); err == nil {
		return mediaType
	}
	return sniffed
}
