package domain

import (
	"errors"
	"fmt"
	"strings"
)

type OutputFormat string

const (
	FormatPNG  OutputFormat = "png"
	FormatJPEG OutputFormat = "jpeg"
)

const OutputBaseName = "resized-image"

var ErrUnsupportedFormat = errors.New("unsupported output format")

func ParseOutputFormat(in string) (OutputFormat, error) {
	switch strings.ToLower(strings.TrimSpace(in)) {
	case "", "png":
		return FormatPNG, nil
	case "jpeg", "jpg":
		return FormatJPEG, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, in)
	}
}

func (f OutputFormat) Lossy() bool {
	return f == FormatJPEG
}

func (f OutputFormat) Extension() string {
	if f == FormatJPEG {
		return "jpg"
	}
	return "png"
}

func (f OutputFormat) ContentType() string {
	if f == FormatJPEG {
		return "image/jpeg"
	}
	return "image/png"
}

// Filename is the download name for an export in this format.
func (f OutputFormat) Filename() string {
	return OutputBaseName + "." + f.Extension()
}

// ExportOptions selects between the plain PNG exporter and the variant with
// a quality slider and a size readout.
type ExportOptions struct {
	EnableQualitySlider bool         `json:"enable_quality_slider"`
	EnableSizeEstimate  bool         `json:"enable_size_estimate"`
	OutputFormat        OutputFormat `json:"output_format"`
}

func MinimalOptions() ExportOptions {
	return ExportOptions{OutputFormat: FormatPNG}
}

func EnhancedOptions() ExportOptions {
	return ExportOptions{
		EnableQualitySlider: true,
		EnableSizeEstimate:  true,
		OutputFormat:        FormatJPEG,
	}
}

func (o ExportOptions) Validate() error {
	if _, err := ParseOutputFormat(string(o.OutputFormat)); err != nil {
		return err
	}
	return nil
}

// EncodeQuality is the quality handed to the encoder for a snapshot. PNG
// ignores it; without the slider the encoder default applies.
func (o ExportOptions) EncodeQuality(s State) int {
	if !o.OutputFormat.Lossy() {
		return 0
	}
	if !o.EnableQualitySlider {
		return DefaultQuality
	}
	return ClampQuality(s.Quality)
}
