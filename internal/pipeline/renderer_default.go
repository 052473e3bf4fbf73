//go:build !govips || !cgo

package pipeline

import "golang.org/x/image/draw"

// Startup and Shutdown only matter for the libvips build.
func Startup() error { return nil }

func Shutdown() {}

// NewRenderer returns the pure Go renderer. CatmullRom is the slowest
// x/image kernel and the closest to what browsers use when downscaling.
func NewRenderer() (Renderer, error) {
	return stdRenderer{scaler: draw.CatmullRom}, nil
}

func RendererName() string {
	return "x/image"
}
