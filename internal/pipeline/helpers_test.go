package pipeline

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func buildTestPNG(t testing.TB, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8((x * 255) / w),
				G: uint8((y * 255) / h),
				B: uint8((x*y + x*7 + y*13) % 256),
				A: 255,
			})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode source png: %v", err)
	}
	return buf.Bytes()
}

func decodeSize(t testing.TB, data []byte) (int, int, string) {
	t.Helper()

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	return cfg.Width, cfg.Height, format
}

type staticFetcher struct {
	data  []byte
	calls int
}

func (f *staticFetcher) Fetch(_ context.Context, _ Request) ([]byte, error) {
	f.calls++
	return f.data, nil
}

type countingEmitter struct {
	calls int
}

func (e *countingEmitter) Emit(_ context.Context, _ Request, data []byte, out Output) (Output, error) {
	e.calls++
	out.Data = data
	return out, nil
}
