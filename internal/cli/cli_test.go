package cli

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestPNG(t *testing.T, dir string, w, h int) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	path := filepath.Join(dir, "input.png")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func outputSize(t *testing.T, path string) (int, int, string) {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()
	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	return cfg.Width, cfg.Height, format
}

func TestRootCommand(t *testing.T) {
	cmd := newRootCmd()
	if cmd.Use != "pixelresize" {
		t.Errorf("expected Use 'pixelresize', got '%s'", cmd.Use)
	}
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	if !names["resize"] || !names["version"] {
		t.Errorf("expected resize and version subcommands, got %v", names)
	}
}

func TestResizeWithAspectLock(t *testing.T) {
	dir := t.TempDir()
	input := writeTestPNG(t, dir, 200, 100)
	outDir := filepath.Join(dir, "out")

	stdout, err := runCLI(t, "resize", input, "--width", "80", "--output-dir", outDir)
	if err != nil {
		t.Fatalf("resize: %v", err)
	}
	if !strings.Contains(stdout, "Image resized successfully") {
		t.Errorf("expected success notice, got %q", stdout)
	}

	w, h, format := outputSize(t, filepath.Join(outDir, "resized-image.png"))
	if w != 80 || h != 40 || format != "png" {
		t.Errorf("expected 80x40 png, got %dx%d %s", w, h, format)
	}
}

func TestResizeWithoutAspectLock(t *testing.T) {
	dir := t.TempDir()
	input := writeTestPNG(t, dir, 200, 100)

	_, err := runCLI(t, "resize", input, "--width", "80", "--height", "10", "--no-aspect-lock", "--output-dir", dir)
	if err != nil {
		t.Fatalf("resize: %v", err)
	}
	w, h, _ := outputSize(t, filepath.Join(dir, "resized-image.png"))
	if w != 80 || h != 10 {
		t.Errorf("expected 80x10, got %dx%d", w, h)
	}
}

func TestResizeHeightAfterWidthWins(t *testing.T) {
	dir := t.TempDir()
	input := writeTestPNG(t, dir, 200, 100)

	_, err := runCLI(t, "resize", input, "--width", "80", "--height", "25", "--output-dir", dir)
	if err != nil {
		t.Fatalf("resize: %v", err)
	}
	w, h, _ := outputSize(t, filepath.Join(dir, "resized-image.png"))
	if w != 50 || h != 25 {
		t.Errorf("expected 50x25, got %dx%d", w, h)
	}
}

func TestResizeJPEGWithEstimate(t *testing.T) {
	dir := t.TempDir()
	input := writeTestPNG(t, dir, 64, 64)

	stdout, err := runCLI(t, "resize", input, "--format", "jpeg", "--quality", "40", "--estimate", "--output-dir", dir)
	if err != nil {
		t.Fatalf("resize: %v", err)
	}
	if !strings.Contains(stdout, "Estimated size: 16.00 KB") {
		t.Errorf("expected size estimate, got %q", stdout)
	}
	w, h, format := outputSize(t, filepath.Join(dir, "resized-image.jpg"))
	if w != 64 || h != 64 || format != "jpeg" {
		t.Errorf("expected 64x64 jpeg, got %dx%d %s", w, h, format)
	}
}

func TestResizeRejectsNonImage(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(input, []byte("hello"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	_, err := runCLI(t, "resize", input, "--output-dir", dir)
	if err == nil || !strings.Contains(err.Error(), "not an image") {
		t.Fatalf("expected not-an-image error, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(dir, "resized-image.png")); !os.IsNotExist(statErr) {
		t.Error("expected no output file")
	}
}

func TestResizeRejectsZeroTarget(t *testing.T) {
	dir := t.TempDir()
	input := writeTestPNG(t, dir, 20, 20)

	_, err := runCLI(t, "resize", input, "--width", "0", "--output-dir", dir)
	if err == nil {
		t.Fatal("expected error for zero width")
	}
}

func TestResizeRejectsTargetOverPixelLimit(t *testing.T) {
	dir := t.TempDir()
	input := writeTestPNG(t, dir, 20, 20)
	outDir := filepath.Join(dir, "out")

	_, err := runCLI(t, "resize", input, "--width", "101", "--max-pixels", "10000", "--output-dir", outDir)
	if err == nil || !strings.Contains(err.Error(), "exceeds 10000 pixels") {
		t.Fatalf("expected pixel limit error, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(outDir, "resized-image.png")); !os.IsNotExist(statErr) {
		t.Fatalf("expected no output file, stat err=%v", statErr)
	}
}

func TestResizeRejectsUnknownFormat(t *testing.T) {
	dir := t.TempDir()
	input := writeTestPNG(t, dir, 20, 20)

	if _, err := runCLI(t, "resize", input, "--format", "gif", "--output-dir", dir); err == nil {
		t.Fatal("expected error for gif output")
	}
}

func TestVersionCommand(t *testing.T) {
	old := version
	defer func() { version = old }()
	SetVersion("1.2.3")

	stdout, err := runCLI(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(stdout, "pixelresize 1.2.3") {
		t.Errorf("unexpected version output %q", stdout)
	}
}
