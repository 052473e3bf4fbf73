package domain

import (
	"math"
	"testing"
)

func TestStateAspectLockScenario(t *testing.T) {
	s := NewState().Load(Dimensions{Width: 1000, Height: 500})
	if !s.AspectLock {
		t.Fatal("expected aspect lock to default on after load")
	}

	s = s.SetDimension(AxisWidth, 400)
	if s.Target != (Dimensions{Width: 400, Height: 200}) {
		t.Fatalf("expected 400x200, got %s", s.Target)
	}

	s = s.SetAspectLock(false)
	s = s.SetDimension(AxisHeight, 50)
	if s.Target != (Dimensions{Width: 400, Height: 50}) {
		t.Fatalf("expected 400x50, got %s", s.Target)
	}
}

func TestStateLockedWidthDerivesRoundedHeight(t *testing.T) {
	cases := []struct {
		w0, h0, w1 int
	}{
		{1000, 500, 400},
		{1920, 1080, 640},
		{333, 777, 101},
		{7, 3, 10},
		{1, 1000, 3},
		{4000, 3, 17},
	}

	for _, tc := range cases {
		s := NewState().Load(Dimensions{Width: tc.w0, Height: tc.h0}).SetDimension(AxisWidth, tc.w1)
		ratio := float64(tc.w0) / float64(tc.h0)
		want := int(math.Floor(float64(tc.w1)/ratio + 0.5))
		if s.Target.Height != want {
			t.Fatalf("%dx%d width=%d: expected height %d, got %d", tc.w0, tc.h0, tc.w1, want, s.Target.Height)
		}
		if s.Target.Width != tc.w1 {
			t.Fatalf("expected width %d, got %d", tc.w1, s.Target.Width)
		}
	}
}

// The derived axis divides by the stored ratio, so a product that lands on
// an exact half can round differently than w1*h0/w0 would.
func TestStateLockedWidthDividesByRatio(t *testing.T) {
	s := NewState().Load(Dimensions{Width: 44, Height: 10}).SetDimension(AxisWidth, 55)
	if s.Target != (Dimensions{Width: 55, Height: 12}) {
		t.Fatalf("expected 55x12, got %s", s.Target)
	}
}

func TestStateNegativeHalvesRoundUp(t *testing.T) {
	s := NewState().Load(Dimensions{Width: 2, Height: 1}).SetDimension(AxisWidth, -3)
	if s.Target != (Dimensions{Width: -3, Height: -1}) {
		t.Fatalf("expected -3x-1, got %s", s.Target)
	}
	if got := roundInt(2.5); got != 3 {
		t.Fatalf("expected 2.5 to round to 3, got %d", got)
	}
}

func TestStateLockedHeightDerivesWidth(t *testing.T) {
	s := NewState().Load(Dimensions{Width: 1000, Height: 500}).SetDimension(AxisHeight, 123)
	if s.Target != (Dimensions{Width: 246, Height: 123}) {
		t.Fatalf("expected 246x123, got %s", s.Target)
	}
}

func TestToggleAspectLockKeepsTarget(t *testing.T) {
	s := NewState().Load(Dimensions{Width: 640, Height: 480})
	s = s.SetAspectLock(false).SetDimension(AxisWidth, 10)
	before := s.Target

	if got := s.SetAspectLock(true).Target; got != before {
		t.Fatalf("lock on changed target: %s -> %s", before, got)
	}
	if got := s.SetAspectLock(false).Target; got != before {
		t.Fatalf("lock off changed target: %s -> %s", before, got)
	}
}

func TestSetDimensionWithoutImageSetsAxisOnly(t *testing.T) {
	s := NewState().SetDimension(AxisWidth, 50)
	if s.Target != (Dimensions{Width: 50}) {
		t.Fatalf("expected 50x0, got %s", s.Target)
	}
}

func TestSetDimensionKeepsNonPositiveValues(t *testing.T) {
	s := NewState().Load(Dimensions{Width: 200, Height: 100}).SetDimension(AxisWidth, 0)
	if s.Target != (Dimensions{}) {
		t.Fatalf("expected 0x0, got %s", s.Target)
	}
	s = s.SetAspectLock(false).SetDimension(AxisHeight, -4)
	if s.Target.Height != -4 {
		t.Fatalf("expected height -4, got %d", s.Target.Height)
	}
}

func TestLoadResetsLockAndKeepsQuality(t *testing.T) {
	s := NewState().SetQuality(40).Load(Dimensions{Width: 10, Height: 10}).SetAspectLock(false)
	s = s.Load(Dimensions{Width: 30, Height: 20})

	if !s.AspectLock {
		t.Fatal("expected load to re-enable aspect lock")
	}
	if s.Original != s.Target || s.Target != (Dimensions{Width: 30, Height: 20}) {
		t.Fatalf("expected original and target 30x20, got %s / %s", s.Original, s.Target)
	}
	if s.Quality != 40 {
		t.Fatalf("expected quality 40, got %d", s.Quality)
	}
}

func TestReducersDoNotMutateReceiver(t *testing.T) {
	s := NewState().Load(Dimensions{Width: 100, Height: 50})
	_ = s.SetDimension(AxisWidth, 10)
	_ = s.SetAspectLock(false)
	_ = s.SetQuality(3)
	if s.Target != (Dimensions{Width: 100, Height: 50}) || !s.AspectLock || s.Quality != DefaultQuality {
		t.Fatalf("receiver mutated: %+v", s)
	}
}

func TestSetQualityClamps(t *testing.T) {
	cases := map[int]int{-5: 1, 0: 1, 1: 1, 55: 55, 100: 100, 250: 100}
	for in, want := range cases {
		if got := NewState().SetQuality(in).Quality; got != want {
			t.Fatalf("quality %d: expected %d, got %d", in, want, got)
		}
	}
}

func TestParseDimension(t *testing.T) {
	cases := map[string]int{
		"400":    400,
		"  12px": 12,
		"+7":     7,
		"-3":     -3,
		"abc":    0,
		"":       0,
		"-":      0,
		"3.9":    3,
		"0012":   12,
		"1e3":    1,
	}
	for in, want := range cases {
		if got := ParseDimension(in); got != want {
			t.Fatalf("ParseDimension(%q): expected %d, got %d", in, want, got)
		}
	}
}

func TestParseAxis(t *testing.T) {
	if axis, err := ParseAxis(" Width "); err != nil || axis != AxisWidth {
		t.Fatalf("expected width, got %q err=%v", axis, err)
	}
	if _, err := ParseAxis("depth"); err == nil {
		t.Fatal("expected error for unknown axis")
	}
}
