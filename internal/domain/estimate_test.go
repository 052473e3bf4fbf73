package domain

import "testing"

func TestEstimateBytes(t *testing.T) {
	if got := EstimateBytes(1000, 500); got != 2_000_000 {
		t.Fatalf("expected 2000000, got %d", got)
	}
	if got := EstimateBytes(0, 10); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestFormatSizeUnitSwitch(t *testing.T) {
	cases := []struct {
		bytes int64
		want  string
	}{
		{0, "0.00 KB"},
		{1536, "1.50 KB"},
		{1024 * 1024, "1024.00 KB"},
		{1024*1024 + 4, "1.00 MB"},
		{2_000_000, "1.91 MB"},
	}
	for _, tc := range cases {
		if got := FormatSize(tc.bytes); got != tc.want {
			t.Fatalf("FormatSize(%d): expected %q, got %q", tc.bytes, tc.want, got)
		}
	}
}

func TestEstimateSwitchesAtOneMegabyte(t *testing.T) {
	// 512x512x4 is exactly 1024 KB and stays in KB.
	if got := Estimate(Dimensions{Width: 512, Height: 512}).Human; got != "1024.00 KB" {
		t.Fatalf("expected KB at boundary, got %q", got)
	}
	if got := Estimate(Dimensions{Width: 512, Height: 513}).Human; got != "1.00 MB" {
		t.Fatalf("expected MB above boundary, got %q", got)
	}
}
