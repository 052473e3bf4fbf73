package id

import (
	"testing"
	"time"
)

func TestNewIsUniqueHex(t *testing.T) {
	a, b := New(), New()
	if a == b {
		t.Fatal("expected distinct ids")
	}
	if len(a) != 32 {
		t.Fatalf("expected 32 hex chars, got %d", len(a))
	}
}

func TestNewSortsByTime(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	earlier := newAt(base)
	later := newAt(base.Add(time.Millisecond))
	if earlier >= later {
		t.Fatalf("expected %s < %s", earlier, later)
	}
	if earlier[:12] != "018f34069e00" {
		t.Fatalf("unexpected time prefix %s", earlier[:12])
	}
}
