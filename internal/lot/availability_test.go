package lot

import (
	"math"
	"testing"
)

func TestAvailability(t *testing.T) {
	cases := []struct {
		name      string
		max       int
		confirmed int
		want      float64
	}{
		{"untouched", 80, 0, 80},
		{"exactly full", 80, 80, 0},
		{"overshoot clamps", 80, 100, 0},
		{"zero max is unlimited", 0, 50, math.Inf(1)},
		{"negative max is unlimited", -1, 50, math.Inf(1)},
		{"negative confirmed", 10, -5, 15},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Availability(tc.max, tc.confirmed)
			if got != tc.want {
				t.Fatalf("Availability(%d, %d) = %v, want %v", tc.max, tc.confirmed, got, tc.want)
			}
		})
	}
}

func TestIsSoldOut(t *testing.T) {
	if !IsSoldOut(80, 80) {
		t.Fatal("expected sold out at capacity")
	}
	if !IsSoldOut(80, 120) {
		t.Fatal("expected sold out past capacity")
	}
	if IsSoldOut(80, 79) {
		t.Fatal("not sold out with remaining capacity")
	}
	// Untracked maximum never sells out no matter how many units confirmed.
	if IsSoldOut(0, 1_000_000) {
		t.Fatal("zero max means unlimited, not zero capacity")
	}
}

func TestDisplayAvailability(t *testing.T) {
	if got := DisplayAvailability(0, 50); got != nil {
		t.Fatalf("expected nil for unlimited, got %d", *got)
	}
	got := DisplayAvailability(80, 30)
	if got == nil || *got != 50 {
		t.Fatalf("expected 50, got %v", got)
	}
}
