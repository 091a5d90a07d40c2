package geo

import (
	"math"
	"testing"
)

func TestHaversineIdenticalPoints(t *testing.T) {
	t.Parallel()
	if d := Haversine(12.9716, 77.5946, 12.9716, 77.5946); d != 0 {
		t.Errorf("distance between identical points: got %v, want 0", d)
	}
}

func TestHaversineKnownDistance(t *testing.T) {
	t.Parallel()
	// 0.00135 degrees of latitude is 150.1 m of arc on a 6371 km sphere.
	got := Haversine(12.9716, 77.5946, 12.97295, 77.5946)
	want := 150.1
	if math.Abs(got-want)/want > 0.01 {
		t.Errorf("distance: got %.2f m, want %.1f m within 1%%", got, want)
	}
}

func TestHaversineSymmetry(t *testing.T) {
	t.Parallel()
	a := Haversine(12.9716, 77.5946, 12.9750, 77.6000)
	b := Haversine(12.9750, 77.6000, 12.9716, 77.5946)
	if math.Abs(a-b) > 1e-9 {
		t.Errorf("asymmetric: %v vs %v", a, b)
	}
}
