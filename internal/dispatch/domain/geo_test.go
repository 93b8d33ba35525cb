package domain

import (
	"math"
	"testing"
)

func TestHaversineKM_ZeroDistanceForSamePoint(t *testing.T) {
	d := HaversineKM(-34.6118, -58.3960, -34.6118, -58.3960)
	if d != 0 {
		t.Fatalf("expected 0 km for identical coordinates, got %f", d)
	}
}

func TestHaversineKM_OneDegreeLongitudeAtEquator(t *testing.T) {
	d := HaversineKM(0, 0, 0, 1)
	if math.Abs(d-111.19) > 0.5 {
		t.Fatalf("expected ~111.19 km for one degree of longitude at the equator, got %f", d)
	}
}

func TestHaversineKM_Symmetric(t *testing.T) {
	a := HaversineKM(-34.6118, -58.3960, -34.5800, -58.4200)
	b := HaversineKM(-34.5800, -58.4200, -34.6118, -58.3960)
	if math.Abs(a-b) > 1e-9 {
		t.Fatalf("expected symmetric distance, got %f and %f", a, b)
	}
}

func TestValidCoordinates(t *testing.T) {
	cases := []struct {
		name     string
		lat, lon float64
		want     bool
	}{
		{"origin", 0, 0, true},
		{"buenos aires", -34.6118, -58.3960, true},
		{"lat too high", 90.01, 0, false},
		{"lat too low", -90.01, 0, false},
		{"lon too high", 0, 180.01, false},
		{"lon too low", 0, -180.01, false},
		{"poles", 90, 180, true},
	}

	for _, tc := range cases {
		if got := ValidCoordinates(tc.lat, tc.lon); got != tc.want {
			t.Errorf("%s: ValidCoordinates(%f, %f) = %v, want %v", tc.name, tc.lat, tc.lon, got, tc.want)
		}
	}
}
