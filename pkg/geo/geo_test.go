package geo

import (
	"math"
	"testing"
)

func TestHaversineDistance(t *testing.T) {
	tests := []struct {
		name      string
		from, to  Location
		wantKm    float64
		tolerance float64
	}{
		{"same point", Location{48.8566, 2.3522}, Location{48.8566, 2.3522}, 0, 1e-9},
		{"paris to london", Location{48.8566, 2.3522}, Location{51.5074, -0.1278}, 343.5, 2},
		{"quarter meridian", Location{0, 0}, Location{90, 0}, math.Pi * EarthRadius / 2 / 1000, 1e-6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DistanceKm(tt.from, tt.to)
			if math.Abs(got-tt.wantKm) > tt.tolerance {
				t.Errorf("DistanceKm() = %.3f, want %.3f ± %.3f", got, tt.wantKm, tt.tolerance)
			}
			if back := DistanceKm(tt.to, tt.from); math.Abs(back-got) > 1e-9 {
				t.Errorf("distance not symmetric: %v vs %v", got, back)
			}
		})
	}
}

func TestLocationValidate(t *testing.T) {
	valid := []Location{{0, 0}, {-90, -180}, {90, 180}}
	for _, l := range valid {
		if err := l.Validate(); err != nil {
			t.Errorf("Validate(%v) = %v, want nil", l, err)
		}
	}

	invalid := []Location{{91, 0}, {0, 181}, {math.NaN(), 0}, {0, -180.5}}
	for _, l := range invalid {
		if err := l.Validate(); err == nil {
			t.Errorf("Validate(%v) = nil, want error", l)
		}
	}
}
