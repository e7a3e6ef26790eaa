package matcher

import "testing"

func fptr(v float64) *float64 { return &v }

func TestMinimumSimilarityTiers(t *testing.T) {
	const def = 0.35
	cases := []struct {
		name string
		dist *float64
		want float64
	}{
		{"zero distance", fptr(0), 0.30},
		{"just under close boundary", fptr(49.9), 0.30},
		{"exactly close boundary", fptr(50.0), 0.40},
		{"inside mid tier", fptr(99.9), 0.40},
		{"exactly mid boundary", fptr(100.0), 0.45},
		{"inside far tier", fptr(199.9), 0.45},
		{"exactly far boundary", fptr(200.0), def},
		{"well beyond tiers", fptr(5000), def},
		{"nil distance", nil, def},
	}
	for _, c := range cases {
		if got := MinimumSimilarity(c.dist, def); got != c.want {
			t.Fatalf("%s: MinimumSimilarity = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestDistanceWeightTiers(t *testing.T) {
	cases := []struct {
		name string
		dist *float64
		want float64
	}{
		{"touching", fptr(0), 1.0},
		{"just under 20m", fptr(19.9), 1.0},
		{"exactly 20m", fptr(20.0), 0.95},
		{"exactly 50m", fptr(50.0), 0.85},
		{"exactly 100m", fptr(100.0), 0.70},
		{"exactly 200m", fptr(200.0), 0.50},
		{"exactly 500m", fptr(500.0), 0.30},
		{"a kilometer out", fptr(1000), 0.30},
		{"no coordinates", nil, 0.30},
	}
	for _, c := range cases {
		if got := DistanceWeight(c.dist); got != c.want {
			t.Fatalf("%s: DistanceWeight = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestDistanceWeightMonotone(t *testing.T) {
	prev := DistanceWeight(fptr(0))
	for _, d := range []float64{10, 30, 75, 150, 300, 600} {
		w := DistanceWeight(fptr(d))
		if w > prev {
			t.Fatalf("DistanceWeight increased from %v to %v at %vm", prev, w, d)
		}
		prev = w
	}
}
