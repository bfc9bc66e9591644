package geo

import "testing"

func TestDistance(t *testing.T) {
	tests := []struct {
		name string
		p1   Point
		p2   Point
		want float64
	}{
		{
			name: "same point",
			p1:   Point{Lat: 0, Lng: 0},
			p2:   Point{Lat: 0, Lng: 0},
			want: 0,
		},
		{
			name: "London to Paris",
			p1:   Point{Lat: 51.5074, Lng: -0.1278},
			p2:   Point{Lat: 48.8566, Lng: 2.3522},
			want: 344000,
		},
		{
			name: "equator 1 degree",
			p1:   Point{Lat: 0, Lng: 0},
			p2:   Point{Lat: 0, Lng: 1},
			want: 111319,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Distance(tt.p1, tt.p2)
			margin := tt.want * 0.01
			if margin == 0 {
				margin = 1
			}
			if abs(got-tt.want) > margin {
				t.Errorf("Distance() = %v, want %v (+/- %v)", got, tt.want, margin)
			}
		})
	}
}

func TestDistanceMeters(t *testing.T) {
	got := DistanceMeters(0, 0, 0, 1)
	if abs(got-111319) > 1113 {
		t.Errorf("DistanceMeters() = %v, want ~111319", got)
	}
}

func TestBucketKey(t *testing.T) {
	tests := []struct {
		name    string
		lat     float64
		lng     float64
		radius  int
		want    string
	}{
		{"rounds to 4dp", 48.85661234, 2.35221234, 500, "48.8566,2.3522,500"},
		{"nearby coords collapse to same bucket", 48.856614, 2.352211, 500, "48.8566,2.3522,500"},
		{"different radius differs", 48.8566, 2.3522, 900, "48.8566,2.3522,900"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BucketKey(tt.lat, tt.lng, tt.radius)
			if got != tt.want {
				t.Errorf("BucketKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBucketKey_DistinctForDistantPoints(t *testing.T) {
	a := BucketKey(48.8566, 2.3522, 500)
	b := BucketKey(40.7128, -74.0060, 500)
	if a == b {
		t.Errorf("expected distinct bucket keys for distant points, both were %q", a)
	}
}

func TestRoundDistance(t *testing.T) {
	tests := []struct {
		name  string
		m     float64
		step  float64
		want  float64
	}{
		{"rounds down", 123, 50, 100},
		{"rounds up", 130, 50, 150},
		{"exact multiple", 500, 50, 500},
		{"zero step disables rounding", 123.456, 0, 123.456},
		{"negative step disables rounding", 123.456, -1, 123.456},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RoundDistance(tt.m, tt.step)
			if got != tt.want {
				t.Errorf("RoundDistance(%v, %v) = %v, want %v", tt.m, tt.step, got, tt.want)
			}
		})
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
