package telemetry

import (
	"errors"
	"math"
	"testing"
	"time"
)

func testTrack(t *testing.T) *Track {
	t.Helper()
	base := time.Date(2023, 6, 10, 8, 0, 0, 0, time.UTC)
	samples := []Sample{
		{Time: base, Lat: 48.00, Lon: 2.00, Elevation: 100},
		{Time: base.Add(10 * time.Second), Lat: 48.01, Lon: 2.01, Elevation: 110},
		{Time: base.Add(20 * time.Second), Lat: 48.02, Lon: 2.02, Elevation: 120},
		{Time: base.Add(30 * time.Second), Lat: 48.03, Lon: 2.03, Elevation: 130},
	}
	track, err := NewTrack(samples)
	if err != nil {
		t.Fatalf("NewTrack: %v", err)
	}
	return track
}

func TestNewTrackRejectsUnordered(t *testing.T) {
	base := time.Date(2023, 6, 10, 8, 0, 0, 0, time.UTC)
	_, err := NewTrack([]Sample{
		{Time: base.Add(time.Second)},
		{Time: base},
	})
	if err == nil {
		t.Fatal("expected error for unordered samples")
	}
}

func TestCursorNearestPreceding(t *testing.T) {
	track := testTrack(t)
	base := track.First().Time

	testCases := []struct {
		name  string
		query time.Duration
		want  time.Duration // expected sample offset from base
	}{
		{name: "exact hit", query: 10 * time.Second, want: 10 * time.Second},
		{name: "between samples", query: 15 * time.Second, want: 10 * time.Second},
		{name: "first sample", query: 0, want: 0},
		{name: "after last", query: 5 * time.Minute, want: 30 * time.Second},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := NewCursor(track)
			s, err := c.At(base.Add(tc.query))
			if err != nil {
				t.Fatalf("At: %v", err)
			}
			if got := s.Time.Sub(base); got != tc.want {
				t.Errorf("got sample at +%v, want +%v", got, tc.want)
			}
		})
	}
}

func TestCursorBeforeTrackStart(t *testing.T) {
	track := testTrack(t)
	c := NewCursor(track)
	_, err := c.At(track.First().Time.Add(-time.Second))
	if !errors.Is(err, ErrNoSampleAvailable) {
		t.Fatalf("got %v, want ErrNoSampleAvailable", err)
	}
}

func TestCursorMonotonicForward(t *testing.T) {
	track := testTrack(t)
	base := track.First().Time
	c := NewCursor(track)

	// non-decreasing query sequence must hit every sample in order
	for i := 0; i < track.Len(); i++ {
		s, err := c.At(base.Add(time.Duration(i*10+5) * time.Second))
		if err != nil {
			t.Fatalf("At: %v", err)
		}
		if want := base.Add(time.Duration(i*10) * time.Second); !s.Time.Equal(want) {
			t.Errorf("query %d: got %v, want %v", i, s.Time, want)
		}
	}

	// a backwards query falls back to search and still answers correctly
	s, err := c.At(base.Add(2 * time.Second))
	if err != nil {
		t.Fatalf("At: %v", err)
	}
	if !s.Time.Equal(base) {
		t.Errorf("backwards query: got %v, want %v", s.Time, base)
	}
}

func TestCursorInterpolation(t *testing.T) {
	track := testTrack(t)
	base := track.First().Time
	c := NewCursor(track).WithInterpolation()

	s, err := c.At(base.Add(5 * time.Second))
	if err != nil {
		t.Fatalf("At: %v", err)
	}
	if math.Abs(s.Lat-48.005) > 1e-9 {
		t.Errorf("interpolated lat = %f, want 48.005", s.Lat)
	}
	if math.Abs(s.Elevation-105) > 1e-9 {
		t.Errorf("interpolated elevation = %f, want 105", s.Elevation)
	}
}

func TestTrackBounds(t *testing.T) {
	track := testTrack(t)
	b := track.Bounds()
	if b.MinLat != 48.00 || b.MaxLat != 48.03 || b.MinLon != 2.00 || b.MaxLon != 2.03 {
		t.Errorf("unexpected bounds: %+v", b)
	}

	e := b.Expand(0.1)
	if e.MinLat >= b.MinLat || e.MaxLat <= b.MaxLat {
		t.Errorf("expand did not grow bounds: %+v", e)
	}
}

func TestDerivedMotion(t *testing.T) {
	track := testTrack(t)

	last := track.Last()
	if last.Distance <= 0 {
		t.Error("cumulative distance not derived")
	}
	for i := 0; i < track.Len(); i++ {
		if track.At(i).Speed <= 0 {
			t.Errorf("sample %d has no derived speed", i)
		}
	}

	// successive distances are non-decreasing
	for i := 1; i < track.Len(); i++ {
		if track.At(i).Distance < track.At(i-1).Distance {
			t.Errorf("distance decreased at sample %d", i)
		}
	}
}

func TestHaversine(t *testing.T) {
	// one degree of latitude is ~111.2 km
	d := haversineM(48.0, 2.0, 49.0, 2.0)
	if math.Abs(d-111195) > 500 {
		t.Errorf("haversine 1 degree lat = %f m, want ~111195", d)
	}
	if haversineM(48.0, 2.0, 48.0, 2.0) != 0 {
		t.Error("zero distance expected for identical points")
	}
}
