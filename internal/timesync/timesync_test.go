package timesync

import (
	"errors"
	"testing"
	"time"

	"github.com/f0rge/go-gpxreel/internal/telemetry"
)

type fakeCamera struct {
	samples []telemetry.Sample
	err     error
}

func (f *fakeCamera) CameraSamples() ([]telemetry.Sample, error) {
	return f.samples, f.err
}

func syncTrack(t *testing.T) *telemetry.Track {
	t.Helper()
	base := time.Date(2023, 6, 10, 8, 0, 0, 0, time.UTC)
	samples := make([]telemetry.Sample, 0, 60)
	for i := 0; i < 60; i++ {
		samples = append(samples, telemetry.Sample{
			Time: base.Add(time.Duration(i) * time.Second),
			Lat:  48.0 + float64(i)*0.0001,
			Lon:  2.0 + float64(i)*0.0001,
		})
	}
	track, err := telemetry.NewTrack(samples)
	if err != nil {
		t.Fatalf("NewTrack: %v", err)
	}
	return track
}

// camera stream = track positions re-timestamped on a shifted clock
func shiftedCamera(track *telemetry.Track, shift time.Duration) *fakeCamera {
	samples := make([]telemetry.Sample, 0, track.Len())
	for i := 0; i < track.Len(); i += 2 {
		s := track.At(i)
		s.Time = s.Time.Add(shift)
		samples = append(samples, s)
	}
	return &fakeCamera{samples: samples}
}

func TestComputeRecoversOffset(t *testing.T) {
	track := syncTrack(t)

	testCases := []struct {
		name  string
		shift time.Duration
	}{
		{name: "camera ahead", shift: 17 * time.Second},
		{name: "camera behind", shift: -9 * time.Second},
		{name: "clocks aligned", shift: 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			offset, err := Compute(track, shiftedCamera(track, tc.shift))
			if err != nil {
				t.Fatalf("Compute: %v", err)
			}
			if offset.Value != tc.shift {
				t.Errorf("got offset %v, want %v", offset.Value, tc.shift)
			}
		})
	}
}

func TestComputeDeterministic(t *testing.T) {
	track := syncTrack(t)
	cam := shiftedCamera(track, 5*time.Second)

	first, err := Compute(track, cam)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	for i := 0; i < 3; i++ {
		again, err := Compute(track, cam)
		if err != nil {
			t.Fatalf("Compute run %d: %v", i, err)
		}
		if again.Value != first.Value {
			t.Fatalf("run %d: offset %v differs from first run %v", i, again.Value, first.Value)
		}
	}
}

func TestComputeNoCameraTelemetry(t *testing.T) {
	track := syncTrack(t)
	_, err := Compute(track, &fakeCamera{})
	if !errors.Is(err, ErrSyncUnavailable) {
		t.Fatalf("got %v, want ErrSyncUnavailable", err)
	}
}

func TestComputeDistantCameraClock(t *testing.T) {
	track := syncTrack(t)
	_, end := track.TimeRange()

	// a camera clock an hour ahead still correlates once shifted back
	cam := &fakeCamera{samples: []telemetry.Sample{
		{Time: end.Add(time.Hour), Lat: 48.0, Lon: 2.0},
		{Time: end.Add(time.Hour + 10*time.Second), Lat: 48.001, Lon: 2.001},
	}}
	offset, err := Compute(track, cam)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if offset.Value <= 0 {
		t.Errorf("expected positive offset, got %v", offset.Value)
	}
}

func TestOffsetToTrack(t *testing.T) {
	base := time.Date(2023, 6, 10, 9, 0, 0, 0, time.UTC)
	o := Offset{Value: 30 * time.Second}
	if got := o.ToTrack(base); !got.Equal(base.Add(-30 * time.Second)) {
		t.Errorf("ToTrack = %v", got)
	}
}
