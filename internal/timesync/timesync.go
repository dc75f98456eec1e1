package timesync

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/f0rge/go-gpxreel/internal/config"
	"github.com/f0rge/go-gpxreel/internal/logger"
	"github.com/f0rge/go-gpxreel/internal/telemetry"
)

// ErrSyncUnavailable is returned when no usable clock offset can be
// established between the camera stream and the GPX track.
var ErrSyncUnavailable = errors.New("time sync unavailable")

// CameraSource delivers the telemetry embedded in the media stream, with
// camera-clock timestamps. Extraction from the container is not our
// concern; an empty result means the camera recorded no telemetry.
type CameraSource interface {
	CameraSamples() ([]telemetry.Sample, error)
}

// Offset is the constant mapping between the two clocks:
//
//	track_time = video_time - Offset
//
// Computed once per session, immutable afterwards.
type Offset struct {
	Value time.Duration
}

func (o Offset) ToTrack(videoTime time.Time) time.Time {
	return videoTime.Add(-o.Value)
}

// Compute cross-correlates the camera samples against the track and
// returns the offset minimizing the summed squared positional deviation.
// The search space is bounded to trial offsets that keep some temporal
// overlap between the two sequences. Deterministic: same inputs, same
// offset, bit for bit.
func Compute(track *telemetry.Track, source CameraSource) (Offset, error) {
	log := logger.Log.WithField("scope", "timesync")

	camera, err := source.CameraSamples()
	if err != nil {
		return Offset{}, fmt.Errorf("reading camera telemetry: %w", err)
	}
	if len(camera) == 0 {
		return Offset{}, fmt.Errorf("media stream carries no telemetry: %w", ErrSyncUnavailable)
	}

	trackStart, trackEnd := track.TimeRange()
	camStart := camera[0].Time
	camEnd := camera[len(camera)-1].Time

	// Trial offsets o satisfy camTime - o ∈ [trackStart, trackEnd] for at
	// least part of the camera sequence.
	minOffset := camStart.Sub(trackEnd)
	maxOffset := camEnd.Sub(trackStart)
	if minOffset > maxOffset {
		return Offset{}, fmt.Errorf("camera and track time ranges never overlap: %w", ErrSyncUnavailable)
	}

	step := config.SyncStep
	best := Offset{}
	bestCost := math.Inf(1)
	matched := false

	for o := minOffset; o <= maxOffset; o += step {
		cost, n := correlate(track, camera, o)
		if n == 0 {
			continue
		}
		// normalize by match count so longer overlaps are not penalized
		cost /= float64(n)
		if cost < bestCost {
			bestCost = cost
			best = Offset{Value: o}
			matched = true
		}
	}
	if !matched {
		return Offset{}, fmt.Errorf("no overlapping samples at any trial offset: %w", ErrSyncUnavailable)
	}

	log.Debugf("offset %v, residual %.2f m²", best.Value, bestCost)
	return best, nil
}

// correlate sums squared positional deviation between camera samples
// shifted by the trial offset and the nearest-preceding track samples.
func correlate(track *telemetry.Track, camera []telemetry.Sample, offset time.Duration) (float64, int) {
	cursor := telemetry.NewCursor(track)
	var cost float64
	var n int
	for _, cs := range camera {
		ts, err := cursor.At(cs.Time.Add(-offset))
		if err != nil {
			continue
		}
		dLat := (cs.Lat - ts.Lat) * metersPerDegreeLat
		dLon := (cs.Lon - ts.Lon) * metersPerDegreeLat * math.Cos(ts.Lat*math.Pi/180)
		cost += dLat*dLat + dLon*dLon
		n++
	}
	return cost, n
}

const metersPerDegreeLat = 111320.0
