package telemetry

import (
	"errors"
	"math"
	"sort"
	"time"
)

// ErrNoSampleAvailable is returned when a query time precedes the first
// sample of the track.
var ErrNoSampleAvailable = errors.New("no telemetry sample available")

const earthRadiusM = 6371000.0

// Sample is one timestamped telemetry point. Times are on the track clock.
type Sample struct {
	Time      time.Time
	Lat       float64
	Lon       float64
	Elevation float64
	Speed     float64 // m/s
	Distance  float64 // cumulative meters from track start
}

// Bounds is the geographic envelope of a track.
type Bounds struct {
	MinLat, MinLon float64
	MaxLat, MaxLon float64
}

// Track is an immutable, chronologically ordered sequence of samples.
type Track struct {
	samples []Sample
}

// NewTrack takes ownership of samples. Samples must already be sorted by
// time; speed and cumulative distance are derived for points that carry
// none.
func NewTrack(samples []Sample) (*Track, error) {
	if len(samples) == 0 {
		return nil, errors.New("track is empty")
	}
	for i := 1; i < len(samples); i++ {
		if samples[i].Time.Before(samples[i-1].Time) {
			return nil, errors.New("track samples are not in chronological order")
		}
	}
	deriveMotion(samples)
	return &Track{samples: samples}, nil
}

// deriveMotion fills Speed and Distance from successive positions.
func deriveMotion(samples []Sample) {
	for i := 1; i < len(samples); i++ {
		d := haversineM(samples[i-1].Lat, samples[i-1].Lon, samples[i].Lat, samples[i].Lon)
		samples[i].Distance = samples[i-1].Distance + d
		if samples[i].Speed == 0 {
			dt := samples[i].Time.Sub(samples[i-1].Time).Seconds()
			if dt > 0 {
				samples[i].Speed = d / dt
			}
		}
	}
	if len(samples) > 1 && samples[0].Speed == 0 {
		samples[0].Speed = samples[1].Speed
	}
}

func (t *Track) Len() int {
	return len(t.samples)
}

func (t *Track) At(i int) Sample {
	return t.samples[i]
}

func (t *Track) First() Sample {
	return t.samples[0]
}

func (t *Track) Last() Sample {
	return t.samples[len(t.samples)-1]
}

// TimeRange returns the first and last sample times.
func (t *Track) TimeRange() (time.Time, time.Time) {
	return t.First().Time, t.Last().Time
}

// Bounds returns the min/max latitude and longitude over all samples.
func (t *Track) Bounds() Bounds {
	b := Bounds{
		MinLat: t.samples[0].Lat, MaxLat: t.samples[0].Lat,
		MinLon: t.samples[0].Lon, MaxLon: t.samples[0].Lon,
	}
	for _, s := range t.samples[1:] {
		b.MinLat = math.Min(b.MinLat, s.Lat)
		b.MaxLat = math.Max(b.MaxLat, s.Lat)
		b.MinLon = math.Min(b.MinLon, s.Lon)
		b.MaxLon = math.Max(b.MaxLon, s.Lon)
	}
	return b
}

// Expand grows the bounds by a fraction of their extent on every side.
func (b Bounds) Expand(margin float64) Bounds {
	dLat := (b.MaxLat - b.MinLat) * margin
	dLon := (b.MaxLon - b.MinLon) * margin
	return Bounds{
		MinLat: b.MinLat - dLat, MaxLat: b.MaxLat + dLat,
		MinLon: b.MinLon - dLon, MaxLon: b.MaxLon + dLon,
	}
}

// Cursor resolves track-clock timestamps to samples. Callers that query
// with non-decreasing times (the renderer, one query per frame) get
// amortized O(1); anything else falls back to binary search.
type Cursor struct {
	track       *Track
	pos         int
	lastQuery   time.Time
	primed      bool
	interpolate bool
}

// NewCursor returns a cursor with the nearest-preceding sample policy.
func NewCursor(track *Track) *Cursor {
	return &Cursor{track: track}
}

// WithInterpolation switches the cursor to linear interpolation between
// the surrounding samples. The policy is chosen once, not per query.
func (c *Cursor) WithInterpolation() *Cursor {
	c.interpolate = true
	return c
}

// At returns the sample for track time tt: the latest sample whose time
// is <= tt, or an interpolated one when the interpolation policy is on.
// Queries before the first sample fail with ErrNoSampleAvailable.
func (c *Cursor) At(tt time.Time) (Sample, error) {
	samples := c.track.samples
	if tt.Before(samples[0].Time) {
		return Sample{}, ErrNoSampleAvailable
	}

	if c.primed && !tt.Before(c.lastQuery) {
		// forward scan from the previous hit
		for c.pos+1 < len(samples) && !samples[c.pos+1].Time.After(tt) {
			c.pos++
		}
	} else {
		// random access
		c.pos = sort.Search(len(samples), func(i int) bool {
			return samples[i].Time.After(tt)
		}) - 1
	}
	c.lastQuery = tt
	c.primed = true

	s := samples[c.pos]
	if !c.interpolate || c.pos+1 >= len(samples) {
		return s, nil
	}
	next := samples[c.pos+1]
	span := next.Time.Sub(s.Time).Seconds()
	if span <= 0 {
		return s, nil
	}
	f := tt.Sub(s.Time).Seconds() / span
	return Sample{
		Time:      tt,
		Lat:       s.Lat + (next.Lat-s.Lat)*f,
		Lon:       s.Lon + (next.Lon-s.Lon)*f,
		Elevation: s.Elevation + (next.Elevation-s.Elevation)*f,
		Speed:     s.Speed + (next.Speed-s.Speed)*f,
		Distance:  s.Distance + (next.Distance-s.Distance)*f,
	}, nil
}

func haversineM(lat1, lon1, lat2, lon2 float64) float64 {
	rLat1 := lat1 * math.Pi / 180
	rLat2 := lat2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusM * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
