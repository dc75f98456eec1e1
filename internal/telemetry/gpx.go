package telemetry

import (
	"fmt"

	"github.com/tkrajina/gpxgo/gpx"

	"github.com/f0rge/go-gpxreel/internal/logger"
)

// LoadGPX parses a GPX file and flattens all tracks and segments into one
// Track. Records with out-of-range coordinates or non-monotonic timestamps
// are rejected here so the rest of the pipeline can assume a valid track.
func LoadGPX(path string) (*Track, error) {
	log := logger.Log.WithField("scope", "gpx")

	g, err := gpx.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("parsing gpx file %s: %w", path, err)
	}

	var samples []Sample
	for _, trk := range g.Tracks {
		for _, seg := range trk.Segments {
			for _, p := range seg.Points {
				if p.Latitude < -90 || p.Latitude > 90 {
					return nil, fmt.Errorf("latitude %f out of range in %s", p.Latitude, path)
				}
				if p.Longitude < -180 || p.Longitude > 180 {
					return nil, fmt.Errorf("longitude %f out of range in %s", p.Longitude, path)
				}
				if p.Timestamp.IsZero() {
					return nil, fmt.Errorf("track point without timestamp in %s", path)
				}
				samples = append(samples, Sample{
					Time:      p.Timestamp,
					Lat:       p.Latitude,
					Lon:       p.Longitude,
					Elevation: p.Elevation.Value(),
				})
			}
		}
	}
	log.Debugf("parsed %d track points from %s", len(samples), path)

	track, err := NewTrack(samples)
	if err != nil {
		return nil, fmt.Errorf("building track from %s: %w", path, err)
	}
	return track, nil
}
