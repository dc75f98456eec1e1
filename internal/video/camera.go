package video

import (
	"fmt"
	"os"

	"github.com/f0rge/go-gpxreel/internal/logger"
	"github.com/f0rge/go-gpxreel/internal/telemetry"
)

// SidecarTelemetry delivers the camera-embedded telemetry stream as a
// sidecar GPX next to the media file (<media>.gpx), the form camera
// export tools produce. Timestamps in the sidecar are on the camera
// clock; positions are lower confidence than the main track. Demuxing
// telemetry straight out of the container stays with external tools.
type SidecarTelemetry struct {
	mediaFile string
}

func NewSidecarTelemetry(mediaFile string) *SidecarTelemetry {
	return &SidecarTelemetry{mediaFile: mediaFile}
}

func (s *SidecarTelemetry) CameraSamples() ([]telemetry.Sample, error) {
	log := logger.Log.WithField("scope", "camera telemetry")

	path := s.mediaFile + ".gpx"
	if _, err := os.Stat(path); err != nil {
		log.Debugf("no telemetry sidecar at %s", path)
		return nil, nil
	}

	track, err := telemetry.LoadGPX(path)
	if err != nil {
		return nil, fmt.Errorf("loading camera telemetry sidecar: %w", err)
	}

	samples := make([]telemetry.Sample, track.Len())
	for i := 0; i < track.Len(); i++ {
		samples[i] = track.At(i)
	}
	log.Debugf("loaded %d camera samples from %s", len(samples), path)
	return samples, nil
}
