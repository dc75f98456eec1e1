package core

import (
	"errors"
	"fmt"

	"github.com/f0rge/go-gpxreel/internal/logger"
	"github.com/f0rge/go-gpxreel/internal/telemetry"
	"github.com/f0rge/go-gpxreel/internal/timesync"
	"github.com/f0rge/go-gpxreel/internal/tui"
	"github.com/f0rge/go-gpxreel/internal/video"
)

// Sync computes the camera/track clock offset and reports it.
func (c *Core) Sync() error {
	log := logger.Log.WithField("scope", "core sync")

	c.eventsCh <- tui.NewEventSpin("Computing clock offset...")

	track, err := telemetry.LoadGPX(c.settings.GpxFile)
	if err != nil {
		return err
	}

	offset, err := c.computeOffset(track)
	if err != nil {
		return err
	}

	c.eventsCh <- tui.NewEventText("Done.")
	log.Infof("clock offset: %v (track time = video time - offset)", offset.Value)
	return nil
}

// computeOffset runs timesync against the media's embedded telemetry.
// When sync is unavailable and unsynced mode was explicitly allowed, a
// zero offset is used instead.
func (c *Core) computeOffset(track *telemetry.Track) (timesync.Offset, error) {
	log := logger.Log.WithField("scope", "core sync")

	source := video.NewSidecarTelemetry(c.settings.MediaFile)
	offset, err := timesync.Compute(track, source)
	if err != nil {
		if errors.Is(err, timesync.ErrSyncUnavailable) && c.settings.Unsynced {
			log.Warnf("sync unavailable, proceeding unsynced: %v", err)
			return timesync.Offset{}, nil
		}
		return timesync.Offset{}, fmt.Errorf("synchronizing clocks: %w", err)
	}
	return offset, nil
}
