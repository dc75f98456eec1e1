package core

import (
	"fmt"
	"image/color"
	"image/png"
	"os"

	"github.com/f0rge/go-gpxreel/internal/config"
	"github.com/f0rge/go-gpxreel/internal/logger"
	"github.com/f0rge/go-gpxreel/internal/mapbuilder"
	"github.com/f0rge/go-gpxreel/internal/telemetry"
	"github.com/f0rge/go-gpxreel/internal/tui"
)

var trackColor = color.NRGBA{40, 80, 255, 255}

// Clear purges the persistent tile cache.
func (c *Core) Clear() error {
	c.eventsCh <- tui.NewEventSpin("Clearing tile cache...")
	if err := c.cache.Clear(); err != nil {
		return err
	}
	c.eventsCh <- tui.NewEventText("Cache cleared.")
	return nil
}

// BuildMap composes the track's map raster and writes it to the output
// file. withTrack additionally paints the track polyline.
func (c *Core) BuildMap(withTrack bool) error {
	log := logger.Log.WithField("scope", "core map")

	c.eventsCh <- tui.NewEventSpin("Building map...")

	track, err := telemetry.LoadGPX(c.settings.GpxFile)
	if err != nil {
		return err
	}

	raster, err := c.buildRaster(track)
	if err != nil {
		return err
	}
	if withTrack {
		raster.DrawTrack(track, trackColor, 2)
	}

	img := mapbuilder.Scale(raster.Image, c.settings.MapFactor)

	out, err := os.Create(c.settings.OutputFile)
	if err != nil {
		return fmt.Errorf("creating %s: %w", c.settings.OutputFile, err)
	}
	defer out.Close()
	if err := png.Encode(out, img); err != nil {
		return fmt.Errorf("writing map to %s: %w", c.settings.OutputFile, err)
	}

	c.eventsCh <- tui.NewEventText("Done.")
	log.Infof("map saved: %s (%dx%d, zoom %d)",
		c.settings.OutputFile, img.Bounds().Dx(), img.Bounds().Dy(), raster.Zoom)
	return nil
}

func (c *Core) buildRaster(track *telemetry.Track) (*mapbuilder.Raster, error) {
	builder := mapbuilder.New(c.cache, c.settings.MapSource)
	bounds := track.Bounds().Expand(config.MapMarginPct)
	return builder.Build(c.ctx, bounds, c.settings.MapZoom)
}
