package core

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/f0rge/go-gpxreel/internal/config"
	"github.com/f0rge/go-gpxreel/internal/logger"
	"github.com/f0rge/go-gpxreel/internal/mapbuilder"
	"github.com/f0rge/go-gpxreel/internal/renderer"
	"github.com/f0rge/go-gpxreel/internal/scheduler"
	"github.com/f0rge/go-gpxreel/internal/telemetry"
	"github.com/f0rge/go-gpxreel/internal/timesync"
	"github.com/f0rge/go-gpxreel/internal/tui"
	"github.com/f0rge/go-gpxreel/internal/video"
	"github.com/f0rge/go-gpxreel/internal/widget"
)

const (
	layoutMargin  = 20
	layoutBoxW    = 240
	layoutBoxH    = 90
	layoutSpacing = 10

	// largest share of either frame dimension the map overlay may occupy
	mapMaxFrac = 0.4
)

// taskFunc adapts a closure to a scheduler task.
type taskFunc struct {
	name string
	fn   func(ctx context.Context) error
}

func (t taskFunc) Name() string                  { return t.name }
func (t taskFunc) Run(ctx context.Context) error { return t.fn(ctx) }

// Video runs the full overlay pipeline: timesync and map build first,
// then the renderer, driven as scheduler tasks ordered by their data
// dependencies.
func (c *Core) Video() error {
	log := logger.Log.WithField("scope", "core video")

	track, err := telemetry.LoadGPX(c.settings.GpxFile)
	if err != nil {
		return err
	}

	probe, err := video.ProbeMedia(c.ctx, c.settings.MediaFile)
	if err != nil {
		return err
	}
	fps := c.settings.FrameRate
	if fps == 0 {
		fps = probe.FrameRate
	}
	if fps == 0 {
		fps = config.DefaultFrameRate
	}
	videoStart := probe.CreationTime
	if videoStart.IsZero() {
		log.Warn("media has no creation time, assuming it starts with the track")
		videoStart = track.First().Time
	}
	if c.settings.MaxDuration > 0 && probe.Duration > 0 && c.settings.MaxDuration > probe.Duration {
		log.Warnf("duration limit %v exceeds media length %v", c.settings.MaxDuration, probe.Duration)
	}

	// published by the upstream tasks, read by the render task; the
	// scheduler's dependency ordering is the synchronization
	var offset timesync.Offset
	var raster *mapbuilder.Raster

	sched := scheduler.New()
	syncTask := sched.Register(taskFunc{name: "timesync", fn: func(ctx context.Context) error {
		c.eventsCh <- tui.NewEventSpin("Synchronizing clocks...")
		var err error
		offset, err = c.computeOffset(track)
		return err
	}})
	mapTask := sched.Register(taskFunc{name: "map", fn: func(ctx context.Context) error {
		c.eventsCh <- tui.NewEventSpin("Building map...")
		var err error
		raster, err = c.buildRaster(track)
		return err
	}})
	sched.Register(taskFunc{name: "render", fn: func(ctx context.Context) error {
		return c.render(ctx, track, offset, raster, videoStart, fps)
	}}, syncTask, mapTask)

	if err := sched.Exec(c.ctx); err != nil {
		return err
	}
	log.Infof("video saved: %s", c.settings.OutputFile)
	return nil
}

// render extracts the decoded frames, composites the widgets onto each
// one and feeds the result to the encoder, in source order.
func (c *Core) render(ctx context.Context, track *telemetry.Track, offset timesync.Offset,
	raster *mapbuilder.Raster, videoStart time.Time, fps float64) error {

	log := logger.Log.WithField("scope", "core render")

	c.eventsCh <- tui.NewEventSpin("Extracting frames...")
	framesDir, err := video.CreateFramesDir(config.PathFramesDir)
	if err != nil {
		return fmt.Errorf("creating frames dir: %w", err)
	}
	defer os.RemoveAll(framesDir)

	if err := video.ExtractFrames(ctx, c.settings.MediaFile, framesDir); err != nil {
		return err
	}
	files, err := video.ScanFrames(framesDir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no frames extracted from %s", c.settings.MediaFile)
	}
	log.Debugf("extracted %d frames", len(files))

	first, err := video.ReadFrame(files[0])
	if err != nil {
		return fmt.Errorf("reading first frame: %w", err)
	}
	frameW := first.Bounds().Dx()
	frameH := first.Bounds().Dy()

	clock := widget.NewClock()
	widgets, err := c.buildWidgets(frameW, frameH, raster, clock)
	if err != nil {
		return err
	}

	encoder, err := video.NewEncoder(ctx, c.settings.OutputFile, fps)
	if err != nil {
		return err
	}
	// Close is idempotent; the defer reaps ffmpeg on every error path,
	// the explicit call below surfaces the codec error
	defer encoder.Close()

	r, err := renderer.New(track, offset, widgets, clock, encoder, c.settings.Edge)
	if err != nil {
		return err
	}

	frames := make(chan renderer.Frame, 8)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return video.StreamFrames(gctx, files, videoStart, fps, c.settings.MaxDuration, frames)
	})
	g.Go(func() error {
		return r.Run(gctx, frames, len(files), c.eventsCh)
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if err := encoder.Close(); err != nil {
		return err
	}
	c.eventsCh <- tui.NewEventText("Done.")
	return nil
}

// buildWidgets lays out the enabled overlays: data boxes stacked down
// the left edge, the map in the bottom-right corner. Render order is
// fixed by slice order.
func (c *Core) buildWidgets(frameW, frameH int, raster *mapbuilder.Raster,
	clock *widget.Clock) ([]widget.Widget, error) {

	var widgets []widget.Widget
	y := layoutMargin
	for _, name := range []string{"time", "speed", "elevation", "distance"} {
		w, err := widget.New(name, widget.Config{
			X: layoutMargin, Y: y,
			Width: layoutBoxW, Height: layoutBoxH,
			Clock: clock,
		})
		if err != nil {
			return nil, err
		}
		widgets = append(widgets, w)
		y += layoutBoxH + layoutSpacing
	}

	// the auto-zoomed raster can be larger than the frame itself; the
	// configured factor is capped so the map keeps to its corner
	factor := c.settings.MapFactor
	rw := float64(raster.Image.Bounds().Dx())
	rh := float64(raster.Image.Bounds().Dy())
	if f := float64(frameW) * mapMaxFrac / rw; f < factor {
		factor = f
	}
	if f := float64(frameH) * mapMaxFrac / rh; f < factor {
		factor = f
	}

	scaledW := int(rw * factor)
	scaledH := int(rh * factor)
	mapCfg := widget.Config{
		X: frameW - scaledW - layoutMargin, Y: frameH - scaledH - layoutMargin,
		Width: scaledW, Height: scaledH,
	}
	widgets = append(widgets, widget.NewMap(mapCfg, raster, factor))

	if err := widget.CheckLayout(widgets); err != nil {
		return nil, fmt.Errorf("widget layout: %w", err)
	}
	return widgets, nil
}
