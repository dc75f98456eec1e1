package widget

import (
	"fmt"
	"image"

	"github.com/f0rge/go-gpxreel/internal/telemetry"
)

func init() {
	Register("time", func(cfg Config) Widget { return &timeWidget{box: newBox("time", cfg), clock: cfg.Clock} })
	Register("speed", func(cfg Config) Widget { return &speedWidget{newBox("speed", cfg)} })
	Register("elevation", func(cfg Config) Widget { return &elevationWidget{newBox("elevation", cfg)} })
	Register("distance", func(cfg Config) Widget { return &distanceWidget{newBox("distance", cfg)} })
}

// timeWidget shows the camera's wall-clock time. The GPS timestamp is
// deliberately not used here: gpx time can carry a device offset, the
// on-board camera clock is what the viewer expects to read.
type timeWidget struct {
	box
	clock *Clock
}

func (w *timeWidget) Prepare() error {
	w.prepare()
	return nil
}

func (w *timeWidget) Render(frame *image.NRGBA, s telemetry.Sample) error {
	_ = s
	w.blit(frame, "TIME", w.clock.Now().Format("15:04:05"))
	return nil
}

type speedWidget struct {
	box
}

func (w *speedWidget) Prepare() error {
	w.prepare()
	return nil
}

func (w *speedWidget) Render(frame *image.NRGBA, s telemetry.Sample) error {
	w.blit(frame, "SPEED", fmt.Sprintf("%.1f km/h", s.Speed*3.6))
	return nil
}

type elevationWidget struct {
	box
}

func (w *elevationWidget) Prepare() error {
	w.prepare()
	return nil
}

func (w *elevationWidget) Render(frame *image.NRGBA, s telemetry.Sample) error {
	w.blit(frame, "ELEVATION", fmt.Sprintf("%.0f m", s.Elevation))
	return nil
}

type distanceWidget struct {
	box
}

func (w *distanceWidget) Prepare() error {
	w.prepare()
	return nil
}

func (w *distanceWidget) Render(frame *image.NRGBA, s telemetry.Sample) error {
	w.blit(frame, "DISTANCE", fmt.Sprintf("%.2f km", s.Distance/1000))
	return nil
}
