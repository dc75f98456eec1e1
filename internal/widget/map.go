package widget

import (
	"errors"
	"image"
	"image/color"
	"image/draw"

	"github.com/f0rge/go-gpxreel/internal/mapbuilder"
	"github.com/f0rge/go-gpxreel/internal/telemetry"
)

const markerRadius = 6

var markerColor = color.NRGBA{255, 40, 40, 255}

// MapWidget blends the precomputed map raster and a position marker
// projected through the raster's retained geo-transform.
type MapWidget struct {
	box
	raster *mapbuilder.Raster
	factor float64
	scaled *image.NRGBA
}

// NewMap builds the map widget. The raster is shared read-only with the
// builder; scaling happens once in Prepare.
func NewMap(cfg Config, raster *mapbuilder.Raster, factor float64) *MapWidget {
	return &MapWidget{box: newBox("map", cfg), raster: raster, factor: factor}
}

func (w *MapWidget) Prepare() error {
	if w.raster == nil || w.raster.Image == nil {
		return errors.New("map widget has no raster")
	}
	w.scaled = mapbuilder.Scale(w.raster.Image, w.factor)
	return nil
}

func (w *MapWidget) Render(frame *image.NRGBA, s telemetry.Sample) error {
	if w.scaled == nil {
		return errors.New("map widget not prepared")
	}
	draw.Draw(frame, w.rect, w.scaled, image.Point{}, draw.Over)

	// project the current position and scale it into the blended image
	px, py := w.raster.ToPixel(s.Lat, s.Lon)
	mx := w.rect.Min.X + int(float64(px)*w.factor)
	my := w.rect.Min.Y + int(float64(py)*w.factor)
	circle := image.Rect(mx-markerRadius, my-markerRadius, mx+markerRadius+1, my+markerRadius+1)
	if !circle.Overlaps(w.rect) {
		return nil
	}
	for dx := -markerRadius; dx <= markerRadius; dx++ {
		for dy := -markerRadius; dy <= markerRadius; dy++ {
			if dx*dx+dy*dy > markerRadius*markerRadius {
				continue
			}
			// marker pixels never leave the widget's region
			if p := image.Pt(mx+dx, my+dy); p.In(w.rect) {
				frame.SetNRGBA(p.X, p.Y, markerColor)
			}
		}
	}
	return nil
}
