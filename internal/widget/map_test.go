package widget

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/f0rge/go-gpxreel/internal/config"
	"github.com/f0rge/go-gpxreel/internal/mapbuilder"
	"github.com/f0rge/go-gpxreel/internal/telemetry"
	"github.com/f0rge/go-gpxreel/internal/tilecache"
)

type blueTileFetcher struct{}

func (blueTileFetcher) FetchTile(ctx context.Context, key tilecache.Key) ([]byte, error) {
	img := image.NewNRGBA(image.Rect(0, 0, config.TileSize, config.TileSize))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i+2] = 0xff // blue
		img.Pix[i+3] = 0xff
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func TestMapWidgetBlendsRasterAndMarker(t *testing.T) {
	cache := tilecache.New(t.TempDir(), blueTileFetcher{})
	builder := mapbuilder.New(cache, config.SourceOpenStreetMap)
	bounds := telemetry.Bounds{MinLat: 48.00, MaxLat: 48.03, MinLon: 2.00, MaxLon: 2.03}

	raster, err := builder.Build(context.Background(), bounds, 13)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	w := NewMap(Config{X: 10, Y: 10, Width: 300, Height: 300}, raster, 1.0)
	if err := w.Prepare(); err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	frame := image.NewNRGBA(image.Rect(0, 0, 1280, 720))
	sample := telemetry.Sample{Lat: 48.015, Lon: 2.015}
	if err := w.Render(frame, sample); err != nil {
		t.Fatalf("Render: %v", err)
	}

	// map pixels are blue inside the widget rect
	if px := frame.NRGBAAt(15, 15); px.B != 0xff {
		t.Errorf("expected map raster pixel at (15,15), got %v", px)
	}

	// marker painted at the projected position
	px, py := raster.ToPixel(sample.Lat, sample.Lon)
	got := frame.NRGBAAt(10+px, 10+py)
	if got != markerColor {
		t.Errorf("marker pixel = %v, want %v", got, markerColor)
	}
}

func TestMapWidgetMarkerClippedToRect(t *testing.T) {
	raster := &mapbuilder.Raster{
		Image: image.NewNRGBA(image.Rect(0, 0, 64, 64)),
		Zoom:  1,
	}
	w := NewMap(Config{X: 10, Y: 10, Width: 64, Height: 64}, raster, 1.0)
	if err := w.Prepare(); err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	frame := image.NewNRGBA(image.Rect(0, 0, 128, 128))
	// this position projects onto the rect's top-left corner, so part of
	// the marker circle falls outside the widget's region
	lat, lon := raster.ToLatLon(0, 0)
	if err := w.Render(frame, telemetry.Sample{Lat: lat, Lon: lon}); err != nil {
		t.Fatalf("Render: %v", err)
	}

	rect := w.Rect()
	b := frame.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if image.Pt(x, y).In(rect) {
				continue
			}
			if px := frame.NRGBAAt(x, y); px != (color.NRGBA{}) {
				t.Fatalf("pixel (%d,%d) outside the widget rect painted %v", x, y, px)
			}
		}
	}
	if frame.NRGBAAt(rect.Min.X, rect.Min.Y) != markerColor {
		t.Error("marker not painted at the rect corner")
	}
}

func TestMapWidgetUnpreparedFails(t *testing.T) {
	w := NewMap(Config{X: 0, Y: 0, Width: 100, Height: 100}, nil, 1.0)
	if err := w.Prepare(); err == nil {
		t.Error("Prepare without raster must fail")
	}
	frame := image.NewNRGBA(image.Rect(0, 0, 100, 100))
	if err := w.Render(frame, telemetry.Sample{}); err == nil {
		t.Error("Render without prepared raster must fail")
	}
}
