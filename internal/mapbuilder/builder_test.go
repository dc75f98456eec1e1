package mapbuilder

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"
	"time"

	"github.com/f0rge/go-gpxreel/internal/config"
	"github.com/f0rge/go-gpxreel/internal/telemetry"
	"github.com/f0rge/go-gpxreel/internal/tilecache"
)

// pngFetcher serves a solid-color tile for every key.
type pngFetcher struct {
	fail func(key tilecache.Key) bool
}

func (f *pngFetcher) FetchTile(ctx context.Context, key tilecache.Key) ([]byte, error) {
	if f.fail != nil && f.fail(key) {
		return nil, errors.New("unreachable")
	}
	img := image.NewNRGBA(image.Rect(0, 0, config.TileSize, config.TileSize))
	for i := range img.Pix {
		img.Pix[i] = 0x7f
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func testBounds() telemetry.Bounds {
	return telemetry.Bounds{MinLat: 48.00, MaxLat: 48.03, MinLon: 2.00, MaxLon: 2.03}
}

func newTestBuilder(t *testing.T, fetcher tilecache.Fetcher) *Builder {
	t.Helper()
	cache := tilecache.New(t.TempDir(), fetcher)
	return New(cache, config.SourceOpenStreetMap)
}

func TestTileCoordsRoundTrip(t *testing.T) {
	testCases := []struct {
		name     string
		lat, lon float64
		zoom     int
	}{
		{name: "paris", lat: 48.8566, lon: 2.3522, zoom: 12},
		{name: "equator", lat: 0, lon: 0, zoom: 8},
		{name: "southern", lat: -33.9, lon: 151.2, zoom: 15},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			x, y := tileCoords(tc.lat, tc.lon, tc.zoom)
			lat, lon := tileToLatLon(x, y, tc.zoom)
			if math.Abs(lat-tc.lat) > 1e-9 || math.Abs(lon-tc.lon) > 1e-9 {
				t.Errorf("round trip (%f,%f) -> (%f,%f)", tc.lat, tc.lon, lat, lon)
			}
		})
	}
}

func TestAutoZoomDeterministic(t *testing.T) {
	b := testBounds()
	z1 := AutoZoom(b)
	z2 := AutoZoom(b)
	if z1 != z2 {
		t.Fatalf("auto zoom not deterministic: %d vs %d", z1, z2)
	}
	if z1 < 1 || z1 > maxZoom {
		t.Fatalf("auto zoom out of range: %d", z1)
	}

	// the chosen zoom fits, the next one up must not
	x0, y0 := tileCoords(b.MaxLat, b.MinLon, z1+1)
	x1, y1 := tileCoords(b.MinLat, b.MaxLon, z1+1)
	if (x1-x0)*config.TileSize <= config.MapMaxWidth && (y1-y0)*config.TileSize <= config.MapMaxHeight {
		t.Errorf("zoom %d also fits, AutoZoom returned %d", z1+1, z1)
	}
}

func TestBuildRasterDimensionsAndTransform(t *testing.T) {
	builder := newTestBuilder(t, &pngFetcher{})
	bounds := testBounds()
	zoom := 13

	raster, err := builder.Build(context.Background(), bounds, zoom)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	x0, y0 := tileCoords(bounds.MaxLat, bounds.MinLon, zoom)
	x1, y1 := tileCoords(bounds.MinLat, bounds.MaxLon, zoom)
	wantW := int(math.Round((x1 - x0) * config.TileSize))
	wantH := int(math.Round((y1 - y0) * config.TileSize))

	if raster.Image.Bounds().Dx() != wantW || raster.Image.Bounds().Dy() != wantH {
		t.Errorf("raster %dx%d, want %dx%d",
			raster.Image.Bounds().Dx(), raster.Image.Bounds().Dy(), wantW, wantH)
	}

	// box corners round-trip to the raster corners (within a pixel)
	px, py := raster.ToPixel(bounds.MaxLat, bounds.MinLon)
	if px < -1 || px > 1 || py < -1 || py > 1 {
		t.Errorf("north-west corner -> (%d,%d), want (0,0)", px, py)
	}
	px, py = raster.ToPixel(bounds.MinLat, bounds.MaxLon)
	if abs(px-wantW) > 1 || abs(py-wantH) > 1 {
		t.Errorf("south-east corner -> (%d,%d), want (%d,%d)", px, py, wantW, wantH)
	}

	// pixel back to lat/lon lands inside the box
	lat, lon := raster.ToLatLon(wantW/2, wantH/2)
	if lat < bounds.MinLat || lat > bounds.MaxLat || lon < bounds.MinLon || lon > bounds.MaxLon {
		t.Errorf("center pixel -> (%f,%f) outside bounds", lat, lon)
	}
}

func TestBuildMissingEdgeTileUsesPlaceholder(t *testing.T) {
	// wide bounds so the corner tile stays outside the critical region
	bounds := telemetry.Bounds{MinLat: 47.90, MaxLat: 48.10, MinLon: 1.90, MaxLon: 2.10}

	// fail exactly the top-left tile of the grid
	x, y := tileCoords(bounds.MaxLat, bounds.MinLon, 12)
	corner := tilecache.Key{
		Source: config.SourceOpenStreetMap, Zoom: 12,
		X: int(math.Floor(x)), Y: int(math.Floor(y)),
	}
	fetcher := &pngFetcher{fail: func(key tilecache.Key) bool { return key == corner }}

	builder := newTestBuilder(t, fetcher)
	raster, err := builder.Build(context.Background(), bounds, 12)
	if err != nil {
		t.Fatalf("Build with missing edge tile: %v", err)
	}
	if raster.Image == nil {
		t.Fatal("no raster returned")
	}
}

func TestBuildMissingCriticalTileFails(t *testing.T) {
	fetcher := &pngFetcher{fail: func(tilecache.Key) bool { return true }}
	builder := newTestBuilder(t, fetcher)

	_, err := builder.Build(context.Background(), testBounds(), 13)
	if !errors.Is(err, ErrMapIncomplete) {
		t.Fatalf("got %v, want ErrMapIncomplete", err)
	}
}

func TestDrawTrack(t *testing.T) {
	builder := newTestBuilder(t, &pngFetcher{})
	bounds := testBounds()

	raster, err := builder.Build(context.Background(), bounds, 13)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	base := time.Date(2023, 6, 10, 8, 0, 0, 0, time.UTC)
	track, err := telemetry.NewTrack([]telemetry.Sample{
		{Time: base, Lat: 48.01, Lon: 2.01},
		{Time: base.Add(time.Minute), Lat: 48.02, Lon: 2.02},
	})
	if err != nil {
		t.Fatalf("NewTrack: %v", err)
	}

	col := color.NRGBA{255, 0, 0, 255}
	raster.DrawTrack(track, col, 2)

	px, py := raster.ToPixel(48.01, 2.01)
	if got := raster.Image.NRGBAAt(px, py); got != col {
		t.Errorf("track start pixel = %v, want %v", got, col)
	}
}

func TestScale(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 100, 50))
	scaled := Scale(img, 0.5)
	if scaled.Bounds().Dx() != 50 || scaled.Bounds().Dy() != 25 {
		t.Errorf("scaled to %v", scaled.Bounds())
	}
	if Scale(img, 1.0) != img {
		t.Error("factor 1.0 must be a no-op")
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
