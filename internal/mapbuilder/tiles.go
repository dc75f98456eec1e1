package mapbuilder

import (
	"math"

	"github.com/f0rge/go-gpxreel/internal/config"
	"github.com/f0rge/go-gpxreel/internal/telemetry"
)

const maxZoom = 19

// tileCoords maps a position to fractional Web Mercator tile coordinates
// at the given zoom.
func tileCoords(lat, lon float64, zoom int) (x, y float64) {
	n := math.Exp2(float64(zoom))
	x = (lon + 180.0) / 360.0 * n
	rad := lat * math.Pi / 180.0
	y = (1.0 - math.Log(math.Tan(rad)+1.0/math.Cos(rad))/math.Pi) / 2.0 * n
	return x, y
}

// tileToLatLon is the inverse mapping, for the raster corner geo-transform.
func tileToLatLon(x, y float64, zoom int) (lat, lon float64) {
	n := math.Exp2(float64(zoom))
	lon = x/n*360.0 - 180.0
	lat = math.Atan(math.Sinh(math.Pi*(1.0-2.0*y/n))) * 180.0 / math.Pi
	return lat, lon
}

// AutoZoom picks the zoom level for a bounding box deterministically:
// the highest zoom whose (pre-crop) box raster still fits the configured
// maximum output size.
func AutoZoom(b telemetry.Bounds) int {
	for zoom := maxZoom; zoom > 0; zoom-- {
		x0, y0 := tileCoords(b.MaxLat, b.MinLon, zoom)
		x1, y1 := tileCoords(b.MinLat, b.MaxLon, zoom)
		w := (x1 - x0) * config.TileSize
		h := (y1 - y0) * config.TileSize
		if w <= config.MapMaxWidth && h <= config.MapMaxHeight {
			return zoom
		}
	}
	return 1
}
