package mapbuilder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"sync"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"

	"github.com/f0rge/go-gpxreel/internal/config"
	"github.com/f0rge/go-gpxreel/internal/logger"
	"github.com/f0rge/go-gpxreel/internal/telemetry"
	"github.com/f0rge/go-gpxreel/internal/tilecache"
)

// ErrMapIncomplete is returned when a tile inside the critical viewport
// region cannot be fetched.
var ErrMapIncomplete = errors.New("map incomplete")

// Raster is a stitched map image plus the affine transform back to
// geographic coordinates. The transform is retained so later stages can
// project track points onto pixels without re-deriving zoom math.
type Raster struct {
	Image *image.NRGBA
	Zoom  int

	// fractional tile coordinates of the raster's top-left pixel
	originX float64
	originY float64
}

// ToPixel projects a position onto raster pixel coordinates.
func (r *Raster) ToPixel(lat, lon float64) (int, int) {
	x, y := tileCoords(lat, lon, r.Zoom)
	px := int(math.Round((x - r.originX) * config.TileSize))
	py := int(math.Round((y - r.originY) * config.TileSize))
	return px, py
}

// ToLatLon is the inverse projection, pixel to position.
func (r *Raster) ToLatLon(px, py int) (float64, float64) {
	x := r.originX + float64(px)/config.TileSize
	y := r.originY + float64(py)/config.TileSize
	return tileToLatLon(x, y, r.Zoom)
}

// Builder composes map rasters out of cached tiles.
type Builder struct {
	cache  *tilecache.Cache
	source config.MapSource
}

func New(cache *tilecache.Cache, source config.MapSource) *Builder {
	return &Builder{cache: cache, source: source}
}

// Build stitches the minimal tile grid covering bounds at the given zoom
// (0 = auto) and crops the result to the box. A tile that stays missing
// after retries becomes a blank placeholder, unless it intersects the
// critical center region of the viewport.
func (b *Builder) Build(ctx context.Context, bounds telemetry.Bounds, zoom int) (*Raster, error) {
	log := logger.Log.WithField("scope", "mapbuilder")

	if zoom == 0 {
		zoom = AutoZoom(bounds)
		log.Debugf("auto zoom: %d", zoom)
	}

	x0, y0 := tileCoords(bounds.MaxLat, bounds.MinLon, zoom)
	x1, y1 := tileCoords(bounds.MinLat, bounds.MaxLon, zoom)

	tx0, ty0 := int(math.Floor(x0)), int(math.Floor(y0))
	tx1, ty1 := int(math.Floor(x1)), int(math.Floor(y1))
	tilesWide := tx1 - tx0 + 1
	tilesHigh := ty1 - ty0 + 1
	log.Debugf("grid %dx%d tiles at zoom %d", tilesWide, tilesHigh, zoom)

	grid := image.NewNRGBA(image.Rect(0, 0, tilesWide*config.TileSize, tilesHigh*config.TileSize))

	critical := criticalRect(grid.Bounds())

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(config.TileFetchWorkers)

	for ty := ty0; ty <= ty1; ty++ {
		for tx := tx0; tx <= tx1; tx++ {
			tx, ty := tx, ty
			g.Go(func() error {
				key := tilecache.Key{Source: b.source, Zoom: zoom, X: tx, Y: ty}
				rect := image.Rect(
					(tx-tx0)*config.TileSize, (ty-ty0)*config.TileSize,
					(tx-tx0+1)*config.TileSize, (ty-ty0+1)*config.TileSize)

				tile, err := b.cache.Fetch(gctx, key)
				if err != nil {
					if rect.Overlaps(critical) {
						return fmt.Errorf("tile %s inside critical region: %w", key, ErrMapIncomplete)
					}
					log.Warnf("tile %s missing, using placeholder: %v", key, err)
					mu.Lock()
					draw.Draw(grid, rect, image.NewUniform(placeholderColor), image.Point{}, draw.Src)
					mu.Unlock()
					return nil
				}

				img, _, err := image.Decode(bytes.NewReader(tile.Data))
				if err != nil {
					return fmt.Errorf("decoding tile %s: %w", key, err)
				}
				mu.Lock()
				draw.Draw(grid, rect, img, image.Point{}, draw.Src)
				mu.Unlock()
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// crop the grid to the requested box
	cropX := int(math.Round((x0 - float64(tx0)) * config.TileSize))
	cropY := int(math.Round((y0 - float64(ty0)) * config.TileSize))
	cropW := int(math.Round((x1 - x0) * config.TileSize))
	cropH := int(math.Round((y1 - y0) * config.TileSize))

	cropped := image.NewNRGBA(image.Rect(0, 0, cropW, cropH))
	draw.Draw(cropped, cropped.Bounds(), grid, image.Pt(cropX, cropY), draw.Src)

	return &Raster{
		Image:   cropped,
		Zoom:    zoom,
		originX: float64(tx0) + float64(cropX)/config.TileSize,
		originY: float64(ty0) + float64(cropY)/config.TileSize,
	}, nil
}

// Scale resizes the raster by the map factor, keeping the geo-transform
// consistent is the caller's concern: widgets blend the scaled image but
// project through the original raster.
func Scale(img *image.NRGBA, factor float64) *image.NRGBA {
	if factor == 1.0 {
		return img
	}
	w := int(float64(img.Bounds().Dx()) * factor)
	h := int(float64(img.Bounds().Dy()) * factor)
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Over, nil)
	return dst
}

// DrawTrack paints the track polyline onto the raster.
func (r *Raster) DrawTrack(track *telemetry.Track, col color.NRGBA, width int) {
	if track.Len() < 2 {
		return
	}
	px0, py0 := r.ToPixel(track.At(0).Lat, track.At(0).Lon)
	for i := 1; i < track.Len(); i++ {
		px1, py1 := r.ToPixel(track.At(i).Lat, track.At(i).Lon)
		drawLine(r.Image, px0, py0, px1, py1, col, width)
		px0, py0 = px1, py1
	}
}

func drawLine(img *image.NRGBA, x0, y0, x1, y1 int, col color.NRGBA, width int) {
	steps := int(math.Max(math.Abs(float64(x1-x0)), math.Abs(float64(y1-y0))))
	if steps == 0 {
		steps = 1
	}
	for s := 0; s <= steps; s++ {
		f := float64(s) / float64(steps)
		cx := int(math.Round(float64(x0) + f*float64(x1-x0)))
		cy := int(math.Round(float64(y0) + f*float64(y1-y0)))
		for dx := -width; dx <= width; dx++ {
			for dy := -width; dy <= width; dy++ {
				if dx*dx+dy*dy <= width*width {
					img.SetNRGBA(cx+dx, cy+dy, col)
				}
			}
		}
	}
}

var placeholderColor = color.NRGBA{230, 230, 230, 255}

// criticalRect is the centered fraction of the viewport where a missing
// tile aborts the build instead of degrading it.
func criticalRect(b image.Rectangle) image.Rectangle {
	w := int(float64(b.Dx()) * config.MapCriticalRegion)
	h := int(float64(b.Dy()) * config.MapCriticalRegion)
	cx, cy := b.Dx()/2, b.Dy()/2
	return image.Rect(cx-w/2, cy-h/2, cx+w/2, cy+h/2)
}
