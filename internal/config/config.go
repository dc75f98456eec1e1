package config

import "time"

const (
	// map tiles
	TileSize         = 256
	TileFetchRetries = 3
	TileFetchTimeout = 10 * time.Second
	TileFetchWorkers = 4

	// map composition
	MapMaxWidth  = 2048
	MapMaxHeight = 2048
	MapMarginPct = 0.05 // bounding box grows by this fraction on each side

	// fraction of the viewport around the center where a missing tile
	// is fatal instead of replaced by a placeholder
	MapCriticalRegion = 0.5

	// timesync
	SyncStep = time.Second

	// render
	DefaultFrameRate = 30

	// Paths
	PathTileCacheDir = "tmp/tiles"
	PathFramesDir    = "tmp/frames"
	PathRenderedDir  = "tmp/rendered"
)

// EdgePolicy selects what the renderer does with frames whose timestamp
// falls outside the telemetry time range.
type EdgePolicy int

const (
	EdgeClamp EdgePolicy = iota // use first/last sample
	EdgeSkip                    // pass the frame through unmodified
)

// MapSource identifies a tile provider.
type MapSource int

const (
	SourceOpenStreetMap MapSource = iota
	SourceOpenTopoMap
	SourceHikeBike
	sourceCount
)

var sourceNames = map[MapSource]string{
	SourceOpenStreetMap: "OpenStreetMap",
	SourceOpenTopoMap:   "OpenTopoMap",
	SourceHikeBike:      "Hike & Bike",
}

var sourceURIs = map[MapSource]string{
	SourceOpenStreetMap: "https://tile.openstreetmap.org/%d/%d/%d.png",
	SourceOpenTopoMap:   "https://tile.opentopomap.org/%d/%d/%d.png",
	SourceHikeBike:      "https://tiles.wmflabs.org/hikebike/%d/%d/%d.png",
}

func (s MapSource) Name() string {
	if n, ok := sourceNames[s]; ok {
		return n
	}
	return "unknown"
}

func (s MapSource) URI() string {
	return sourceURIs[s]
}

func Sources() []MapSource {
	list := make([]MapSource, 0, sourceCount)
	for i := MapSource(0); i < sourceCount; i++ {
		list = append(list, i)
	}
	return list
}

// Settings is the fully resolved run configuration. The CLI builds it,
// the core consumes it. Nothing below cmd/ parses flags.
type Settings struct {
	GpxFile    string
	MediaFile  string
	OutputFile string

	MapSource MapSource
	MapZoom   int  // 0 = pick automatically from the bounding box
	MapFactor float64

	MaxDuration time.Duration // 0 = whole media
	FrameRate   float64       // 0 = probe from media

	Unsynced bool // render with zero offset when sync fails
	Edge     EdgePolicy

	CacheDir string
}

func DefaultSettings() Settings {
	return Settings{
		MapSource: SourceOpenStreetMap,
		MapFactor: 1.0,
		FrameRate: 0,
		Edge:      EdgeClamp,
		CacheDir:  PathTileCacheDir,
	}
}
