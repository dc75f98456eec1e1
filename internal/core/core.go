package core

import (
	"context"

	"github.com/f0rge/go-gpxreel/internal/config"
	"github.com/f0rge/go-gpxreel/internal/tilecache"
	"github.com/f0rge/go-gpxreel/internal/tui"
)

// Core wires the pipeline stages together for one command run. The CLI
// resolves all options into Settings before a Core exists.
type Core struct {
	ctx      context.Context
	settings config.Settings
	eventsCh chan tui.Event
	cache    *tilecache.Cache
}

func NewCore(ctx context.Context, settings config.Settings, eventsCh chan tui.Event) *Core {
	return &Core{
		ctx:      ctx,
		settings: settings,
		eventsCh: eventsCh,
		cache:    tilecache.New(settings.CacheDir, tilecache.NewHTTPFetcher()),
	}
}
