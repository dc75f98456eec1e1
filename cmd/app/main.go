package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli"

	"github.com/f0rge/go-gpxreel/internal/config"
	"github.com/f0rge/go-gpxreel/internal/core"
	"github.com/f0rge/go-gpxreel/internal/logger"
	"github.com/f0rge/go-gpxreel/internal/tui"
)

var app = cli.NewApp()
var log = logger.Log

var commonFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "gpx, g",
		Usage: "GPX telemetry file",
	},
	cli.StringFlag{
		Name:  "media, m",
		Usage: "input video file",
	},
	cli.StringFlag{
		Name:  "output, o",
		Usage: "output file",
	},
	cli.IntFlag{
		Name:  "map-source",
		Usage: "tile provider id (see the sources command)",
	},
	cli.IntFlag{
		Name:  "map-zoom",
		Usage: "tile zoom level, 0 picks one from the track extent",
	},
	cli.Float64Flag{
		Name:  "map-factor",
		Usage: "map scale factor",
		Value: 1.0,
	},
	cli.DurationFlag{
		Name:  "duration, d",
		Usage: "limit the rendered duration",
	},
	cli.Float64Flag{
		Name:  "rate, r",
		Usage: "override the media frame rate",
	},
	cli.BoolFlag{
		Name:  "unsynced",
		Usage: "render with a zero clock offset when sync fails",
	},
	cli.StringFlag{
		Name:  "edge",
		Usage: "frames outside the track: clamp or skip",
		Value: "clamp",
	},
}

func init() {
	app.Name = "gpxreel"
	app.Usage = "Overlay GPX telemetry onto action-camera video"
	app.UsageText = "gpxreel [command] [options]"
	app.HideHelp = true
	app.HideVersion = true
	app.Commands = []cli.Command{
		{
			Name:  "sync",
			Usage: "Compute the camera/track clock offset",
			Flags: commonFlags,
			Action: func(c *cli.Context) error {
				return run(c, []string{"gpx", "media"}, func(co *core.Core) error {
					return co.Sync()
				})
			},
		},
		{
			Name:  "map",
			Usage: "Render the track's map to an image",
			Flags: commonFlags,
			Action: func(c *cli.Context) error {
				return run(c, []string{"gpx", "output"}, func(co *core.Core) error {
					return co.BuildMap(false)
				})
			},
		},
		{
			Name:  "track",
			Usage: "Render the map with the track drawn on it",
			Flags: commonFlags,
			Action: func(c *cli.Context) error {
				return run(c, []string{"gpx", "output"}, func(co *core.Core) error {
					return co.BuildMap(true)
				})
			},
		},
		{
			Name:  "video",
			Usage: "Render the telemetry overlay video",
			Flags: commonFlags,
			Action: func(c *cli.Context) error {
				return run(c, []string{"gpx", "media", "output"}, func(co *core.Core) error {
					return co.Video()
				})
			},
		},
		{
			Name:  "clear",
			Usage: "Clear the tile cache",
			Flags: commonFlags,
			Action: func(c *cli.Context) error {
				return run(c, nil, func(co *core.Core) error {
					return co.Clear()
				})
			},
		},
		{
			Name:  "sources",
			Usage: "List the available tile providers",
			Action: func(c *cli.Context) error {
				for _, s := range config.Sources() {
					fmt.Printf("%d\t%s\n", s, s.Name())
				}
				return nil
			},
		},
	}
}

// run resolves flags into settings, spins up the terminal UI and hands a
// Core to the command body.
func run(c *cli.Context, required []string, fn func(*core.Core) error) error {
	settings, err := resolveSettings(c, required)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eventsCh := make(chan tui.Event, 100)
	go tui.New(ctx, eventsCh).Run()

	return fn(core.NewCore(ctx, settings, eventsCh))
}

func resolveSettings(c *cli.Context, required []string) (config.Settings, error) {
	for _, name := range required {
		if c.String(name) == "" {
			return config.Settings{}, fmt.Errorf("--%s is required", name)
		}
	}

	s := config.DefaultSettings()
	s.GpxFile = c.String("gpx")
	s.MediaFile = c.String("media")
	s.OutputFile = c.String("output")
	s.MapZoom = c.Int("map-zoom")
	s.MapFactor = c.Float64("map-factor")
	s.MaxDuration = c.Duration("duration")
	s.FrameRate = c.Float64("rate")
	s.Unsynced = c.Bool("unsynced")

	src := config.MapSource(c.Int("map-source"))
	if src.URI() == "" {
		return config.Settings{}, fmt.Errorf("unknown map source %d", c.Int("map-source"))
	}
	s.MapSource = src

	switch c.String("edge") {
	case "clamp":
		s.Edge = config.EdgeClamp
	case "skip":
		s.Edge = config.EdgeSkip
	default:
		return config.Settings{}, fmt.Errorf("unknown edge policy %q", c.String("edge"))
	}

	if s.MapFactor <= 0 {
		return config.Settings{}, fmt.Errorf("map factor must be positive")
	}
	if s.MaxDuration < 0 {
		return config.Settings{}, fmt.Errorf("duration must not be negative")
	}
	return s, nil
}

func main() {
	start := time.Now()
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
	log.Debugf("finished in %v", time.Since(start))
}
