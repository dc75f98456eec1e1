package renderer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/f0rge/go-gpxreel/internal/config"
	"github.com/f0rge/go-gpxreel/internal/logger"
	"github.com/f0rge/go-gpxreel/internal/progress"
	"github.com/f0rge/go-gpxreel/internal/telemetry"
	"github.com/f0rge/go-gpxreel/internal/timesync"
	"github.com/f0rge/go-gpxreel/internal/tui"
	"github.com/f0rge/go-gpxreel/internal/widget"
)

// ErrResourceExhaustion marks failures the renderer must not absorb.
// A widget may wrap an allocation failure in it; everything else a
// widget returns is logged and skipped for that frame.
var ErrResourceExhaustion = errors.New("resource exhaustion")

// Frame is one decoded video frame with its video-clock timestamp.
type Frame struct {
	Index int
	Image *image.NRGBA
	Time  time.Time
}

// Encoder receives composited frames, in strict source order.
type Encoder interface {
	WriteFrame(ctx context.Context, f Frame) error
}

// Renderer composites widgets onto decoded frames. Per frame it maps the
// video timestamp to track time through the session offset, resolves the
// telemetry sample and lets every widget paint its region.
type Renderer struct {
	offset  timesync.Offset
	cursor  *telemetry.Cursor
	track   *telemetry.Track
	widgets []widget.Widget
	clock   *widget.Clock
	encoder Encoder
	edge    config.EdgePolicy

	emitted   int
	lastIndex int
}

func New(track *telemetry.Track, offset timesync.Offset, widgets []widget.Widget,
	clock *widget.Clock, encoder Encoder, edge config.EdgePolicy) (*Renderer, error) {

	if err := widget.CheckLayout(widgets); err != nil {
		return nil, err
	}
	for _, w := range widgets {
		if err := w.Prepare(); err != nil {
			return nil, fmt.Errorf("preparing widget %q: %w", w.Name(), err)
		}
	}
	return &Renderer{
		offset:    offset,
		cursor:    telemetry.NewCursor(track),
		track:     track,
		widgets:   widgets,
		clock:     clock,
		encoder:   encoder,
		edge:      edge,
		lastIndex: -1,
	}, nil
}

// Run consumes decoded frames until the channel closes, compositing and
// emitting each one. Frames arrive and leave in source order. A nil
// events channel disables UI progress reporting.
func (r *Renderer) Run(ctx context.Context, frames <-chan Frame, total int, events chan<- tui.Event) error {
	log := logger.Log.WithField("scope", "renderer")

	progress.ProgressReset(total, "Rendering... ")
	defer progress.Finish()

	for {
		select {
		case <-ctx.Done():
			log.Debug("renderer cancelled")
			return ctx.Err()
		case f, ok := <-frames:
			if !ok {
				log.Debugf("emitted %d frames", r.emitted)
				return nil
			}
			if err := r.processFrame(ctx, f); err != nil {
				return err
			}
			progress.Add(1)
			if events != nil && total > 0 {
				// the pipeline never blocks on a stalled UI
				select {
				case events <- tui.NewEventBar("Rendering frames", float64(r.emitted)/float64(total)):
				default:
				}
			}
		}
	}
}

// processFrame walks one frame through the per-frame state machine:
// received -> sample resolved -> composited -> emitted.
func (r *Renderer) processFrame(ctx context.Context, f Frame) error {
	log := logger.Log.WithField("scope", "renderer")

	if f.Index <= r.lastIndex {
		return fmt.Errorf("frame %d out of order after %d", f.Index, r.lastIndex)
	}
	r.lastIndex = f.Index

	sample, ok, err := r.resolve(f)
	if err != nil {
		return err
	}

	if ok {
		r.clock.Set(f.Time)
		for _, w := range r.widgets {
			if err := w.Render(f.Image, sample); err != nil {
				if errors.Is(err, ErrResourceExhaustion) {
					return fmt.Errorf("widget %q: %w", w.Name(), err)
				}
				log.Warnf("widget %q failed on frame %d, skipped: %v", w.Name(), f.Index, err)
			}
		}
	}

	if err := r.encoder.WriteFrame(ctx, f); err != nil {
		return fmt.Errorf("emitting frame %d: %w", f.Index, err)
	}
	r.emitted++
	return nil
}

// resolve maps the frame's video time to track time and looks up the
// sample. For frames outside the track's time range the configured edge
// policy decides: clamp to the first sample, or pass the frame through
// untouched (ok=false).
func (r *Renderer) resolve(f Frame) (telemetry.Sample, bool, error) {
	tt := r.offset.ToTrack(f.Time)
	sample, err := r.cursor.At(tt)
	if err == nil {
		return sample, true, nil
	}
	if !errors.Is(err, telemetry.ErrNoSampleAvailable) {
		return telemetry.Sample{}, false, err
	}
	if r.edge == config.EdgeClamp {
		return r.track.First(), true, nil
	}
	return telemetry.Sample{}, false, nil
}

// Emitted reports how many frames reached the encoder.
func (r *Renderer) Emitted() int {
	return r.emitted
}
