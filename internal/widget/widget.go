package widget

import (
	"fmt"
	"image"
	"sort"
	"sync"
	"time"

	"github.com/f0rge/go-gpxreel/internal/telemetry"
)

// Widget is an overlay renderer occupying a fixed region of the output
// frame. Prepare builds any static background once; Render blends the
// widget's content onto the shared frame buffer for one sample.
type Widget interface {
	Name() string
	Rect() image.Rectangle
	Prepare() error
	Render(frame *image.NRGBA, s telemetry.Sample) error
}

// Config is the per-widget placement resolved at pipeline setup.
type Config struct {
	X, Y          int
	Width, Height int

	// camera-clock accessor, injected so widgets never read the wall
	// clock directly
	Clock *Clock
}

// Factory builds a widget variant from its placement config. New
// variants register a factory instead of subclassing anything.
type Factory func(cfg Config) Widget

var (
	mu        sync.Mutex
	factories = map[string]Factory{}
)

func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, dup := factories[name]; dup {
		panic(fmt.Sprintf("widget %q registered twice", name))
	}
	factories[name] = f
}

// New builds a registered widget variant by name.
func New(name string, cfg Config) (Widget, error) {
	mu.Lock()
	f, ok := factories[name]
	mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown widget %q", name)
	}
	return f(cfg), nil
}

// Names lists the registered variants, sorted for stable output.
func Names() []string {
	mu.Lock()
	defer mu.Unlock()
	names := make([]string, 0, len(factories))
	for n := range factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// CheckLayout rejects overlapping widget regions. Overlap is a
// configuration error, caught here at setup, never at render time.
func CheckLayout(widgets []Widget) error {
	for i := 0; i < len(widgets); i++ {
		for j := i + 1; j < len(widgets); j++ {
			if widgets[i].Rect().Overlaps(widgets[j].Rect()) {
				return fmt.Errorf("widgets %q and %q overlap", widgets[i].Name(), widgets[j].Name())
			}
		}
	}
	return nil
}

// Clock hands the current camera-clock time to widgets. The renderer
// advances it once per frame; tests inject synthetic times.
type Clock struct {
	now time.Time
}

func NewClock() *Clock {
	return &Clock{}
}

func (c *Clock) Set(t time.Time) {
	c.now = t
}

func (c *Clock) Now() time.Time {
	return c.now
}
