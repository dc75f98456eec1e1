package widget

import (
	"image"
	"image/color"
	"image/draw"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/f0rge/go-gpxreel/internal/logger"
)

const (
	borderWidth = 2
	boxPadding  = 8
	fontSizePt  = 22
)

var (
	backgroundColor = color.NRGBA{0, 0, 0, 160}
	borderColor     = color.NRGBA{255, 255, 255, 200}
	textColor       = color.NRGBA{255, 255, 255, 255}
)

var (
	faceOnce sync.Once
	faceVal  font.Face
)

// face lazily parses the bundled font. A parse failure of a compiled-in
// asset is a programming error, so it panics rather than returns.
func face() font.Face {
	faceOnce.Do(func() {
		f, err := opentype.Parse(goregular.TTF)
		if err != nil {
			logger.Log.Fatalf("parsing bundled font: %v", err)
		}
		faceVal, err = opentype.NewFace(f, &opentype.FaceOptions{
			Size: fontSizePt, DPI: 72, Hinting: font.HintingFull,
		})
		if err != nil {
			logger.Log.Fatalf("building font face: %v", err)
		}
	})
	return faceVal
}

// box carries the placement and the prepared static background shared by
// the label-and-value widgets.
type box struct {
	name string
	rect image.Rectangle
	bg   *image.NRGBA
}

func newBox(name string, cfg Config) box {
	return box{
		name: name,
		rect: image.Rect(cfg.X, cfg.Y, cfg.X+cfg.Width, cfg.Y+cfg.Height),
	}
}

func (b *box) Name() string {
	return b.name
}

func (b *box) Rect() image.Rectangle {
	return b.rect
}

// prepare renders the translucent background and border once.
func (b *box) prepare() {
	bg := image.NewNRGBA(image.Rect(0, 0, b.rect.Dx(), b.rect.Dy()))
	draw.Draw(bg, bg.Bounds(), image.NewUniform(backgroundColor), image.Point{}, draw.Src)

	bounds := bg.Bounds()
	for x := bounds.Min.X; x < bounds.Max.X; x++ {
		for w := 0; w < borderWidth; w++ {
			bg.SetNRGBA(x, bounds.Min.Y+w, borderColor)
			bg.SetNRGBA(x, bounds.Max.Y-1-w, borderColor)
		}
	}
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for w := 0; w < borderWidth; w++ {
			bg.SetNRGBA(bounds.Min.X+w, y, borderColor)
			bg.SetNRGBA(bounds.Max.X-1-w, y, borderColor)
		}
	}
	b.bg = bg
}

// blit draws the prepared background and the label/value pair into the
// widget's region of the frame.
func (b *box) blit(frame *image.NRGBA, label, value string) {
	if b.bg != nil {
		draw.Draw(frame, b.rect, b.bg, image.Point{}, draw.Over)
	}
	drawText(frame, b.rect.Min.X+boxPadding, b.rect.Min.Y+boxPadding+fontSizePt/2, label)
	drawText(frame, b.rect.Min.X+boxPadding, b.rect.Max.Y-boxPadding, value)
}

func drawText(img *image.NRGBA, x, y int, s string) {
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(textColor),
		Face: face(),
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}
