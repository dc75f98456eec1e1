package video

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/f0rge/go-gpxreel/internal/logger"
	"github.com/f0rge/go-gpxreel/internal/renderer"
)

// ScanFrames lists extracted frame files in playback order.
func ScanFrames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scanning frames dir %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".png" {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// StreamFrames decodes the extracted frame files in order and sends them
// with their video-clock timestamps. The presentation time of frame i is
// start + i/fps. A non-zero maxDuration truncates the stream. The
// channel is closed when the stream ends.
func StreamFrames(ctx context.Context, files []string, start time.Time, fps float64,
	maxDuration time.Duration, out chan<- renderer.Frame) error {

	log := logger.Log.WithField("scope", "video frames")
	defer close(out)

	if fps <= 0 {
		return fmt.Errorf("invalid frame rate %f", fps)
	}

	frameDur := time.Duration(float64(time.Second) / fps)
	for i, file := range files {
		pts := time.Duration(i) * frameDur
		if maxDuration > 0 && pts >= maxDuration {
			log.Debugf("duration limit reached at frame %d", i)
			return nil
		}

		img, err := ReadFrame(file)
		if err != nil {
			return fmt.Errorf("decoding frame %s: %w", file, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- renderer.Frame{Index: i, Image: img, Time: start.Add(pts)}:
		}
	}
	return nil
}

// ReadFrame decodes one extracted frame into a mutable NRGBA buffer.
func ReadFrame(path string) (*image.NRGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, err
	}
	if nrgba, ok := img.(*image.NRGBA); ok {
		return nrgba, nil
	}
	converted := image.NewNRGBA(img.Bounds())
	draw.Draw(converted, converted.Bounds(), img, img.Bounds().Min, draw.Src)
	return converted, nil
}

// CreateFramesDir makes a clean scratch dir for extracted frames.
func CreateFramesDir(dir string) (string, error) {
	if err := os.RemoveAll(dir); err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}
