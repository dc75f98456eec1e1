package video

import (
	"context"
	"fmt"
	"image/png"
	"io"
	"os/exec"
	"sync"

	"github.com/f0rge/go-gpxreel/internal/logger"
	"github.com/f0rge/go-gpxreel/internal/renderer"
)

// Encoder pipes composited frames into a single long-running ffmpeg
// process over stdin. Frames must arrive in source order; the renderer
// guarantees that.
type Encoder struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser

	closeOnce sync.Once
	closeErr  error
}

func NewEncoder(ctx context.Context, outputFile string, fps float64) (*Encoder, error) {
	log := logger.Log.WithField("scope", "video encoder")

	cmd := exec.CommandContext(ctx, "ffmpeg", "-y",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-r", fmt.Sprintf("%f", fps),
		"-i", "-",
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-r", fmt.Sprintf("%f", fps),
		outputFile)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("opening ffmpeg stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting ffmpeg: %w", err)
	}
	log.Debugf("encoding to %s at %.2f fps", outputFile, fps)

	return &Encoder{cmd: cmd, stdin: stdin}, nil
}

func (e *Encoder) WriteFrame(ctx context.Context, f renderer.Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := png.Encode(e.stdin, f.Image); err != nil {
		return fmt.Errorf("writing frame %d to encoder: %w", f.Index, err)
	}
	return nil
}

// Close finishes the encode and reaps the ffmpeg process. Safe to call
// more than once; later calls return the first result. A non-zero
// ffmpeg exit is a codec error the pipeline cannot recover from.
func (e *Encoder) Close() error {
	e.closeOnce.Do(func() {
		if err := e.stdin.Close(); err != nil {
			e.closeErr = fmt.Errorf("closing encoder input: %w", err)
		}
		if err := e.cmd.Wait(); err != nil && e.closeErr == nil {
			e.closeErr = fmt.Errorf("ffmpeg encode failed: %w", err)
		}
	})
	return e.closeErr
}
