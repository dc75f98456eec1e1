package video

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/f0rge/go-gpxreel/internal/logger"
)

// Probe is the media metadata the pipeline needs: how long, how fast,
// and where the camera clock started.
type Probe struct {
	Duration     time.Duration
	FrameRate    float64
	CreationTime time.Time
}

type ffprobeOutput struct {
	Streams []struct {
		AvgFrameRate string `json:"avg_frame_rate"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
		Tags     struct {
			CreationTime string `json:"creation_time"`
		} `json:"tags"`
	} `json:"format"`
}

// ProbeMedia asks ffprobe for the video stream's frame rate, duration
// and creation time.
func ProbeMedia(ctx context.Context, path string) (Probe, error) {
	log := logger.Log.WithField("scope", "video probe")

	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=avg_frame_rate:format=duration:format_tags=creation_time",
		"-of", "json", path)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return Probe{}, fmt.Errorf("probing %s: %w", path, err)
	}

	var parsed ffprobeOutput
	if err := json.Unmarshal(out.Bytes(), &parsed); err != nil {
		return Probe{}, fmt.Errorf("parsing ffprobe output for %s: %w", path, err)
	}
	if len(parsed.Streams) == 0 {
		return Probe{}, fmt.Errorf("no video stream in %s", path)
	}

	p := Probe{}
	if secs, err := strconv.ParseFloat(parsed.Format.Duration, 64); err == nil {
		p.Duration = time.Duration(secs * float64(time.Second))
	}
	p.FrameRate = parseFrameRate(parsed.Streams[0].AvgFrameRate)
	if ts, err := time.Parse(time.RFC3339Nano, parsed.Format.Tags.CreationTime); err == nil {
		p.CreationTime = ts
	}

	log.Debugf("probe %s: %v at %.2f fps, created %v", path, p.Duration, p.FrameRate, p.CreationTime)
	return p, nil
}

// parseFrameRate turns ffprobe's "30000/1001" form into a float.
func parseFrameRate(s string) float64 {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) == 2 {
		num, err1 := strconv.ParseFloat(parts[0], 64)
		den, err2 := strconv.ParseFloat(parts[1], 64)
		if err1 == nil && err2 == nil && den != 0 {
			return num / den
		}
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// ExtractFrames calls ffmpeg to decode the media into numbered PNG
// frames under dir.
func ExtractFrames(ctx context.Context, filename, dir string) error {
	framesPath := dir + "/frame_%08d.png"
	cmdStr := fmt.Sprintf("ffmpeg -y -i %s %s", filename, framesPath)
	cmdList := strings.Split(cmdStr, " ")
	logger.Log.Debugf("Running ffmpeg command: %s\n", cmdStr)
	cmd := exec.CommandContext(ctx, cmdList[0], cmdList[1:]...)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("extracting frames from %s: %w", filename, err)
	}
	return nil
}
