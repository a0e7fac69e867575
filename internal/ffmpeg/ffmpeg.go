package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"time"
)

// FFProbeOutput defines the structure for ffprobe JSON output relevant to
// duration.
type FFProbeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// GetVideoDuration uses ffprobe to get the duration of a video file.
func GetVideoDuration(ctx context.Context, filePath string) (time.Duration, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		filePath,
	)

	var out bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe failed: %v, stderr: %s", err, stderr.String())
	}

	var probe FFProbeOutput
	if err := json.Unmarshal(out.Bytes(), &probe); err != nil {
		return 0, fmt.Errorf("error unmarshalling ffprobe output: %w", err)
	}

	if probe.Format.Duration == "" {
		return 0, fmt.Errorf("could not retrieve duration from ffprobe output")
	}

	durationFloat, err := strconv.ParseFloat(probe.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("error parsing duration string %q: %w", probe.Format.Duration, err)
	}

	return time.Duration(durationFloat * float64(time.Second)), nil
}

// ExtractFrame writes the single video frame nearest to atSeconds into
// outputFile. Seeking before the input keeps this fast on long videos.
func ExtractFrame(ctx context.Context, inputFile, outputFile string, atSeconds float64) error {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y",
		"-ss", fmt.Sprintf("%.3f", atSeconds),
		"-i", inputFile,
		"-frames:v", "1",
		"-q:v", "2",
		outputFile,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg frame extraction failed: %v, stderr: %s", err, stderr.String())
	}
	return nil
}
