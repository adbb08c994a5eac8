package film

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
)

// Prober reads a video file's duration.
type Prober interface {
	ProbeDurationMs(ctx context.Context, path string) (int64, error)
}

// FFprobe shells out to ffprobe for container metadata.
type FFprobe struct {
	bin    string
	logger *slog.Logger
}

func NewFFprobe(bin string, logger *slog.Logger) *FFprobe {
	if bin == "" {
		bin = "ffprobe"
	}
	return &FFprobe{bin: bin, logger: logger}
}

func (f *FFprobe) ProbeDurationMs(ctx context.Context, path string) (int64, error) {
	cmd := exec.CommandContext(ctx, f.bin,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)

	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", path, err)
	}

	seconds, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: unparseable duration %q: %w", path, strings.TrimSpace(string(out)), err)
	}
	if seconds < 0 {
		return 0, fmt.Errorf("ffprobe %s: negative duration", path)
	}

	return int64(seconds * 1000), nil
}
