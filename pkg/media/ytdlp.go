package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"media-transcriber/pkg/models"
)

type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// YTDLP shells out to yt-dlp. ffmpeg must be on PATH for audio extraction.
type YTDLP struct {
	bin    string
	run    runFunc
	logger *slog.Logger
}

func NewYTDLP(bin string, logger *slog.Logger) *YTDLP {
	if bin == "" {
		bin = "yt-dlp"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &YTDLP{bin: bin, run: runCommand, logger: logger.With("component", "media")}
}

var _ Source = (*YTDLP)(nil)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.Output()
	if err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			return nil, fmt.Errorf("%s: %s", name, strings.TrimSpace(string(ee.Stderr)))
		}
		return nil, fmt.Errorf("run %s: %w", name, err)
	}
	return out, nil
}

type ytdlpInfo struct {
	Title       string  `json:"title"`
	Uploader    string  `json:"uploader"`
	Channel     string  `json:"channel"`
	Duration    float64 `json:"duration"`
	Thumbnail   string  `json:"thumbnail"`
	Description string  `json:"description"`
}

func (y *YTDLP) Info(ctx context.Context, locator string) (*models.SourceInfo, error) {
	if err := ValidateLocator(locator); err != nil {
		return nil, err
	}
	out, err := y.run(ctx, y.bin,
		"--dump-single-json",
		"--skip-download",
		"--no-warnings",
		"--no-check-certificates",
		"--prefer-free-formats",
		locator,
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: failed to get video information: %v", ErrInvalidSource, err)
	}
	var raw ytdlpInfo
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, fmt.Errorf("%w: unreadable metadata: %v", ErrInvalidSource, err)
	}

	info := &models.SourceInfo{
		Title:       raw.Title,
		Author:      raw.Uploader,
		Duration:    raw.Duration,
		Thumbnail:   raw.Thumbnail,
		Description: raw.Description,
	}
	if info.Title == "" {
		info.Title = "Unknown Title"
	}
	if info.Author == "" {
		info.Author = raw.Channel
	}
	if info.Author == "" {
		info.Author = "Unknown Author"
	}
	return info, nil
}

func audioArgs(req AudioRequest, outTemplate string) []string {
	args := []string{
		"--format", "bestaudio",
		"--extract-audio",
		"--audio-format", "mp3",
		"--quiet",
		"--no-warnings",
		"--no-playlist",
		"--output", outTemplate,
	}
	if !req.Whole {
		args = append(args,
			"--download-sections", fmt.Sprintf("*%.3f-%.3f", req.Segment.Start, req.Segment.End()),
			"--force-keyframes-at-cuts",
		)
	}
	return append(args, req.Locator)
}

func (y *YTDLP) FetchAudio(ctx context.Context, req AudioRequest) (string, error) {
	base := fmt.Sprintf("segment_%03d", req.Segment.Index)
	out := filepath.Join(req.Dir, base+".mp3")

	y.logger.Debug("fetching audio", "segment", req.Segment.Index, "whole", req.Whole, "path", out)
	if _, err := y.run(ctx, y.bin, audioArgs(req, filepath.Join(req.Dir, base+".%(ext)s"))...); err != nil {
		return "", fmt.Errorf("failed to download audio for segment %d: %w", req.Segment.Index, err)
	}
	if _, err := os.Stat(out); err != nil {
		return "", fmt.Errorf("audio for segment %d not produced: %w", req.Segment.Index, err)
	}
	return out, nil
}
