package transcribe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"media-transcriber/pkg/models"
)

var ErrTranscriptionFailed = errors.New("transcription failed")

// FailedError reports which segment the backend could not transcribe.
type FailedError struct {
	SegmentIndex int
	Err          error
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("%s for segment %d: %v", ErrTranscriptionFailed, e.SegmentIndex, e.Err)
}

func (e *FailedError) Is(target error) bool { return target == ErrTranscriptionFailed }

func (e *FailedError) Unwrap() error { return e.Err }

// Transcriber runs one segment through a Backend. It does not shift
// timings and never retries; the returned words stay segment-relative.
type Transcriber struct {
	backend Backend
	logger  *slog.Logger
}

func NewTranscriber(backend Backend, logger *slog.Logger) *Transcriber {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transcriber{backend: backend, logger: logger.With("component", "transcriber", "backend", backend.Name())}
}

func (t *Transcriber) Transcribe(ctx context.Context, seg models.Segment, opts Options) (*models.SegmentTranscript, error) {
	if seg.Path == "" {
		return nil, &FailedError{SegmentIndex: seg.Index, Err: errors.New("segment has no audio")}
	}

	started := time.Now()
	t.logger.Info("transcribing segment", "segment", seg.Index, "start", seg.Start, "duration", seg.Duration)
	res, err := t.backend.Transcribe(ctx, seg.Path, opts)
	if err != nil {
		t.logger.Error("segment transcription failed", "segment", seg.Index, "error", err)
		return nil, &FailedError{SegmentIndex: seg.Index, Err: err}
	}
	if res == nil {
		return nil, &FailedError{SegmentIndex: seg.Index, Err: errors.New("backend returned no result")}
	}
	t.logger.Info("segment transcribed",
		"segment", seg.Index,
		"words", len(res.Words),
		"reported_duration", res.Duration,
		"took", time.Since(started).String())
	return res, nil
}
