package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"media-transcriber/pkg/fingerprint"
	"media-transcriber/pkg/media"
	"media-transcriber/pkg/merge"
	"media-transcriber/pkg/models"
	"media-transcriber/pkg/planner"
	"media-transcriber/pkg/transcribe"
)

// run holds the transient state of a single Process call.
type run struct {
	o           *Orchestrator
	locator     string
	fingerprint string
	observe     Observer
	logger      *slog.Logger
}

func (r *run) emit(status models.ProcessingStatus, index, count int) {
	r.observe(Event{Status: status, Fingerprint: r.fingerprint, SegmentIndex: index, SegmentCount: count})
}

func (r *run) fail(state models.ProcessingStatus, err error) error {
	r.logger.Warn("run failed", "state", state, "error", err)
	return &FailedError{State: state, Err: err}
}

func (r *run) execute(ctx context.Context, req Request) (*Result, error) {
	r.logger = r.o.logger.With("url", r.locator)
	if err := media.ValidateLocator(r.locator); err != nil {
		return nil, r.fail(models.StatusPending, err)
	}
	opts, err := r.o.options(req)
	if err != nil {
		return nil, r.fail(models.StatusPending, fmt.Errorf("%w: language hint and detection are mutually exclusive", err))
	}
	r.fingerprint = fingerprint.Generate(r.locator)
	r.logger = r.logger.With("fingerprint", r.fingerprint)

	r.emit(models.StatusCheckingCache, 0, 0)
	if rec, err := r.o.store.Get(r.fingerprint); err == nil {
		r.logger.Info("cache hit")
		return &Result{Record: rec, Cached: true, Persisted: true}, nil
	}
	r.logger.Info("cache miss")

	r.emit(models.StatusPlanning, 0, 0)
	info, plan, err := r.plan(ctx)
	if err != nil {
		return nil, r.fail(models.StatusPlanning, err)
	}

	parts, err := r.transcribeAll(ctx, plan, opts)
	if err != nil {
		return nil, r.fail(models.StatusTranscribing, err)
	}

	r.emit(models.StatusMerging, 0, len(plan))
	rec, err := r.merge(parts, info, opts)
	if err != nil {
		return nil, r.fail(models.StatusMerging, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, r.fail(models.StatusPersisting, err)
	}
	r.emit(models.StatusPersisting, 0, len(plan))
	res := &Result{Record: rec, Persisted: true}
	if err := r.o.store.Put(rec); err != nil {
		r.logger.Warn("transcription not cached", "error", err)
		res.Persisted = false
		res.PersistError = err
	}
	r.logger.Info("transcription complete", "segments", rec.SegmentCount, "words", len(rec.Words), "persisted", res.Persisted)
	return res, nil
}

func (r *run) plan(ctx context.Context) (*models.SourceInfo, []models.Segment, error) {
	info, err := r.o.source.Info(ctx, r.locator)
	if err != nil {
		return nil, nil, err
	}
	s := r.o.settings
	plan, err := planner.Plan(info.Duration, s.LongFormThreshold, s.SegmentDuration)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", media.ErrInvalidSource, err)
	}
	r.logger.Info("planned segments", "duration", info.Duration, "segments", len(plan))
	return info, plan, nil
}

// transcribeAll fetches and transcribes segments strictly in index order,
// one at a time. Each segment's audio is removed as soon as its backend
// call returns; the scratch directory is removed on every exit path.
func (r *run) transcribeAll(ctx context.Context, plan []models.Segment, opts transcribe.Options) ([]merge.Part, error) {
	dir, err := os.MkdirTemp(r.o.settings.WorkDir, "transcribe-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create work directory: %w", err)
	}
	defer os.RemoveAll(dir)

	whole := len(plan) == 1
	parts := make([]merge.Part, 0, len(plan))
	for _, seg := range plan {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r.emit(models.StatusTranscribing, seg.Index, len(plan))

		path, err := r.o.source.FetchAudio(ctx, media.AudioRequest{
			Locator: r.locator,
			Segment: seg,
			Whole:   whole,
			Dir:     dir,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: %v", media.ErrInvalidSource, err)
		}

		seg.Path = path
		// The backend has no partial results, so a started call is not cut short.
		res, err := r.o.transcriber.Transcribe(context.WithoutCancel(ctx), seg, opts)
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			r.logger.Warn("failed to remove segment audio", "path", path, "error", rmErr)
		}
		seg.Path = ""
		if err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			r.logger.Info("run cancelled, discarding segment result", "segment", seg.Index)
			return nil, err
		}
		parts = append(parts, merge.Part{Segment: seg, Transcript: res})
	}
	return parts, nil
}

func (r *run) merge(parts []merge.Part, info *models.SourceInfo, opts transcribe.Options) (*models.TranscriptionRecord, error) {
	body, err := merge.Merge(parts, merge.Options{ParagraphGap: r.o.settings.ParagraphGap})
	if err != nil {
		var ie *merge.InvariantError
		if errors.As(err, &ie) {
			timings := make([]string, len(ie.Segments))
			for i, s := range ie.Segments {
				timings[i] = fmt.Sprintf("#%d start=%.3f duration=%.3f", s.Index, s.Start, s.Duration)
			}
			r.logger.Error("merge invariant violated", "reason", ie.Reason, "segments", timings)
		}
		return nil, err
	}

	detected := body.DetectedLanguage
	if detected == "" && !opts.DetectLanguage {
		detected = opts.Language
	}
	return &models.TranscriptionRecord{
		Fingerprint:           r.fingerprint,
		URL:                   r.locator,
		Title:                 info.Title,
		Author:                info.Author,
		Duration:              body.Duration,
		ProcessedAt:           r.o.now().UTC().Truncate(time.Millisecond),
		TranscriptClean:       body.Clean,
		TranscriptTimestamped: body.Timestamped,
		Words:                 body.Words,
		SegmentCount:          body.SegmentCount,
		Language:              opts.Language,
		DetectedLanguage:      detected,
		BackendDuration:       body.BackendDuration,
	}, nil
}
