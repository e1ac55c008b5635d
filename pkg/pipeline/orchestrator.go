package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"media-transcriber/pkg/config"
	"media-transcriber/pkg/media"
	"media-transcriber/pkg/models"
	"media-transcriber/pkg/storage"
	"media-transcriber/pkg/transcribe"
)

// Settings are the orchestrator's policy constants, in seconds.
type Settings struct {
	LongFormThreshold float64
	SegmentDuration   float64
	ParagraphGap      float64
	WorkDir           string
	Defaults          transcribe.Options
}

func SettingsFrom(p config.PipelineConfig, t config.TranscriptionConfig) Settings {
	return Settings{
		LongFormThreshold: p.LongFormThreshold.Seconds(),
		SegmentDuration:   p.SegmentDuration.Seconds(),
		ParagraphGap:      p.ParagraphGap.Seconds(),
		WorkDir:           p.WorkDir,
		Defaults: transcribe.Options{
			Language:       t.Language,
			DetectLanguage: t.DetectLanguage,
		},
	}
}

// Request is one "process source" call. Leaving both language fields
// unset uses the configured defaults.
type Request struct {
	URL            string `json:"url"`
	Language       string `json:"language,omitempty"`
	DetectLanguage bool   `json:"detect_language,omitempty"`
}

type Result struct {
	Record    *models.TranscriptionRecord `json:"record"`
	Cached    bool                        `json:"cached"`
	Persisted bool                        `json:"persisted"`
	// PersistError is set when the record could not be cached.
	PersistError error `json:"-"`
}

// Event reports a state transition of a run.
type Event struct {
	Status       models.ProcessingStatus
	Fingerprint  string
	SegmentIndex int
	SegmentCount int
	Err          error
}

type Observer func(Event)

// Orchestrator runs the cache check, planning, sequential segment
// transcription, merge and cache write for one source at a time per call.
// Distinct calls may run concurrently; they share only the Store.
type Orchestrator struct {
	settings    Settings
	store       storage.Store
	source      media.Source
	transcriber *transcribe.Transcriber
	logger      *slog.Logger
	now         func() time.Time
}

func NewOrchestrator(settings Settings, store storage.Store, source media.Source, transcriber *transcribe.Transcriber, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		settings:    settings,
		store:       store,
		source:      source,
		transcriber: transcriber,
		logger:      logger.With("component", "pipeline"),
		now:         time.Now,
	}
}

func (o *Orchestrator) Store() storage.Store { return o.store }

// Process returns the cached record for req.URL or produces, persists and
// returns a new one. Either a complete record is written or nothing is.
//
// Cancelling ctx lets an in-flight backend call finish, then aborts the
// run before anything is persisted.
func (o *Orchestrator) Process(ctx context.Context, req Request, observe Observer) (*Result, error) {
	if observe == nil {
		observe = func(Event) {}
	}
	r := &run{
		o:       o,
		locator: strings.TrimSpace(req.URL),
		observe: observe,
	}
	res, err := r.execute(ctx, req)
	if err != nil {
		observe(Event{Status: models.StatusFailed, Fingerprint: r.fingerprint, Err: err})
		return nil, err
	}
	observe(Event{Status: models.StatusCompleted, Fingerprint: r.fingerprint, SegmentCount: res.Record.SegmentCount})
	return res, nil
}

func (o *Orchestrator) options(req Request) (transcribe.Options, error) {
	if req.Language != "" && req.DetectLanguage {
		return transcribe.Options{}, ErrInvalidOptions
	}
	if req.Language == "" && !req.DetectLanguage {
		return o.settings.Defaults, nil
	}
	return transcribe.Options{Language: req.Language, DetectLanguage: req.DetectLanguage}, nil
}
