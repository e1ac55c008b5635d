package transcribe

import (
	"context"
	"mime"
	"net/http"
	"path/filepath"
	"time"

	"media-transcriber/pkg/models"
)

// Options are per-request transcription settings. Language and
// DetectLanguage are mutually exclusive; callers validate that.
type Options struct {
	Language       string
	DetectLanguage bool
}

// Backend is a speech-to-text service. Word timings in the result are
// relative to the start of the audio file it was given.
type Backend interface {
	Name() string
	Transcribe(ctx context.Context, audioPath string, opts Options) (*models.SegmentTranscript, error)
}

const defaultTimeout = 30 * time.Minute

func httpClientOr(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return &http.Client{Timeout: defaultTimeout}
}

func contentTypeFor(path string) string {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct
	}
	return "audio/mpeg"
}
