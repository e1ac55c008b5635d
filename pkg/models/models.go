package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// WordToken is one transcribed word. Start and End are seconds on the
// timeline of whatever audio produced it: segment-relative when returned
// by a backend, absolute once merged.
type WordToken struct {
	Text       string  `json:"text"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence"`
}

// Segment is a contiguous slice of the source timeline. Path is set only
// while the audio for the slice exists on disk.
type Segment struct {
	Index    int     `json:"index"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	Path     string  `json:"-"`
}

func (s Segment) End() float64 {
	return s.Start + s.Duration
}

// SegmentTranscript is the backend output for a single segment.
type SegmentTranscript struct {
	Text             string
	Words            []WordToken
	Duration         float64
	DetectedLanguage string
}

// SourceInfo is the metadata the media source reports for a locator.
type SourceInfo struct {
	Title       string  `json:"title"`
	Author      string  `json:"author"`
	Duration    float64 `json:"duration"`
	Thumbnail   string  `json:"thumbnail,omitempty"`
	Description string  `json:"description,omitempty"`
}

// TranscriptionRecord is the persisted, fingerprint-keyed result of one
// processing run. Records are replaced wholesale, never patched.
type TranscriptionRecord struct {
	Fingerprint           string      `json:"fingerprint"`
	URL                   string      `json:"url"`
	Title                 string      `json:"title"`
	Author                string      `json:"author"`
	Duration              float64     `json:"duration"`
	ProcessedAt           time.Time   `json:"processed_at"`
	TranscriptClean       string      `json:"transcript_clean"`
	TranscriptTimestamped string      `json:"transcript_timestamped"`
	Words                 []WordToken `json:"words"`
	SegmentCount          int         `json:"segment_count"`
	Language              string      `json:"language,omitempty"`
	DetectedLanguage      string      `json:"detected_language,omitempty"`
	BackendDuration       float64     `json:"backend_duration"`
}

// ProcessingStatus is a state of the per-request pipeline state machine.
type ProcessingStatus string

const (
	StatusPending       ProcessingStatus = "pending"
	StatusCheckingCache ProcessingStatus = "checking_cache"
	StatusPlanning      ProcessingStatus = "planning"
	StatusTranscribing  ProcessingStatus = "transcribing"
	StatusMerging       ProcessingStatus = "merging"
	StatusPersisting    ProcessingStatus = "persisting"
	StatusCompleted     ProcessingStatus = "completed"
	StatusFailed        ProcessingStatus = "failed"
)

func (s ProcessingStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job tracks one asynchronous processing request.
type Job struct {
	ID           string           `json:"id"`
	URL          string           `json:"url"`
	Fingerprint  string           `json:"fingerprint,omitempty"`
	Status       ProcessingStatus `json:"status"`
	SegmentIndex int              `json:"segment_index,omitempty"`
	SegmentCount int              `json:"segment_count,omitempty"`
	Cached       bool             `json:"cached"`
	Persisted    bool             `json:"persisted"`
	Error        string           `json:"error,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

func NewJob(url string) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.New().String(),
		URL:       strings.TrimSpace(url),
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
