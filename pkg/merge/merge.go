package merge

import (
	"errors"
	"fmt"
	"strings"

	"media-transcriber/pkg/models"
)

// DefaultParagraphGap is the number of seconds after a paragraph's first
// word at which the timestamped transcript starts a new paragraph.
const DefaultParagraphGap = 30.0

var ErrInvariantViolation = errors.New("merge invariant violation")

// InvariantError carries the segment timing behind a violation.
type InvariantError struct {
	Reason   string
	Segments []models.Segment
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvariantViolation, e.Reason)
}

func (e *InvariantError) Unwrap() error { return ErrInvariantViolation }

// Part pairs a planned segment with its segment-relative transcript.
type Part struct {
	Segment    models.Segment
	Transcript *models.SegmentTranscript
}

type Options struct {
	ParagraphGap float64
}

// Body is the transcript content of a record, before source metadata
// and persistence fields are attached.
type Body struct {
	Clean            string
	Timestamped      string
	Words            []models.WordToken
	Duration         float64
	BackendDuration  float64
	SegmentCount     int
	DetectedLanguage string
}

// Merge shifts every part onto the global timeline and joins them in
// segment order.
func Merge(parts []Part, opts Options) (*Body, error) {
	if len(parts) == 0 {
		return nil, &InvariantError{Reason: "no segments to merge"}
	}
	gap := opts.ParagraphGap
	if gap <= 0 {
		gap = DefaultParagraphGap
	}

	segments := make([]models.Segment, len(parts))
	for i, p := range parts {
		segments[i] = p.Segment
	}
	if err := checkContiguous(segments); err != nil {
		return nil, err
	}

	body := &Body{SegmentCount: len(parts)}
	texts := make([]string, 0, len(parts))
	for _, p := range parts {
		if p.Transcript == nil {
			return nil, &InvariantError{
				Reason:   fmt.Sprintf("segment %d has no transcript", p.Segment.Index),
				Segments: segments,
			}
		}
		offset := p.Segment.Start
		for _, w := range p.Transcript.Words {
			w.Start += offset
			w.End += offset
			body.Words = append(body.Words, w)
		}

		text := strings.TrimSpace(p.Transcript.Text)
		if text == "" && len(p.Transcript.Words) > 0 {
			text = joinWords(p.Transcript.Words)
		}
		if text != "" {
			texts = append(texts, text)
		}

		body.Duration += p.Segment.Duration
		body.BackendDuration += p.Transcript.Duration
		if body.DetectedLanguage == "" {
			body.DetectedLanguage = p.Transcript.DetectedLanguage
		}
	}

	for i := 1; i < len(body.Words); i++ {
		if body.Words[i].Start < body.Words[i-1].Start {
			return nil, &InvariantError{
				Reason: fmt.Sprintf("word %d (%q at %.3fs) starts before word %d (%.3fs)",
					i, body.Words[i].Text, body.Words[i].Start, i-1, body.Words[i-1].Start),
				Segments: segments,
			}
		}
	}

	body.Clean = strings.Join(texts, " ")
	body.Timestamped = FormatTimestamped(body.Words, gap)
	return body, nil
}

func checkContiguous(segments []models.Segment) error {
	if segments[0].Start != 0 {
		return &InvariantError{
			Reason:   fmt.Sprintf("first segment starts at %.3fs", segments[0].Start),
			Segments: segments,
		}
	}
	for i, s := range segments {
		if s.Index != i {
			return &InvariantError{
				Reason:   fmt.Sprintf("segment at position %d has index %d", i, s.Index),
				Segments: segments,
			}
		}
		if s.Duration <= 0 {
			return &InvariantError{
				Reason:   fmt.Sprintf("segment %d has duration %.3fs", i, s.Duration),
				Segments: segments,
			}
		}
		if i > 0 && segments[i-1].End() != s.Start {
			return &InvariantError{
				Reason:   fmt.Sprintf("segment %d starts at %.3fs, previous ends at %.3fs", i, s.Start, segments[i-1].End()),
				Segments: segments,
			}
		}
	}
	return nil
}

func joinWords(words []models.WordToken) string {
	parts := make([]string, 0, len(words))
	for _, w := range words {
		if t := strings.TrimSpace(w.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}
