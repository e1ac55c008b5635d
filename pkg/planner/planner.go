package planner

import (
	"errors"
	"fmt"
	"math"

	"media-transcriber/pkg/models"
)

var ErrInvalidDuration = errors.New("invalid duration")

// minTail is the smallest remainder worth its own segment. Anything
// shorter is folded into the previous segment.
const minTail = 1e-6

// Plan splits [0, total) into segments of target seconds. Sources at or
// under threshold get a single whole-source segment.
func Plan(total, threshold, target float64) ([]models.Segment, error) {
	if !(total > 0) || math.IsInf(total, 0) {
		return nil, fmt.Errorf("%w: total duration %v", ErrInvalidDuration, total)
	}
	if total <= threshold {
		return []models.Segment{{Index: 0, Start: 0, Duration: total}}, nil
	}
	if !(target > 0) {
		return nil, fmt.Errorf("%w: segment duration %v", ErrInvalidDuration, target)
	}

	n := int(math.Ceil(total / target))
	segments := make([]models.Segment, 0, n)
	start := 0.0
	for total-start > minTail {
		dur := target
		if rest := total - start; rest < dur {
			dur = rest
		}
		segments = append(segments, models.Segment{
			Index:    len(segments),
			Start:    start,
			Duration: dur,
		})
		start += dur
	}
	// Absorb float drift so the last segment ends exactly at total.
	last := &segments[len(segments)-1]
	last.Duration = total - last.Start
	return segments, nil
}

// NeedsSplit reports whether Plan would produce more than one segment.
func NeedsSplit(total, threshold float64) bool {
	return total > threshold
}
