package media

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"media-transcriber/pkg/models"
)

var ErrInvalidSource = errors.New("invalid source")

// AudioRequest asks for the audio of one planned segment. Whole is set on
// the single-segment path, where the full source is fetched unsplit.
type AudioRequest struct {
	Locator string
	Segment models.Segment
	Whole   bool
	Dir     string
}

// Source acquires metadata and audio for a locator.
type Source interface {
	Info(ctx context.Context, locator string) (*models.SourceInfo, error)
	// FetchAudio writes the requested audio under req.Dir and returns its path.
	FetchAudio(ctx context.Context, req AudioRequest) (string, error)
}

// ValidateLocator accepts absolute http(s) URLs with a host.
func ValidateLocator(locator string) error {
	locator = strings.TrimSpace(locator)
	if locator == "" {
		return fmt.Errorf("%w: URL is required", ErrInvalidSource)
	}
	u, err := url.Parse(locator)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSource, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q is not an http(s) URL", ErrInvalidSource, locator)
	}
	return nil
}
