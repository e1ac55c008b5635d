package pipeline

import (
	"errors"
	"fmt"

	"media-transcriber/pkg/models"
)

var (
	ErrInvalidOptions = errors.New("invalid options")
	ErrQueueFull      = errors.New("pipeline queue is full")
	ErrShuttingDown   = errors.New("pipeline is shutting down")
	ErrJobNotFound    = errors.New("job not found")
)

// FailedError is the terminal Failed state of a run: the state that was
// active when the run aborted and the reason.
type FailedError struct {
	State models.ProcessingStatus
	Err   error
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("failed while %s: %v", e.State, e.Err)
}

func (e *FailedError) Unwrap() error { return e.Err }
