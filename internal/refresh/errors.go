package refresh

import (
	"errors"
	"fmt"
)

// Configuration failures. They are terminal for the cycle and never retried.
var (
	ErrFetchDisabled       = errors.New("live fetching is disabled")
	ErrSourceNotConfigured = errors.New("source URL is not configured")
)

// Stage names a step of the refresh cycle.
type Stage string

const (
	StageFetch     Stage = "fetch"
	StageNormalize Stage = "normalize"
	StageMerge     Stage = "merge"
)

// StageError records which step of a refresh failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// IsConfigError reports whether err is a disabled or unconfigured source.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrFetchDisabled) || errors.Is(err, ErrSourceNotConfigured)
}

// StageOf returns the failed stage, or "" when err carries none.
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
