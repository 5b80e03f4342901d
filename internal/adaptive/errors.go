package adaptive

import (
	"errors"
	"fmt"

	"github.com/thywilljoshua/docladder/internal/pipeline"
)

var (
	// ErrSourceNotFound is returned before any strategy runs.
	ErrSourceNotFound = errors.New("source not found")
	// ErrStrategyUnavailable marks an attempt whose strategy could not be
	// built. It is recorded on the attempt, never returned by Parse.
	ErrStrategyUnavailable = errors.New("strategy unavailable")
	// ErrStrategyExecution marks an attempt whose strategy failed. It is
	// recorded on the attempt, never returned by Parse.
	ErrStrategyExecution = errors.New("strategy execution failed")
	// ErrAllStrategiesFailed is returned when no attempt succeeded.
	ErrAllStrategiesFailed = errors.New("all strategies failed")
	// ErrUnsupportedOperation is returned when vision is required but no
	// vision strategy is registered.
	ErrUnsupportedOperation = errors.New("unsupported operation")
)

// StrategyError is the error recorded on a failed attempt. It matches both
// its Kind and its cause with errors.Is.
type StrategyError struct {
	Tag  pipeline.Tag
	Kind error
	Err  error
}

func (e *StrategyError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Tag, e.Kind, e.Err)
}

func (e *StrategyError) Unwrap() []error { return []error{e.Kind, e.Err} }
