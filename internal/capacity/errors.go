package capacity

import (
	"errors"
	"fmt"
)

var (
	// ErrExtraction marks a run that produced no usable page structure.
	ErrExtraction = errors.New("extraction failed")
	// ErrPersist is returned when a run's snapshot could not be written.
	ErrPersist = errors.New("persist failed")
	// ErrLoad is returned when the existing series could not be read safely.
	ErrLoad = errors.New("load failed")
	// ErrCorruptSeries marks stored data that cannot be decoded. Runs
	// recover from it by starting a fresh series.
	ErrCorruptSeries = errors.New("corrupt time series")
)

// ExtractionError describes the stage at which a page could not be used.
type ExtractionError struct {
	Stage string
	Err   error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed during %s: %v", e.Stage, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrExtraction) match any ExtractionError.
func (e *ExtractionError) Is(target error) bool { return target == ErrExtraction }

// CardError records a single card that was skipped.
type CardError struct {
	Index int
	Name  string
	Field string
	Err   error
}

func (e CardError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("card %d (%s): %s: %v", e.Index, e.Name, e.Field, e.Err)
	}
	return fmt.Sprintf("card %d: %s: %v", e.Index, e.Field, e.Err)
}

func (e CardError) Unwrap() error { return e.Err }
