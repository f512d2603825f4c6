package capacity

import (
	"context"
	"time"
)

// Agent hands out rendering sessions for dynamically rendered pages.
type Agent interface {
	Acquire(ctx context.Context) (Session, error)
}

// Session is a single rendered browsing context. Callers must Close it.
type Session interface {
	Navigate(ctx context.Context, url string) error
	// WaitFor blocks until selector matches at least one node or ctx ends.
	WaitFor(ctx context.Context, selector string) error
	// Elements returns every node currently matching selector.
	Elements(ctx context.Context, selector string) ([]Element, error)
	Close() error
}

// Element is a located node within a rendered page.
type Element interface {
	// Text returns the text of the first descendant matching selector.
	Text(ctx context.Context, selector string) (string, error)
}

// Store is the contract the file-backed time series must satisfy.
type Store interface {
	Load() (TimeSeries, error)
	Append(series TimeSeries, snapshot Snapshot) TimeSeries
	Persist(series TimeSeries) error
}

// Recorder observes completed runs. It is optional.
type Recorder interface {
	ObserveRun(report *Report, err error, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ObserveRun(*Report, error, time.Duration) {}
