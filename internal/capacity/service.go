package capacity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Report summarises a completed run.
type Report struct {
	RunID    string
	Snapshot Snapshot
	Cards    int
	Skipped  []CardError
	// Retained is the series length after the snapshot was appended.
	Retained int
}

// Service sequences one collection run: extract, snapshot, persist, report.
type Service struct {
	extractor *Extractor
	store     Store
	loc       *time.Location
	log       *zap.Logger
	out       io.Writer
	recorder  Recorder
	now       func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithClock overrides the time source used to stamp snapshots.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRecorder attaches a run observer such as the Prometheus metrics.
func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithSummary sets where the human-readable per-run summary is written.
func WithSummary(w io.Writer) Option {
	return func(s *Service) { s.out = w }
}

// NewService creates a new Service. Capture times are expressed in loc.
func NewService(extractor *Extractor, store Store, loc *time.Location, log *zap.Logger, opts ...Option) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{
		extractor: extractor,
		store:     store,
		loc:       loc,
		log:       log,
		out:       io.Discard,
		recorder:  nopRecorder{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run performs exactly one collection run. When extraction fails the store is
// not touched and the returned error matches ErrExtraction.
func (s *Service) Run(ctx context.Context) (report *Report, err error) {
	start := time.Now()
	runID := uuid.NewString()
	log := s.log.With(zap.String("run_id", runID))
	defer func() {
		s.recorder.ObserveRun(report, err, time.Since(start))
	}()

	capturedAt := s.now().In(s.loc).Truncate(TimestampPrecision)
	log.Info("starting capacity run", zap.Time("captured_at", capturedAt))

	extraction, err := s.extractor.FetchSnapshot(ctx, capturedAt)
	if err != nil {
		log.Error("failed to scrape capacity data", zap.Error(err))
		return nil, err
	}

	snapshot := Snapshot{
		CapturedAt: NewTimestamp(capturedAt),
		Readings:   extraction.Readings,
	}
	if snapshot.Readings == nil {
		snapshot.Readings = []FacilityReading{}
	}
	report = &Report{
		RunID:    runID,
		Snapshot: snapshot,
		Cards:    extraction.Cards,
		Skipped:  extraction.Skipped,
	}
	if len(extraction.Skipped) > 0 {
		log.Warn("some facility cards were skipped",
			zap.Int("skipped", len(extraction.Skipped)),
			zap.Int("cards", extraction.Cards),
		)
	}

	series, err := s.store.Load()
	switch {
	case err == nil:
	case errors.Is(err, ErrCorruptSeries):
		log.Warn("invalid data file, starting fresh", zap.Error(err))
		series = nil
	default:
		log.Error("existing data could not be read, leaving it untouched", zap.Error(err))
		return report, fmt.Errorf("%w: %w", ErrLoad, err)
	}

	series = s.store.Append(series, snapshot)
	report.Retained = len(series)

	if err := s.store.Persist(series); err != nil {
		log.Error("error saving data", zap.Error(err))
		s.summarise(report)
		return report, fmt.Errorf("%w: %w", ErrPersist, err)
	}
	log.Info("data saved successfully", zap.Int("entries", len(series)))

	s.summarise(report)
	return report, nil
}

func (s *Service) summarise(r *Report) {
	fmt.Fprintf(s.out, "Successfully scraped %d gyms at %s\n",
		len(r.Snapshot.Readings), r.Snapshot.CapturedAt.Format(time.DateTime))
	for _, g := range r.Snapshot.Readings {
		fmt.Fprintf(s.out, "  %s: %g%% full - %s\n", g.Name, g.PercentageFull, g.Status)
	}
}
