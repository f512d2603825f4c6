// Package metrics exposes Prometheus instrumentation for collection runs.
//
// Metrics exposed:
//   - gym_capacity_runs_total: counter of runs by result
//   - gym_capacity_run_duration_seconds: histogram of run durations
//   - gym_capacity_skipped_cards_total: counter of facility cards that could not be read
//   - gym_capacity_percentage_full: gauge of the latest occupancy per facility
//   - gym_capacity_last_success_timestamp_seconds: gauge of the last successful run
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/i474232898/gym-capacity/internal/capacity"
)

// Run results used as the "result" label.
const (
	ResultSuccess          = "success"
	ResultExtractionFailed = "extraction_failed"
	ResultStoreFailed      = "store_failed"
)

type Metrics struct {
	RunsTotal       *prometheus.CounterVec
	RunDuration     prometheus.Histogram
	SkippedCards    prometheus.Counter
	PercentageFull  *prometheus.GaugeVec
	LastSuccessTime prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gym_capacity_runs_total",
			Help: "Total number of collection runs by result",
		}, []string{"result"}),

		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gym_capacity_run_duration_seconds",
			Help:    "Duration of collection runs, browser startup included",
			Buckets: []float64{1, 5, 10, 20, 30, 60, 120},
		}),

		SkippedCards: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gym_capacity_skipped_cards_total",
			Help: "Total number of facility cards skipped because a field could not be read",
		}),

		PercentageFull: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gym_capacity_percentage_full",
			Help: "Latest reported occupancy per facility",
		}, []string{"facility", "status"}),

		LastSuccessTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gym_capacity_last_success_timestamp_seconds",
			Help: "Unix time of the last run that persisted a snapshot",
		}),
	}

	reg.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.SkippedCards,
		m.PercentageFull,
		m.LastSuccessTime,
	)
	return m
}

// ObserveRun implements capacity.Recorder.
func (m *Metrics) ObserveRun(report *capacity.Report, err error, elapsed time.Duration) {
	m.RunDuration.Observe(elapsed.Seconds())
	m.RunsTotal.WithLabelValues(result(err)).Inc()

	if report == nil {
		return
	}
	m.SkippedCards.Add(float64(len(report.Skipped)))
	if err != nil {
		return
	}

	m.PercentageFull.Reset()
	for _, r := range report.Snapshot.Readings {
		m.PercentageFull.WithLabelValues(r.Name, string(r.Status)).Set(r.PercentageFull)
	}
	m.LastSuccessTime.Set(float64(report.Snapshot.CapturedAt.Unix()))
}

func result(err error) string {
	switch {
	case err == nil:
		return ResultSuccess
	case errors.Is(err, capacity.ErrExtraction):
		return ResultExtractionFailed
	default:
		return ResultStoreFailed
	}
}
