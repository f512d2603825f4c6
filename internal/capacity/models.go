package capacity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Status is the severity band a facility's occupancy falls into.
type Status string

const (
	StatusLow    Status = "Low"
	StatusMedium Status = "Medium"
	StatusHigh   Status = "High"
)

// DefaultMaxSnapshots is the retention bound of a TimeSeries: 30 days of hourly runs.
const DefaultMaxSnapshots = 720

// FacilityReading is one facility's occupancy at capture time.
// Status is always Classify(PercentageFull).
type FacilityReading struct {
	Name           string    `json:"name"`
	PercentageFull float64   `json:"percentage_full"`
	CapturedAt     Timestamp `json:"timestamp"`
	Status         Status    `json:"status"`
}

// Snapshot is the full set of readings produced by a single run.
type Snapshot struct {
	CapturedAt Timestamp         `json:"timestamp"`
	Readings   []FacilityReading `json:"gyms"`
}

// Find returns the reading for the named facility, if present.
func (s Snapshot) Find(name string) (FacilityReading, bool) {
	for _, r := range s.Readings {
		if r.Name == name {
			return r, true
		}
	}
	return FacilityReading{}, false
}

// TimeSeries is the persisted history of snapshots, oldest first.
type TimeSeries []Snapshot

// Anchor returns a copy of the series with every timestamp expressed in loc.
func (ts TimeSeries) Anchor(loc *time.Location) TimeSeries {
	out := make(TimeSeries, len(ts))
	for i, snap := range ts {
		readings := make([]FacilityReading, len(snap.Readings))
		for j, r := range snap.Readings {
			r.CapturedAt = r.CapturedAt.Anchor(loc)
			readings[j] = r
		}
		out[i] = Snapshot{
			CapturedAt: snap.CapturedAt.Anchor(loc),
			Readings:   readings,
		}
	}
	return out
}

// TimestampPrecision is the resolution kept on disk.
const TimestampPrecision = time.Microsecond

// timestampLayout is ISO-8601 with the zone offset of the capture location.
const timestampLayout = "2006-01-02T15:04:05.999999Z07:00"

// floatingLayout matches files written by earlier scrapers, which stored
// local wall-clock time without any offset.
const floatingLayout = "2006-01-02T15:04:05.999999999"

// Timestamp is a capture time serialised as an ISO-8601 string.
type Timestamp struct {
	time.Time
	floating bool
}

// NewTimestamp wraps t, truncated to TimestampPrecision.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.Truncate(TimestampPrecision)}
}

// Floating reports whether the timestamp was decoded without an offset.
func (t Timestamp) Floating() bool {
	return t.floating
}

// Anchor reinterprets a floating timestamp's wall clock in loc. Timestamps
// that carried an offset keep their instant and are converted to loc.
func (t Timestamp) Anchor(loc *time.Location) Timestamp {
	if loc == nil {
		return t
	}
	if !t.floating {
		return Timestamp{Time: t.Time.In(loc)}
	}
	w := t.Time
	return Timestamp{Time: time.Date(w.Year(), w.Month(), w.Day(), w.Hour(), w.Minute(), w.Second(), w.Nanosecond(), loc)}
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time.Format(timestampLayout))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return fmt.Errorf("timestamp: null is not a valid capture time")
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
		*t = Timestamp{Time: parsed}
		return nil
	}
	parsed, err := time.Parse(floatingLayout, s)
	if err != nil {
		return fmt.Errorf("timestamp: unrecognised format %q", s)
	}
	*t = Timestamp{Time: parsed, floating: true}
	return nil
}
