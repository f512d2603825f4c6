package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/renameio/v2"

	"github.com/i474232898/gym-capacity/internal/capacity"
)

var (
	// ErrNotFound is returned when no data is available for a query.
	ErrNotFound = errors.New("no capacity data found")
)

// HistoryEntry pairs a snapshot time with one facility's reading in it.
type HistoryEntry struct {
	Timestamp capacity.Timestamp       `json:"timestamp"`
	Gym       capacity.FacilityReading `json:"gym"`
}

// FileStore keeps the time series as a single JSON array on disk.
// It is the only component that reads or writes that file.
type FileStore struct {
	mu sync.RWMutex

	path string
	loc  *time.Location

	// retention configuration
	maxHistory int
}

// NewFileStore creates a FileStore for path. If maxHistory is <= 0 the
// default retention of capacity.DefaultMaxSnapshots is used. Offset-less
// timestamps found in existing files are read as wall-clock time in loc.
func NewFileStore(path string, maxHistory int, loc *time.Location) *FileStore {
	if maxHistory <= 0 {
		maxHistory = capacity.DefaultMaxSnapshots
	}
	if loc == nil {
		loc = time.UTC
	}
	return &FileStore{
		path:       path,
		loc:        loc,
		maxHistory: maxHistory,
	}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the whole series. A missing file is an empty series. Content
// that does not decode yields an empty series and an error matching
// capacity.ErrCorruptSeries; any other read failure is returned as is.
func (s *FileStore) Load() (capacity.TimeSeries, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.load()
}

func (s *FileStore) load() (capacity.TimeSeries, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return capacity.TimeSeries{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}

	var series capacity.TimeSeries
	if err := json.Unmarshal(data, &series); err != nil {
		return capacity.TimeSeries{}, fmt.Errorf("%w: decode %s: %v", capacity.ErrCorruptSeries, s.path, err)
	}
	if series == nil {
		// A literal "null" is not an array.
		return capacity.TimeSeries{}, fmt.Errorf("%w: %s does not hold an array", capacity.ErrCorruptSeries, s.path)
	}
	return series.Anchor(s.loc), nil
}

// Append returns a new series with snapshot at the end, dropping the oldest
// entries beyond the retention bound. series itself is not modified.
func (s *FileStore) Append(series capacity.TimeSeries, snapshot capacity.Snapshot) capacity.TimeSeries {
	return Append(series, snapshot, s.maxHistory)
}

// Append is the retention rule shared by every store: at most limit entries,
// oldest evicted first.
func Append(series capacity.TimeSeries, snapshot capacity.Snapshot, limit int) capacity.TimeSeries {
	start := 0
	if limit > 0 && len(series)+1 > limit {
		start = len(series) + 1 - limit
	}

	out := make(capacity.TimeSeries, 0, len(series)-start+1)
	out = append(out, series[start:]...)
	return append(out, snapshot)
}

// Persist rewrites the whole file through a temporary file and an atomic
// rename, so readers see either the previous series or the new one.
func (s *FileStore) Persist(series capacity.TimeSeries) error {
	if series == nil {
		series = capacity.TimeSeries{}
	}
	data, err := json.MarshalIndent(series, "", "  ")
	if err != nil {
		return fmt.Errorf("encode series: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}
	if err := renameio.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	return nil
}

// Latest returns the most recent snapshot.
func (s *FileStore) Latest() (capacity.Snapshot, error) {
	series, err := s.Load()
	if err != nil {
		return capacity.Snapshot{}, err
	}
	if len(series) == 0 {
		return capacity.Snapshot{}, ErrNotFound
	}
	return series[len(series)-1], nil
}

// History returns the readings of one facility, oldest first. Zero from/to
// leave that side of the range open; both bounds are inclusive.
func (s *FileStore) History(name string, from, to time.Time) ([]HistoryEntry, error) {
	series, err := s.Load()
	if err != nil {
		return nil, err
	}

	var result []HistoryEntry
	for _, snap := range series {
		ts := snap.CapturedAt.Time
		if !from.IsZero() && ts.Before(from) {
			continue
		}
		if !to.IsZero() && ts.After(to) {
			continue
		}
		if r, ok := snap.Find(name); ok {
			result = append(result, HistoryEntry{Timestamp: snap.CapturedAt, Gym: r})
		}
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}
	return result, nil
}
