package capacity_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/i474232898/gym-capacity/internal/capacity"
)

var captureTime = time.Date(2025, 6, 1, 14, 0, 0, 0, time.FixedZone("SGT", 8*3600))

func TestFetchSnapshotParsesAndClassifies(t *testing.T) {
	agent := &fakeAgent{cards: []fakeCard{
		card("Gym A", "45% full"),
		card("Gym B", "bad text"),
	}}
	ex := capacity.NewExtractor(agent, testExtractorConfig(), nil)

	got, err := ex.FetchSnapshot(context.Background(), captureTime)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []capacity.FacilityReading{
		{Name: "Gym A", PercentageFull: 45, Status: capacity.StatusMedium},
		{Name: "Gym B", PercentageFull: 0, Status: capacity.StatusLow},
	}
	if len(got.Readings) != len(want) {
		t.Fatalf("expected %d readings, got %d", len(want), len(got.Readings))
	}
	for i, w := range want {
		r := got.Readings[i]
		if r.Name != w.Name || r.PercentageFull != w.PercentageFull || r.Status != w.Status {
			t.Errorf("reading %d = %+v, want %+v", i, r, w)
		}
		if !r.CapturedAt.Equal(captureTime) {
			t.Errorf("reading %d captured at %v, want %v", i, r.CapturedAt.Time, captureTime)
		}
	}
	if len(got.Skipped) != 0 {
		t.Errorf("expected no skipped cards, got %v", got.Skipped)
	}
	if agent.visited[0] != "https://example.test/gym-capacity" {
		t.Errorf("navigated to %v", agent.visited)
	}
	if agent.open() != 0 {
		t.Error("session was not released")
	}
}

func TestFetchSnapshotSkipsUnreadableCards(t *testing.T) {
	agent := &fakeAgent{cards: []fakeCard{
		card("  Gym A  ", " 80% full "),
		{badgeSel: "10% full"},         // no name
		{nameSel: "Gym C"},             // no badge
		card("", "50% full"),           // blank name
		card("Gym E", "250% capacity"), // clamped
	}}
	ex := capacity.NewExtractor(agent, testExtractorConfig(), nil)

	got, err := ex.FetchSnapshot(context.Background(), captureTime)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Cards != 5 {
		t.Errorf("expected 5 cards, got %d", got.Cards)
	}
	if len(got.Readings) != 2 {
		t.Fatalf("expected 2 readings, got %+v", got.Readings)
	}
	if got.Readings[0].Name != "Gym A" || got.Readings[0].Status != capacity.StatusHigh {
		t.Errorf("unexpected first reading %+v", got.Readings[0])
	}
	if got.Readings[1].PercentageFull != 100 {
		t.Errorf("expected percentage clamped to 100, got %v", got.Readings[1].PercentageFull)
	}

	if len(got.Skipped) != 3 {
		t.Fatalf("expected 3 skipped cards, got %v", got.Skipped)
	}
	wantSkipped := []struct {
		index int
		name  string
		field string
	}{
		{1, "", "name"},
		{2, "Gym C", "badge"},
		{3, "", "name"},
	}
	for i, w := range wantSkipped {
		s := got.Skipped[i]
		if s.Index != w.index || s.Name != w.name || s.Field != w.field {
			t.Errorf("skipped %d = %+v, want %+v", i, s, w)
		}
	}
	if !errors.Is(got.Skipped[0].Err, errNoSuchNode) {
		t.Errorf("expected missing node error, got %v", got.Skipped[0].Err)
	}
}

func TestFetchSnapshotAllCardsFailIsUsable(t *testing.T) {
	agent := &fakeAgent{cards: []fakeCard{{}, {}}}
	ex := capacity.NewExtractor(agent, testExtractorConfig(), nil)

	got, err := ex.FetchSnapshot(context.Background(), captureTime)
	if err != nil {
		t.Fatalf("an all-skipped page must not be an extraction failure: %v", err)
	}
	if len(got.Readings) != 0 || len(got.Skipped) != 2 {
		t.Fatalf("unexpected extraction %+v", got)
	}
}

func TestFetchSnapshotFailures(t *testing.T) {
	tests := []struct {
		name  string
		agent *fakeAgent
		stage string
	}{
		{"acquire fails", &fakeAgent{acquireErr: errors.New("chrome not found")}, "acquire"},
		{"navigation fails", &fakeAgent{navigateErr: errors.New("net::ERR_NAME_NOT_RESOLVED")}, "navigate"},
		{"cards never render", &fakeAgent{hang: true}, "wait for cards"},
		{"zero cards", &fakeAgent{}, "locate cards"},
		{"cards vanish after render", &fakeAgent{vanish: true}, "locate cards"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := capacity.NewExtractor(tt.agent, testExtractorConfig(), nil)

			got, err := ex.FetchSnapshot(context.Background(), captureTime)
			if got != nil {
				t.Errorf("expected no partial data, got %+v", got)
			}
			if !errors.Is(err, capacity.ErrExtraction) {
				t.Fatalf("expected ErrExtraction, got %v", err)
			}
			var exErr *capacity.ExtractionError
			if !errors.As(err, &exErr) || exErr.Stage != tt.stage {
				t.Fatalf("expected stage %q, got %v", tt.stage, err)
			}
			if tt.agent.open() != 0 {
				t.Error("session was not released")
			}
		})
	}
}

func TestFetchSnapshotWaitIsBounded(t *testing.T) {
	agent := &fakeAgent{hang: true}
	ex := capacity.NewExtractor(agent, testExtractorConfig(), nil)

	start := time.Now()
	_, err := ex.FetchSnapshot(context.Background(), captureTime)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("wait was not bounded: %v", elapsed)
	}
}

func TestFetchSnapshotCardLookupIsBounded(t *testing.T) {
	agent := &fakeAgent{vanish: true}
	ex := capacity.NewExtractor(agent, testExtractorConfig(), nil)

	start := time.Now()
	_, err := ex.FetchSnapshot(context.Background(), captureTime)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("card lookup was not bounded: %v", elapsed)
	}
	if agent.open() != 0 {
		t.Error("session was not released")
	}
}
