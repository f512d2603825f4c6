package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/i474232898/gym-capacity/internal/capacity"
	"github.com/i474232898/gym-capacity/internal/store"
)

// stubAgent serves a page whose cards all carry the same badge text.
type stubAgent struct {
	err   error
	names []string
}

func (a stubAgent) Acquire(ctx context.Context) (capacity.Session, error) {
	if a.err != nil {
		return nil, a.err
	}
	return stubSession{names: a.names}, nil
}

type stubSession struct {
	names []string
}

func (s stubSession) Navigate(ctx context.Context, url string) error { return nil }

func (s stubSession) WaitFor(ctx context.Context, selector string) error { return nil }

func (s stubSession) Elements(ctx context.Context, selector string) ([]capacity.Element, error) {
	out := make([]capacity.Element, 0, len(s.names))
	for _, n := range s.names {
		out = append(out, stubCard(n))
	}
	return out, nil
}

func (s stubSession) Close() error { return nil }

type stubCard string

func (c stubCard) Text(ctx context.Context, selector string) (string, error) {
	if selector == "name" {
		return string(c), nil
	}
	return "55% full", nil
}

func newStubService(agent capacity.Agent, path string) *capacity.Service {
	ex := capacity.NewExtractor(agent, capacity.ExtractorConfig{
		SourceURL:       "https://example.test/gym-capacity",
		CardSelector:    "card",
		NameSelector:    "name",
		BadgeSelector:   "badge",
		CardWaitTimeout: time.Second,
		CardReadTimeout: time.Second,
	}, nil)
	return capacity.NewService(ex, store.NewFileStore(path, 0, time.UTC), time.UTC, nil)
}

func TestRunOnceExitCodes(t *testing.T) {
	tests := []struct {
		name  string
		agent stubAgent
		code  int
		file  bool
	}{
		{"success", stubAgent{names: []string{"Gym A", "Gym B"}}, 0, true},
		{"extraction failure", stubAgent{err: errors.New("chrome not found")}, 1, false},
		{"no cards", stubAgent{}, 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "data.json")

			if code := runOnce(newStubService(tt.agent, path), zap.NewNop()); code != tt.code {
				t.Fatalf("expected exit code %d, got %d", tt.code, code)
			}
			_, err := os.Stat(path)
			if exists := err == nil; exists != tt.file {
				t.Fatalf("data file exists = %v, want %v", exists, tt.file)
			}
		})
	}
}
