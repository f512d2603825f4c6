package capacity_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/i474232898/gym-capacity/internal/capacity"
)

var errNoSuchNode = errors.New("no such node")

// fakeCard maps selectors to text; a missing selector behaves like a node
// that never appears.
type fakeCard map[string]string

func (c fakeCard) Text(ctx context.Context, selector string) (string, error) {
	if s, ok := c[selector]; ok {
		return s, nil
	}
	<-ctx.Done()
	return "", errors.Join(errNoSuchNode, ctx.Err())
}

// fakeAgent renders a page made of cards. With hang set the card selector
// never matches and WaitFor blocks until its deadline. With vanish set the
// cards disappear after WaitFor and the lookup polls until its deadline.
type fakeAgent struct {
	mu sync.Mutex

	cards       []fakeCard
	hang        bool
	vanish      bool
	acquireErr  error
	navigateErr error

	acquired int
	closed   int
	visited  []string
}

func (a *fakeAgent) Acquire(ctx context.Context) (capacity.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.acquireErr != nil {
		return nil, a.acquireErr
	}
	a.acquired++
	return &fakeSession{agent: a}, nil
}

func (a *fakeAgent) open() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.acquired - a.closed
}

type fakeSession struct {
	agent *fakeAgent
}

func (s *fakeSession) Navigate(ctx context.Context, url string) error {
	s.agent.mu.Lock()
	defer s.agent.mu.Unlock()
	s.agent.visited = append(s.agent.visited, url)
	return s.agent.navigateErr
}

func (s *fakeSession) WaitFor(ctx context.Context, selector string) error {
	if s.agent.hang {
		<-ctx.Done()
		return ctx.Err()
	}
	return ctx.Err()
}

func (s *fakeSession) Elements(ctx context.Context, selector string) ([]capacity.Element, error) {
	if s.agent.hang {
		return nil, nil
	}
	if s.agent.vanish {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	out := make([]capacity.Element, 0, len(s.agent.cards))
	for _, c := range s.agent.cards {
		out = append(out, c)
	}
	return out, nil
}

func (s *fakeSession) Close() error {
	s.agent.mu.Lock()
	defer s.agent.mu.Unlock()
	s.agent.closed++
	return nil
}

const (
	cardSel  = ".chakra-card"
	nameSel  = "p.chakra-text"
	badgeSel = "span.chakra-badge"
)

func card(name, badge string) fakeCard {
	return fakeCard{nameSel: name, badgeSel: badge}
}

func testExtractorConfig() capacity.ExtractorConfig {
	return capacity.ExtractorConfig{
		SourceURL:       "https://example.test/gym-capacity",
		CardSelector:    cardSel,
		NameSelector:    nameSel,
		BadgeSelector:   badgeSel,
		SettleDelay:     0,
		CardWaitTimeout: 50 * time.Millisecond,
		CardReadTimeout: 20 * time.Millisecond,
	}
}
