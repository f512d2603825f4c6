package capacity

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
)

var errEmptyName = errors.New("empty facility name")

// ExtractorConfig describes where the capacity page lives and how it is laid out.
type ExtractorConfig struct {
	SourceURL     string
	CardSelector  string
	NameSelector  string
	BadgeSelector string

	// SettleDelay is slept after navigation before looking for cards.
	SettleDelay time.Duration
	// CardWaitTimeout bounds the wait for the first card to render and the
	// lookup of all cards after it.
	CardWaitTimeout time.Duration
	// CardReadTimeout bounds each field lookup inside a card.
	CardReadTimeout time.Duration
}

// Extraction is the outcome of a successful page extraction. Cards that could
// not be read are listed in Skipped; Readings may be empty.
type Extraction struct {
	Cards    int
	Readings []FacilityReading
	Skipped  []CardError
}

// Extractor drives a rendering agent over the capacity page.
type Extractor struct {
	agent Agent
	cfg   ExtractorConfig
	log   *zap.Logger
}

// NewExtractor creates a new Extractor.
func NewExtractor(agent Agent, cfg ExtractorConfig, log *zap.Logger) *Extractor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Extractor{
		agent: agent,
		cfg:   cfg,
		log:   log,
	}
}

// FetchSnapshot renders the source page and reads every facility card.
// Readings are stamped with capturedAt. A navigation failure, a card wait
// timeout or a page with zero cards yields an *ExtractionError.
func (e *Extractor) FetchSnapshot(ctx context.Context, capturedAt time.Time) (*Extraction, error) {
	e.log.Info("acquiring rendering session")
	session, err := e.agent.Acquire(ctx)
	if err != nil {
		return nil, &ExtractionError{Stage: "acquire", Err: err}
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			e.log.Warn("closing rendering session", zap.Error(cerr))
		}
	}()

	e.log.Info("navigating to capacity page", zap.String("url", e.cfg.SourceURL))
	if err := session.Navigate(ctx, e.cfg.SourceURL); err != nil {
		return nil, &ExtractionError{Stage: "navigate", Err: err}
	}

	if err := sleep(ctx, e.cfg.SettleDelay); err != nil {
		return nil, &ExtractionError{Stage: "settle", Err: err}
	}

	waitCtx, cancel := context.WithTimeout(ctx, e.cfg.CardWaitTimeout)
	err = session.WaitFor(waitCtx, e.cfg.CardSelector)
	cancel()
	if err != nil {
		return nil, &ExtractionError{Stage: "wait for cards", Err: err}
	}

	// The page may re-render between the wait and the lookup.
	lookupCtx, cancel := context.WithTimeout(ctx, e.cfg.CardWaitTimeout)
	cards, err := session.Elements(lookupCtx, e.cfg.CardSelector)
	cancel()
	if err != nil {
		return nil, &ExtractionError{Stage: "locate cards", Err: err}
	}
	if len(cards) == 0 {
		return nil, &ExtractionError{Stage: "locate cards", Err: errors.New("no facility cards found")}
	}
	e.log.Info("page loaded", zap.Int("cards", len(cards)))

	stamp := NewTimestamp(capturedAt)
	out := &Extraction{Cards: len(cards)}
	for i, card := range cards {
		reading, cerr := e.readCard(ctx, i, card, stamp)
		if cerr != nil {
			e.log.Error("skipping facility card",
				zap.Int("card", cerr.Index),
				zap.String("facility", cerr.Name),
				zap.String("field", cerr.Field),
				zap.Error(cerr.Err),
			)
			out.Skipped = append(out.Skipped, *cerr)
			continue
		}
		e.log.Info("scraped facility",
			zap.String("facility", reading.Name),
			zap.Float64("percentage_full", reading.PercentageFull),
			zap.String("status", string(reading.Status)),
		)
		out.Readings = append(out.Readings, reading)
	}

	return out, nil
}

func (e *Extractor) readCard(ctx context.Context, idx int, card Element, stamp Timestamp) (FacilityReading, *CardError) {
	name, err := e.text(ctx, card, e.cfg.NameSelector)
	if err == nil && name == "" {
		err = errEmptyName
	}
	if err != nil {
		return FacilityReading{}, &CardError{Index: idx, Field: "name", Err: err}
	}

	badge, err := e.text(ctx, card, e.cfg.BadgeSelector)
	if err != nil {
		return FacilityReading{}, &CardError{Index: idx, Name: name, Field: "badge", Err: err}
	}

	pct := ParsePercentage(badge)
	if pct > 100 {
		pct = 100
	}
	return FacilityReading{
		Name:           name,
		PercentageFull: pct,
		CapturedAt:     stamp,
		Status:         Classify(pct),
	}, nil
}

func (e *Extractor) text(ctx context.Context, card Element, selector string) (string, error) {
	if e.cfg.CardReadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.CardReadTimeout)
		defer cancel()
	}
	s, err := card.Text(ctx, selector)
	return strings.TrimSpace(s), err
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
