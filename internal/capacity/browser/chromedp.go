// Package browser implements capacity.Agent on top of a headless Chrome
// driven through the DevTools protocol.
package browser

import (
	"context"
	"errors"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/i474232898/gym-capacity/internal/capacity"
)

// hideWebdriver keeps the capacity page from serving its bot fallback.
const hideWebdriver = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined})`

// Config controls how Chrome is launched.
type Config struct {
	ExecPath  string
	Headless  bool
	UserAgent string
}

// ChromeAgent launches a fresh Chrome process for every session.
type ChromeAgent struct {
	cfg Config
	log *zap.Logger
}

// NewChromeAgent creates a new ChromeAgent.
func NewChromeAgent(cfg Config, log *zap.Logger) *ChromeAgent {
	if log == nil {
		log = zap.NewNop()
	}
	return &ChromeAgent{cfg: cfg, log: log}
}

// Acquire starts Chrome and opens a tab. The returned session owns the
// process; closing it kills the browser.
func (a *ChromeAgent) Acquire(ctx context.Context) (capacity.Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", a.cfg.Headless),
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
	)
	if a.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(a.cfg.UserAgent))
	}
	if a.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(a.cfg.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(a.log.Sugar().Errorf),
	)

	s := &session{
		ctx: tabCtx,
		cancel: func() {
			tabCancel()
			allocCancel()
		},
	}

	// The first Run allocates the browser and must use the tab context
	// itself, otherwise the browser dies with the derived context.
	stop := context.AfterFunc(ctx, s.cancel)
	err := chromedp.Run(tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(hideWebdriver).Do(ctx)
		return err
	}))
	stop()
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		s.cancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	a.log.Debug("browser session started")
	return s, nil
}

type session struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// run executes actions in the tab, bounded by both the tab and ctx.
func (s *session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var dcancel context.CancelFunc
		runCtx, dcancel = context.WithDeadline(runCtx, deadline)
		defer dcancel()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (s *session) Navigate(ctx context.Context, url string) error {
	return s.run(ctx, chromedp.Navigate(url))
}

func (s *session) WaitFor(ctx context.Context, selector string) error {
	return s.run(ctx, chromedp.WaitReady(selector, chromedp.ByQuery))
}

func (s *session) Elements(ctx context.Context, selector string) ([]capacity.Element, error) {
	var nodes []*cdp.Node
	if err := s.run(ctx, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll)); err != nil {
		return nil, err
	}
	out := make([]capacity.Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, &element{session: s, node: n})
	}
	return out, nil
}

func (s *session) Close() error {
	if s.cancel == nil {
		return errors.New("session already closed")
	}
	s.cancel()
	s.cancel = nil
	return nil
}

type element struct {
	session *session
	node    *cdp.Node
}

func (e *element) Text(ctx context.Context, selector string) (string, error) {
	var text string
	err := e.session.run(ctx, chromedp.Text(selector, &text, chromedp.ByQuery, chromedp.FromNode(e.node)))
	if err != nil {
		return "", err
	}
	return text, nil
}
