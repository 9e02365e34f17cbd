// Package renderer provides the headless-Chrome page renderer used by the
// chapter crawler.
package renderer

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrRendererClosed indicates the browser session has been torn down.
var ErrRendererClosed = errors.New("renderer closed")

// Config controls the Chrome session.
type Config struct {
	Headless   bool
	UserAgent  string
	NavTimeout time.Duration
	// DomainQPS caps navigations per second per domain; zero disables.
	DomainQPS float64
	// WindowWidth/Height set the emulated viewport.
	WindowWidth  int
	WindowHeight int
}

// DefaultConfig returns the renderer settings used in production.
func DefaultConfig() Config {
	return Config{
		Headless:     true,
		UserAgent:    "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		NavTimeout:   15 * time.Second,
		DomainQPS:    0.5,
		WindowWidth:  1400,
		WindowHeight: 900,
	}
}

// hideAutomationScript masks the headless webdriver flag before any page
// script runs.
const hideAutomationScript = `Object.defineProperty(navigator, 'webdriver', { get: () => undefined });`

// Chromedp renders pages in a single headless Chrome session reused
// serially across navigations. Not safe for concurrent use.
type Chromedp struct {
	allocatorCancel context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	logger          *zap.Logger
	timeout         time.Duration
	domainQPS       float64
	domainLimiters  sync.Map
	closed          bool
	mu              sync.Mutex
}

// New starts a Chrome session using the provided configuration.
func New(cfg Config, logger *zap.Logger) (*Chromedp, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = DefaultConfig().NavTimeout
	}

	opts := chromedp.DefaultExecAllocatorOptions[:]
	opts = append(opts,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(cfg.UserAgent),
		chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight),
	)
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)

	warmup := chromedp.Tasks{
		network.Enable(),
		emulation.SetUserAgentOverride(cfg.UserAgent),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(hideAutomationScript).Do(ctx)
			return err
		}),
	}
	if err := chromedp.Run(browserCtx, warmup); err != nil {
		browserCancel()
		allocatorCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}

	return &Chromedp{
		allocatorCancel: allocatorCancel,
		browserCtx:      browserCtx,
		browserCancel:   browserCancel,
		logger:          logger,
		timeout:         cfg.NavTimeout,
		domainQPS:       cfg.DomainQPS,
	}, nil
}

// Close tears down the browser session.
func (r *Chromedp) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	r.browserCancel()
	r.allocatorCancel()
	return nil
}

// Navigate loads the URL and waits for the body to be ready.
func (r *Chromedp) Navigate(ctx context.Context, rawURL string) error {
	if err := r.waitDomainBudget(ctx, rawURL); err != nil {
		return fmt.Errorf("navigate rate limit: %w", err)
	}
	return r.run(ctx, chromedp.Tasks{
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	})
}

// RunScript evaluates the script in the current page and unmarshals the
// result into out.
func (r *Chromedp) RunScript(ctx context.Context, script string, out any) error {
	return r.run(ctx, chromedp.Tasks{chromedp.Evaluate(script, out)})
}

// CurrentURL returns the page's final location after redirects.
func (r *Chromedp) CurrentURL(ctx context.Context) (string, error) {
	var loc string
	err := r.run(ctx, chromedp.Tasks{chromedp.Location(&loc)})
	return loc, err
}

// PageTitle returns the current document title.
func (r *Chromedp) PageTitle(ctx context.Context) (string, error) {
	var title string
	err := r.run(ctx, chromedp.Tasks{chromedp.Title(&title)})
	return title, err
}

// PageSource returns the full rendered DOM as HTML.
func (r *Chromedp) PageSource(ctx context.Context) (string, error) {
	var html string
	err := r.run(ctx, chromedp.Tasks{chromedp.OuterHTML("html", &html, chromedp.ByQuery)})
	return html, err
}

func (r *Chromedp) run(ctx context.Context, tasks chromedp.Tasks) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRendererClosed
	}
	r.mu.Unlock()

	taskCtx, cancel := context.WithTimeout(r.browserCtx, r.timeout)
	defer cancel()
	stop := forwardCancel(ctx, cancel)
	defer stop()

	if err := chromedp.Run(taskCtx, tasks); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("chromedp run: %w", err)
	}
	return nil
}

func (r *Chromedp) waitDomainBudget(ctx context.Context, rawURL string) error {
	if r.domainQPS <= 0 {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse render url: %w", err)
	}
	host := strings.ToLower(parsed.Host)
	val, _ := r.domainLimiters.LoadOrStore(host, rate.NewLimiter(rate.Limit(r.domainQPS), 1))
	limiter, ok := val.(*rate.Limiter)
	if !ok {
		return fmt.Errorf("unexpected limiter type %T", val)
	}
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait limiter: %w", err)
	}
	return nil
}

// forwardCancel propagates cancellation of the caller's context into the
// chromedp task context, which is derived from the browser context.
func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
