// Package headless implements the browser-automation extractor for sources
// that render listings client-side and actively detect scripted traffic.
package headless

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// SessionConfig controls browser launch.
type SessionConfig struct {
	// PageTimeout bounds a single page load.
	PageTimeout time.Duration
}

func (c *SessionConfig) applyDefaults() {
	if c.PageTimeout <= 0 {
		c.PageTimeout = 30 * time.Second
	}
}

// Session wraps one browser connection. NewSession launches a local browser
// process, NewRemoteSession connects to an external CDP endpoint, and
// AttachSession borrows a browser context managed entirely by the caller.
// Close releases only the handles the session holds, so a borrowed or remote
// browser survives it.
type Session struct {
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
	owned         bool
	pageTimeout   time.Duration
	logger        *zap.Logger
}

// NewSession launches a headless browser tuned for low memory and a
// non-automation fingerprint.
func NewSession(ctx context.Context, cfg SessionConfig, logger *zap.Logger) (*Session, error) {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	fp := randomFingerprint()

	opts := chromedp.DefaultExecAllocatorOptions[:]
	opts = append(opts,
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-zygote", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("renderer-process-limit", "2"),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(fp.userAgent),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("browser warmup: %w", err)
	}
	logger.Info("browser session launched", zap.String("user_agent", fp.userAgent))

	return &Session{
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
		owned:         true,
		pageTimeout:   cfg.PageTimeout,
		logger:        logger,
	}, nil
}

// NewRemoteSession connects to a browser already running behind a CDP
// websocket endpoint, such as a browserless container. Close disconnects but
// leaves the remote browser running.
func NewRemoteSession(ctx context.Context, cdpURL string, cfg SessionConfig, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	allocCtx, allocCancel := chromedp.NewRemoteAllocator(ctx, cdpURL)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("connect remote browser %s: %w", cdpURL, err)
	}
	logger.Info("remote browser session attached", zap.String("cdp_url", cdpURL))

	s := AttachSession(browserCtx, cfg, logger)
	s.browserCancel = browserCancel
	s.allocCancel = allocCancel
	s.owned = true
	return s, nil
}

// AttachSession borrows an already-running browser context. The returned
// session never tears the browser down.
func AttachSession(browserCtx context.Context, cfg SessionConfig, logger *zap.Logger) *Session {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		browserCtx:  browserCtx,
		owned:       false,
		pageTimeout: cfg.PageTimeout,
		logger:      logger,
	}
}

// Close releases the handles the session holds, if any.
func (s *Session) Close() {
	if s == nil || !s.owned {
		return
	}
	if s.browserCancel != nil {
		s.browserCancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
	s.logger.Info("browser session closed")
}

// fetchPage opens a fresh tab with the given fingerprint, navigates, and
// returns the rendered document and its title. The tab is always released.
func (s *Session) fetchPage(ctx context.Context, fp fingerprint, pageURL string) (html string, title string, err error) {
	tabCtx, cancelTab := chromedp.NewContext(s.browserCtx)
	defer cancelTab()

	taskCtx, cancelTask := context.WithTimeout(tabCtx, s.pageTimeout)
	defer cancelTask()

	stop := forwardCancel(ctx, cancelTask)
	defer stop()

	tasks := chromedp.Tasks{}
	tasks = append(tasks, stealthTasks(fp)...)
	tasks = append(tasks,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Title(&title),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err := chromedp.Run(taskCtx, tasks); err != nil {
		return "", "", fmt.Errorf("fetch page: %w", err)
	}
	return html, title, nil
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
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
