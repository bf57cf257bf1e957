package capture

import (
	"context"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/ztrue/tracerr"
)

// Options configure the browser session.
type Options struct {
	// ProfileDir is the persistent user data dir. Cookies and local storage
	// survive restarts there, so a manual sign-in only has to happen once.
	ProfileDir string
	Headless   bool
}

// Session owns one Chrome instance bound to a persistent profile directory.
// It is created once at startup, outlives every page turn, and is closed at
// shutdown. Closing it also cancels any in-flight interceptor work.
type Session struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
}

// NewSession launches Chrome and enables network event delivery. A launch
// failure is fatal to the run.
func NewSession(parent context.Context, opts Options) (*Session, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserDataDir(opts.ProfileDir),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-notifications", true),
		chromedp.WindowSize(1280, 900),
	)
	if !opts.Headless {
		// undo the options implied by chromedp.Headless in the defaults; the
		// manual sign-in step needs a visible window
		allocOpts = append(allocOpts,
			chromedp.Flag("headless", false),
			chromedp.Flag("hide-scrollbars", false),
			chromedp.Flag("mute-audio", false),
		)
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, allocOpts...)
	ctx, cancel := chromedp.NewContext(allocCtx)

	if err := chromedp.Run(ctx, network.Enable()); err != nil {
		cancel()
		allocCancel()
		return nil, tracerr.Wrap(err)
	}

	return &Session{ctx: ctx, cancel: cancel, allocCancel: allocCancel}, nil
}

// Context returns the chromedp task context. Event listeners attach to it.
func (s *Session) Context() context.Context {
	return s.ctx
}

// Navigate opens the reader URL.
func (s *Session) Navigate(url string) error {
	if err := chromedp.Run(s.ctx, chromedp.Navigate(url)); err != nil {
		return tracerr.Wrap(err)
	}
	return nil
}

// Snapshot implements PageSource.
func (s *Session) Snapshot() (*Snapshot, error) {
	return CaptureSnapshot(s.ctx)
}

// TurnPage implements PageSource by sending the reader's forward key.
func (s *Session) TurnPage() error {
	if err := chromedp.Run(s.ctx, chromedp.KeyEvent(kb.ArrowRight)); err != nil {
		return tracerr.Wrap(err)
	}
	return nil
}

// Close shuts down the browser and its allocator.
func (s *Session) Close() {
	s.cancel()
	s.allocCancel()
}
