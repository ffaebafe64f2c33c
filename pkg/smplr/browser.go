// Package smplr hosts the Smplr space viewer SDK in a Chrome tab driven over
// the DevTools protocol. Each engine gets its own tab whose document holds the
// mount region; the SDK's readiness, error and mode callbacks are routed back
// to Go through a runtime binding. Chrome is started lazily on first use.
package smplr

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/germanamz/spaceview/pkg/viewer"
)

// Default operation timeouts.
const (
	defaultOpTimeout     = 30 * time.Second
	defaultRemoveTimeout = 5 * time.Second
)

// Option configures Browser behaviour.
type Option func(*Browser)

// WithHeadless runs Chrome without a visible window.
func WithHeadless(headless bool) Option {
	return func(b *Browser) { b.headless = headless }
}

// WithExecPath sets the Chrome executable. Empty uses chromedp's lookup.
func WithExecPath(path string) Option {
	return func(b *Browser) { b.execPath = path }
}

// WithSDKBaseURL overrides the host the SDK is loaded from.
func WithSDKBaseURL(base string) Option {
	return func(b *Browser) { b.sdkBaseURL = base }
}

// WithOpTimeout bounds every DevTools round trip.
func WithOpTimeout(d time.Duration) Option {
	return func(b *Browser) {
		if d > 0 {
			b.opTimeout = d
		}
	}
}

// WithLogger sets the logger for dropped or malformed engine callbacks.
func WithLogger(log *slog.Logger) Option {
	return func(b *Browser) {
		if log != nil {
			b.log = log
		}
	}
}

// Browser owns the Chrome process that hosts viewer tabs.
type Browser struct {
	headless   bool
	execPath   string
	sdkBaseURL string
	opTimeout  time.Duration
	log        *slog.Logger
	parentCtx  context.Context

	mu          sync.Mutex
	started     bool
	browserCtx  context.Context
	browserDone context.CancelFunc
	allocDone   context.CancelFunc
}

// NewBrowser creates a Browser. The parentCtx is the root context for the
// Chrome process; cancelling it tears Chrome down.
func NewBrowser(parentCtx context.Context, opts ...Option) *Browser {
	b := &Browser{
		parentCtx: parentCtx,
		opTimeout: defaultOpTimeout,
		log:       slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Loader returns a viewer.Loader whose engines render into tabs built from
// page.
func (b *Browser) Loader(page Page) viewer.Loader {
	return &loader{browser: b, page: page}
}

// Close shuts down the Chrome process if it was started.
func (b *Browser) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.started {
		return
	}

	b.browserDone()
	b.allocDone()
	b.browserDone = nil
	b.allocDone = nil
	b.browserCtx = nil
	b.started = false
}

// ensureBrowser lazily starts the Chrome process on first call.
func (b *Browser) ensureBrowser() (context.Context, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.started {
		return b.browserCtx, nil
	}

	opts := chromedp.DefaultExecAllocatorOptions[:]
	if !b.headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	// WebGL needs the GPU path, and the SDK is loaded cross-origin from a
	// document written in place.
	opts = append(opts,
		chromedp.Flag("incognito", true),
		chromedp.Flag("enable-webgl", true),
		chromedp.Flag("ignore-gpu-blocklist", true),
		chromedp.Flag("autoplay-policy", "no-user-gesture-required"),
	)
	if b.execPath != "" {
		opts = append(opts, chromedp.ExecPath(b.execPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(b.parentCtx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Force Chrome to start by running a noop.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("smplr: start chrome: %w", err)
	}

	b.browserCtx = browserCtx
	b.browserDone = browserCancel
	b.allocDone = allocCancel
	b.started = true

	return b.browserCtx, nil
}

// opContext derives a bounded context for one DevTools round trip on a tab.
// It is also cancelled when the caller's ctx is.
func opContext(ctx, tabCtx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	opCtx, cancel := context.WithTimeout(tabCtx, d)
	stop := context.AfterFunc(ctx, cancel)
	return opCtx, func() {
		stop()
		cancel()
	}
}
