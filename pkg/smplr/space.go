package smplr

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/germanamz/spaceview/pkg/viewer"
)

// errRemoved is returned by calls on a space that was already removed.
var errRemoved = errors.New("smplr: space removed")

// space is one Space instance living in its own tab.
type space struct {
	browser   *Browser
	tabCtx    context.Context
	tabCancel context.CancelFunc
	payloads  chan string

	mu        sync.Mutex
	callbacks viewer.StartOptions
	listening bool
	removed   bool
}

func newSpace(b *Browser, tabCtx context.Context, tabCancel context.CancelFunc) *space {
	return &space{
		browser:   b,
		tabCtx:    tabCtx,
		tabCancel: tabCancel,
		payloads:  make(chan string, 64),
	}
}

func (s *space) StartViewer(ctx context.Context, opts viewer.StartOptions) error {
	script, err := startScript(opts)
	if err != nil {
		return fmt.Errorf("smplr: encode start options: %w", err)
	}

	s.mu.Lock()
	if s.removed {
		s.mu.Unlock()
		return errRemoved
	}
	s.callbacks = opts
	if !s.listening {
		s.listening = true
		chromedp.ListenTarget(s.tabCtx, s.onTargetEvent)
		go s.deliver()
	}
	s.mu.Unlock()

	opCtx, cancel := opContext(ctx, s.tabCtx, s.browser.opTimeout)
	defer cancel()

	if err := chromedp.Run(opCtx,
		runtime.AddBinding(bindingName),
		chromedp.Evaluate(script, nil),
	); err != nil {
		return fmt.Errorf("smplr: start viewer: %w", err)
	}
	return nil
}

func (s *space) SetMode(ctx context.Context, mode viewer.Mode) error {
	if !mode.Valid() {
		return fmt.Errorf("smplr: set mode: unknown mode %q", mode)
	}
	if s.isRemoved() {
		return errRemoved
	}

	opCtx, cancel := opContext(ctx, s.tabCtx, s.browser.opTimeout)
	defer cancel()

	if err := chromedp.Run(opCtx, chromedp.Evaluate(setModeScript(mode), nil)); err != nil {
		return fmt.Errorf("smplr: set mode: %w", err)
	}
	return nil
}

// Remove detaches the Space instance and closes its tab. The tab is closed
// even when the detach call fails.
func (s *space) Remove() error {
	s.mu.Lock()
	if s.removed {
		s.mu.Unlock()
		return nil
	}
	s.removed = true
	s.mu.Unlock()

	defer s.tabCancel()

	opCtx, cancel := context.WithTimeout(s.tabCtx, defaultRemoveTimeout)
	defer cancel()

	if err := chromedp.Run(opCtx, chromedp.Evaluate(removeScript(), nil)); err != nil {
		return fmt.Errorf("smplr: remove space: %w", err)
	}
	return nil
}

func (s *space) isRemoved() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.removed
}

// onTargetEvent runs on chromedp's event loop and must not block.
func (s *space) onTargetEvent(ev any) {
	bc, ok := ev.(*runtime.EventBindingCalled)
	if !ok || bc.Name != bindingName {
		return
	}
	select {
	case s.payloads <- bc.Payload:
	default:
		s.browser.log.Warn("smplr: dropped engine event", "payload", bc.Payload)
	}
}

// deliver invokes callbacks in the order the page emitted them.
func (s *space) deliver() {
	for {
		select {
		case <-s.tabCtx.Done():
			return
		case p := <-s.payloads:
			s.mu.Lock()
			cb := s.callbacks
			s.mu.Unlock()

			if err := dispatch(cb, p); err != nil {
				s.browser.log.Warn("smplr: bad engine event", "payload", p, "error", err)
			}
		}
	}
}
