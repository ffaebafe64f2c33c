// Package viewertest provides scriptable in-memory engine collaborators for
// testing code built on package viewer.
package viewertest

import (
	"context"
	"errors"
	"sync"

	"github.com/germanamz/spaceview/pkg/viewer"
)

// ErrRemoved is returned by StartViewer and SetMode after Remove.
var ErrRemoved = errors.New("viewertest: engine removed")

// Engine is a fake viewer.Engine. It records every call and lets tests fire
// the engine callbacks by hand.
type Engine struct {
	// StartErr is returned from StartViewer.
	StartErr error
	// SetModeErr is returned from SetMode.
	SetModeErr error
	// RemoveErr is returned from Remove.
	RemoveErr error
	// AutoReady fires OnReady from inside StartViewer.
	AutoReady bool
	// BeforeStart runs at the top of StartViewer, before the removed check.
	BeforeStart func()

	mu       sync.Mutex
	opts     viewer.StartOptions
	modes    []viewer.Mode
	removes  int
	removed  bool
	starts   int
	modeGate chan struct{}
	started  chan struct{}
	once     sync.Once
}

// NewEngine creates a fake engine.
func NewEngine() *Engine {
	return &Engine{started: make(chan struct{})}
}

// StartViewer records opts and optionally reports readiness. After Remove it
// returns ErrRemoved and records nothing.
func (e *Engine) StartViewer(_ context.Context, opts viewer.StartOptions) error {
	if e.BeforeStart != nil {
		e.BeforeStart()
	}

	e.mu.Lock()
	if e.removed {
		e.mu.Unlock()
		return ErrRemoved
	}
	e.opts = opts
	e.starts++
	e.mu.Unlock()
	e.once.Do(func() { close(e.started) })

	if e.StartErr != nil {
		return e.StartErr
	}
	if e.AutoReady && opts.OnReady != nil {
		opts.OnReady()
	}
	return nil
}

// SetMode records the requested mode. It blocks while HoldSetMode is active.
func (e *Engine) SetMode(ctx context.Context, mode viewer.Mode) error {
	e.mu.Lock()
	gate := e.modeGate
	e.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.removed {
		return ErrRemoved
	}
	e.modes = append(e.modes, mode)

	return e.SetModeErr
}

// Remove counts teardown attempts.
func (e *Engine) Remove() error {
	e.mu.Lock()
	e.removes++
	e.removed = true
	e.mu.Unlock()

	return e.RemoveErr
}

// HoldSetMode makes SetMode block until the returned function is called.
func (e *Engine) HoldSetMode() (release func()) {
	gate := make(chan struct{})

	e.mu.Lock()
	e.modeGate = gate
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			e.modeGate = nil
			e.mu.Unlock()
			close(gate)
		})
	}
}

// Started is closed once StartViewer has been called.
func (e *Engine) Started() <-chan struct{} { return e.started }

// Options returns the options passed to StartViewer.
func (e *Engine) Options() viewer.StartOptions {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.opts
}

// Modes returns every mode passed to SetMode, in order.
func (e *Engine) Modes() []viewer.Mode {
	e.mu.Lock()
	defer e.mu.Unlock()

	return append([]viewer.Mode(nil), e.modes...)
}

// Starts returns the number of StartViewer calls that took effect.
func (e *Engine) Starts() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.starts
}

// Removes returns the number of Remove calls.
func (e *Engine) Removes() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.removes
}

// Ready fires the OnReady callback.
func (e *Engine) Ready() {
	if cb := e.Options().OnReady; cb != nil {
		cb()
	}
}

// Fail fires the OnError callback.
func (e *Engine) Fail(err error) {
	if cb := e.Options().OnError; cb != nil {
		cb(err)
	}
}

// ChangeMode fires the OnModeChange callback.
func (e *Engine) ChangeMode(mode viewer.Mode) {
	if cb := e.Options().OnModeChange; cb != nil {
		cb(mode)
	}
}

// Loader is a fake viewer.Loader that is also its own viewer.Factory.
type Loader struct {
	// Engine is returned from NewEngine.
	Engine *Engine
	// LoadErr is returned from Load.
	LoadErr error
	// NewErr is returned from NewEngine. The engine is not returned with it.
	NewErr error

	mu       sync.Mutex
	loads    int
	news     int
	target   viewer.Target
	engOpts  viewer.EngineOptions
	gate     chan struct{}
	entered  chan struct{}
	enterOne sync.Once
}

// NewLoader creates a loader that hands out eng.
func NewLoader(eng *Engine) *Loader {
	return &Loader{Engine: eng, entered: make(chan struct{})}
}

// Hold makes Load block until the returned function is called.
func (l *Loader) Hold() (release func()) {
	gate := make(chan struct{})

	l.mu.Lock()
	l.gate = gate
	l.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// Entered is closed once Load has been called.
func (l *Loader) Entered() <-chan struct{} { return l.entered }

// Load resolves to the loader itself as the factory.
func (l *Loader) Load(ctx context.Context, target viewer.Target) (viewer.Factory, error) {
	l.mu.Lock()
	l.loads++
	l.target = target
	gate := l.gate
	l.mu.Unlock()
	l.enterOne.Do(func() { close(l.entered) })

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if l.LoadErr != nil {
		return nil, l.LoadErr
	}
	return l, nil
}

// NewEngine hands out the configured engine.
func (l *Loader) NewEngine(_ context.Context, opts viewer.EngineOptions) (viewer.Engine, error) {
	l.mu.Lock()
	l.news++
	l.engOpts = opts
	l.mu.Unlock()

	if l.NewErr != nil {
		return nil, l.NewErr
	}
	return l.Engine, nil
}

// Loads returns the number of Load calls.
func (l *Loader) Loads() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.loads
}

// Constructed returns the number of NewEngine calls.
func (l *Loader) Constructed() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.news
}

// Target returns the target passed to the last Load call.
func (l *Loader) Target() viewer.Target {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.target
}

// EngineOptions returns the options passed to the last NewEngine call.
func (l *Loader) EngineOptions() viewer.EngineOptions {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.engOpts
}
