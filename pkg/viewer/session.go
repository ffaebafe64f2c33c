package viewer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger used for non-fatal failures.
func WithLogger(log *slog.Logger) Option {
	return func(s *Session) {
		if log != nil {
			s.log = log
		}
	}
}

// WithStartTimeout bounds the time between Start and engine readiness. A
// session that is not ready in time fails with ErrTimeout. Zero disables it.
func WithStartTimeout(d time.Duration) Option {
	return func(s *Session) { s.timeout = d }
}

// WithTarget selects the engine build the loader resolves.
func WithTarget(t Target) Option {
	return func(s *Session) { s.target = t }
}

// WithConfigError makes Start fail with err as a configuration failure
// before the loader is called. Hosts pass the problems they found while
// resolving the Config, so the session state matches what they report.
func WithConfigError(err error) Option {
	return func(s *Session) {
		if err != nil {
			s.hostErr = kindError(ErrConfiguration, err)
		}
	}
}

// WithID overrides the generated session id.
func WithID(id string) Option {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}

// Status is a point-in-time snapshot of a session.
type Status struct {
	ID              string
	State           State
	Mode            Mode // meaningful only while initializing or ready
	AllowModeChange bool
	Toggling        bool  // a mode switch is waiting on the engine
	Err             error // the failure that moved the session to StateFailed
}

// Session is one engine bound to one mount region. All methods are safe for
// concurrent use. Notifications are published on Events while the session
// lock is held, so their order matches the order of state transitions.
type Session struct {
	id      string
	cfg     Config
	loader  Loader
	target  Target
	timeout time.Duration
	log     *slog.Logger
	events  *EventBus
	hostErr error

	mu       sync.Mutex
	state    State
	mode     Mode
	engine   Engine
	disposed bool
	toggling bool
	err      error
	timer    *time.Timer
}

// New creates an uninitialized session. Subscribe to Events before calling
// Start to observe every notification.
func New(cfg Config, loader Loader, opts ...Option) *Session {
	s := &Session{
		id:     uuid.NewString(),
		cfg:    cfg,
		loader: loader,
		target: DefaultTarget,
		log:    slog.New(slog.DiscardHandler),
		events: NewEventBus(),
		mode:   cfg.mode(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Config returns the configuration the session was created with.
func (s *Session) Config() Config { return s.cfg }

// Events returns the bus carrying ready, error and mode-changed notifications.
// The bus is closed when the session is disposed. A subscriber whose buffer
// is full misses events, so hosts that cannot afford to miss ready or a
// failure should also reconcile with Status.
func (s *Session) Events() *EventBus { return s.events }

// Status returns a snapshot of the session.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Status{
		ID:              s.id,
		State:           s.state,
		Mode:            s.mode,
		AllowModeChange: s.cfg.AllowModeChange,
		Toggling:        s.toggling,
		Err:             s.err,
	}
}

// Start validates the configuration and begins acquiring the engine in the
// background. Configuration problems, including one given with
// WithConfigError, fail the session synchronously and are returned; the
// loader is never called in that case.
// Calling Start on a session that is not uninitialized returns
// ErrInvalidState.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateUninitialized || s.disposed {
		return fmt.Errorf("viewer: start: %w: session is %s", ErrInvalidState, s.state)
	}

	err := s.hostErr
	if err == nil {
		err = s.cfg.Validate()
	}
	if err == nil && s.loader == nil {
		err = &ConfigurationError{Missing: []string{"engine loader"}}
	}
	if err != nil {
		s.failLocked(err, err.Error())
		return err
	}

	s.state = StateInitializing
	s.mode = s.cfg.mode()
	if s.timeout > 0 {
		s.timer = time.AfterFunc(s.timeout, s.expire)
	}

	go s.initialize(ctx)

	return nil
}

// initialize runs the asynchronous part of Start. After every call that may
// suspend it re-checks that the session still wants the result.
func (s *Session) initialize(ctx context.Context) {
	factory, err := s.loader.Load(ctx, s.target)
	if err == nil && factory == nil {
		err = errors.New("loader returned no factory")
	}

	s.mu.Lock()
	if err != nil {
		if s.initializingLocked() {
			s.failLocked(kindError(ErrLoad, err), fmt.Sprintf("Failed to load the viewer engine: %v", err))
		}
		s.mu.Unlock()
		return
	}
	// A disposed session still constructs the engine the factory resolved to,
	// so that handle goes through the single release below. A timed out one
	// stops here.
	if !s.disposed && s.state != StateInitializing {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	eng, err := factory.NewEngine(ctx, EngineOptions{
		SpaceID:     s.cfg.SpaceID,
		AccessToken: s.cfg.AccessToken,
		MountID:     s.cfg.MountID,
	})
	if err == nil && eng == nil {
		err = errors.New("factory returned no engine")
	}

	s.mu.Lock()
	if !s.initializingLocked() {
		s.mu.Unlock()
		// Disposal or the start timeout won the race; the handle is still ours.
		if eng != nil {
			s.release(eng)
		}
		return
	}
	if err != nil {
		s.failLocked(kindError(ErrEngineStart, err), startFailureMessage)
		s.mu.Unlock()
		return
	}
	s.engine = eng
	s.mu.Unlock()

	err = eng.StartViewer(ctx, StartOptions{
		Preview:         true,
		Mode:            s.cfg.mode(),
		AllowModeChange: s.cfg.AllowModeChange,
		OnReady:         s.onReady,
		OnError:         s.onError,
		OnModeChange:    s.onModeChange,
	})
	if err == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initializingLocked() {
		s.log.Warn("viewer: late start error ignored", "session", s.id, "state", s.state, "error", err)
		return
	}
	s.failLocked(kindError(ErrEngineStart, err), startFailureMessage)
}

const startFailureMessage = "Viewer failed to start. Check your space ID / access token and the logs."

func (s *Session) onReady() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initializingLocked() {
		return
	}
	s.state = StateReady
	s.stopTimerLocked()
	s.log.Info("viewer: ready", "session", s.id, "mode", s.mode)
	s.publishLocked(Event{Kind: EventReady, Mode: s.mode})
}

func (s *Session) onError(cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return
	}
	if cause == nil {
		cause = errors.New("unknown engine error")
	}

	switch s.state {
	case StateInitializing:
		s.failLocked(kindError(ErrEngineStart, cause), startFailureMessage)
	case StateReady:
		s.log.Error("viewer: engine error", "session", s.id, "error", cause)
		s.publishLocked(Event{
			Kind:    EventError,
			Message: fmt.Sprintf("Viewer error: %v", cause),
			Err:     cause,
		})
	}
}

func (s *Session) onModeChange(mode Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed || !mode.Valid() {
		return
	}
	if s.state != StateInitializing && s.state != StateReady {
		return
	}
	s.mode = mode
	s.publishLocked(Event{Kind: EventModeChanged, Mode: mode})
}

// ToggleMode switches between 2D and 3D. It is ignored, and returns false,
// unless the session is ready, mode changes are allowed and no other switch
// is in flight. The local mode is updated before the engine is asked; an
// engine failure is reported as an ErrToggle error notification and leaves
// both the state and the local mode as they are.
func (s *Session) ToggleMode(ctx context.Context) bool {
	s.mu.Lock()
	if s.disposed || s.state != StateReady || !s.cfg.AllowModeChange || s.toggling || s.engine == nil {
		s.mu.Unlock()
		return false
	}
	next := s.mode.Other()
	s.mode = next
	s.toggling = true
	eng := s.engine
	s.publishLocked(Event{Kind: EventModeChanged, Mode: next})
	s.mu.Unlock()

	err := eng.SetMode(ctx, next)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.toggling = false
	if err != nil {
		err = kindError(ErrToggle, err)
		s.log.Warn("viewer: set mode failed", "session", s.id, "mode", next, "error", err)
		if !s.disposed {
			s.publishLocked(Event{
				Kind:    EventError,
				Message: fmt.Sprintf("Could not switch to %s view.", next),
				Err:     err,
			})
		}
	}

	return true
}

// Dispose tears the session down. It may be called from any state and any
// number of times; only the first call removes the engine. Removal failures
// are logged and never returned. If Start is still resolving, the engine it
// eventually obtains is removed as soon as it arrives and no ready
// notification is sent.
func (s *Session) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	s.stopTimerLocked()
	eng := s.engine
	s.engine = nil
	s.mu.Unlock()

	if eng != nil {
		s.release(eng)
	}

	s.mu.Lock()
	s.state = StateDisposed
	s.mu.Unlock()

	s.events.Close()
}

// release removes an engine, swallowing errors and panics.
func (s *Session) release(eng Engine) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("viewer: engine teardown panicked", "session", s.id, "panic", r)
		}
	}()

	if err := eng.Remove(); err != nil {
		s.log.Warn("viewer: engine teardown failed", "session", s.id, "error", kindError(ErrTeardown, err))
	}
}

// expire fails a session that did not become ready in time.
func (s *Session) expire() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initializingLocked() {
		return
	}
	err := kindError(ErrTimeout, fmt.Errorf("not ready after %s", s.timeout))
	s.failLocked(err, fmt.Sprintf("The viewer did not become ready within %s.", s.timeout))
}

func (s *Session) initializingLocked() bool {
	return !s.disposed && s.state == StateInitializing
}

func (s *Session) failLocked(err error, msg string) {
	s.state = StateFailed
	s.err = err
	s.stopTimerLocked()
	s.log.Error("viewer: start failed", "session", s.id, "error", err)
	s.publishLocked(Event{Kind: EventError, Message: msg, Err: err})
}

func (s *Session) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Session) publishLocked(e Event) {
	e.SessionID = s.id
	e.Timestamp = time.Now()
	s.events.Publish(e)
}
