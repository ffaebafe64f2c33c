package viewer

import "context"

// Loader asynchronously resolves an engine factory for a target build.
// Load may block; the session calls it off the host's goroutine.
type Loader interface {
	Load(ctx context.Context, target Target) (Factory, error)
}

// LoaderFunc adapts a plain function to the Loader interface.
type LoaderFunc func(ctx context.Context, target Target) (Factory, error)

// Load calls the underlying function.
func (f LoaderFunc) Load(ctx context.Context, target Target) (Factory, error) {
	return f(ctx, target)
}

// EngineOptions binds a new engine to a space and a mount region.
type EngineOptions struct {
	SpaceID     string
	AccessToken string
	MountID     string
}

// Factory constructs engines bound to a mount region.
type Factory interface {
	NewEngine(ctx context.Context, opts EngineOptions) (Engine, error)
}

// StartOptions are passed to Engine.StartViewer. The callbacks may fire zero
// or more times, from any goroutine, including after the engine was removed.
type StartOptions struct {
	Preview         bool
	Mode            Mode
	AllowModeChange bool

	OnReady      func()
	OnError      func(err error)
	OnModeChange func(mode Mode)
}

// Engine is one running rendering engine instance. It is owned exclusively by
// the Session that created it. Remove may run concurrently with StartViewer
// or SetMode when the session is disposed mid-call; once Remove has been
// called, both must return an error without touching the mount region.
type Engine interface {
	// StartViewer asks the engine to start rendering. A returned error is a
	// start failure; later failures are reported through OnError.
	StartViewer(ctx context.Context, opts StartOptions) error
	// SetMode switches the rendering perspective.
	SetMode(ctx context.Context, mode Mode) error
	// Remove detaches the engine from its mount region and releases it.
	Remove() error
}
